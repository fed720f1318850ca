package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/duvholt/bifrost/internal/clients"
)

// linkButtonWindow tracks whether pairing is currently allowed, mirroring
// the physical bridge's push-link button: a press opens a fixed window
// during which an unauthenticated POST /api may register a new client.
type linkButtonWindow struct {
	mu       sync.Mutex
	window   time.Duration
	deadline time.Time
}

func newLinkButtonWindow(window time.Duration) *linkButtonWindow {
	return &linkButtonWindow{window: window}
}

func (l *linkButtonWindow) press() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deadline = time.Now().Add(l.window)
}

func (l *linkButtonWindow) open() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.deadline.IsZero() && time.Now().Before(l.deadline)
}

type hueErrorBody struct {
	Error struct {
		Type        int    `json:"type"`
		Address     string `json:"address"`
		Description string `json:"description"`
	} `json:"error"`
}

type pairRequest struct {
	DeviceType        string `json:"devicetype"`
	GenerateClientKey bool   `json:"generateclientkey"`
}

type pairSuccess struct {
	Success struct {
		Username  string `json:"username"`
		ClientKey string `json:"clientkey,omitempty"`
	} `json:"success"`
}

// handlePair implements the v1-compatible POST /api pairing handshake: a
// request succeeds only while the link-button window is open, mirroring
// the physical bridge's "press the button, then pair" flow.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "body contains invalid JSON")
		return
	}
	if req.DeviceType == "" {
		writeBadRequest(w, "devicetype is required")
		return
	}

	if !s.linkButton.open() {
		writeLinkButtonNotPressed(w)
		return
	}

	c, err := s.clients.Create(req.DeviceType, req.GenerateClientKey)
	if err != nil {
		writeInternalError(w)
		return
	}

	var resp pairSuccess
	resp.Success.Username = c.Key
	resp.Success.ClientKey = c.ClientKey
	writeJSONArray(w, http.StatusOK, resp)
}

func writeLinkButtonNotPressed(w http.ResponseWriter) {
	var body hueErrorBody
	body.Error.Type = 101
	body.Error.Address = "/"
	body.Error.Description = "link button not pressed"
	writeJSONArray(w, http.StatusOK, body)
}

type clientContextKey struct{}

// authMiddleware validates the hue-application-key header against the
// paired-clients store, per spec §5's bearer-token requirement on every
// clip/v2 route.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("hue-application-key")
		if key == "" {
			writeUnauthorized(w)
			return
		}
		c, ok := s.clients.Authenticate(key)
		if !ok {
			writeUnauthorized(w)
			return
		}
		ctx := context.WithValue(r.Context(), clientContextKey{}, c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientFrom(ctx context.Context) *clients.Client {
	c, _ := ctx.Value(clientContextKey{}).(*clients.Client)
	return c
}
