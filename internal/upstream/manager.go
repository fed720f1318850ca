package upstream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/duvholt/bifrost/internal/codec"
	"github.com/duvholt/bifrost/internal/config"
	"github.com/duvholt/bifrost/internal/errs"
	"github.com/duvholt/bifrost/internal/graph"
)

// Manager owns one Session per configured gateway and resolves a light
// handle to the session that owns it, for outbound routing.
type Manager struct {
	store *graph.Store

	mu       sync.RWMutex
	sessions map[string]*Session // by gateway id
	owner    map[graph.Handle]string // light handle -> gateway id
}

// NewManager returns a Manager with one disconnected Session per entry in
// cfgs. Run must be called to actually start connecting.
func NewManager(store *graph.Store, cfgs []config.GatewayConfig) *Manager {
	m := &Manager{
		store:    store,
		sessions: make(map[string]*Session),
		owner:    make(map[graph.Handle]string),
	}
	for _, c := range cfgs {
		m.sessions[c.ID] = NewSession(c, store, m)
	}
	return m
}

// Run starts every gateway session's connect loop and blocks until ctx is
// cancelled.
func (m *Manager) Run(ctx context.Context) {
	var wg sync.WaitGroup
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Run(ctx)
		}(s)
	}
	wg.Wait()
}

// bindLight records that a light handle belongs to a gateway, so outbound
// intents for it route to the right session.
func (m *Manager) bindLight(h graph.Handle, gatewayID string) {
	m.mu.Lock()
	m.owner[h] = gatewayID
	m.mu.Unlock()
}

// SessionFor returns the gateway session owning a light handle.
func (m *Manager) SessionFor(h graph.Handle) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	gid, ok := m.owner[h]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "light is not bound to any gateway")
	}
	s, ok := m.sessions[gid]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "unknown gateway")
	}
	return s, nil
}

// Submit resolves the light's owning session and submits the intent,
// failing fast with Unavailable if that session is not Live.
func (m *Manager) Submit(ctx context.Context, h graph.Handle, addr string, intent Intent) error {
	s, err := m.SessionFor(h)
	if err != nil {
		return err
	}
	return s.Submit(ctx, addr, intent)
}

// ConfigureSegments resolves the gateway session owning h and routes a
// command-7 segment-map request to it. It implements entertainment.Segmenter.
func (m *Manager) ConfigureSegments(ctx context.Context, h graph.Handle, gatewayAddr string, req *codec.SegmentConfigureRequest) (uint16, error) {
	s, err := m.SessionFor(h)
	if err != nil {
		return 0, err
	}
	return s.configureSegments(ctx, gatewayAddr, req)
}

// dialer abstracts websocket.DefaultDialer so tests can substitute a fake.
type dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

var defaultDialer dialer = websocket.DefaultDialer

func init() {
	websocket.DefaultDialer.HandshakeTimeout = 10 * time.Second
}

func backoffDuration(attempt int, min, max time.Duration, mult float64) time.Duration {
	if attempt <= 0 {
		return min
	}
	d := min
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * mult)
		if d > max {
			return max
		}
	}
	return d
}

func logGatewayState(gatewayID string, s State) {
	log.Info().Str("gateway", gatewayID).Str("state", s.String()).Msg("gateway session state changed")
}
