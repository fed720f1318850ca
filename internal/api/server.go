// Package api implements the client-facing HTTP surface: the Hue v2 REST
// API, its v1 pairing-compatibility mirror, the SSE change feed, and
// bearer-token authentication against the paired-clients store.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/duvholt/bifrost/internal/clients"
	"github.com/duvholt/bifrost/internal/entertainment"
	"github.com/duvholt/bifrost/internal/graph"
	"github.com/duvholt/bifrost/internal/upstream"
)

// requestDeadline is the end-to-end deadline for a REST request, per
// spec §5.
const requestDeadline = 10 * time.Second

// Server is the client-facing HTTP surface.
type Server struct {
	listenAddr      string
	shutdownTimeout time.Duration
	bridgeID        string

	store         *graph.Store
	clients       *clients.Store
	upstream      *upstream.Manager
	entertainment *entertainment.Server

	linkButton *linkButtonWindow

	httpServer *http.Server
}

// Config carries the construction-time settings Server needs.
type Config struct {
	ListenAddr       string
	ShutdownTimeout  time.Duration
	LinkButtonWindow time.Duration
	BridgeID         string
}

// NewServer wires the router against the shared resource graph, paired
// client store, and upstream manager. entertainment may be nil if
// entertainment streaming is disabled, in which case creating an
// entertainment_configuration resource fails with a clear error instead
// of panicking.
func NewServer(cfg Config, store *graph.Store, clientStore *clients.Store, mgr *upstream.Manager, entertainmentSrv *entertainment.Server) *Server {
	s := &Server{
		listenAddr:      cfg.ListenAddr,
		shutdownTimeout: cfg.ShutdownTimeout,
		bridgeID:        cfg.BridgeID,
		store:           store,
		clients:         clientStore,
		upstream:        mgr,
		entertainment:   entertainmentSrv,
		linkButton:      newLinkButtonWindow(cfg.LinkButtonWindow),
	}
	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: s.buildRouter(),
	}
	return s
}

// PressLinkButton opens the pairing window, mimicking a physical button
// press on the bridge.
func (s *Server) PressLinkButton() {
	s.linkButton.press()
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.deadlineMiddleware)

	r.Post("/api", s.handlePair)

	r.Route("/api/{username}", func(r chi.Router) {
		r.Get("/config", s.handleV1Config)
	})
	r.Get("/api/nouser/config", s.handleV1NoUserConfig)

	r.Route("/clip/v2", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/resource", s.handleListAll)
		r.Route("/resource/{kind}", func(r chi.Router) {
			r.Get("/", s.handleListKind)
			r.Post("/", s.handleCreate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Put("/", s.handlePut)
				r.Delete("/", s.handleDelete)
			})
		})
	})

	// Mounted at the literal root path per spec, not nested under
	// /clip/v2, but still requires a paired client like the rest of the
	// clip/v2 surface.
	r.With(s.authMiddleware).Get("/eventstream/clip/v2", s.handleSSE)

	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully within shutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.listenAddr).Msg("api server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
