// Package app wires every bifrost component into one running bridge
// process: the resource graph, paired-clients store, upstream gateway
// reconcilers, entertainment listener, client-facing API, and the
// persistence loop that keeps them all surviving a restart.
package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/duvholt/bifrost/internal/config"
)

// App is the top-level process container.
type App struct {
	cfg      *config.Config
	services *Services
	ctx      context.Context
	cancel   context.CancelFunc
}

// New builds every service but starts none of them.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, services: services}, nil
}

// Start brings every background component up: gateway reconcilers,
// entertainment listener, API server, persistence loop.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.services.Start(a.ctx)
	log.Info().Str("bridge_id", a.services.BridgeID).Msg("bifrost started")
	return nil
}

// Wait blocks until the app's context is cancelled.
func (a *App) Wait() {
	if a.ctx != nil {
		<-a.ctx.Done()
	}
}

// Stop cancels every background component and flushes state to disk.
func (a *App) Stop() error {
	log.Info().Msg("shutting down")
	if a.cancel != nil {
		a.cancel()
	}
	return a.services.Stop()
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	return ctx
}
