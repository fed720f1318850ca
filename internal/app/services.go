package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/duvholt/bifrost/internal/api"
	"github.com/duvholt/bifrost/internal/bridgeid"
	"github.com/duvholt/bifrost/internal/clients"
	"github.com/duvholt/bifrost/internal/config"
	"github.com/duvholt/bifrost/internal/entertainment"
	"github.com/duvholt/bifrost/internal/graph"
	"github.com/duvholt/bifrost/internal/persist"
	"github.com/duvholt/bifrost/internal/upstream"
)

// Services owns every long-lived component and their start/stop order.
type Services struct {
	cfg *config.Config

	BridgeID string

	Store    *graph.Store
	Clients  *clients.Store
	Upstream *upstream.Manager
	API      *api.Server

	entertainment *entertainment.Server

	// pendingResources holds persisted user-authored resources not yet
	// restored: they reference reconciler-owned devices and lights that
	// may not exist until a gateway completes its first inventory sync.
	pendingResources []persist.PersistedResource

	wg sync.WaitGroup
}

// NewServices constructs every component, restoring persisted state where
// one exists, but starts nothing.
func NewServices(cfg *config.Config) (*Services, error) {
	bridgeID, err := bridgeid.Parse(cfg.Bridge.MAC)
	if err != nil {
		return nil, err
	}

	store := graph.NewStore()
	clientStore := clients.NewStore()

	var pendingResources []persist.PersistedResource
	if state, err := persist.Load(cfg.Persist.Path); err == nil {
		persist.RestoreClients(clientStore, state.Clients)
		pendingResources = state.Resources
	} else {
		log.Info().Str("path", cfg.Persist.Path).Msg("no persisted state found, starting fresh")
	}

	mgr := upstream.NewManager(store, cfg.Gateways)

	var entServer *entertainment.Server
	if cfg.Entertainment.Enabled {
		sender := newEntertainmentSender(mgr)
		entServer = entertainment.NewServer(cfg.Entertainment.ListenAddr, clientStore, store, sender, mgr)
	}

	apiServer := api.NewServer(api.Config{
		ListenAddr:       cfg.API.ListenAddr,
		ShutdownTimeout:  cfg.API.ShutdownTimeout.Duration(),
		LinkButtonWindow: cfg.API.LinkButtonWindow.Duration(),
		BridgeID:         bridgeID,
	}, store, clientStore, mgr, entServer)

	s := &Services{
		cfg:              cfg,
		BridgeID:         bridgeID,
		Store:            store,
		Clients:          clientStore,
		Upstream:         mgr,
		API:              apiServer,
		entertainment:    entServer,
		pendingResources: pendingResources,
	}

	return s, nil
}

// Start launches every background goroutine: gateway reconcilers, the
// entertainment listener (if enabled), the API server, and the
// persistence flush loop.
func (s *Services) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Upstream.Run(ctx)
	}()

	if s.entertainment != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.entertainment.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("entertainment listener stopped")
			}
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.API.Run(ctx); err != nil {
			log.Error().Err(err).Msg("api server stopped")
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runPersistenceLoop(ctx)
	}()

	if len(s.pendingResources) > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.restoreResourcesLoop(ctx)
		}()
	}
}

// restoreResourcesLoop retries restoring persisted user-authored
// resources (rooms, zones, scenes, entertainment configurations) until
// Store.Apply accepts the batch. They reference reconciler-owned devices
// and lights that only materialize once a gateway completes its first
// inventory sync, so a fresh restart cannot restore them inline; the
// batch is retried every 2s rather than failing once and giving up.
func (s *Services) restoreResourcesLoop(ctx context.Context) {
	muts, err := persist.ResourcesToMutations(s.pendingResources)
	if err != nil {
		log.Error().Err(err).Msg("persisted resources are corrupt, dropping them")
		return
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		if err := s.Store.Apply(muts); err == nil {
			log.Info().Int("count", len(muts)).Msg("restored persisted resources")
			return
		}
		log.Debug().Msg("persisted resources not yet restorable, retrying")

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runPersistenceLoop periodically flushes paired clients to disk and does
// a final flush on shutdown, so a restart never loses pairing state.
func (s *Services) runPersistenceLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Persist.FlushInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.flush(); err != nil {
				log.Error().Err(err).Msg("final state flush failed")
			}
			return
		case <-ticker.C:
			if err := s.flush(); err != nil {
				log.Warn().Err(err).Msg("periodic state flush failed")
			}
		}
	}
}

func (s *Services) flush() error {
	state := persist.NewState(s.BridgeID, s.cfg.Bridge.MAC)
	state.Clients = persist.ClientsFromStore(s.Clients)
	state.Resources = persist.ResourcesFromStore(s.Store)
	return persist.Save(s.cfg.Persist.Path, state)
}

// Stop blocks until every background goroutine has exited.
func (s *Services) Stop() error {
	s.wg.Wait()
	return nil
}
