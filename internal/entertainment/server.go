// Package entertainment implements the DTLS-PSK listener that accepts
// high-rate light-frame bursts from an entertainment client and forwards
// them as cluster-0xFC01 frames to the owning upstream gateway.
package entertainment

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pion/dtls/v2"
	"github.com/rs/zerolog/log"

	"github.com/duvholt/bifrost/internal/clients"
	"github.com/duvholt/bifrost/internal/errs"
	"github.com/duvholt/bifrost/internal/graph"
)

// FrameSender is the seam the server needs: forwarding
// an already-encoded entertainment frame payload for one light to its
// owning gateway on the priority path.
type FrameSender interface {
	SendEntertainmentFrame(ctx context.Context, h graph.Handle, addr string, frame []byte) error
}

// Server is the DTLS-PSK listener for Hue Entertainment streaming.
type Server struct {
	listenAddr string
	clients    *clients.Store
	store      *graph.Store
	sender     FrameSender
	segmenter  Segmenter

	segments *segmentRegistry

	mu       sync.Mutex
	sessions map[string]*Session // by application key

	nextVirtualAddr uint16
}

// NewServer returns a Server bound to listenAddr, not yet listening.
// segmenter routes command-7 segment-map requests to the gateway owning
// a given light; it is typically an *upstream.Manager.
func NewServer(listenAddr string, clientStore *clients.Store, store *graph.Store, sender FrameSender, segmenter Segmenter) *Server {
	return &Server{
		listenAddr: listenAddr,
		clients:    clientStore,
		store:      store,
		sender:     sender,
		segmenter:  segmenter,
		segments:   newSegmentRegistry(),
		sessions:   make(map[string]*Session),
	}
}

// ConfigureLight allocates one virtual address per segment for a light
// and binds them to its entertainment_configuration, retrying once on a
// non-OK gateway response. It is the creation-time entry point called
// when a client POSTs an entertainment_configuration referencing this
// light.
func (s *Server) ConfigureLight(ctx context.Context, h graph.Handle, gatewayAddr string, segmentCount int) ([]uint16, error) {
	if segmentCount < 1 {
		segmentCount = 1
	}

	s.mu.Lock()
	addrs := make([]uint16, segmentCount)
	for i := range addrs {
		s.nextVirtualAddr++
		addrs[i] = s.nextVirtualAddr
	}
	s.mu.Unlock()

	if err := configureMultiSegmentLight(ctx, s.segmenter, s.segments, h, gatewayAddr, addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

// Run listens for DTLS connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", s.listenAddr)
	if err != nil {
		return err
	}

	cfg := &dtls.Config{
		PSK: func(hint []byte) ([]byte, error) {
			// hint carries the candidate application key as its PSK
			// identity; the secret is looked up from the paired-client
			// store rather than trusted from the wire.
			secret, ok := s.clients.PSKSecret(string(hint))
			if !ok {
				return nil, errs.New(errs.KindUnauthorized, "unknown PSK identity")
			}
			return secret, nil
		},
		CipherSuites:         []dtls.CipherSuiteID{dtls.TLS_PSK_WITH_AES_128_GCM_SHA256},
		ConnectContextMaker: func() (context.Context, func()) {
			return context.WithTimeout(ctx, 10*time.Second)
		},
	}

	listener, err := dtls.Listen("udp", addr, cfg)
	if err != nil {
		return err
	}
	defer listener.Close()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Msg("entertainment listener accept failed")
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	dtlsConn, ok := conn.(*dtls.Conn)
	identity := ""
	if ok {
		identity = string(dtlsConn.ConnectionState().IdentityHint)
	}

	appKey, name, ok := s.clients.Lookup(identity)
	if !ok {
		log.Warn().Str("identity", identity).Msg("entertainment session rejected: unknown application key")
		conn.Close()
		return
	}

	sess := NewSession(appKey, conn, s.store, s.sender, s.segments)
	log.Info().Str("client", name).Str("key", appKey).Msg("entertainment session started")

	s.mu.Lock()
	s.sessions[appKey] = sess
	s.mu.Unlock()

	sess.Run(ctx)

	s.mu.Lock()
	delete(s.sessions, appKey)
	s.mu.Unlock()
	log.Info().Str("client", name).Msg("entertainment session ended")
}
