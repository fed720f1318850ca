package entertainment

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/duvholt/bifrost/internal/codec"
	"github.com/duvholt/bifrost/internal/graph"
)

// frameSilence is how long a session waits without a frame before
// tearing itself down and restoring pre-session light state.
const frameSilence = 5 * time.Second

// Session is one DTLS-terminated entertainment stream. It is not bound to
// a single entertainment_configuration resource: each received light
// block is resolved on its own through the segment registry.
type Session struct {
	appKey   string
	conn     net.Conn
	store    *graph.Store
	sender   FrameSender
	segments *segmentRegistry

	lastCounter uint32
	haveCounter bool

	preSession map[graph.Handle]graph.Light // snapshot for restore on teardown
}

// NewSession builds a session against an accepted connection. No
// configuration is bound up front, since the wire protocol does not carry
// a configuration id in this emulator's simplified framing; each light's
// pre-session snapshot is taken the first time a frame targets it.
func NewSession(appKey string, conn net.Conn, store *graph.Store, sender FrameSender, segments *segmentRegistry) *Session {
	return &Session{
		appKey:     appKey,
		conn:       conn,
		store:      store,
		sender:     sender,
		segments:   segments,
		preSession: make(map[graph.Handle]graph.Light),
	}
}

// Run reads frames until the connection closes, an error occurs, or the
// session falls silent for frameSilence.
func (s *Session) Run(ctx context.Context) {
	defer s.teardown(ctx)
	defer s.conn.Close()

	buf := make([]byte, 256)
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(frameSilence)); err != nil {
			return
		}
		n, err := s.conn.Read(buf)
		if err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.handleFrame(ctx, buf[:n])
	}
}

func (s *Session) handleFrame(ctx context.Context, data []byte) {
	frame, err := codec.ParseEntertainmentFrame(data)
	if err != nil {
		log.Debug().Err(err).Msg("dropped malformed entertainment frame")
		return
	}

	// Out-of-order or duplicate frames are silently dropped (spec §4.4).
	if s.haveCounter && frame.Counter <= s.lastCounter {
		return
	}
	s.haveCounter = true
	s.lastCounter = frame.Counter

	for _, lb := range frame.Lights {
		s.forwardLightBlock(ctx, lb)
	}
}

// forwardLightBlock resolves the light block's short address to a graph
// light handle via the segment cache, snapshots its pre-session state the
// first time it is seen, and forwards a single-light frame to the owning
// gateway.
func (s *Session) forwardLightBlock(ctx context.Context, lb codec.LightBlock) {
	h, addr, ok := s.segments.lookup(lb.Addr)
	if !ok {
		return
	}

	if _, seen := s.preSession[h]; !seen {
		if existing, ok := s.store.Get(h); ok {
			if light, ok := existing.(*graph.Light); ok {
				s.preSession[h] = *light
			}
		}
	}

	single := &codec.EntertainmentFrame{Counter: s.lastCounter, Lights: []codec.LightBlock{lb}}
	if err := s.sender.SendEntertainmentFrame(ctx, h, addr, single.Serialize()); err != nil {
		log.Warn().Err(err).Str("light", addr).Msg("failed to forward entertainment frame")
	}
}

// teardown restores every touched light to its pre-session state.
func (s *Session) teardown(ctx context.Context) {
	for h, snapshot := range s.preSession {
		restore := snapshot
		single := &codec.EntertainmentFrame{
			Counter: s.lastCounter + 1,
			Lights: []codec.LightBlock{{
				Addr:       0,
				Brightness: uint16(restore.Brightness) * 0x7FF / 100,
			}},
		}
		_, addr, ok := s.segments.lookupByHandle(h)
		if !ok {
			continue
		}
		if err := s.sender.SendEntertainmentFrame(ctx, h, addr, single.Serialize()); err != nil {
			log.Warn().Err(err).Str("light", addr).Msg("failed to restore light after entertainment session")
		}
	}
}
