package app

import (
	"context"

	"github.com/duvholt/bifrost/internal/codec"
	"github.com/duvholt/bifrost/internal/errs"
	"github.com/duvholt/bifrost/internal/graph"
	"github.com/duvholt/bifrost/internal/upstream"
)

// entertainmentSender adapts upstream.Manager to entertainment.FrameSender,
// so the DTLS server never needs to know about gateway sessions directly.
type entertainmentSender struct {
	mgr *upstream.Manager
}

func newEntertainmentSender(mgr *upstream.Manager) *entertainmentSender {
	return &entertainmentSender{mgr: mgr}
}

func (s *entertainmentSender) SendEntertainmentFrame(ctx context.Context, h graph.Handle, addr string, frame []byte) error {
	session, err := s.mgr.SessionFor(h)
	if err != nil {
		return err
	}
	if !session.State().IsAvailable() {
		return errs.New(errs.KindUnavailable, "gateway session is not live")
	}

	decoded, decErr := codec.ParseEntertainmentFrame(frame)
	if decErr != nil {
		return decErr
	}
	topic, msgType, payload, tErr := upstream.TranslateEntertainmentFrame(addr, decoded)
	if tErr != nil {
		return tErr
	}
	return session.Send(ctx, topic, msgType, payload)
}
