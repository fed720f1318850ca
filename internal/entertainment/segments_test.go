package entertainment

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/duvholt/bifrost/internal/codec"
	"github.com/duvholt/bifrost/internal/graph"
)

func TestRegisterAndLookupSegment(t *testing.T) {
	registry := newSegmentRegistry()
	h := graph.Handle{Kind: graph.KindLight, ID: uuid.New()}
	registry.register(500, h, "0x1234")

	gotH, gotAddr, ok := registry.lookup(500)
	if !ok || gotH != h || gotAddr != "0x1234" {
		t.Fatalf("lookup = (%v, %q, %v)", gotH, gotAddr, ok)
	}

	gotAddr2, gotGatewayAddr, ok := registry.lookupByHandle(h)
	if !ok || gotAddr2 != 500 || gotGatewayAddr != "0x1234" {
		t.Fatalf("lookup by handle = (%v, %q, %v)", gotAddr2, gotGatewayAddr, ok)
	}
}

func TestSegmentRegistriesAreIsolated(t *testing.T) {
	a := newSegmentRegistry()
	b := newSegmentRegistry()
	h := graph.Handle{Kind: graph.KindLight, ID: uuid.New()}

	a.register(1, h, "0x1234")
	if _, _, ok := b.lookup(1); ok {
		t.Fatalf("registry b should not see registry a's assignment")
	}
}

type fakeSegmenter struct {
	responses []uint16
	errs      []error
	calls     int
}

func (f *fakeSegmenter) ConfigureSegments(ctx context.Context, h graph.Handle, gatewayAddr string, req *codec.SegmentConfigureRequest) (uint16, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.responses[i], err
}

func TestConfigureMultiSegmentLightSucceedsFirstTry(t *testing.T) {
	registry := newSegmentRegistry()
	h := graph.Handle{Kind: graph.KindLight, ID: uuid.New()}
	seg := &fakeSegmenter{responses: []uint16{codec.SegmentConfigureOK}}

	if err := configureMultiSegmentLight(context.Background(), seg, registry, h, "0xABCD", []uint16{1, 2, 3}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if seg.calls != 1 {
		t.Fatalf("calls = %d, want 1", seg.calls)
	}
	if _, _, ok := registry.lookup(1); !ok {
		t.Fatalf("segment 1 not registered")
	}
}

func TestConfigureMultiSegmentLightRetriesOnceOnNonOKStatus(t *testing.T) {
	registry := newSegmentRegistry()
	h := graph.Handle{Kind: graph.KindLight, ID: uuid.New()}
	seg := &fakeSegmenter{responses: []uint16{0x0001, codec.SegmentConfigureOK}}

	if err := configureMultiSegmentLight(context.Background(), seg, registry, h, "0xABCD", []uint16{10}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if seg.calls != 2 {
		t.Fatalf("calls = %d, want 2 (one retry)", seg.calls)
	}
}

func TestConfigureMultiSegmentLightFailsAfterRetryExhausted(t *testing.T) {
	registry := newSegmentRegistry()
	h := graph.Handle{Kind: graph.KindLight, ID: uuid.New()}
	seg := &fakeSegmenter{responses: []uint16{0x0001, 0x0001}}

	if err := configureMultiSegmentLight(context.Background(), seg, registry, h, "0xABCD", []uint16{20}); err == nil {
		t.Fatalf("expected error after exhausting the single retry")
	}
	if seg.calls != 2 {
		t.Fatalf("calls = %d, want 2", seg.calls)
	}
}

func TestServerConfigureLightAssignsVirtualAddresses(t *testing.T) {
	seg := &fakeSegmenter{responses: []uint16{codec.SegmentConfigureOK}}
	s := NewServer(":0", nil, nil, nil, seg)
	h := graph.Handle{Kind: graph.KindLight, ID: uuid.New()}

	addrs, err := s.ConfigureLight(context.Background(), h, "0xABCD", 3)
	if err != nil {
		t.Fatalf("ConfigureLight: %v", err)
	}
	if len(addrs) != 3 {
		t.Fatalf("addrs = %v, want 3 entries", addrs)
	}
	if _, _, ok := s.segments.lookup(addrs[0]); !ok {
		t.Fatalf("first virtual address was not registered")
	}
}
