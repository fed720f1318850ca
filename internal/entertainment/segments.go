package entertainment

import (
	"context"
	"sync"

	"github.com/duvholt/bifrost/internal/codec"
	"github.com/duvholt/bifrost/internal/errs"
	"github.com/duvholt/bifrost/internal/graph"
)

// segmentEntry is one cached virtual-address assignment.
type segmentEntry struct {
	handle graph.Handle
	addr   string // the light's gateway-native addressing key
}

// segmentRegistry maps a multi-segment light's per-segment virtual
// address to the owning light handle. It is instance state on a Server
// (and shared with the Sessions it spawns) rather than a package global,
// so two Servers in the same process never see each other's segments.
type segmentRegistry struct {
	mu            sync.RWMutex
	byVirtualAddr map[uint16]segmentEntry
	byHandle      map[graph.Handle]segmentEntry
}

func newSegmentRegistry() *segmentRegistry {
	return &segmentRegistry{
		byVirtualAddr: make(map[uint16]segmentEntry),
		byHandle:      make(map[graph.Handle]segmentEntry),
	}
}

// lookup resolves a cluster-0xFC01 short address to the light handle and
// gateway address it was assigned to.
func (r *segmentRegistry) lookup(virtualAddr uint16) (graph.Handle, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byVirtualAddr[virtualAddr]
	return e.handle, e.addr, ok
}

// lookupByHandle is the inverse lookup, used on session teardown.
func (r *segmentRegistry) lookupByHandle(h graph.Handle) (uint16, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for addr, e := range r.byVirtualAddr {
		if e.handle == h {
			return addr, e.addr, true
		}
	}
	return 0, "", false
}

// register caches a virtual-address assignment for a light.
func (r *segmentRegistry) register(virtualAddr uint16, h graph.Handle, gatewayAddr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := segmentEntry{handle: h, addr: gatewayAddr}
	r.byVirtualAddr[virtualAddr] = e
	r.byHandle[h] = e
}

// release drops every virtual address assigned to a light, e.g. when its
// entertainment_configuration is deleted or rebuilt.
func (r *segmentRegistry) release(h graph.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for addr, e := range r.byVirtualAddr {
		if e.handle == h {
			delete(r.byVirtualAddr, addr)
		}
	}
	delete(r.byHandle, h)
}

// Segmenter sends a command-7 configure request to a gateway and reports
// whether it was accepted. internal/upstream's Manager implements this
// via its raw-command path, resolving the owning session from the light
// handle.
type Segmenter interface {
	ConfigureSegments(ctx context.Context, h graph.Handle, gatewayAddr string, req *codec.SegmentConfigureRequest) (uint16, error)
}

// configureMultiSegmentLight assigns one virtual address per segment for
// a multi-segment light (e.g. a gradient strip), retrying once if the
// gateway returns anything other than SegmentConfigureOK, per spec §4.4.
func configureMultiSegmentLight(ctx context.Context, seg Segmenter, registry *segmentRegistry, h graph.Handle, gatewayAddr string, virtualAddrs []uint16) error {
	req := &codec.SegmentConfigureRequest{}
	for _, v := range virtualAddrs {
		req.Segments = append(req.Segments, codec.SegmentEntry{VirtualAddr: v})
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		status, err := seg.ConfigureSegments(ctx, h, gatewayAddr, req)
		if err != nil {
			lastErr = err
			continue
		}
		if status != codec.SegmentConfigureOK {
			lastErr = errs.New(errs.KindUnavailable, "segment configure returned non-OK status")
			continue
		}
		registry.release(h)
		for _, v := range virtualAddrs {
			registry.register(v, h, gatewayAddr)
		}
		return nil
	}
	return lastErr
}
