package graph

import (
	"sync"

	"github.com/duvholt/bifrost/internal/errs"
)

// snapshot is the immutable, shared view readers see. A writer never
// mutates a snapshot in place; it builds a new one and swaps the store's
// pointer under lock, so concurrent Get/List calls never observe a
// partially-applied batch.
type snapshot struct {
	byHandle map[Handle]Resource
}

func newSnapshot() *snapshot {
	return &snapshot{byHandle: make(map[Handle]Resource)}
}

func (s *snapshot) clone() *snapshot {
	out := newSnapshot()
	for h, r := range s.byHandle {
		out.byHandle[h] = r
	}
	return out
}

// Store is the in-memory resource graph: a typed, versioned,
// referentially-consistent map of every resource the bridge knows about,
// with single-writer/many-reader concurrency and an append-only change
// log feeding subscribers.
//
// Reads never block on the writer: Get and List take a snapshot reference
// under a brief read lock and then work against that immutable copy.
// Mutations serialize through one writer lock, validate reference
// integrity against the candidate snapshot before it is published, and
// then hand the result to the change log for coalesced fan-out.
type Store struct {
	mu   sync.RWMutex
	snap *snapshot

	writeMu sync.Mutex // serializes Apply calls; mu above only guards snap's pointer
	log     *changeLog
	nextVer int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		snap: newSnapshot(),
		log:  newChangeLog(),
	}
}

// Get looks up a single resource by handle.
func (s *Store) Get(h Handle) (Resource, bool) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	r, ok := snap.byHandle[h]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// List returns every resource of the given kind. The returned slice is a
// fresh copy the caller may hold onto indefinitely.
func (s *Store) List(kind Kind) []Resource {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	var out []Resource
	for h, r := range snap.byHandle {
		if h.Kind == kind {
			out = append(out, r.Clone())
		}
	}
	return out
}

// All returns every resource in the graph, across all kinds.
func (s *Store) All() []Resource {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	out := make([]Resource, 0, len(snap.byHandle))
	for _, r := range snap.byHandle {
		out = append(out, r.Clone())
	}
	return out
}

// ChangeKind names what happened to a resource in a batch.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Mutation is one resource-level effect applied within an Apply call. Seq
// is assigned by the change log when Apply records the batch, still under
// Apply's write lock, so it follows commit order.
type Mutation struct {
	Kind     ChangeKind
	Handle   Handle
	Resource Resource // nil for ChangeDeleted
	Seq      int64
}

// Apply validates and commits a batch of mutations atomically: either all
// of the batch is applied and published as one snapshot plus one set of
// change-log records, or none of it is, and the store is left untouched.
//
// Reference integrity is enforced for every Added or Updated resource in
// the batch: every handle it points to (per its References method) must
// resolve either within the current graph, or to another resource also
// being added within the same batch.
func (s *Store) Apply(muts []Mutation) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	base := s.snap
	s.mu.RUnlock()

	next := base.clone()
	for _, m := range muts {
		switch m.Kind {
		case ChangeAdded, ChangeUpdated:
			if m.Resource == nil {
				return errs.New(errs.KindInternal, "mutation missing resource")
			}
			next.byHandle[m.Handle] = m.Resource
		case ChangeDeleted:
			delete(next.byHandle, m.Handle)
		default:
			return errs.New(errs.KindInternal, "unknown mutation kind")
		}
	}

	for _, m := range muts {
		if m.Kind == ChangeDeleted {
			continue
		}
		for _, ref := range m.Resource.References() {
			if ref.IsZero() {
				continue
			}
			if _, ok := next.byHandle[ref]; !ok {
				return errs.New(errs.KindReferenceViolation,
					"resource "+m.Handle.String()+" references unresolved handle "+ref.String())
			}
		}
	}

	for _, m := range muts {
		if m.Kind == ChangeDeleted {
			continue
		}
		s.nextVer++
		m.Resource.setVersion(s.nextVer)
	}

	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()

	s.log.record(muts)
	return nil
}

// Subscribe returns a feed of change-log records starting from now. See
// changeLog.subscribe for lag-handling semantics.
func (s *Store) Subscribe() *Subscription {
	return s.log.subscribe()
}

// SubscribeFrom returns a feed of change-log records resuming after
// fromSeq, replaying any retained record the subscriber missed while
// disconnected. fromSeq of 0 is equivalent to Subscribe: start from now.
// If fromSeq has already aged out of the retained tail, it returns a
// StreamOverrun error; the caller must re-subscribe from scratch.
func (s *Store) SubscribeFrom(fromSeq int64) (*Subscription, error) {
	return s.log.subscribeFrom(fromSeq)
}
