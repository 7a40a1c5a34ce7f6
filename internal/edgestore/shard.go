package edgestore

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"

	"github.com/velesdb/veles/internal/verrors"
)

// NewEdgeID mints a fresh 64-bit edge id from a random UUIDv4, folding
// its 16 bytes down to 8 with XOR. Collisions are astronomically
// unlikely and, unlike a monotonic counter, this needs no shared
// sequence state across shards.
func NewEdgeID() uint64 {
	u := uuid.New()
	hi := binary.LittleEndian.Uint64(u[0:8])
	lo := binary.LittleEndian.Uint64(u[8:16])
	return hi ^ lo
}

// Store is the sharded adjacency table (spec.md §4.E): forward
// adjacency keyed by source node, reverse adjacency keyed by target
// node, each a map of edge id to Edge for O(1) removal. The reverse
// side duplicates every Edge rather than storing a back-reference --
// an accepted memory cost per spec.md §4.E.
type Store struct {
	mu      sync.RWMutex
	forward map[uint64]map[uint64]*Edge // source -> edgeID -> Edge
	reverse map[uint64]map[uint64]*Edge // target -> edgeID -> Edge
}

// New creates an empty edge store.
func New() *Store {
	return &Store{
		forward: make(map[uint64]map[uint64]*Edge),
		reverse: make(map[uint64]map[uint64]*Edge),
	}
}

// AddEdge inserts e into both the forward and reverse adjacency shards.
// If e.ID is zero, a fresh id is minted.
func (s *Store) AddEdge(e *Edge) *Edge {
	if e.ID == 0 {
		e.ID = NewEdgeID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fwd, ok := s.forward[e.Source]
	if !ok {
		fwd = make(map[uint64]*Edge)
		s.forward[e.Source] = fwd
	}
	fwd[e.ID] = e

	rev, ok := s.reverse[e.Target]
	if !ok {
		rev = make(map[uint64]*Edge)
		s.reverse[e.Target] = rev
	}
	rev[e.ID] = e

	return e
}

// RemoveEdge deletes edgeID from both shards in O(1), given the edge's
// source and target.
func (s *Store) RemoveEdge(source, target, edgeID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fwd, ok := s.forward[source]
	if !ok {
		return verrors.New(verrors.Corruption, "edgestore: no forward shard for source")
	}
	if _, ok := fwd[edgeID]; !ok {
		return verrors.New(verrors.Corruption, "edgestore: edge not found in forward shard")
	}
	delete(fwd, edgeID)
	if len(fwd) == 0 {
		delete(s.forward, source)
	}

	if rev, ok := s.reverse[target]; ok {
		delete(rev, edgeID)
		if len(rev) == 0 {
			delete(s.reverse, target)
		}
	}
	return nil
}

// RemoveNode drops every edge touching node, in either direction --
// called by Collection.SoftDelete when a node is deleted (spec.md §3
// "Edges live as long as both endpoints exist").
func (s *Store) RemoveNode(node uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fwd, ok := s.forward[node]; ok {
		for _, e := range fwd {
			if rev, ok := s.reverse[e.Target]; ok {
				delete(rev, e.ID)
				if len(rev) == 0 {
					delete(s.reverse, e.Target)
				}
			}
		}
		delete(s.forward, node)
	}
	if rev, ok := s.reverse[node]; ok {
		for _, e := range rev {
			if fwd, ok := s.forward[e.Source]; ok {
				delete(fwd, e.ID)
				if len(fwd) == 0 {
					delete(s.forward, e.Source)
				}
			}
		}
		delete(s.reverse, node)
	}
}

// Outgoing returns every edge leaving node, optionally filtered by
// label (empty label means no filter).
func (s *Store) Outgoing(node uint64, label string) []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fwd, ok := s.forward[node]
	if !ok {
		return nil
	}
	out := make([]*Edge, 0, len(fwd))
	for _, e := range fwd {
		if label == "" || e.Label == label {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns every edge arriving at node, optionally filtered by
// label.
func (s *Store) Incoming(node uint64, label string) []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rev, ok := s.reverse[node]
	if !ok {
		return nil
	}
	out := make([]*Edge, 0, len(rev))
	for _, e := range rev {
		if label == "" || e.Label == label {
			out = append(out, e)
		}
	}
	return out
}
