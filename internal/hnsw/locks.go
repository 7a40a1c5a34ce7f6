// Package hnsw implements the layered, concurrent HNSW graph (spec.md
// §4.D) -- the hardest subsystem in the engine. Grounded on the
// retrieval pack's only hand-rolled, multi-layer HNSW
// (other_examples/233d3ff0_haivivi-giztoy__go-pkg-vecstore-hnsw.go.go:
// greedy descent, heap-based beam search, bidirectional linking with
// pruning) generalized to the spec's rank-checked locking, epoch-guarded
// vector access, and soft-delete tombstones. The teacher's own
// internal/vectordb/hnsw.go is a brute-force placeholder ("simplified;
// real HNSW would use graph traversal") and is not a suitable base for
// the graph algorithm itself, though its on-disk header framing informed
// the persistence helper in mmapstore.
package hnsw

import (
	"sync"
	"sync/atomic"
)

// Rank is a lock's position in the total acquisition order (spec.md
// §4.D). Acquisition at rank r is legal only if every lock currently
// held by this operation has a strictly smaller rank.
type Rank int

const (
	RankVectors   Rank = 10
	RankLayers    Rank = 20
	RankNeighbors Rank = 30
)

// RankTicket is the lock-rank checker scoped to one logical operation
// (one Insert or one Search call tree). Go goroutines have no fixed OS
// thread affinity, so a literal thread-local stack (as in the spec's
// systems-language source material) is not the idiomatic transliteration
// here; instead the rank stack is threaded explicitly through the call
// tree as a ticket, which gives the identical ordering guarantee without
// reaching for goroutine-ID introspection (see DESIGN.md's Open Question
// note on this substitution).
type RankTicket struct {
	held []Rank
}

// NewRankTicket starts a fresh, empty rank stack for one operation.
func NewRankTicket() *RankTicket {
	return &RankTicket{held: make([]Rank, 0, 3)}
}

// Acquire validates and records that rank r is about to be locked.
// Returns false (and bumps the invariant-violation counter) if r is not
// strictly greater than every rank already held by this ticket.
func (t *RankTicket) Acquire(r Rank) bool {
	for _, held := range t.held {
		if held >= r {
			incInvariant()
			return false
		}
	}
	t.held = append(t.held, r)
	return true
}

// Release pops the most recently acquired rank. Callers release in
// strict LIFO order, matching the locks they acquired.
func (t *RankTicket) Release(r Rank) {
	n := len(t.held)
	if n == 0 || t.held[n-1] != r {
		// Releasing out of order is itself a programming error; count it
		// as an invariant violation rather than silently desyncing the
		// stack.
		incInvariant()
		return
	}
	t.held = t.held[:n-1]
}

// rankLock pairs a sync.RWMutex with the rank it represents so that
// acquisition always goes through the ticket check first.
type rankLock struct {
	rank Rank
	mu   sync.RWMutex
}

func (l *rankLock) lock(t *RankTicket) bool {
	if !t.Acquire(l.rank) {
		return false
	}
	l.mu.Lock()
	return true
}

func (l *rankLock) unlock(t *RankTicket) {
	l.mu.Unlock()
	t.Release(l.rank)
}

func (l *rankLock) rlock(t *RankTicket) bool {
	if !t.Acquire(l.rank) {
		return false
	}
	recordContentionIfBusy(&l.mu)
	l.mu.RLock()
	return true
}

func (l *rankLock) runlock(t *RankTicket) {
	l.mu.RUnlock()
	t.Release(l.rank)
}

// recordContentionIfBusy is a best-effort contention signal: it does not
// change locking behavior, it only increments the safety counter when a
// write lock appears to be held (TryLock fails). This keeps
// hnsw_lock_contention_total meaningful without adding any blocking of
// its own beyond the real lock call that follows.
func recordContentionIfBusy(mu *sync.RWMutex) {
	if mu.TryLock() {
		mu.Unlock()
		return
	}
	atomic.AddUint64(&lockContentionTotal, 1)
	traceIncr("lock_contention")
}
