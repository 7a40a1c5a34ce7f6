package edgestore

import "github.com/bits-and-blooms/bitset"

// visitedSet is a bounded, bitset-backed visited tracker. Once it has
// assigned MaxVisited distinct node ids a dense position, further
// unseen ids are reported as "not inserted" -- the set stops growing
// but is never cleared, so already-visited ids remain correctly
// reported as visited for the rest of the traversal (SPEC_FULL.md §12,
// spec.md §4.E "stop inserting but do not clear").
type visitedSet struct {
	assigned map[uint64]uint
	bits     *bitset.BitSet
	cap      uint
}

func newVisitedSet(cap uint) *visitedSet {
	return &visitedSet{
		assigned: make(map[uint64]uint, cap),
		bits:     bitset.New(cap),
		cap:      cap,
	}
}

// Contains reports whether id has been recorded as visited.
func (v *visitedSet) Contains(id uint64) bool {
	pos, ok := v.assigned[id]
	return ok && v.bits.Test(pos)
}

// Insert records id as visited. Returns false if the set has already
// reached its capacity and id was not previously known -- the caller
// should treat that node as unvisited for traversal purposes (it will
// simply be revisited) rather than stalling the whole walk.
func (v *visitedSet) Insert(id uint64) bool {
	if pos, ok := v.assigned[id]; ok {
		v.bits.Set(pos)
		return true
	}
	if uint(len(v.assigned)) >= v.cap {
		return false
	}
	pos := uint(len(v.assigned))
	v.assigned[id] = pos
	v.bits.Set(pos)
	return true
}

// Hit is one node reached during a traversal, at the hop distance from
// the start node it was first discovered at.
type Hit struct {
	NodeID uint64
	Hop    int
}

// TraverseOptions bounds a BFS/DFS walk.
type TraverseOptions struct {
	Label      string // edge label filter; empty means no filter
	MaxHops    int
	MaxResults int
	MaxVisited uint // visited-set capacity; 0 means a generous default
}

func (o TraverseOptions) resolved() TraverseOptions {
	if o.MaxVisited == 0 {
		o.MaxVisited = 100000
	}
	if o.MaxHops <= 0 {
		o.MaxHops = 1
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 1000
	}
	return o
}

// BFS walks s breadth-first from start, following outgoing edges
// matching opts.Label, and returns every reached node up to
// opts.MaxResults. Traversal halts with break, not continue, the
// instant the result limit is hit (spec.md §4.E).
func (s *Store) BFS(start uint64, opts TraverseOptions) []Hit {
	opts = opts.resolved()
	visited := newVisitedSet(opts.MaxVisited)
	visited.Insert(start)

	type queued struct {
		id  uint64
		hop int
	}
	queue := []queued{{id: start, hop: 0}}
	var hits []Hit

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.hop >= opts.MaxHops {
			continue
		}
		for _, e := range s.Outgoing(cur.id, opts.Label) {
			if visited.Contains(e.Target) {
				continue
			}
			visited.Insert(e.Target)
			hits = append(hits, Hit{NodeID: e.Target, Hop: cur.hop + 1})
			if len(hits) >= opts.MaxResults {
				return hits
			}
			queue = append(queue, queued{id: e.Target, hop: cur.hop + 1})
		}
	}
	return hits
}

// DFS walks s depth-first from start, following outgoing edges matching
// opts.Label, returning every reached node up to opts.MaxResults.
func (s *Store) DFS(start uint64, opts TraverseOptions) []Hit {
	opts = opts.resolved()
	visited := newVisitedSet(opts.MaxVisited)
	visited.Insert(start)

	type frame struct {
		id  uint64
		hop int
	}
	stack := []frame{{id: start, hop: 0}}
	var hits []Hit

	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]

		if cur.hop >= opts.MaxHops {
			continue
		}
		for _, e := range s.Outgoing(cur.id, opts.Label) {
			if visited.Contains(e.Target) {
				continue
			}
			visited.Insert(e.Target)
			hits = append(hits, Hit{NodeID: e.Target, Hop: cur.hop + 1})
			if len(hits) >= opts.MaxResults {
				return hits
			}
			stack = append(stack, frame{id: e.Target, hop: cur.hop + 1})
		}
	}
	return hits
}
