package hnsw

import (
	"fmt"
	"sort"
)

// Result is one ranked match returned by Search.
type Result struct {
	ID       uint64
	Distance float32
}

// Search returns the k nearest live neighbors of query, following
// spec.md §4.D's search algorithm:
//  1. greedy-descend from the entry point's layer down to layer 1,
//     tracking one nearest candidate per layer
//  2. beam-search layer 0 with ef_search, which may traverse
//     tombstoned nodes for connectivity
//  3. filter tombstoned nodes out of the returned result set and
//     truncate to k
func (g *Graph) Search(query []float32, k int) ([]Result, error) {
	if len(query) != g.store.Dimension() {
		return nil, fmt.Errorf("hnsw: dimension mismatch: got %d, want %d", len(query), g.store.Dimension())
	}
	if k <= 0 {
		return nil, fmt.Errorf("hnsw: k must be positive, got %d", k)
	}

	ticket := NewRankTicket()
	if !g.layersLock.rlock(ticket) {
		return nil, fmt.Errorf("hnsw: lock-rank violation acquiring layers lock")
	}
	entry := g.entry
	topLevel := g.maxLevel
	g.layersLock.runlock(ticket)

	if entry < 0 {
		return nil, nil
	}

	cur := uint32(entry)
	curDist, ok := g.distanceTo(query, cur)
	if !ok {
		incCorruption()
		return nil, fmt.Errorf("hnsw: entry point %d unreadable", cur)
	}

	// Step 1: greedy descent from the top layer down to 1.
	for lev := topLevel; lev > 0; lev-- {
		changed := true
		for changed {
			changed = false
			curNode := g.nodeAt(cur)
			if curNode == nil || lev >= len(curNode.neighbors) {
				break
			}
			for _, fID := range curNode.neighbors[lev] {
				d, ok := g.distanceTo(query, fID)
				if !ok {
					continue
				}
				if d < curDist {
					cur = fID
					curDist = d
					changed = true
				}
			}
		}
	}

	// Step 2: beam search at layer 0.
	candidates := g.searchLayer(query, []uint32{cur}, g.cfg.EfSearch, 0)

	type scored struct {
		index uint32
		dist  float32
	}
	items := make([]scored, 0, len(candidates))
	for _, idx := range candidates {
		if g.isDeleted(idx) {
			continue
		}
		d, ok := g.distanceTo(query, idx)
		if !ok {
			continue
		}
		items = append(items, scored{index: idx, dist: d})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].dist == items[j].dist {
			return items[i].index < items[j].index
		}
		return items[i].dist < items[j].dist
	})

	if len(items) > k {
		items = items[:k]
	}

	out := make([]Result, 0, len(items))
	for _, it := range items {
		id, ok := g.meta.IndexToID[it.index]
		if !ok {
			continue
		}
		out = append(out, Result{ID: id, Distance: it.dist})
	}
	return out, nil
}
