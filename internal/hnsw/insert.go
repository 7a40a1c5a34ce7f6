package hnsw

import (
	"fmt"
	"math"
)

// Insert adds id/vector/payload to the graph, following spec.md §4.D's
// layered greedy-insert algorithm:
//  1. draw the node's max layer from a geometric distribution
//  2. copy the vector into the mmap arena under the vectors lock
//  3. find the current entry point under the layers lock
//  4. greedy-descend from the top layer to level+1, tracking one
//     nearest candidate per layer
//  5. from level down to 0, beam-search ef_construction candidates,
//     select neighbors, and link bidirectionally
//  6. re-prune any neighbor whose list overflowed M_max after linking
//  7. update the global entry point, under the layers lock, if this
//     node's level exceeds the previous maximum
func (g *Graph) Insert(id uint64, vector []float32, payload []byte) error {
	if len(vector) != g.store.Dimension() {
		return fmt.Errorf("hnsw: dimension mismatch: got %d, want %d", len(vector), g.store.Dimension())
	}
	for _, v := range vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("hnsw: vector contains NaN/Inf component")
		}
	}

	level := g.randomLevel()

	ticket := NewRankTicket()

	// Step 2: copy the vector into the arena under the vectors lock.
	if !g.vectorsLock.lock(ticket) {
		return fmt.Errorf("hnsw: lock-rank violation acquiring vectors lock")
	}
	index := g.meta.Assign(id)
	g.ensureNodeSlot(index)
	storeErr := g.store.Store(index, vector, payload)
	g.vectorsLock.unlock(ticket)
	if storeErr != nil {
		return fmt.Errorf("hnsw: store vector: %w", storeErr)
	}

	nd := &node{level: level, neighbors: make([][]uint32, level+1)}
	g.nodes[index] = nd

	// Step 3: snapshot the entry point under the layers lock.
	ticket2 := NewRankTicket()
	if !g.layersLock.rlock(ticket2) {
		return fmt.Errorf("hnsw: lock-rank violation acquiring layers lock")
	}
	entry := g.entry
	topLevel := g.maxLevel
	g.layersLock.runlock(ticket2)

	if entry < 0 {
		// First node in the graph: become the entry point and return,
		// no neighbors to link.
		return g.setEntryIfHigher(uint32(index), level)
	}

	cur := uint32(entry)
	curDist, ok := g.distanceTo(vector, cur)
	if !ok {
		incCorruption()
		return fmt.Errorf("hnsw: entry point %d unreadable", cur)
	}

	// Step 4: greedy descent from topLevel down to level+1.
	for lev := topLevel; lev > level; lev-- {
		changed := true
		for changed {
			changed = false
			curNode := g.nodeAt(cur)
			if curNode == nil {
				incCorruption()
				break
			}
			if lev >= len(curNode.neighbors) {
				break
			}
			for _, fID := range curNode.neighbors[lev] {
				d, ok := g.distanceTo(vector, fID)
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

	// Step 5: beam search + neighbor selection + bidirectional link,
	// from min(level, topLevel) down to 0.
	startLevel := level
	if startLevel > topLevel {
		startLevel = topLevel
	}

	ticketN := NewRankTicket()
	if !g.neighborsLock.lock(ticketN) {
		return fmt.Errorf("hnsw: lock-rank violation acquiring neighbors lock")
	}
	defer g.neighborsLock.unlock(ticketN)

	ep := []uint32{cur}
	for lev := startLevel; lev >= 0; lev-- {
		candidates := g.searchLayer(vector, ep, g.cfg.EfConstruction, lev)
		maxConns := g.cfg.MaxConns(lev)
		neighbors := g.selectNeighbors(vector, candidates, maxConns)
		nd.neighbors[lev] = neighbors

		for _, nID := range neighbors {
			nn := g.nodeAt(nID)
			if nn == nil {
				incCorruption()
				continue
			}
			if lev >= len(nn.neighbors) {
				continue
			}
			nn.neighbors[lev] = append(nn.neighbors[lev], uint32(index))
			if len(nn.neighbors[lev]) > maxConns {
				// Step 6: overflow -- re-run selection over the current
				// list plus the new edge, pruning to maxConns.
				nVec, err := g.vectorOf(nID)
				if err != nil {
					incRetry()
					continue
				}
				nn.neighbors[lev] = g.selectNeighbors(nVec, nn.neighbors[lev], maxConns)
			}
		}

		ep = candidates
	}

	return g.setEntryIfHigher(uint32(index), level)
}

// setEntryIfHigher updates the global entry point under the layers
// write lock if level exceeds the current maximum -- the only mutation
// of the entry point (spec.md §4.D step 8 / §3 invariant 3).
func (g *Graph) setEntryIfHigher(index uint32, level int) error {
	ticket := NewRankTicket()
	if !g.layersLock.lock(ticket) {
		return fmt.Errorf("hnsw: lock-rank violation acquiring layers lock")
	}
	defer g.layersLock.unlock(ticket)

	if g.entry < 0 || level > g.maxLevel {
		g.entry = int64(index)
		g.maxLevel = level
	}
	return nil
}
