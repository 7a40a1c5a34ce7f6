package hnsw

import "sort"

// searchLayer performs a beam search on one layer starting from
// entryPoints, returning up to ef candidate internal indices ordered by
// proximity isn't guaranteed (callers sort if they need order). Ported
// from other_examples' vecstore.HNSW.searchLayer and generalized to read
// vectors through epoch guards and to include tombstoned nodes for
// connectivity (spec.md §4.D search step 3).
func (g *Graph) searchLayer(query []float32, entryPoints []uint32, ef, layer int) []uint32 {
	visited := make(map[uint32]struct{}, ef*2)

	var candidates minDistHeap
	var results maxDistHeap

	push := func(idx uint32) {
		if _, seen := visited[idx]; seen {
			return
		}
		visited[idx] = struct{}{}
		d, ok := g.distanceTo(query, idx)
		if !ok {
			return
		}
		candidates = append(candidates, distItem{index: idx, dist: d})
		results = append(results, distItem{index: idx, dist: d})
	}

	for _, ep := range entryPoints {
		push(ep)
	}
	heapify(&candidates)
	heapify(&results)

	for len(candidates) > 0 {
		closest := heapPopMin(&candidates)

		if len(results) >= ef && closest.dist > results[0].dist {
			break
		}

		nd := g.nodeAt(closest.index)
		if nd == nil {
			incCorruption()
			continue
		}
		if layer >= len(nd.neighbors) {
			continue
		}

		for _, fID := range nd.neighbors[layer] {
			if _, seen := visited[fID]; seen {
				continue
			}
			visited[fID] = struct{}{}

			d, ok := g.distanceTo(query, fID)
			if !ok {
				continue
			}
			if len(results) < ef || d < results[0].dist {
				heapPushMin(&candidates, distItem{index: fID, dist: d})
				heapPushMax(&results, distItem{index: fID, dist: d})
				if len(results) > ef {
					heapPopMax(&results)
				}
			}
		}
	}

	out := make([]uint32, len(results))
	for i, r := range results {
		out[i] = r.index
	}
	return out
}

func (g *Graph) nodeAt(idx uint32) *node {
	if int(idx) >= len(g.nodes) {
		return nil
	}
	return g.nodes[idx]
}

// selectNeighbors implements spec.md §4.D's neighbor-selection
// heuristic: over the candidate pool sorted by distance to query,
// iteratively keep a candidate c only if no already-selected s has
// d(s, c) < d(query, c) -- this favors diverse directions over pure
// nearest-neighbor clustering. Falls back to plain nearest-maxN if
// diversity filtering would leave fewer than maxN edges. Ties break on
// the lower internal index (spec.md §4.D step 6).
func (g *Graph) selectNeighbors(query []float32, candidates []uint32, maxN int) []uint32 {
	if len(candidates) <= maxN {
		out := append([]uint32(nil), candidates...)
		sortByIndexThenDistance(g, query, out)
		return out
	}

	type scored struct {
		index uint32
		dist  float32
	}
	items := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		d, ok := g.distanceTo(query, c)
		if !ok {
			continue
		}
		items = append(items, scored{index: c, dist: d})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].dist == items[j].dist {
			return items[i].index < items[j].index
		}
		return items[i].dist < items[j].dist
	})

	selected := make([]uint32, 0, maxN)
	selectedVecs := make([][]float32, 0, maxN)
	for _, it := range items {
		if len(selected) >= maxN {
			break
		}
		cVec, err := g.vectorOf(it.index)
		if err != nil {
			continue
		}
		diverse := true
		for i, sIdx := range selected {
			dSC, ok := g.distanceTo(cVec, sIdx)
			if !ok {
				continue
			}
			_ = i
			if dSC < it.dist {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, it.index)
			selectedVecs = append(selectedVecs, cVec)
		}
	}
	_ = selectedVecs

	if len(selected) < maxN && len(selected) < len(items) {
		// Diversity filtering yielded too few edges: fall back to
		// nearest-maxN, per spec.md §4.D.
		selected = selected[:0]
		for i := 0; i < len(items) && i < maxN; i++ {
			selected = append(selected, items[i].index)
		}
	}

	return selected
}

func sortByIndexThenDistance(g *Graph, query []float32, idxs []uint32) {
	sort.Slice(idxs, func(i, j int) bool {
		di, _ := g.distanceTo(query, idxs[i])
		dj, _ := g.distanceTo(query, idxs[j])
		if di == dj {
			return idxs[i] < idxs[j]
		}
		return di < dj
	})
}
