package hnsw

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/velesdb/veles/internal/config"
	"github.com/velesdb/veles/internal/distance"
	"github.com/velesdb/veles/internal/mmapstore"
	"github.com/velesdb/veles/internal/obslog"
)

// node is one vector's graph identity. The arena (Graph.nodes) owns
// nodes; every reference between them is by internal index, never by
// pointer -- spec.md §9's "cyclic ownership" note, generalized from the
// same arena-of-indices shape in other_examples' vecstore.HNSW.
type node struct {
	level     int
	neighbors [][]uint32 // neighbors[layer] = neighbor internal indices at that layer
	mu        sync.Mutex // not locked anywhere; neighbor slices are guarded by Graph.neighborsLock
}

// Graph is a concurrent, layered HNSW index (spec.md §4.D). Three
// rank-ordered locks guard disjoint state: vectorsLock (10) the id<->
// index mapping and mmap arena, layersLock (20) the per-node layer
// assignment and entry point, neighborsLock (30) the per-layer adjacency
// lists.
type Graph struct {
	cfg    config.HNSWConfig
	engine *distance.Engine
	store  *mmapstore.Store

	vectorsLock   rankLock
	layersLock    rankLock
	neighborsLock rankLock

	meta *mmapstore.Meta

	nodes    []*node
	entry    int64 // -1 if empty; protected under layersLock
	maxLevel int   // protected under layersLock

	tombstones *roaring.Bitmap // soft-deleted internal indices

	levelMul float64
}

// New creates an empty HNSW graph over store, using engine for all
// distance computations and meta for id<->index bookkeeping.
func New(cfg config.HNSWConfig, engine *distance.Engine, store *mmapstore.Store, meta *mmapstore.Meta) *Graph {
	g := &Graph{
		cfg:        cfg,
		engine:     engine,
		store:      store,
		meta:       meta,
		entry:      -1,
		tombstones: roaring.New(),
		levelMul:   1.0 / math.Log(float64(maxInt(cfg.M, 2))),
		vectorsLock:   rankLock{rank: RankVectors},
		layersLock:    rankLock{rank: RankLayers},
		neighborsLock: rankLock{rank: RankNeighbors},
	}
	return g
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// randomLevel draws a node's max layer from a geometric distribution
// with parameter 1/ln(M) (spec.md §4.D insert step 1).
func (g *Graph) randomLevel() int {
	r := math.Max(rand.Float64(), math.SmallestNonzeroFloat64)
	level := int(-math.Log(r) * g.levelMul)
	if level > 31 {
		level = 31
	}
	return level
}

func (g *Graph) ensureNodeSlot(index uint32) {
	for uint32(len(g.nodes)) <= index {
		g.nodes = append(g.nodes, nil)
	}
}

// Len returns the number of live (non-tombstoned) nodes.
func (g *Graph) Len() int {
	t := NewRankTicket()
	if !g.layersLock.rlock(t) {
		return 0
	}
	defer g.layersLock.runlock(t)
	count := 0
	for idx, n := range g.nodes {
		if n != nil && !g.tombstones.Contains(uint32(idx)) {
			count++
		}
	}
	return count
}

// vectorOf fetches the float32 slice for an internal index through a
// VectorSliceGuard, re-checked for epoch staleness on every call. A
// stale guard signals a concurrent grow raced this traversal: the caller
// treats it as a retryable condition, never UB.
func (g *Graph) vectorOf(index uint32) ([]float32, error) {
	guard, err := g.store.GetVectorGuard(index)
	if err != nil {
		return nil, err
	}
	return guard.AsSlice()
}

func (g *Graph) distanceTo(query []float32, index uint32) (float32, bool) {
	vec, err := g.vectorOf(index)
	if err != nil {
		incRetry()
		return 0, false
	}
	d, err := g.engine.Distance(query, vec)
	if err != nil {
		obslog.Warnf("hnsw: distance computation failed for index %d: %v", index, err)
		return 0, false
	}
	return d, true
}

// isDeleted reports whether index is soft-deleted. Soft-deleted nodes
// remain in the graph for connectivity but are filtered from returned
// results (spec.md §3, §4.D step 3).
func (g *Graph) isDeleted(index uint32) bool {
	return g.tombstones.Contains(index)
}

// SoftDelete marks index as deleted without removing it from the graph.
func (g *Graph) SoftDelete(index uint32) {
	g.tombstones.Add(index)
}

// String helps tests and debugging render a compact graph summary.
func (g *Graph) String() string {
	return fmt.Sprintf("hnsw.Graph{nodes=%d maxLevel=%d entry=%d}", len(g.nodes), g.maxLevel, g.entry)
}
