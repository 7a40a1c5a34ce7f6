package hnsw

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/velesdb/veles/internal/config"
	"github.com/velesdb/veles/internal/distance"
	"github.com/velesdb/veles/internal/mmapstore"
)

func newTestGraph(t *testing.T, dim int) *Graph {
	t.Helper()
	dir := t.TempDir()

	store, err := mmapstore.Open(
		filepath.Join(dir, "vectors.dat"),
		filepath.Join(dir, "vectors.wal"),
		filepath.Join(dir, "snapshot.pos"),
		dim, 64,
	)
	if err != nil {
		t.Fatalf("mmapstore.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	engine, err := distance.New(config.MetricEuclidean, dim)
	if err != nil {
		t.Fatalf("distance.New: %v", err)
	}

	meta := mmapstore.NewMeta(uint32(dim), uint8(config.MetricEuclidean), uint8(config.StorageFullF32))

	cfg := config.HNSWConfig{M: 8, EfConstruction: 64, EfSearch: 32}

	return New(cfg, engine, store, meta)
}

func vec(dim int, fill func(i int) float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = fill(i)
	}
	return v
}

func TestInsertThenSearchFindsItself(t *testing.T) {
	g := newTestGraph(t, 8)

	base := vec(8, func(i int) float32 { return float32(i) })
	if err := g.Insert(1, base, []byte("payload-1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := g.Search(base, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != 1 {
		t.Fatalf("expected id 1, got %d", results[0].ID)
	}
	if results[0].Distance != 0 {
		t.Fatalf("expected zero self-distance, got %v", results[0].Distance)
	}
}

func TestSearchRanksByDistance(t *testing.T) {
	g := newTestGraph(t, 4)

	vectors := map[uint64][]float32{
		1: {0, 0, 0, 0},
		2: {1, 0, 0, 0},
		3: {5, 5, 5, 5},
		4: {10, 10, 10, 10},
	}
	for id := uint64(1); id <= 4; id++ {
		if err := g.Insert(id, vectors[id], []byte(fmt.Sprintf("p%d", id))); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}

	results, err := g.Search([]float32{0, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != 1 {
		t.Fatalf("expected closest id 1 first, got %d", results[0].ID)
	}
	if results[0].Distance > results[1].Distance {
		t.Fatalf("results not sorted by ascending distance: %+v", results)
	}
}

func TestSoftDeletedNodesExcludedFromResults(t *testing.T) {
	g := newTestGraph(t, 4)

	for id := uint64(1); id <= 5; id++ {
		v := vec(4, func(i int) float32 { return float32(id) })
		if err := g.Insert(id, v, nil); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}

	idx, ok := g.meta.IDToIndex[1]
	if !ok {
		t.Fatalf("expected index mapping for id 1")
	}
	g.SoftDelete(idx)

	results, err := g.Search([]float32{1, 1, 1, 1}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ID == 1 {
			t.Fatalf("soft-deleted id 1 leaked into results: %+v", results)
		}
	}
}

func TestSearchOnEmptyGraphReturnsNoResults(t *testing.T) {
	g := newTestGraph(t, 4)

	results, err := g.Search([]float32{0, 0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results on empty graph, got %+v", results)
	}
}

func TestSearchRejectsDimensionMismatch(t *testing.T) {
	g := newTestGraph(t, 4)
	if err := g.Insert(1, []float32{0, 0, 0, 0}, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := g.Search([]float32{0, 0, 0}, 1); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestInsertRejectsNaN(t *testing.T) {
	g := newTestGraph(t, 4)
	nan := vec(4, func(i int) float32 { return float32(i) })
	nan[0] = nan[0] / nan[0] // 0/0
	if err := g.Insert(1, nan, nil); err == nil {
		t.Fatalf("expected error inserting NaN vector")
	}
}

func TestMultiLevelGraphMaintainsConnectivity(t *testing.T) {
	g := newTestGraph(t, 3)

	const n = 200
	for id := uint64(0); id < n; id++ {
		v := vec(3, func(i int) float32 { return float32(id) + float32(i)*0.01 })
		if err := g.Insert(id, v, nil); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}

	if g.Len() != n {
		t.Fatalf("expected %d live nodes, got %d", n, g.Len())
	}

	query := vec(3, func(i int) float32 { return 100 + float32(i)*0.01 })
	results, err := g.Search(query, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if results[0].ID != 100 {
		t.Fatalf("expected nearest id 100, got %d", results[0].ID)
	}
}

func TestRankTicketRejectsOutOfOrderAcquire(t *testing.T) {
	ticket := NewRankTicket()
	if !ticket.Acquire(RankLayers) {
		t.Fatalf("expected first acquire at RankLayers to succeed")
	}
	if ticket.Acquire(RankLayers) {
		t.Fatalf("expected re-acquiring the same rank to fail")
	}
	before := ReadCounters().InvariantViolationTotal
	if ticket.Acquire(RankVectors) {
		t.Fatalf("expected out-of-order acquire to fail")
	}
	after := ReadCounters().InvariantViolationTotal
	if after <= before {
		t.Fatalf("expected invariant violation counter to increment")
	}
}

func TestRankTicketAllowsIncreasingOrder(t *testing.T) {
	ticket := NewRankTicket()
	if !ticket.Acquire(RankVectors) {
		t.Fatalf("acquire RankVectors")
	}
	if !ticket.Acquire(RankLayers) {
		t.Fatalf("acquire RankLayers")
	}
	if !ticket.Acquire(RankNeighbors) {
		t.Fatalf("acquire RankNeighbors")
	}
	ticket.Release(RankNeighbors)
	ticket.Release(RankLayers)
	ticket.Release(RankVectors)
}
