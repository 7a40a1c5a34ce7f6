package query

import (
	"testing"

	"github.com/velesdb/veles/internal/collection"
	"github.com/velesdb/veles/internal/columnstore"
	"github.com/velesdb/veles/internal/config"
	"github.com/velesdb/veles/internal/edgestore"
	"github.com/velesdb/veles/internal/hnsw"
)

func newColumnBackend(t *testing.T) *Backend {
	t.Helper()
	store, err := columnstore.NewStore("id")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return &Backend{Columns: store, Edges: edgestore.New()}
}

func TestScanFiltersByWhereComparison(t *testing.T) {
	backend := newColumnBackend(t)
	prices := []float64{10, 20, 30, 40, 50}
	for i, p := range prices {
		id := uint64(i + 1)
		if err := backend.Columns.Insert(id, map[string]columnstore.Value{"price": p}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	q := &SelectQuery{
		From: "items",
		Where: &Condition{
			Kind:  CondComparison,
			Field: FieldRef{Field: "price"},
			Op:    OpLt,
			Value: Value{Scalar: 30.0},
		},
		OrderBy: []OrderTerm{{Field: "price"}},
	}

	rows, err := Execute(q, backend, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ID != 1 || rows[1].ID != 2 {
		t.Fatalf("unexpected row order: %+v", rows)
	}
}

func TestSubqueryAverageComparison(t *testing.T) {
	backend := newColumnBackend(t)
	prices := []float64{10, 20, 30, 40, 50}
	for i, p := range prices {
		id := uint64(i + 1)
		if err := backend.Columns.Insert(id, map[string]columnstore.Value{"price": p}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	avgSub := &SelectQuery{From: "items", Aggregate: &Aggregate{Func: AggAvg, Field: "price"}}
	q := &SelectQuery{
		From: "items",
		Where: &Condition{
			Kind:  CondComparison,
			Field: FieldRef{Field: "price"},
			Op:    OpLt,
			Value: Value{Subquery: avgSub},
		},
		OrderBy: []OrderTerm{{Field: "price"}},
	}

	rows, err := Execute(q, backend, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows below the average of 30, got %d: %+v", len(rows), rows)
	}
	if rows[0].ID != 1 || rows[1].ID != 2 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestRRFFusionExactScores(t *testing.T) {
	clause1 := []hnsw.Result{{ID: 1, Distance: 0.1}, {ID: 2, Distance: 0.2}, {ID: 3, Distance: 0.3}} // a, b, c
	clause2 := []hnsw.Result{{ID: 2, Distance: 0.1}, {ID: 3, Distance: 0.2}, {ID: 1, Distance: 0.3}} // b, c, a

	fused, err := Fuse([][]hnsw.Result{clause1, clause2}, FusionRRF, FusionParams{K: 60})
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused rows, got %d", len(fused))
	}
	// b = 1/62+1/61 > a = 1/61+1/63 > c = 1/63+1/62
	if fused[0].ID != 2 || fused[1].ID != 1 || fused[2].ID != 3 {
		t.Fatalf("unexpected fusion order: %+v", fused)
	}
	wantA := 1.0/61 + 1.0/63
	wantB := 1.0/62 + 1.0/61
	wantC := 1.0/63 + 1.0/62
	scores := map[uint64]float64{}
	for _, f := range fused {
		scores[f.ID] = f.FusedScore
	}
	if !almostEqual(scores[1], wantA) || !almostEqual(scores[2], wantB) || !almostEqual(scores[3], wantC) {
		t.Fatalf("unexpected fusion scores: %+v", scores)
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

func TestMultiHopMatchProductShopCity(t *testing.T) {
	backend := newColumnBackend(t)
	rows := []struct {
		id   uint64
		kind string
		name string
	}{
		{1, "product", "Widget"},
		{2, "shop", "Corner Store"},
		{3, "city", "Springfield"},
	}
	for _, r := range rows {
		if err := backend.Columns.Insert(r.id, map[string]columnstore.Value{"kind": r.kind, "name": r.name}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	backend.Edges.AddEdge(&edgestore.Edge{Label: "SOLD_AT", Source: 1, Target: 2})
	backend.Edges.AddEdge(&edgestore.Edge{Label: "LOCATED_IN", Source: 2, Target: 3})

	pattern := &MatchPattern{
		StartAlias: "p",
		Hops: []MatchHop{
			{Label: "SOLD_AT", FromAlias: "p", ToAlias: "s"},
			{Label: "LOCATED_IN", FromAlias: "s", ToAlias: "c"},
		},
	}

	matches, err := RunMatch(pattern, backend.Edges, backend.Columns, nil, nil)
	if err != nil {
		t.Fatalf("RunMatch: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 matched path, got %d", len(matches))
	}
	m := matches[0]
	if m.Binding["p"] != 1 || m.Binding["s"] != 2 || m.Binding["c"] != 3 {
		t.Fatalf("unexpected binding: %+v", m.Binding)
	}
	if m.Rows["c"].Fields["name"] != "Springfield" {
		t.Fatalf("unexpected city row: %+v", m.Rows["c"])
	}
}

func TestVectorFirstSearchIdentityAndWhere(t *testing.T) {
	dir := t.TempDir()
	cfg := config.CollectionConfig{Name: "items", Dimension: 3, MetricName: "cosine"}
	coll, err := collection.Open(dir, cfg, "id")
	if err != nil {
		t.Fatalf("collection.Open: %v", err)
	}
	defer func() { _ = coll.Close() }()

	if err := coll.Upsert(1, []float32{1, 0, 0}, nil, map[string]columnstore.Value{"price": 15.0}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := coll.Upsert(2, []float32{0, 1, 0}, nil, map[string]columnstore.Value{"price": 45.0}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	backend := &Backend{Columns: coll.Columns, Edges: edgestore.New(), Graph: coll.Graph}
	q := &SelectQuery{
		From: "items",
		Near: &NearClause{Vector: []float32{1, 0, 0}, K: 2},
		Where: &Condition{
			Kind:  CondComparison,
			Field: FieldRef{Field: "price"},
			Op:    OpLt,
			Value: Value{Scalar: 30.0},
		},
	}

	rows, err := Execute(q, backend, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != 1 {
		t.Fatalf("expected only id 1 to pass the price filter, got %+v", rows)
	}
}

func TestUnsupportedConditionKindReturnsTypedError(t *testing.T) {
	backend := newColumnBackend(t)
	if err := backend.Columns.Insert(1, map[string]columnstore.Value{"name": "x"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	q := &SelectQuery{From: "items", Where: &Condition{Kind: ConditionKind(999)}}
	if _, err := Execute(q, backend, nil); err == nil {
		t.Fatalf("expected an error for an unrecognized condition kind")
	}
}

func TestParallelStrategyIntersectsFilterAndVectorSearch(t *testing.T) {
	dir := t.TempDir()
	cfg := config.CollectionConfig{Name: "items", Dimension: 3, MetricName: "cosine"}
	coll, err := collection.Open(dir, cfg, "id")
	if err != nil {
		t.Fatalf("collection.Open: %v", err)
	}
	defer func() { _ = coll.Close() }()

	if err := coll.Upsert(1, []float32{1, 0, 0}, nil, map[string]columnstore.Value{"price": 15.0}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := coll.Upsert(2, []float32{0.9, 0.1, 0}, nil, map[string]columnstore.Value{"price": 45.0}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := coll.Upsert(3, []float32{0, 1, 0}, nil, map[string]columnstore.Value{"price": 5.0}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	backend := &Backend{Columns: coll.Columns, Edges: edgestore.New(), Graph: coll.Graph}
	q := &SelectQuery{
		From: "items",
		Near: &NearClause{Vector: []float32{1, 0, 0}, K: 2, Mode: "parallel"},
		Where: &Condition{
			Kind:  CondComparison,
			Field: FieldRef{Field: "price"},
			Op:    OpLt,
			Value: Value{Scalar: 30.0},
		},
	}

	if got := Plan(q); got != StrategyParallel {
		t.Fatalf("expected StrategyParallel, got %v", got)
	}

	rows, err := Execute(q, backend, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != 1 {
		t.Fatalf("expected only id 1 (closest to query and under price 30), got %+v", rows)
	}
}

func TestLeftJoinMergesMatchedAndKeepsUnmatched(t *testing.T) {
	backend := newColumnBackend(t)
	orders := []struct {
		id   uint64
		user string
	}{
		{1, "alice"},
		{2, "bob"},
		{3, "carol"}, // no matching profile row
	}
	for _, o := range orders {
		if err := backend.Columns.Insert(o.id, map[string]columnstore.Value{"user": o.user, "kind": "order"}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	profiles := []struct {
		id   uint64
		name string
		vip  bool
	}{
		{10, "alice", true},
		{11, "bob", false},
	}
	for _, p := range profiles {
		if err := backend.Columns.Insert(p.id, map[string]columnstore.Value{"user": p.name, "vip": p.vip, "kind": "profile"}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	q := &SelectQuery{
		From: "items",
		Where: &Condition{
			Kind:  CondComparison,
			Field: FieldRef{Field: "kind"},
			Op:    OpEq,
			Value: Value{Scalar: "order"},
		},
		Join: &JoinClause{
			Kind:  JoinLeft,
			Alias: "o",
			With:  "p",
			On: &Condition{
				Kind: CondAnd,
				Children: []*Condition{
					{
						Kind:  CondComparison,
						Field: FieldRef{Alias: "o", Field: "user"},
						Op:    OpEq,
						Value: Value{Field: &FieldRef{Alias: "p", Field: "user"}},
					},
					{
						Kind:  CondComparison,
						Field: FieldRef{Alias: "p", Field: "kind"},
						Op:    OpEq,
						Value: Value{Scalar: "profile"},
					},
				},
			},
		},
		OrderBy: []OrderTerm{{Field: "user"}},
	}

	rows, err := Execute(q, backend, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows (2 matched + 1 unmatched), got %d: %+v", len(rows), rows)
	}

	byUser := map[string]ResultRow{}
	for _, r := range rows {
		byUser[r.Fields["user"].(string)] = r
	}
	if byUser["alice"].Fields["p.vip"] != true {
		t.Fatalf("expected alice's joined row to carry p.vip=true: %+v", byUser["alice"])
	}
	if byUser["bob"].Fields["p.vip"] != false {
		t.Fatalf("expected bob's joined row to carry p.vip=false: %+v", byUser["bob"])
	}
	if _, ok := byUser["carol"].Fields["p.vip"]; ok {
		t.Fatalf("expected carol's row to have no joined fields, got %+v", byUser["carol"])
	}
}

func TestRightJoinReturnsUnsupportedFeature(t *testing.T) {
	backend := newColumnBackend(t)
	if err := backend.Columns.Insert(1, map[string]columnstore.Value{"user": "alice"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	q := &SelectQuery{
		From: "items",
		Join: &JoinClause{
			Kind:  JoinRight,
			Alias: "o",
			With:  "p",
			On:    &Condition{Kind: CondComparison, Field: FieldRef{Alias: "o", Field: "user"}, Op: OpEq, Value: Value{Field: &FieldRef{Alias: "p", Field: "user"}}},
		},
	}

	_, err := Execute(q, backend, nil)
	if err == nil {
		t.Fatalf("expected RIGHT JOIN to be rejected")
	}
}

func TestSetOpUnionIntersectExcept(t *testing.T) {
	backend := newColumnBackend(t)
	items := []struct {
		id       uint64
		category string
	}{
		{1, "a"},
		{2, "b"},
		{3, "a"},
		{4, "c"},
	}
	for _, it := range items {
		if err := backend.Columns.Insert(it.id, map[string]columnstore.Value{"category": it.category}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	catCond := func(cat string) *Condition {
		return &Condition{Kind: CondComparison, Field: FieldRef{Field: "category"}, Op: OpEq, Value: Value{Scalar: cat}}
	}

	aQuery := &SelectQuery{From: "items", Where: catCond("a")}
	bQuery := &SelectQuery{From: "items", Where: catCond("b")}

	union := &SelectQuery{From: "items", Where: catCond("a"), SetOp: SetOpUnion, Combine: bQuery}
	rows, err := Execute(union, backend, nil)
	if err != nil {
		t.Fatalf("Execute union: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows from union of category a and b, got %d: %+v", len(rows), rows)
	}

	sameCat := &SelectQuery{From: "items", Where: catCond("a"), SetOp: SetOpIntersect, Combine: aQuery}
	rows, err = Execute(sameCat, backend, nil)
	if err != nil {
		t.Fatalf("Execute intersect: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows from category a intersected with itself, got %d: %+v", len(rows), rows)
	}

	except := &SelectQuery{From: "items", SetOp: SetOpExcept, Combine: aQuery}
	rows, err = Execute(except, backend, nil)
	if err != nil {
		t.Fatalf("Execute except: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (b and c) from all items except category a, got %d: %+v", len(rows), rows)
	}
	for _, r := range rows {
		if r.Fields["category"] == "a" {
			t.Fatalf("except result should not contain category a: %+v", rows)
		}
	}
}
