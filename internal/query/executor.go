package query

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/velesdb/veles/internal/columnstore"
	"github.com/velesdb/veles/internal/edgestore"
	"github.com/velesdb/veles/internal/hnsw"
	"github.com/velesdb/veles/internal/verrors"
)

// Backend is the storage surface the executor runs against: one
// collection's column store, edge store, vector graph, and full-text
// provider (spec.md §4.F ties these stores together behind one query).
type Backend struct {
	Columns  *columnstore.Store
	Edges    *edgestore.Store
	Graph    *hnsw.Graph
	FullText FullTextProvider
}

// ResultRow is one projected output row: its source id, its column
// fields, and -- for a vector or fused query -- its ranking score.
type ResultRow struct {
	ID       uint64
	Fields   map[string]columnstore.Value
	Distance float32 // valid when the query had a Near clause
	Fused    float64 // valid when the query had a NearFused clause
}

// Strategy names which execution path the planner chose for a query.
type Strategy int

const (
	StrategyScan Strategy = iota
	StrategyVectorFirst
	StrategyFusedVectorFirst
	StrategyGraphFirst
	StrategyParallel
)

// Plan selects the execution strategy for q, per spec.md §4.F: a Near
// clause drives a vector-first plan, NearFused drives a fused
// vector-first plan, a Match pattern drives graph-first, and anything
// else is a plain filtered scan. When a Near clause's query requests
// parallel mode and there is a column-only WHERE to run concurrently
// with it, the disjoint filter and vector components are independent
// of one another and the planner picks the parallel strategy instead
// (spec.md §4.F "Parallel: disjoint filter and vector components
// executed concurrently; results intersected").
func Plan(q *SelectQuery) Strategy {
	switch {
	case q.Near != nil:
		if q.Near.Mode == "parallel" && q.Where != nil {
			return StrategyParallel
		}
		return StrategyVectorFirst
	case q.NearFused != nil:
		return StrategyFusedVectorFirst
	case q.Match != nil:
		return StrategyGraphFirst
	default:
		return StrategyScan
	}
}

// Execute runs q against backend, resolving subqueries, dispatching to
// the planned strategy, evaluating WHERE, and applying ORDER BY/LIMIT.
// outerRow carries the correlated outer row when q is itself being run
// as a correlated subquery; nil for a top-level query.
func Execute(q *SelectQuery, backend *Backend, outerRow *columnstore.Row) ([]ResultRow, error) {
	where, err := ResolveSubqueries(q.Where, backend, outerRow)
	if err != nil {
		return nil, err
	}

	var rows []ResultRow
	strategy := Plan(q)
	switch strategy {
	case StrategyVectorFirst:
		rows, err = executeVectorFirst(q, backend, where)
	case StrategyFusedVectorFirst:
		rows, err = executeFusedVectorFirst(q, backend, where)
	case StrategyGraphFirst:
		rows, err = executeGraphFirst(q, backend, where)
	case StrategyParallel:
		rows, err = executeParallel(q, backend, where)
	default:
		if HasCorrelatedSubquery(where) {
			rows, err = executeCorrelatedScan(backend, where)
		} else {
			rows, err = executeScan(backend, where)
		}
	}
	if err != nil {
		return nil, err
	}

	if q.Join != nil {
		rows, err = applyJoin(rows, q.Join, backend)
		if err != nil {
			return nil, err
		}
	}

	if q.SetOp != SetOpNone && q.Combine != nil {
		combined, err := Execute(q.Combine, backend, outerRow)
		if err != nil {
			return nil, err
		}
		rows = combineSets(rows, combined, q.SetOp)
	}

	if q.Aggregate != nil {
		return applyAggregate(rows, *q.Aggregate), nil
	}

	OrderResults(rows, q.OrderBy, strategy)

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

// executeParallel runs the column-only WHERE scan and the NEAR vector
// search concurrently, then intersects by id (spec.md §4.F strategy 3).
// The two components are disjoint -- the filter never needs the
// vector's distance and the search never needs WHERE -- so nothing
// beyond the final intersection is shared between the goroutines.
func executeParallel(q *SelectQuery, backend *Backend, where *Condition) ([]ResultRow, error) {
	if backend.Graph == nil {
		return nil, verrors.New(verrors.UnsupportedFeature, "NEAR requires a vector graph")
	}

	var filtered map[uint64]columnstore.Row
	var hits []hnsw.Result

	var g errgroup.Group
	g.Go(func() error {
		rows, err := executeScan(backend, where)
		if err != nil {
			return err
		}
		filtered = make(map[uint64]columnstore.Row, len(rows))
		for _, r := range rows {
			filtered[r.ID] = columnstore.Row{ID: r.ID, Fields: r.Fields}
		}
		return nil
	})
	g.Go(func() error {
		searched, err := backend.Graph.Search(q.Near.Vector, q.Near.K)
		if err != nil {
			return fmt.Errorf("query: near search: %w", err)
		}
		hits = searched
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]ResultRow, 0, len(hits))
	for _, h := range hits {
		row, ok := filtered[h.ID]
		if !ok {
			continue
		}
		out = append(out, ResultRow{ID: h.ID, Fields: row.Fields, Distance: h.Distance})
	}
	if len(out) > q.Near.K {
		out = out[:q.Near.K]
	}
	return out, nil
}

// applyJoin evaluates a single JOIN against the rows already produced
// by the query's primary strategy. Only LEFT JOIN is executed; RIGHT
// and FULL are recognized syntax that the executor refuses outright
// (spec.md §6 "LEFT JOIN (RIGHT/FULL return UnsupportedFeature)").
// Both sides of the join are read from the same backend: this executor
// operates over one collection per Backend, so a JOIN clause names a
// second alias over that same collection rather than a foreign one.
func applyJoin(rows []ResultRow, join *JoinClause, backend *Backend) ([]ResultRow, error) {
	if join.Kind != JoinLeft {
		return nil, verrors.New(verrors.UnsupportedFeature, fmt.Sprintf("JOIN kind %d is not supported, only LEFT JOIN", join.Kind))
	}

	var other []columnstore.Row
	backend.Columns.Scan(func(row columnstore.Row) bool {
		other = append(other, row)
		return true
	})

	out := make([]ResultRow, 0, len(rows))
	for _, r := range rows {
		leftRow := columnstore.Row{ID: r.ID, Fields: r.Fields}
		matched := false
		for _, rightRow := range other {
			bindings := map[string]columnstore.Row{join.Alias: leftRow, join.With: rightRow}
			ok, err := Evaluate(join.On, evalContext{bindings: bindings, fulltext: backend.FullText})
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			merged := mergeJoinedFields(r.Fields, rightRow.Fields, join.With)
			out = append(out, ResultRow{ID: r.ID, Fields: merged, Distance: r.Distance, Fused: r.Fused})
			matched = true
		}
		if !matched {
			// LEFT JOIN keeps the unmatched left row, right side as NULL.
			out = append(out, r)
		}
	}
	return out, nil
}

func mergeJoinedFields(left, right map[string]columnstore.Value, rightAlias string) map[string]columnstore.Value {
	merged := make(map[string]columnstore.Value, len(left)+len(right))
	for k, v := range left {
		merged[k] = v
	}
	for k, v := range right {
		merged[rightAlias+"."+k] = v
	}
	return merged
}

// combineSets applies a UNION/INTERSECT/EXCEPT between two already
// executed row sets, by id (spec.md §6 "UNION/INTERSECT/EXCEPT").
func combineSets(a, b []ResultRow, op SetOp) []ResultRow {
	bIndex := make(map[uint64]ResultRow, len(b))
	for _, r := range b {
		bIndex[r.ID] = r
	}

	switch op {
	case SetOpUnion:
		out := make([]ResultRow, 0, len(a)+len(b))
		seen := make(map[uint64]bool, len(a)+len(b))
		for _, r := range a {
			out = append(out, r)
			seen[r.ID] = true
		}
		for _, r := range b {
			if !seen[r.ID] {
				out = append(out, r)
				seen[r.ID] = true
			}
		}
		return out
	case SetOpIntersect:
		out := make([]ResultRow, 0, len(a))
		for _, r := range a {
			if _, ok := bIndex[r.ID]; ok {
				out = append(out, r)
			}
		}
		return out
	case SetOpExcept:
		out := make([]ResultRow, 0, len(a))
		for _, r := range a {
			if _, ok := bIndex[r.ID]; !ok {
				out = append(out, r)
			}
		}
		return out
	default:
		return a
	}
}

func executeScan(backend *Backend, where *Condition) ([]ResultRow, error) {
	var out []ResultRow
	var evalErr error
	backend.Columns.Scan(func(row columnstore.Row) bool {
		ok, err := Evaluate(where, evalContext{row: &row, fulltext: backend.FullText})
		if err != nil {
			evalErr = err
			return false
		}
		if ok {
			out = append(out, ResultRow{ID: row.ID, Fields: row.Fields})
		}
		return true
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return out, nil
}

// executeCorrelatedScan re-resolves where's correlated subqueries once
// per candidate row, since the subquery's value depends on that row.
func executeCorrelatedScan(backend *Backend, where *Condition) ([]ResultRow, error) {
	var out []ResultRow
	var evalErr error
	backend.Columns.Scan(func(row columnstore.Row) bool {
		ok, err := ResolveCorrelated(where, backend, &row)
		if err != nil {
			evalErr = err
			return false
		}
		if ok {
			out = append(out, ResultRow{ID: row.ID, Fields: row.Fields})
		}
		return true
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return out, nil
}

func executeVectorFirst(q *SelectQuery, backend *Backend, where *Condition) ([]ResultRow, error) {
	if backend.Graph == nil {
		return nil, verrors.New(verrors.UnsupportedFeature, "NEAR requires a vector graph")
	}
	k := q.Near.K
	overfetch := columnstore.ResolveOverfetch(q.Near.Overfetch, 0)
	hits, err := backend.Graph.Search(q.Near.Vector, k*overfetch)
	if err != nil {
		return nil, fmt.Errorf("query: near search: %w", err)
	}
	rows, err := filterHits(hits, backend, where)
	if err != nil {
		return nil, err
	}
	if len(rows) > k {
		rows = rows[:k]
	}
	return rows, nil
}

func executeFusedVectorFirst(q *SelectQuery, backend *Backend, where *Condition) ([]ResultRow, error) {
	if backend.Graph == nil {
		return nil, verrors.New(verrors.UnsupportedFeature, "NEAR_FUSED requires a vector graph")
	}
	if err := ValidateFusionParams(q.NearFused.Strategy, q.NearFused.Params); err != nil {
		return nil, err
	}
	perClause := make([][]hnsw.Result, 0, len(q.NearFused.Clauses))
	for _, clause := range q.NearFused.Clauses {
		hits, err := backend.Graph.Search(clause.Vector, clause.K)
		if err != nil {
			return nil, fmt.Errorf("query: near_fused clause search: %w", err)
		}
		perClause = append(perClause, hits)
	}
	fused, err := Fuse(perClause, q.NearFused.Strategy, q.NearFused.Params)
	if err != nil {
		return nil, err
	}

	out := make([]ResultRow, 0, len(fused))
	for _, f := range fused {
		row, ok := backend.Columns.Get(f.ID)
		if !ok {
			continue
		}
		ok, err := Evaluate(where, evalContext{row: &row, fulltext: backend.FullText})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, ResultRow{ID: f.ID, Fields: row.Fields, Fused: f.FusedScore})
	}
	return out, nil
}

func executeGraphFirst(q *SelectQuery, backend *Backend, where *Condition) ([]ResultRow, error) {
	matches, err := RunMatch(q.Match, backend.Edges, backend.Columns, q.MatchWhere, backend.FullText)
	if err != nil {
		return nil, err
	}
	out := make([]ResultRow, 0, len(matches))
	for _, m := range matches {
		startRow, ok := m.Rows[q.Match.StartAlias]
		if !ok {
			continue
		}
		ok2, err := Evaluate(where, evalContext{row: &startRow, bindings: m.Rows, fulltext: backend.FullText})
		if err != nil {
			return nil, err
		}
		if !ok2 {
			continue
		}
		out = append(out, ResultRow{ID: startRow.ID, Fields: startRow.Fields})
	}
	return out, nil
}

func filterHits(hits []hnsw.Result, backend *Backend, where *Condition) ([]ResultRow, error) {
	out := make([]ResultRow, 0, len(hits))
	for _, h := range hits {
		row, ok := backend.Columns.Get(h.ID)
		var fields map[string]columnstore.Value
		if ok {
			fields = row.Fields
		}
		var rowPtr *columnstore.Row
		if ok {
			rowPtr = &row
		}
		result, err := Evaluate(where, evalContext{row: rowPtr, fulltext: backend.FullText})
		if err != nil {
			return nil, err
		}
		if !result {
			continue
		}
		out = append(out, ResultRow{ID: h.ID, Fields: fields, Distance: h.Distance})
	}
	return out, nil
}

func applyAggregate(rows []ResultRow, agg Aggregate) []ResultRow {
	var sum, min, max float64
	count := 0
	for _, r := range rows {
		v, ok := asFloat(r.Fields[agg.Field])
		if !ok {
			continue
		}
		if count == 0 || v < min {
			min = v
		}
		if count == 0 || v > max {
			max = v
		}
		sum += v
		count++
	}

	var value any
	switch agg.Func {
	case AggAvg:
		if count > 0 {
			value = sum / float64(count)
		}
	case AggSum:
		value = sum
	case AggMin:
		if count > 0 {
			value = min
		}
	case AggMax:
		if count > 0 {
			value = max
		}
	case AggCount:
		value = float64(count)
	}
	return []ResultRow{{Fields: map[string]columnstore.Value{"value": value}}}
}
