package query

import (
	"github.com/velesdb/veles/internal/columnstore"
)

// ResolveSubqueries walks cond and returns a copy with every
// Value.Subquery replaced by a concrete scalar (spec.md §4.F "Subquery
// pre-resolution"): zero result rows resolve to nil (SQL NULL), and the
// first result row's first Return field (or its Aggregate's "value"
// field) is taken otherwise. outerRow carries the correlated row when
// cond belongs to a query running as a correlated subquery of another;
// nil for a top-level, uncorrelated evaluation.
//
// Correlated subqueries (CorrelatedFields non-empty) are NOT resolved
// here when outerRow is nil -- they are left untouched and must be
// re-resolved once per candidate row by ResolveCorrelated, since their
// value depends on the row being tested.
func ResolveSubqueries(cond *Condition, backend *Backend, outerRow *columnstore.Row) (*Condition, error) {
	if cond == nil {
		return nil, nil
	}
	out := *cond

	if len(cond.Children) > 0 {
		children := make([]*Condition, len(cond.Children))
		for i, c := range cond.Children {
			resolved, err := ResolveSubqueries(c, backend, outerRow)
			if err != nil {
				return nil, err
			}
			children[i] = resolved
		}
		out.Children = children
	}

	var err error
	if out.Value, err = resolveValueSubquery(cond.Value, backend, outerRow); err != nil {
		return nil, err
	}
	if out.Low, err = resolveValueSubquery(cond.Low, backend, outerRow); err != nil {
		return nil, err
	}
	if out.High, err = resolveValueSubquery(cond.High, backend, outerRow); err != nil {
		return nil, err
	}
	if len(cond.Values) > 0 {
		values := make([]Value, len(cond.Values))
		for i, v := range cond.Values {
			resolved, err := resolveValueSubquery(v, backend, outerRow)
			if err != nil {
				return nil, err
			}
			values[i] = resolved
		}
		out.Values = values
	}
	return &out, nil
}

func resolveValueSubquery(v Value, backend *Backend, outerRow *columnstore.Row) (Value, error) {
	if v.Subquery == nil {
		return v, nil
	}
	if len(v.Subquery.CorrelatedFields) > 0 && outerRow == nil {
		return v, nil // left for per-row ResolveCorrelated
	}
	scalar, err := runScalarSubquery(v.Subquery, backend, outerRow)
	if err != nil {
		return Value{}, err
	}
	return Value{Scalar: scalar}, nil
}

// runScalarSubquery executes sub and extracts its scalar result.
func runScalarSubquery(sub *SelectQuery, backend *Backend, outerRow *columnstore.Row) (any, error) {
	rows, err := Execute(sub, backend, outerRow)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	first := rows[0]
	if sub.Aggregate != nil {
		return first.Fields["value"], nil
	}
	if len(sub.Return) > 0 {
		return first.Fields[sub.Return[0]], nil
	}
	return nil, nil
}

// HasCorrelatedSubquery reports whether cond references any Value whose
// Subquery has non-empty CorrelatedFields -- such a condition cannot be
// resolved once upfront and must be re-resolved per candidate row.
func HasCorrelatedSubquery(cond *Condition) bool {
	if cond == nil {
		return false
	}
	check := func(v Value) bool { return v.Subquery != nil && len(v.Subquery.CorrelatedFields) > 0 }
	if check(cond.Value) || check(cond.Low) || check(cond.High) {
		return true
	}
	for _, v := range cond.Values {
		if check(v) {
			return true
		}
	}
	for _, c := range cond.Children {
		if HasCorrelatedSubquery(c) {
			return true
		}
	}
	return false
}

// ResolveCorrelated re-resolves any correlated subqueries in cond
// against row, then evaluates the fully resolved condition.
func ResolveCorrelated(cond *Condition, backend *Backend, row *columnstore.Row) (bool, error) {
	resolved, err := ResolveSubqueries(cond, backend, row)
	if err != nil {
		return false, err
	}
	return Evaluate(resolved, evalContext{row: row, fulltext: backend.FullText})
}
