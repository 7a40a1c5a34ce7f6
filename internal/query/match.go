package query

import (
	"github.com/velesdb/veles/internal/columnstore"
	"github.com/velesdb/veles/internal/edgestore"
)

// Binding maps each alias in a MatchPattern to the row id it is bound
// to for one matched path.
type Binding map[string]uint64

// MatchRow is one fully matched path plus the assembled column rows for
// every bound alias, ready for WHERE evaluation and projection.
type MatchRow struct {
	Binding Binding
	Rows    map[string]columnstore.Row
}

// RunMatch expands pattern hop by hop starting from every live row in
// columns, following edges in edges, and evaluates matchWhere (if any)
// against the accumulated binding set at the end of each path
// (spec.md §4.F "Graph-first (MATCH)").
func RunMatch(pattern *MatchPattern, edges *edgestore.Store, columns *columnstore.Store, matchWhere *Condition, fulltext FullTextProvider) ([]MatchRow, error) {
	if pattern == nil {
		return nil, nil
	}

	var paths []Binding
	columns.Scan(func(row columnstore.Row) bool {
		paths = append(paths, Binding{pattern.StartAlias: row.ID})
		return true
	})

	for _, hop := range pattern.Hops {
		var next []Binding
		for _, b := range paths {
			fromID, ok := b[hop.FromAlias]
			if !ok {
				continue
			}
			var edgesAtHop []*edgestore.Edge
			if hop.Reverse {
				edgesAtHop = edges.Incoming(fromID, hop.Label)
			} else {
				edgesAtHop = edges.Outgoing(fromID, hop.Label)
			}
			for _, e := range edgesAtHop {
				target := e.Target
				if hop.Reverse {
					target = e.Source
				}
				if columns.IsDeleted(target) {
					continue
				}
				extended := make(Binding, len(b)+1)
				for k, v := range b {
					extended[k] = v
				}
				extended[hop.ToAlias] = target
				next = append(next, extended)
			}
		}
		paths = next
	}

	out := make([]MatchRow, 0, len(paths))
	for _, b := range paths {
		rows := make(map[string]columnstore.Row, len(b))
		complete := true
		for alias, id := range b {
			row, ok := columns.Get(id)
			if !ok {
				complete = false
				break
			}
			rows[alias] = row
		}
		if !complete {
			continue
		}

		if matchWhere != nil {
			bindings := make(map[string]columnstore.Row, len(rows))
			for alias, row := range rows {
				bindings[alias] = row
			}
			ok, err := Evaluate(matchWhere, evalContext{bindings: bindings, fulltext: fulltext})
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}

		out = append(out, MatchRow{Binding: b, Rows: rows})
	}
	return out, nil
}
