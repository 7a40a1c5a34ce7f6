package query

import "sort"

// Unified ORDER BY field names for the two ranking scores a query can
// produce; any other field name orders by a column value instead.
const (
	orderFieldDistance = "distance"
	orderFieldFused    = "fused_score"
)

// OrderResults sorts rows in place per terms. Desc always means "most
// similar first": for the distance field that means ascending distance
// (closer is smaller), for every other field (including fused_score and
// plain columns) it means descending value. When terms is empty,
// vector/fused/parallel results keep the ranked order their strategy
// produced, and scan and graph-first results are sorted by ascending id.
func OrderResults(rows []ResultRow, terms []OrderTerm, strategy Strategy) {
	if len(terms) == 0 {
		if strategy == StrategyScan || strategy == StrategyGraphFirst {
			sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		}
		return
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, term := range terms {
			cmp := compareRows(rows[i], rows[j], term.Field)
			if cmp == 0 {
				continue
			}
			if term.Field == orderFieldDistance {
				// Desc means "most similar first" = ascending distance.
				if term.Desc {
					return cmp < 0
				}
				return cmp > 0
			}
			if term.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return rows[i].ID < rows[j].ID
	})
}

// compareRows returns <0, 0, >0 comparing rows[i] to rows[j] on field.
func compareRows(a, b ResultRow, field string) int {
	av, aok := orderValue(a, field)
	bv, bok := orderValue(b, field)
	if !aok || !bok {
		return 0
	}
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

func orderValue(r ResultRow, field string) (float64, bool) {
	switch field {
	case orderFieldDistance:
		return float64(r.Distance), true
	case orderFieldFused:
		return r.Fused, true
	default:
		return asFloat(r.Fields[field])
	}
}
