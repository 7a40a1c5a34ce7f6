package columnstore

import "sort"

// rangeEntry pairs a sortable numeric key with the row it came from.
type rangeEntry struct {
	key float64
	row uint32
}

// RangeIndex accelerates BETWEEN and comparison filters over a numeric
// column: a single sorted slice of (key, row), binary-searched at query
// time. Rebuilt from the column buffer, never persisted (same
// rebuildability contract as PropertyIndex).
type RangeIndex struct {
	column  string
	entries []rangeEntry
}

// NewRangeIndex builds a sorted range index over col, skipping any cell
// that is not a numeric type.
func NewRangeIndex(col *Column) *RangeIndex {
	idx := &RangeIndex{column: col.Name}
	for row, v := range col.Values {
		key, ok := asFloat64(v)
		if !ok {
			continue
		}
		idx.entries = append(idx.entries, rangeEntry{key: key, row: uint32(row)})
	}
	sort.Slice(idx.entries, func(i, j int) bool { return idx.entries[i].key < idx.entries[j].key })
	return idx
}

// Between returns every row index whose key lies in [low, high]
// inclusive, per SQL BETWEEN semantics.
func (idx *RangeIndex) Between(low, high float64) []uint32 {
	lo := sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].key >= low })
	hi := sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].key > high })
	out := make([]uint32, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, idx.entries[i].row)
	}
	return out
}

// Compare returns every row index satisfying `key <op> value`, where op
// is one of "<", "<=", ">", ">=".
func (idx *RangeIndex) Compare(op string, value float64) []uint32 {
	var lo, hi int
	switch op {
	case "<":
		lo, hi = 0, sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].key >= value })
	case "<=":
		lo, hi = 0, sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].key > value })
	case ">":
		lo, hi = sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].key > value }), len(idx.entries)
	case ">=":
		lo, hi = sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].key >= value }), len(idx.entries)
	default:
		return nil
	}
	out := make([]uint32, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, idx.entries[i].row)
	}
	return out
}

func asFloat64(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
