package columnstore

import "github.com/RoaringBitmap/roaring/v2"

// PropertyIndex accelerates equality filters (WHERE field = value) by
// mapping each distinct value to a bitmap of row indices. Built lazily
// per column the planner decides is worth indexing; rebuildable from the
// column buffer, never persisted (spec.md §1 non-goal: "secondary index
// persistence guarantees beyond rebuildability").
type PropertyIndex struct {
	column string
	byVal  map[any]*roaring.Bitmap
}

// NewPropertyIndex builds an equality index over every value currently
// in col.
func NewPropertyIndex(col *Column) *PropertyIndex {
	idx := &PropertyIndex{column: col.Name, byVal: make(map[any]*roaring.Bitmap)}
	for row, v := range col.Values {
		if v == nil {
			continue
		}
		idx.add(v, uint32(row))
	}
	return idx
}

func (idx *PropertyIndex) add(v any, row uint32) {
	bm, ok := idx.byVal[v]
	if !ok {
		bm = roaring.New()
		idx.byVal[v] = bm
	}
	bm.Add(row)
}

// Rows returns the bitmap of rows holding exactly value. The returned
// bitmap is a read-only snapshot and must not be mutated by the caller.
func (idx *PropertyIndex) Rows(value any) *roaring.Bitmap {
	if bm, ok := idx.byVal[value]; ok {
		return bm
	}
	return roaring.New()
}

// Insert records a new (row, value) pair, keeping the index consistent
// after a Store.Insert/Replace.
func (idx *PropertyIndex) Insert(row uint32, value any) {
	if value == nil {
		return
	}
	idx.add(value, row)
}
