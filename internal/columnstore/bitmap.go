package columnstore

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// DeletionBitmap is the single RoaringBitmap tracking soft-deleted rows
// for one Store (spec.md §3 "Deletion state"). Every read path (Get,
// Scan, index lookups) must consult it before returning a row.
type DeletionBitmap struct {
	bm *roaring.Bitmap
}

// NewDeletionBitmap returns an empty deletion bitmap.
func NewDeletionBitmap() *DeletionBitmap {
	return &DeletionBitmap{bm: roaring.New()}
}

func (d *DeletionBitmap) Add(row uint32)            { d.bm.Add(row) }
func (d *DeletionBitmap) Contains(row uint32) bool   { return d.bm.Contains(row) }
func (d *DeletionBitmap) Remove(row uint32)          { d.bm.Remove(row) }
func (d *DeletionBitmap) Cardinality() uint64        { return d.bm.GetCardinality() }

// PrimaryKeyIndex maps the user-visible 64-bit id to the dense internal
// row index, and back, preserving insertion order for stable Scan
// iteration.
type PrimaryKeyIndex struct {
	field   string
	idToRow map[uint64]int
	order   []uint64
}

func newPrimaryKeyIndex(field string) *PrimaryKeyIndex {
	return &PrimaryKeyIndex{
		field:   field,
		idToRow: make(map[uint64]int),
	}
}

// RowOf returns the dense row index for id, if assigned.
func (p *PrimaryKeyIndex) RowOf(id uint64) (int, bool) {
	row, ok := p.idToRow[id]
	return row, ok
}

// Assign records id's row index. Callers must have already checked for
// duplicates; Assign itself does not guard against overwriting.
func (p *PrimaryKeyIndex) Assign(id uint64, row int) {
	p.idToRow[id] = row
	p.order = append(p.order, id)
}

// allRows returns (id, row) pairs in insertion order.
func (p *PrimaryKeyIndex) allRows() []idRow {
	out := make([]idRow, 0, len(p.order))
	for _, id := range p.order {
		if row, ok := p.idToRow[id]; ok {
			out = append(out, idRow{id: id, row: row})
		}
	}
	return out
}

type idRow struct {
	id  uint64
	row int
}
