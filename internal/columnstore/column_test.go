package columnstore

import "testing"

func TestNewStoreRejectsEmptyPrimaryKey(t *testing.T) {
	if _, err := NewStore(""); err == nil {
		t.Fatalf("expected error for empty primary key field")
	}
}

func TestInsertRejectsDuplicatePK(t *testing.T) {
	s, err := NewStore("id")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Insert(1, map[string]Value{"name": "a"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(1, map[string]Value{"name": "b"}); err == nil {
		t.Fatalf("expected duplicate PK error")
	}
}

func TestGetReturnsFieldsAndHonorsSoftDelete(t *testing.T) {
	s, err := NewStore("id")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Insert(1, map[string]Value{"name": "alice", "age": 30.0}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	row, ok := s.Get(1)
	if !ok {
		t.Fatalf("expected row to exist")
	}
	if row.Fields["name"] != "alice" {
		t.Fatalf("unexpected name: %v", row.Fields["name"])
	}

	if err := s.SoftDelete(1); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	if _, ok := s.Get(1); ok {
		t.Fatalf("expected soft-deleted row to be absent")
	}
	if !s.IsDeleted(1) {
		t.Fatalf("expected IsDeleted true")
	}
}

func TestScanSkipsDeletedRows(t *testing.T) {
	s, err := NewStore("id")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	for i := uint64(1); i <= 3; i++ {
		if err := s.Insert(i, map[string]Value{"n": float64(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if err := s.SoftDelete(2); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	var seen []uint64
	s.Scan(func(r Row) bool {
		seen = append(seen, r.ID)
		return true
	})
	if len(seen) != 2 {
		t.Fatalf("expected 2 live rows, got %d (%v)", len(seen), seen)
	}
	for _, id := range seen {
		if id == 2 {
			t.Fatalf("soft-deleted row 2 leaked into scan")
		}
	}
	if s.Len() != 2 {
		t.Fatalf("expected Len() == 2, got %d", s.Len())
	}
}

func TestRangeIndexBetweenAndCompare(t *testing.T) {
	col := &Column{Name: "price"}
	prices := []float64{10, 20, 30, 40, 50}
	for i, p := range prices {
		col.set(i, p)
	}

	idx := NewRangeIndex(col)

	rows := idx.Between(20, 40)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows in [20,40], got %d", len(rows))
	}

	below := idx.Compare("<", 25)
	if len(below) != 2 {
		t.Fatalf("expected 2 rows < 25, got %d", len(below))
	}
}

func TestPropertyIndexEqualityLookup(t *testing.T) {
	col := &Column{Name: "city"}
	col.set(0, "paris")
	col.set(1, "berlin")
	col.set(2, "paris")

	idx := NewPropertyIndex(col)
	rows := idx.Rows("paris")
	if rows.GetCardinality() != 2 {
		t.Fatalf("expected 2 rows for 'paris', got %d", rows.GetCardinality())
	}
}

func TestResolveOverfetchPrecedence(t *testing.T) {
	if got := ResolveOverfetch(5, 20); got != 5 {
		t.Fatalf("expected explicit request to win, got %d", got)
	}
	if got := ResolveOverfetch(0, 20); got != 20 {
		t.Fatalf("expected collection default, got %d", got)
	}
	if got := ResolveOverfetch(0, 0); got != DefaultOverfetch {
		t.Fatalf("expected DefaultOverfetch, got %d", got)
	}
}
