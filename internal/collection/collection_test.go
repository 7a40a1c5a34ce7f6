package collection

import (
	"path/filepath"
	"testing"

	"github.com/velesdb/veles/internal/columnstore"
	"github.com/velesdb/veles/internal/config"
)

func testConfig(name string, dim int) config.CollectionConfig {
	return config.CollectionConfig{
		Name:       name,
		Dimension:  dim,
		MetricName: "euclidean",
	}
}

func TestOpenUpsertSearchRoundTrip(t *testing.T) {
	dir := t.TempDir()
	coll, err := Open(dir, testConfig("products", 4), "id")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = coll.Close() }()

	if err := coll.Upsert(1, []float32{1, 0, 0, 0}, nil, map[string]columnstore.Value{"price": 10.0}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := coll.Upsert(2, []float32{0, 1, 0, 0}, nil, map[string]columnstore.Value{"price": 20.0}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := coll.Search([]float32{1, 0, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != 1 {
		t.Fatalf("expected nearest id 1, got %+v", results)
	}

	row, ok := coll.Columns.Get(1)
	if !ok {
		t.Fatalf("expected column row for id 1")
	}
	if row.Fields["price"] != 10.0 {
		t.Fatalf("unexpected price field: %v", row.Fields["price"])
	}
}

func TestSoftDeleteHidesFromSearchAndColumns(t *testing.T) {
	dir := t.TempDir()
	coll, err := Open(dir, testConfig("products", 2), "id")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = coll.Close() }()

	if err := coll.Upsert(1, []float32{1, 1}, nil, map[string]columnstore.Value{"n": 1.0}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := coll.SoftDelete(1); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	results, err := coll.Search([]float32{1, 1}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results after soft delete, got %+v", results)
	}
	if _, ok := coll.Columns.Get(1); ok {
		t.Fatalf("expected column row hidden after soft delete")
	}
}

func TestCatalogRegisterGetList(t *testing.T) {
	dir := t.TempDir()
	cat, err := OpenCatalog(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	defer func() { _ = cat.Close() }()

	entry := Entry{Name: "products", Dimension: 4, Metric: config.MetricCosine, StorageMode: config.StorageFullF32, Dir: dir}
	if err := cat.Register(entry); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := cat.Register(entry); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}

	got, ok, err := cat.Get("products")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected collection to be found")
	}
	if got.Dimension != 4 || got.Metric != config.MetricCosine {
		t.Fatalf("unexpected entry: %+v", got)
	}

	list, err := cat.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(list))
	}

	if err := cat.Drop("products"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if _, ok, _ := cat.Get("products"); ok {
		t.Fatalf("expected collection to be gone after drop")
	}
}
