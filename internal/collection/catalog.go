// Package collection wires the per-collection subsystems together
// (HNSW graph, mmap vector store, column store, edge store, distance
// engine) and maintains the catalog of collections a process has open
// (spec.md §3 "Collection"; SPEC_FULL.md §12 "Collection catalog").
// Grounded on the teacher's SQLiteMetaStore (internal/vectordb/sqlite.go)
// generalized from a per-chunk metadata table to a per-collection
// registry.
package collection

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/velesdb/veles/internal/config"
)

// Catalog is a sqlite-backed registry of collections: name, dimension,
// metric, storage mode, and the on-disk directory holding its files.
// It lets a process open many collections without re-parsing on-disk
// layouts by hand.
type Catalog struct {
	db   *sql.DB
	path string
}

// OpenCatalog opens (creating if necessary) the catalog database at
// path, ensuring its parent directory and schema exist.
func OpenCatalog(path string) (*Catalog, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("collection: create catalog dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("collection: open catalog: %w", err)
	}

	c := &Catalog{db: db, path: path}
	if err := c.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) init() error {
	schema := `
		CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			dimension INTEGER NOT NULL,
			metric TEXT NOT NULL,
			storage_mode INTEGER NOT NULL,
			dir TEXT NOT NULL
		);
	`
	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("collection: create catalog schema: %w", err)
	}
	return nil
}

// Entry is one catalog row.
type Entry struct {
	Name        string
	Dimension   int
	Metric      config.Metric
	StorageMode config.StorageMode
	Dir         string
}

// Register adds a new collection to the catalog. A name collision is
// reported as an error, not silently overwritten.
func (c *Catalog) Register(e Entry) error {
	_, err := c.db.Exec(
		`INSERT INTO collections (name, dimension, metric, storage_mode, dir) VALUES (?, ?, ?, ?, ?)`,
		e.Name, e.Dimension, e.Metric.String(), int(e.StorageMode), e.Dir,
	)
	if err != nil {
		return fmt.Errorf("collection: register %q: %w", e.Name, err)
	}
	return nil
}

// Get looks up a collection by name.
func (c *Catalog) Get(name string) (Entry, bool, error) {
	row := c.db.QueryRow(
		`SELECT name, dimension, metric, storage_mode, dir FROM collections WHERE name = ?`, name,
	)
	var e Entry
	var metricName string
	var storageMode int
	if err := row.Scan(&e.Name, &e.Dimension, &metricName, &storageMode, &e.Dir); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("collection: get %q: %w", name, err)
	}
	metric, err := config.ParseMetric(metricName)
	if err != nil {
		return Entry{}, false, err
	}
	e.Metric = metric
	e.StorageMode = config.StorageMode(storageMode)
	return e, true, nil
}

// List returns every registered collection, ordered by name.
func (c *Catalog) List() ([]Entry, error) {
	rows, err := c.db.Query(`SELECT name, dimension, metric, storage_mode, dir FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("collection: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var metricName string
		var storageMode int
		if err := rows.Scan(&e.Name, &e.Dimension, &metricName, &storageMode, &e.Dir); err != nil {
			return nil, err
		}
		metric, err := config.ParseMetric(metricName)
		if err != nil {
			return nil, err
		}
		e.Metric = metric
		e.StorageMode = config.StorageMode(storageMode)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Drop removes a collection's catalog entry. It does not delete the
// collection's files -- callers do that explicitly after Drop succeeds.
func (c *Catalog) Drop(name string) error {
	_, err := c.db.Exec(`DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("collection: drop %q: %w", name, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}
