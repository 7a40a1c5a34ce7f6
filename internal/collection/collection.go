package collection

import (
	"fmt"
	"path/filepath"

	"github.com/velesdb/veles/internal/columnstore"
	"github.com/velesdb/veles/internal/config"
	"github.com/velesdb/veles/internal/distance"
	"github.com/velesdb/veles/internal/edgestore"
	"github.com/velesdb/veles/internal/hnsw"
	"github.com/velesdb/veles/internal/mmapstore"
)

// Collection wires one collection's subsystems together: the HNSW
// graph, its mmap-backed vector/payload store, the distance engine it
// shares with the graph, the symbolic column store, and the property
// graph's edge store (spec.md §3 "Collection").
type Collection struct {
	Name string
	Cfg  config.CollectionConfig

	Engine  *distance.Engine
	Store   *mmapstore.Store
	Meta    *mmapstore.Meta
	Graph   *hnsw.Graph
	Columns *columnstore.Store
	Edges   *edgestore.Store
}

// Open constructs a Collection rooted at dir, creating the mmap arena,
// WAL, and distance engine per cfg, and loading (or initializing) the
// id<->index metadata and the column store's primary key.
func Open(dir string, cfg config.CollectionConfig, pkField string) (*Collection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("collection: invalid config: %w", err)
	}

	engine, err := distance.New(cfg.Metric, cfg.Dimension)
	if err != nil {
		return nil, fmt.Errorf("collection: distance engine: %w", err)
	}

	store, err := mmapstore.Open(
		filepath.Join(dir, "vectors.mmap"),
		filepath.Join(dir, "wal.log"),
		filepath.Join(dir, "snapshot.pos"),
		cfg.Dimension, cfg.Mmap.InitialCapacity,
	)
	if err != nil {
		return nil, fmt.Errorf("collection: open vector store: %w", err)
	}

	metaPath := filepath.Join(dir, "meta")
	meta, err := mmapstore.Load(metaPath)
	if err != nil {
		meta = mmapstore.NewMeta(uint32(cfg.Dimension), uint8(cfg.Metric), uint8(cfg.StorageMode))
	}

	graph := hnsw.New(cfg.HNSW, engine, store, meta)

	columns, err := columnstore.NewStore(pkField)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("collection: column store: %w", err)
	}

	return &Collection{
		Name:    cfg.Name,
		Cfg:     cfg,
		Engine:  engine,
		Store:   store,
		Meta:    meta,
		Graph:   graph,
		Columns: columns,
		Edges:   edgestore.New(),
	}, nil
}

// Upsert inserts id/vector/payload into the HNSW graph and, if fields is
// non-nil, the companion row into the column store.
func (c *Collection) Upsert(id uint64, vector []float32, payload []byte, fields map[string]columnstore.Value) error {
	if err := c.Graph.Insert(id, vector, payload); err != nil {
		return fmt.Errorf("collection: insert vector: %w", err)
	}
	if fields != nil {
		if err := c.Columns.Replace(id, fields); err != nil {
			return fmt.Errorf("collection: replace row: %w", err)
		}
	}
	return nil
}

// SoftDelete marks id deleted in both the HNSW graph (tombstone) and the
// column store (deletion bitmap), keeping the two stores' visibility in
// sync, and drops every edge touching id from the edge store.
func (c *Collection) SoftDelete(id uint64) error {
	idx, ok := c.Meta.IDToIndex[id]
	if !ok {
		return fmt.Errorf("collection: unknown id %d", id)
	}
	c.Graph.SoftDelete(idx)
	if err := c.Columns.SoftDelete(id); err != nil {
		return fmt.Errorf("collection: soft delete row: %w", err)
	}
	c.Edges.RemoveNode(id)
	return nil
}

// Search runs a plain vector similarity search (spec.md §4.D Search),
// returning up to k live results.
func (c *Collection) Search(query []float32, k int) ([]hnsw.Result, error) {
	return c.Graph.Search(query, k)
}

// Close flushes and releases every owned resource.
func (c *Collection) Close() error {
	return c.Store.Close()
}

// Persist writes the current id<->index metadata to dir/meta, alongside
// an explicit snapshot of the vector store.
func (c *Collection) Persist(dir string) error {
	if err := mmapstore.Save(filepath.Join(dir, "meta"), c.Meta); err != nil {
		return fmt.Errorf("collection: persist meta: %w", err)
	}
	if err := c.Store.PersistSnapshot(); err != nil {
		return fmt.Errorf("collection: persist snapshot: %w", err)
	}
	return nil
}
