// Package config holds the engine's YAML-backed configuration types,
// generalized from the teacher's project-detection config
// (internal/project/config.go in ihavespoons-zrok) into VelesDB's
// collection/engine settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Metric identifies a collection's fixed distance metric. Wire values are
// stable (spec.md §6): Cosine=0, Euclidean=1, DotProduct=2, Hamming=3,
// Jaccard=4.
type Metric uint8

const (
	MetricCosine Metric = iota
	MetricEuclidean
	MetricDotProduct
	MetricHamming
	MetricJaccard
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	case MetricDotProduct:
		return "dot_product"
	case MetricHamming:
		return "hamming"
	case MetricJaccard:
		return "jaccard"
	default:
		return "unknown"
	}
}

// ParseMetric parses a metric name as accepted in collection config/DDL.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "cosine":
		return MetricCosine, nil
	case "euclidean", "l2":
		return MetricEuclidean, nil
	case "dot_product", "dot":
		return MetricDotProduct, nil
	case "hamming":
		return MetricHamming, nil
	case "jaccard":
		return MetricJaccard, nil
	default:
		return 0, fmt.Errorf("config: unknown metric %q", s)
	}
}

// StorageMode identifies how a collection stores its vector payloads.
type StorageMode uint8

const (
	StorageFullF32 StorageMode = iota
	StorageSQ8
	StorageBinary
)

// HNSWConfig configures the HNSW graph for a collection.
type HNSWConfig struct {
	M              int `yaml:"m" json:"m"`
	EfConstruction int `yaml:"ef_construction" json:"ef_construction"`
	EfSearch       int `yaml:"ef_search" json:"ef_search"`
}

func (c *HNSWConfig) setDefaults() {
	if c.M <= 0 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 50
	}
}

// MaxConns returns the maximum out-degree at the given HNSW layer:
// 2*M at layer 0, M above it (spec.md §3 invariant 2).
func (c *HNSWConfig) MaxConns(layer int) int {
	if layer == 0 {
		return c.M * 2
	}
	return c.M
}

// MmapConfig configures the mmap-backed vector/payload store.
type MmapConfig struct {
	// InitialCapacity is the number of vector slots preallocated.
	InitialCapacity int `yaml:"initial_capacity" json:"initial_capacity"`
	// GrowthFactor is the configured capacity multiplier for a grow
	// (default 2.0). mmapstore does not read it: its grow always doubles
	// capacity (spec.md §4.C: "grow by doubling").
	GrowthFactor float64 `yaml:"growth_factor" json:"growth_factor"`
	// WALBatchSize is the configured WAL flush batch size (default 256).
	// mmapstore does not read it: the WAL is flushed once per StoreBatch
	// call and on Close.
	WALBatchSize int `yaml:"wal_batch_size" json:"wal_batch_size"`
}

func (c *MmapConfig) setDefaults() {
	if c.InitialCapacity <= 0 {
		c.InitialCapacity = 1024
	}
	if c.GrowthFactor <= 1.0 {
		c.GrowthFactor = 2.0
	}
	if c.WALBatchSize <= 0 {
		c.WALBatchSize = 256
	}
}

// CollectionConfig is the persisted, user-facing configuration for one
// collection.
type CollectionConfig struct {
	Name        string      `yaml:"name" json:"name"`
	Dimension   int         `yaml:"dimension" json:"dimension"`
	Metric      Metric      `yaml:"-" json:"-"`
	MetricName  string      `yaml:"metric" json:"metric"`
	StorageMode StorageMode `yaml:"-" json:"-"`
	HNSW        HNSWConfig  `yaml:"hnsw" json:"hnsw"`
	Mmap        MmapConfig  `yaml:"mmap" json:"mmap"`
	// OverfetchDefault is the default WITH (overfetch = N) multiplier
	// for similarity-filtered queries (spec.md §4.E, default 10). The
	// query executor does not read it: a query without WITH (overfetch =
	// N) uses columnstore.DefaultOverfetch, which is also 10.
	OverfetchDefault int `yaml:"overfetch_default" json:"overfetch_default"`
}

// Validate checks structural invariants and resolves derived fields
// (MetricName -> Metric). Returns an error rather than panicking --
// configuration is user input and must never crash the process.
func (c *CollectionConfig) Validate() error {
	if c.Dimension <= 0 || c.Dimension > 65536 {
		return fmt.Errorf("config: dimension %d out of range (1..65536)", c.Dimension)
	}
	metric, err := ParseMetric(c.MetricName)
	if err != nil {
		return err
	}
	c.Metric = metric
	c.HNSW.setDefaults()
	c.Mmap.setDefaults()
	if c.OverfetchDefault <= 0 {
		c.OverfetchDefault = 10
	}
	return nil
}

// Load reads and validates a CollectionConfig from a YAML file.
func Load(path string) (*CollectionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg CollectionConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg back to path as YAML.
func Save(path string, cfg *CollectionConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
