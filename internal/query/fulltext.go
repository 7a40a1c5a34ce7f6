package query

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// FullTextProvider is the interface the WHERE evaluator consumes for
// `MATCH` full-text conditions (spec.md §1: "the full-text BM25/trigram
// subsystem ... consumed as a search provider"). BleveFullText is the
// concrete implementation; tests may substitute a fake.
type FullTextProvider interface {
	// Search returns the set of row ids whose field matches query.
	Search(field, query string) (map[uint64]bool, error)
}

// bleveDoc is the document shape indexed per row: one dynamically
// mapped text field per indexed column, keyed by row id.
type bleveDoc map[string]string

// BleveFullText is a bleve-backed FullTextProvider, grounded on the
// teacher's SearchIndex (internal/memory/index.go): one index per
// collection, row ids as document ids, bleve's default index mapping
// (standard analyzer) on every indexed text field.
type BleveFullText struct {
	mu    sync.RWMutex
	index bleve.Index
	path  string
}

// OpenBleveFullText opens or creates a full-text index at dir/.fulltext.
func OpenBleveFullText(dir string) (*BleveFullText, error) {
	path := filepath.Join(dir, ".fulltext")

	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		_ = os.RemoveAll(path)
		index, err = bleve.New(path, bleve.NewIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("query: open full-text index: %w", err)
		}
	}
	return &BleveFullText{index: index, path: path}, nil
}

// IndexRow (re-)indexes one row's text fields, keyed by its id.
func (b *BleveFullText) IndexRow(id uint64, fields map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Index(strconv.FormatUint(id, 10), bleveDoc(fields))
}

// DeleteRow removes a row's document from the index.
func (b *BleveFullText) DeleteRow(id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Delete(strconv.FormatUint(id, 10))
}

// Search implements FullTextProvider: a bleve match query (no fuzziness)
// scoped to one field, returning the matching row ids.
func (b *BleveFullText) Search(field, queryText string) (map[uint64]bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	mq := bleve.NewMatchQuery(queryText)
	mq.SetField(field)
	req := bleve.NewSearchRequest(mq)
	req.Size = 10000

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("query: full-text search: %w", err)
	}

	out := make(map[uint64]bool, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		out[id] = true
	}
	return out, nil
}

// Close releases the underlying bleve index.
func (b *BleveFullText) Close() error {
	return b.index.Close()
}
