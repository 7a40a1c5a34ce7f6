package mmapstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
)

// Meta is the collection-level metadata persisted to the `meta` file
// (spec.md §6): the fixed header plus the id<->index mapping and the
// next-index allocation counter. Both the vector store and the HNSW
// graph consume this mapping, so it is serialized through this single
// helper to avoid the two callers drifting into incompatible encodings.
type Meta struct {
	Dimension   uint32
	Metric      uint8
	StorageMode uint8

	IDToIndex map[uint64]uint32
	IndexToID map[uint32]uint64
	NextIndex uint32
}

// NewMeta creates an empty Meta for a freshly created collection.
func NewMeta(dimension uint32, metric, storageMode uint8) *Meta {
	return &Meta{
		Dimension:   dimension,
		Metric:      metric,
		StorageMode: storageMode,
		IDToIndex:   make(map[uint64]uint32),
		IndexToID:   make(map[uint32]uint64),
	}
}

// Assign allocates the next contiguous internal index for id, recording
// the bidirectional mapping.
func (m *Meta) Assign(id uint64) uint32 {
	idx := m.NextIndex
	m.NextIndex++
	m.IDToIndex[id] = idx
	m.IndexToID[idx] = id
	return idx
}

// Remove drops id's mapping. The internal index itself is not recycled
// here -- HNSW soft-deletes leave the slot tombstoned for neighbor-list
// integrity (spec.md §3 "Deletion state").
func (m *Meta) Remove(id uint64) {
	if idx, ok := m.IDToIndex[id]; ok {
		delete(m.IDToIndex, id)
		delete(m.IndexToID, idx)
	}
}

// Save writes Meta to path using the stable little-endian encoding from
// spec.md §6: [dimension:u32][metric:u8][storage_mode:u8][reserved:u16]
// followed by the mapping payload.
func Save(path string, m *Meta) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("mmapstore: create meta: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], m.Dimension)
	header[4] = m.Metric
	header[5] = m.StorageMode
	binary.LittleEndian.PutUint16(header[6:8], 0) // reserved
	if _, err := w.Write(header); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, m.NextIndex); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.IDToIndex))); err != nil {
		return err
	}
	for id, idx := range m.IDToIndex {
		if err := binary.Write(w, binary.LittleEndian, id); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, idx); err != nil {
			return err
		}
	}

	return w.Flush()
}

// Load reads Meta from path written by Save.
func Load(path string) (*Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmapstore: open meta: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	header := make([]byte, 8)
	if _, err := readFull(r, header); err != nil {
		return nil, fmt.Errorf("mmapstore: read meta header: %w", err)
	}

	m := &Meta{
		Dimension:   binary.LittleEndian.Uint32(header[0:4]),
		Metric:      header[4],
		StorageMode: header[5],
		IDToIndex:   make(map[uint64]uint32),
		IndexToID:   make(map[uint32]uint64),
	}

	if err := binary.Read(r, binary.LittleEndian, &m.NextIndex); err != nil {
		return nil, err
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		var id uint64
		var idx uint32
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
			return nil, err
		}
		m.IDToIndex[id] = idx
		m.IndexToID[idx] = id
	}

	return m, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
