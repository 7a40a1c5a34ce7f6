// Package mmapstore implements the mmap-backed vector/payload store
// (spec.md §4.C): a file-backed arena of contiguous vector slots, a
// per-entry-CRC write-ahead log for payloads, an atomic-offset snapshot
// trigger, and epoch-stamped borrow guards that detect remap staleness.
//
// Grounded on the teacher pack's only genuine mmap user
// (shibudb-org-shibudb-server/internal/index/BTreeIndex.go, which maps a
// growable file with syscall.Mmap/Munmap under a lock) generalized from
// a key index to a fixed-stride vector arena, plus a CRC'd WAL modeled
// on shibudb's internal/wal/wal.go append-log shape.
package mmapstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/velesdb/veles/internal/obslog"
)

const headerSize = 32 // [capacity:u32][liveCount:u32][dimension:u32][reserved:u32][pad:u64][pad:u64]

// Store owns the mmap'd vector arena plus the WAL backing payload
// durability. Concurrency model: single writer, many readers (spec.md
// §4.C/§5). Readers acquire VectorSliceGuards without taking appendMu;
// they hold mapMu's read lock only while the guard is built, so a guard
// acquisition waits out a concurrent remap. Writers hold appendMu
// exclusively during Store/StoreBatch/grow.
type Store struct {
	file *os.File
	wal  *WAL

	appendMu sync.Mutex // exclusive: Store, StoreBatch, grow
	mapMu    sync.RWMutex // protects data/capacity swap during remap

	data     []byte
	capacity uint32
	liveCnt  uint32
	dim      int

	epoch uint64 // atomic, bumped on every remap

	snapshotPath   string
	snapshotPos    uint64 // atomic
	lastDurablePos uint64 // atomic
}

// Open opens or creates a vector arena at path for dim-dimensional
// vectors, backed by a WAL at walPath and a snapshot-position file at
// snapshotPath, with room for initialCapacity vectors.
func Open(path, walPath, snapshotPath string, dim, initialCapacity int) (*Store, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("mmapstore: dimension must be positive")
	}
	if initialCapacity <= 0 {
		initialCapacity = 1024
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("mmapstore: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	s := &Store{file: f, dim: dim, snapshotPath: snapshotPath}

	wantSize := int64(headerSize) + int64(initialCapacity)*int64(dim)*4
	if info.Size() < wantSize {
		if err := f.Truncate(wantSize); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("mmapstore: truncate: %w", err)
		}
	}

	if err := s.mapFile(); err != nil {
		_ = f.Close()
		return nil, err
	}

	cap32 := binary.LittleEndian.Uint32(s.data[0:4])
	if cap32 == 0 {
		cap32 = uint32(initialCapacity)
		binary.LittleEndian.PutUint32(s.data[0:4], cap32)
		binary.LittleEndian.PutUint32(s.data[8:12], uint32(dim))
	}
	s.capacity = cap32
	s.liveCnt = binary.LittleEndian.Uint32(s.data[4:8])

	w, err := OpenWAL(walPath)
	if err != nil {
		_ = s.unmap()
		_ = f.Close()
		return nil, err
	}
	s.wal = w

	s.snapshotPos = s.loadSnapshotPos()

	return s, nil
}

func (s *Store) mapFile() error {
	info, err := s.file.Stat()
	if err != nil {
		return err
	}
	data, err := syscall.Mmap(int(s.file.Fd()), 0, int(info.Size()), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmapstore: mmap: %w", err)
	}
	s.data = data
	return nil
}

func (s *Store) unmap() error {
	if s.data == nil {
		return nil
	}
	err := syscall.Munmap(s.data)
	s.data = nil
	return err
}

func (s *Store) slotOffset(index uint32) int {
	return headerSize + int(index)*s.dim*4
}

// Capacity returns the current number of vector slots.
func (s *Store) Capacity() uint32 {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	return s.capacity
}

// LiveCount returns the number of occupied slots.
func (s *Store) LiveCount() uint32 {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	return s.liveCnt
}

// Dimension returns the configured vector width.
func (s *Store) Dimension() int { return s.dim }

// Store writes vector into slot index and appends a CRC'd WAL entry for
// payload. It resolves the offset, memcpy's the vector in, appends the
// WAL record, and grows the arena if index has reached the high-water
// mark -- spec.md §4.C operation (1)-(4).
func (s *Store) Store(index uint32, vector []float32, payload []byte) error {
	if len(vector) != s.dim {
		return fmt.Errorf("mmapstore: dimension mismatch: got %d, want %d", len(vector), s.dim)
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	if index >= s.Capacity() {
		if err := s.grow(); err != nil {
			return err
		}
	}

	s.writeSlotLocked(index, vector)

	if err := s.wal.Append(payload); err != nil {
		return fmt.Errorf("mmapstore: wal append: %w", err)
	}

	s.bumpLiveCountLocked()
	atomic.AddUint64(&s.snapshotPos, uint64(walEntryHeaderSize+len(payload)))

	return nil
}

// BatchItem is a precomputed (index, vector, payload) triple for
// StoreBatch.
type BatchItem struct {
	Index   uint32
	Vector  []float32
	Payload []byte
}

// StoreBatch pre-computes every item's slot before writing any of them,
// writes them all, then flushes the WAL exactly once. A missing
// precomputed offset is a programming-invariant violation, not a runtime
// condition to paper over: spec.md §4.C is explicit that such a case
// must halt the operation rather than default to offset 0.
func (s *Store) StoreBatch(items []BatchItem) error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	offsets := make([]int, len(items))
	for i, it := range items {
		if len(it.Vector) != s.dim {
			return fmt.Errorf("mmapstore: batch item %d dimension mismatch: got %d, want %d", i, len(it.Vector), s.dim)
		}
		if it.Index >= s.Capacity() {
			if err := s.grow(); err != nil {
				return err
			}
		}
		offsets[i] = s.slotOffset(it.Index)
	}

	payloads := make([][]byte, len(items))
	var walBytes uint64
	for i, it := range items {
		off := offsets[i]
		if off == 0 && it.Index != 0 {
			// A zero offset for a non-zero index is exactly the
			// programming-invariant violation spec.md §4.C calls out:
			// never paper over it with unwrap_or(0); halt the batch with
			// an error instead.
			return fmt.Errorf("mmapstore: missing precomputed offset for batch item %d", i)
		}
		s.writeBytesAt(off, it.Vector)
		payloads[i] = it.Payload
		walBytes += uint64(walEntryHeaderSize + len(it.Payload))
	}

	if err := s.wal.AppendBatch(payloads); err != nil {
		return fmt.Errorf("mmapstore: wal append batch: %w", err)
	}

	s.mapMu.Lock()
	s.liveCnt += uint32(len(items))
	binary.LittleEndian.PutUint32(s.data[4:8], s.liveCnt)
	s.mapMu.Unlock()

	atomic.AddUint64(&s.snapshotPos, walBytes)

	return nil
}

func (s *Store) writeSlotLocked(index uint32, vector []float32) {
	off := s.slotOffset(index)
	s.writeBytesAt(off, vector)
}

func (s *Store) writeBytesAt(off int, vector []float32) {
	s.mapMu.RLock()
	dst := unsafe.Slice((*float32)(unsafe.Pointer(&s.data[off])), s.dim)
	copy(dst, vector)
	s.mapMu.RUnlock()
}

func (s *Store) bumpLiveCountLocked() {
	s.mapMu.Lock()
	s.liveCnt++
	binary.LittleEndian.PutUint32(s.data[4:8], s.liveCnt)
	s.mapMu.Unlock()
}

// grow doubles the arena's capacity. This is the longest operation in
// the store (unmap + remap + implicit copy via the filesystem) and is
// serialized by appendMu, which the caller already holds. Growing bumps
// the epoch counter, invalidating every outstanding VectorSliceGuard.
func (s *Store) grow() error {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	newCapacity := s.capacity * 2
	if newCapacity == 0 {
		newCapacity = 1024
	}
	newSize := int64(headerSize) + int64(newCapacity)*int64(s.dim)*4

	if err := s.unmap(); err != nil {
		return fmt.Errorf("mmapstore: unmap for grow: %w", err)
	}
	if err := s.file.Truncate(newSize); err != nil {
		return fmt.Errorf("mmapstore: truncate for grow: %w", err)
	}
	if err := s.mapFile(); err != nil {
		return fmt.Errorf("mmapstore: remap for grow: %w", err)
	}

	s.capacity = newCapacity
	binary.LittleEndian.PutUint32(s.data[0:4], newCapacity)

	atomic.AddUint64(&s.epoch, 1)
	obslog.Infof("mmapstore: grew capacity to %d (epoch now %d)", newCapacity, atomic.LoadUint64(&s.epoch))

	return nil
}

// GetVectorGuard returns a VectorSliceGuard for index, stamped with the
// store's current epoch. Acquiring a guard never blocks on appendMu:
// readers only take mapMu briefly to snapshot the pointer/epoch pair.
func (s *Store) GetVectorGuard(index uint32) (*VectorSliceGuard, error) {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()

	if index >= s.capacity {
		return nil, fmt.Errorf("mmapstore: index %d out of range (capacity %d)", index, s.capacity)
	}
	off := s.slotOffset(index)
	return &VectorSliceGuard{
		store:   s,
		index:   index,
		epochAt: atomic.LoadUint64(&s.epoch),
		ptr:     unsafe.Pointer(&s.data[off]),
		dim:     s.dim,
	}, nil
}

// SnapshotNeeded reports whether the snapshot position has advanced past
// the last durable snapshot without taking any lock (spec.md §4.C,
// "reads an AtomicU64 position counter; no lock").
func (s *Store) SnapshotNeeded() bool {
	return atomic.LoadUint64(&s.snapshotPos) > s.lastDurable()
}

func (s *Store) lastDurable() uint64 {
	return atomic.LoadUint64(&s.lastDurablePos)
}

// PersistSnapshot durably records the current snapshot position to the
// snapshot.pos file (spec.md §6 on-disk layout).
func (s *Store) PersistSnapshot() error {
	pos := atomic.LoadUint64(&s.snapshotPos)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, pos)
	if err := os.WriteFile(s.snapshotPath, buf, 0644); err != nil {
		return fmt.Errorf("mmapstore: persist snapshot: %w", err)
	}
	atomic.StoreUint64(&s.lastDurablePos, pos)
	return nil
}

func (s *Store) loadSnapshotPos() uint64 {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil || len(data) < 8 {
		return 0
	}
	pos := binary.LittleEndian.Uint64(data)
	atomic.StoreUint64(&s.lastDurablePos, pos)
	return pos
}

// RecoverWAL replays the WAL from disk, returning every payload whose
// CRC validated. Called once at startup.
func (s *Store) RecoverWAL() ([][]byte, error) {
	return s.wal.Recover()
}

// Close flushes the WAL, persists the snapshot position, and unmaps the
// arena.
func (s *Store) Close() error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	if err := s.wal.Flush(); err != nil {
		return err
	}
	if err := s.PersistSnapshot(); err != nil {
		return err
	}
	if err := s.unmap(); err != nil {
		return err
	}
	if err := s.wal.Close(); err != nil {
		return err
	}
	return s.file.Close()
}
