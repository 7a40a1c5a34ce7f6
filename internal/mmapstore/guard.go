package mmapstore

import (
	"sync/atomic"
	"unsafe"

	"github.com/velesdb/veles/internal/verrors"
)

// VectorSliceGuard is a borrowed view into the mmap arena, stamped with
// the epoch at its creation (spec.md §3 "VectorSliceGuard"). It never
// escapes the epoch it was created under: every dereference re-reads the
// store's epoch counter with acquire ordering and fails, rather than
// returning stale or unmapped memory, if a remap happened in between.
type VectorSliceGuard struct {
	store    *Store
	index    uint32
	epochAt  uint64
	ptr      unsafe.Pointer
	dim      int
}

// AsSlice returns the guarded []float32 view, or EpochMismatch if the
// store has remapped since the guard was created. This never panics and
// never touches unmapped memory: the epoch check happens before the
// unsafe.Slice conversion is handed back to the caller.
func (g *VectorSliceGuard) AsSlice() ([]float32, error) {
	current := atomic.LoadUint64(&g.store.epoch)
	if current != g.epochAt {
		return nil, verrors.New(verrors.EpochMismatch, "vector slice guard stale after remap")
	}
	return unsafe.Slice((*float32)(g.ptr), g.dim), nil
}

// Epoch returns the epoch this guard was stamped with.
func (g *VectorSliceGuard) Epoch() uint64 { return g.epochAt }

// Index returns the internal vector index this guard refers to.
func (g *VectorSliceGuard) Index() uint32 { return g.index }
