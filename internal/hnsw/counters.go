package hnsw

import "sync/atomic"

// Process-wide safety counters (spec.md §4.D). These are always on in
// release builds -- the cost of maintaining them is one atomic add per
// event, never a per-call branch on whether counting is enabled.
var (
	lockContentionTotal     uint64
	operationRetryTotal     uint64
	invariantViolationTotal uint64
	corruptionDetectedTotal uint64
)

// Counters is a point-in-time snapshot of the safety counters, returned
// to callers that want to assert on them (see the concurrency test
// harness in spec.md §8).
type Counters struct {
	LockContentionTotal     uint64
	OperationRetryTotal     uint64
	InvariantViolationTotal uint64
	CorruptionDetectedTotal uint64
}

// ReadCounters snapshots the process-wide safety counters.
func ReadCounters() Counters {
	return Counters{
		LockContentionTotal:     atomic.LoadUint64(&lockContentionTotal),
		OperationRetryTotal:     atomic.LoadUint64(&operationRetryTotal),
		InvariantViolationTotal: atomic.LoadUint64(&invariantViolationTotal),
		CorruptionDetectedTotal: atomic.LoadUint64(&corruptionDetectedTotal),
	}
}

func incRetry()       { atomic.AddUint64(&operationRetryTotal, 1); traceIncr("operation_retry") }
func incCorruption()  { atomic.AddUint64(&corruptionDetectedTotal, 1); traceIncr("corruption_detected") }
func incInvariant()   { atomic.AddUint64(&invariantViolationTotal, 1); traceIncr("invariant_violation") }
