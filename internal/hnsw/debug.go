package hnsw

// TraceHook, when non-nil, receives the name of every safety counter
// incremented. It is nil in ordinary builds; debug_trace.go (built only
// with the hnswdebug tag) installs a logging hook via init(), matching
// spec.md §4.D's "debug builds additionally emit a trace event on each
// increment" without paying for it in release builds.
var TraceHook func(counter string)

func traceIncr(counter string) {
	if TraceHook != nil {
		TraceHook(counter)
	}
}
