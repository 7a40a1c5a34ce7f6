// Package edgestore implements the collection's property-graph edge
// store (spec.md §4.E): directed, labeled edges sharded by source node
// for O(1) removal, with a duplicated reverse adjacency side, plus
// bounded BFS/DFS traversal helpers (SPEC_FULL.md §12) grounded on the
// teacher's multi-hop convergence loop (internal/semantic/multihop.go).
package edgestore

// Edge is one directed, labeled edge between two node ids, with an
// optional property map (spec.md §3 "Edge").
type Edge struct {
	ID         uint64
	Label      string
	Source     uint64
	Target     uint64
	Properties map[string]any
}
