package edgestore

import "testing"

func TestAddAndRemoveEdge(t *testing.T) {
	s := New()
	e := s.AddEdge(&Edge{Label: "SOLD_BY", Source: 1, Target: 2})
	if e.ID == 0 {
		t.Fatalf("expected a minted edge id")
	}

	out := s.Outgoing(1, "")
	if len(out) != 1 || out[0].Target != 2 {
		t.Fatalf("expected one outgoing edge to 2, got %+v", out)
	}
	in := s.Incoming(2, "")
	if len(in) != 1 || in[0].Source != 1 {
		t.Fatalf("expected one incoming edge from 1, got %+v", in)
	}

	if err := s.RemoveEdge(1, 2, e.ID); err != nil {
		t.Fatalf("RemoveEdge: %v", err)
	}
	if len(s.Outgoing(1, "")) != 0 {
		t.Fatalf("expected no outgoing edges after removal")
	}
	if len(s.Incoming(2, "")) != 0 {
		t.Fatalf("expected no incoming edges after removal")
	}
}

func TestOutgoingFiltersByLabel(t *testing.T) {
	s := New()
	s.AddEdge(&Edge{Label: "SOLD_BY", Source: 1, Target: 2})
	s.AddEdge(&Edge{Label: "LOCATED_IN", Source: 1, Target: 3})

	out := s.Outgoing(1, "SOLD_BY")
	if len(out) != 1 || out[0].Target != 2 {
		t.Fatalf("expected only SOLD_BY edge, got %+v", out)
	}
}

func TestRemoveNodeDropsBothDirections(t *testing.T) {
	s := New()
	s.AddEdge(&Edge{Label: "R", Source: 1, Target: 2})
	s.AddEdge(&Edge{Label: "R", Source: 2, Target: 3})

	s.RemoveNode(2)

	if len(s.Outgoing(1, "")) != 0 {
		t.Fatalf("expected edge from 1 to be gone after removing node 2")
	}
	if len(s.Outgoing(2, "")) != 0 {
		t.Fatalf("expected node 2's own outgoing edges to be gone")
	}
	if len(s.Incoming(3, "")) != 0 {
		t.Fatalf("expected edge into 3 to be gone after removing node 2")
	}
}

func TestBFSMultiHop(t *testing.T) {
	s := New()
	s.AddEdge(&Edge{Label: "SOLD_BY", Source: 1, Target: 2})
	s.AddEdge(&Edge{Label: "LOCATED_IN", Source: 2, Target: 3})

	hits := s.BFS(1, TraverseOptions{MaxHops: 2, MaxResults: 10})
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %+v", hits)
	}
	if hits[0].NodeID != 2 || hits[0].Hop != 1 {
		t.Fatalf("expected first hit to be node 2 at hop 1, got %+v", hits[0])
	}
	if hits[1].NodeID != 3 || hits[1].Hop != 2 {
		t.Fatalf("expected second hit to be node 3 at hop 2, got %+v", hits[1])
	}
}

func TestBFSStopsAtMaxResults(t *testing.T) {
	s := New()
	for target := uint64(2); target <= 10; target++ {
		s.AddEdge(&Edge{Label: "R", Source: 1, Target: target})
	}

	hits := s.BFS(1, TraverseOptions{MaxHops: 1, MaxResults: 3})
	if len(hits) != 3 {
		t.Fatalf("expected exactly 3 hits due to MaxResults, got %d", len(hits))
	}
}

func TestVisitedSetStopsInsertingButKeepsExisting(t *testing.T) {
	v := newVisitedSet(2)
	if !v.Insert(1) {
		t.Fatalf("expected first insert to succeed")
	}
	if !v.Insert(2) {
		t.Fatalf("expected second insert to succeed")
	}
	if v.Insert(3) {
		t.Fatalf("expected third insert to fail (over capacity)")
	}
	if !v.Contains(1) || !v.Contains(2) {
		t.Fatalf("expected previously inserted ids to remain visited")
	}
	if v.Contains(3) {
		t.Fatalf("id 3 was never successfully inserted")
	}
}
