package hnsw

import "container/heap"

// distItem pairs an internal node index with its distance to the active
// query vector. Grounded on other_examples' vecstore.HNSW beam-search
// heaps.
type distItem struct {
	index uint32
	dist  float32
}

// minDistHeap pops the closest candidate first; used as the beam-search
// frontier.
type minDistHeap []distItem

func (h minDistHeap) Len() int            { return len(h) }
func (h minDistHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minDistHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minDistHeap) Push(x any)         { *h = append(*h, x.(distItem)) }
func (h *minDistHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxDistHeap pops the farthest candidate first; used to bound the
// result set to ef entries during beam search.
type maxDistHeap []distItem

func (h maxDistHeap) Len() int            { return len(h) }
func (h maxDistHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxDistHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxDistHeap) Push(x any)         { *h = append(*h, x.(distItem)) }
func (h *maxDistHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func heapify(h heap.Interface) { heap.Init(h) }

func heapPushMin(h *minDistHeap, item distItem) { heap.Push(h, item) }
func heapPopMin(h *minDistHeap) distItem        { return heap.Pop(h).(distItem) }

func heapPushMax(h *maxDistHeap, item distItem) { heap.Push(h, item) }
func heapPopMax(h *maxDistHeap) distItem        { return heap.Pop(h).(distItem) }
