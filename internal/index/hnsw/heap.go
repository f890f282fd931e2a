package hnsw

import "container/heap"

// candidate is a single entry considered during ef-greedy layer insertion
// or query traversal. Layers are id-keyed maps, so a candidate carries
// the id directly rather than a slice index.
type candidate struct {
	id       uint64
	distance float32
}

// candidateMinHeap pops the closest candidate first. Used to drive
// exploration outward from the current frontier.
type candidateMinHeap []candidate

func (h candidateMinHeap) Len() int { return len(h) }
func (h candidateMinHeap) Less(i, j int) bool {
	if h[i].distance != h[j].distance {
		return h[i].distance < h[j].distance
	}
	return h[i].id < h[j].id
}
func (h candidateMinHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateMinHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateMinHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// candidateMaxHeap pops the farthest candidate first. Used to hold the
// current best ef results, so the worst of them can be evicted cheaply
// when a closer candidate is found.
type candidateMaxHeap []candidate

func (h candidateMaxHeap) Len() int { return len(h) }
func (h candidateMaxHeap) Less(i, j int) bool {
	if h[i].distance != h[j].distance {
		return h[i].distance > h[j].distance
	}
	return h[i].id > h[j].id
}
func (h candidateMaxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateMaxHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateMaxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func pushCandidate(h heap.Interface, c candidate) { heap.Push(h, c) }

func popMin(h *candidateMinHeap) candidate { return heap.Pop(h).(candidate) }
func popMax(h *candidateMaxHeap) candidate { return heap.Pop(h).(candidate) }

// sortedAscending drains a max-heap of ef results into ascending-distance
// order, which is how a layer's final neighbor list and a query's
// top-k results are both returned.
func sortedAscending(h candidateMaxHeap) []candidate {
	out := make([]candidate, len(h))
	tmp := make(candidateMaxHeap, len(h))
	copy(tmp, h)
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = popMax(&tmp)
	}
	return out
}
