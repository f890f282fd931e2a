package hnsw

// Neighbor is a single directed edge in a layer graph: the id it points
// to, and the cached distance to that id from the node the edge belongs
// to (so re-sorting a neighbor list never has to recompute distances).
type Neighbor struct {
	ID       uint64
	Distance float32
}

// Layer is one graph level: every id present in the layer maps to its
// neighbor list. Neighbor counts are never pruned to a fixed degree;
// they are bounded in practice by the candidate pool size used during
// insertion.
type Layer map[uint64][]Neighbor
