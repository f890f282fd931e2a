package hnsw

// Remove deletes targetID from every layer it appears in: first the
// direct edges from its own neighbors back to it, then its own entry.
// Neighbors-of-neighbors are never rewired — a removal can leave a
// layer locally sparser without any attempt to repair connectivity
// around the gap.
func (idx *Index) Remove(targetID uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, layer := range idx.layers {
		neighbors, ok := layer[targetID]
		if !ok {
			continue
		}
		for _, nb := range neighbors {
			others := layer[nb.ID]
			filtered := others[:0]
			for _, o := range others {
				if o.ID != targetID {
					filtered = append(filtered, o)
				}
			}
			layer[nb.ID] = filtered
		}
	}

	for _, layer := range idx.layers {
		delete(layer, targetID)
	}

	if idx.size > 0 {
		idx.size--
	}

	if idx.hasEntry && idx.entryID == targetID {
		idx.promoteEntry()
	}
}

// promoteEntry picks an arbitrary surviving node from the last layer to
// become the new entry point, falling back to earlier layers if the last
// one is now empty, and clearing the entry entirely if the graph is
// empty. Map iteration order in Go is randomized per process, so "first"
// here really does mean arbitrary.
func (idx *Index) promoteEntry() {
	for i := len(idx.layers) - 1; i >= 0; i-- {
		for id := range idx.layers[i] {
			idx.entryID = id
			return
		}
	}
	idx.hasEntry = false
	idx.entryID = 0
}
