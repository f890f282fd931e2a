package hnsw

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/xDarkicex/embedstore/internal/embed"
)

// insertIntoLayer performs an ef-greedy search for e's neighbors within a
// single layer, starting from entryID, then wires e bidirectionally to
// every result. If the layer is empty, e becomes its sole node with no
// edges — the layer's own first-ever insertion.
func insertIntoLayer(src EmbeddingSource, entryID uint64, layer Layer, e *embed.Embedding, ef int) error {
	if len(layer) == 0 {
		layer[e.ID] = nil
		return nil
	}

	entryNode, err := src.Get(entryID)
	if err != nil {
		return fmt.Errorf("resolve layer entry point %d: %w", entryID, err)
	}
	dist := embed.Distance(e, entryNode)

	visited := map[uint64]bool{entryID: true}
	candidates := &candidateMinHeap{{id: entryID, distance: dist}}
	results := &candidateMaxHeap{{id: entryID, distance: dist}}
	heap.Init(candidates)
	heap.Init(results)

	for candidates.Len() > 0 {
		curr := popMin(candidates)

		furthest := float32(math.MaxFloat32)
		if results.Len() > 0 {
			furthest = (*results)[0].distance
		}
		if curr.distance > furthest {
			break
		}

		for _, nb := range layer[curr.id] {
			if visited[nb.ID] {
				continue
			}
			visited[nb.ID] = true

			neighbor, err := src.Get(nb.ID)
			if err != nil {
				return fmt.Errorf("resolve layer neighbor %d: %w", nb.ID, err)
			}
			d := embed.Distance(e, neighbor)

			if results.Len() < ef || d < furthest {
				pushCandidate(candidates, candidate{id: nb.ID, distance: d})
				pushCandidate(results, candidate{id: nb.ID, distance: d})
				if results.Len() > ef {
					popMax(results)
				}
			}
		}
	}

	sorted := sortedAscending(*results)
	newNeighbors := make([]Neighbor, 0, len(sorted))
	for _, c := range sorted {
		newNeighbors = append(newNeighbors, Neighbor{ID: c.id, Distance: c.distance})
		layer[c.id] = append(layer[c.id], Neighbor{ID: e.ID, Distance: c.distance})
	}
	layer[e.ID] = newNeighbors

	return nil
}
