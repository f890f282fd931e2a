package hnsw

import (
	"fmt"
	"sort"
	"time"

	"github.com/xDarkicex/embedstore/internal/embed"
)

// ErrEfLessThanK is returned by Query when ef < k, an invalid combination
// since the ef-greedy traversal can never produce more than ef candidates.
var ErrEfLessThanK = fmt.Errorf("hnsw: ef must be >= k")

// Result is a single query match: the candidate embedding and its cosine
// distance from the query vector.
type Result struct {
	Embedding *embed.Embedding
	Distance  float32
}

// Query performs a DFS traversal from the current entry point, descending
// layer by layer (highest index first), filtering candidates by every
// filter in filters, and returning up to k closest matches. The
// traversal stops early once it has examined ef total candidates.
func (idx *Index) Query(src EmbeddingSource, query *embed.Embedding, filters []embed.Filter, k, ef int) (results []Result, err error) {
	if idx.metrics != nil {
		start := time.Now()
		defer func() {
			idx.metrics.QueryLatency.Observe(time.Since(start).Seconds())
			if err != nil {
				idx.metrics.QueryErrors.Inc()
			}
		}()
	}

	if ef < k {
		return nil, ErrEfLessThanK
	}

	idx.mu.RLock()
	layers := idx.layers
	current, ok := idx.entryID, idx.hasEntry
	idx.mu.RUnlock()

	if len(layers) == 0 || !ok {
		return nil, nil
	}

	visited := make(map[uint64]bool)
	blacklist := make(map[uint64]bool)
	var topK []candidate
	count := 0

	type scored struct {
		id   uint64
		dist float32
	}

descend:
	for layerIdx := len(layers) - 1; layerIdx >= 0; layerIdx-- {
		layer := layers[layerIdx]
		if len(layer) == 0 {
			continue
		}

		stack := []uint64{current}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			neighbors, ok := layer[cur]
			if !ok {
				continue
			}

			batch := make([]scored, 0, len(neighbors))
			for _, nb := range neighbors {
				if blacklist[nb.ID] {
					continue
				}
				e, err := src.Get(nb.ID)
				if err != nil {
					return nil, fmt.Errorf("hnsw: resolve candidate %d: %w", nb.ID, err)
				}
				pass := embed.PassesFilters(filters, e.SourceFile.Meta)
				if !visited[nb.ID] && pass {
					batch = append(batch, scored{id: nb.ID, dist: embed.Distance(query, e)})
				} else {
					blacklist[nb.ID] = true
				}
			}
			sort.Slice(batch, func(i, j int) bool {
				if batch[i].dist != batch[j].dist {
					return batch[i].dist < batch[j].dist
				}
				return batch[i].id < batch[j].id
			})

			for _, n := range batch {
				if !visited[n.id] && !blacklist[n.id] && count < ef {
					topK = append(topK, candidate{id: n.id, distance: n.dist})
					stack = append(stack, n.id)
					visited[n.id] = true
					count++
				}

				if len(topK) > k {
					sort.Slice(topK, func(i, j int) bool {
						if topK[i].distance != topK[j].distance {
							return topK[i].distance < topK[j].distance
						}
						return topK[i].id < topK[j].id
					})
					topK = topK[:k]
				}

				if count >= ef {
					break descend
				}
			}
		}

		sort.Slice(topK, func(i, j int) bool {
			if topK[i].distance != topK[j].distance {
				return topK[i].distance < topK[j].distance
			}
			return topK[i].id < topK[j].id
		})
		if len(topK) > 0 {
			current = topK[0].id
		}
	}

	sort.Slice(topK, func(i, j int) bool {
		if topK[i].distance != topK[j].distance {
			return topK[i].distance < topK[j].distance
		}
		return topK[i].id < topK[j].id
	})
	return buildResults(src, topK)
}

func buildResults(src EmbeddingSource, top []candidate) ([]Result, error) {
	out := make([]Result, 0, len(top))
	for _, c := range top {
		e, err := src.Get(c.id)
		if err != nil {
			return nil, fmt.Errorf("hnsw: resolve result %d: %w", c.id, err)
		}
		out = append(out, Result{Embedding: e, Distance: c.distance})
	}
	return out, nil
}
