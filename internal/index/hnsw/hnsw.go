// Package hnsw implements a single-entry-point, ef-greedy HNSW graph
// index: per-layer insertion sampling against a geometric threshold
// schedule, unbounded neighbor lists, and a DFS filtered query.
package hnsw

import (
	"fmt"
	"math/bits"
	"math/rand"
	"sync"
	"time"

	"github.com/xDarkicex/embedstore/internal/embed"
	"github.com/xDarkicex/embedstore/internal/obs"
)

// EmbeddingSource resolves an id to its embedding. The workspace passes
// its block cache here; insertion and query never hold every embedding in
// memory at once.
type EmbeddingSource interface {
	Get(id uint64) (*embed.Embedding, error)
}

// ConstructionEf is the ef-greedy candidate list size used for every
// layer insertion.
const ConstructionEf = 200

// Index is the graph: one Layer per level, a single global entry point,
// and a geometric threshold schedule controlling which layers a newly
// inserted id is added to. Layers are ordered dense-to-sparse: index 0
// is the bottom layer holding every node, the last index is the
// sparsest top layer, where traversal starts. Per-node neighbor counts
// are unbounded.
type Index struct {
	mu         sync.RWMutex
	layers     []Layer
	thresholds []float32
	entryID    uint64
	hasEntry   bool
	size       uint32
	rng        *rand.Rand
	metrics    *obs.Metrics
}

// New returns an empty Index. seed fixes the random source used for
// per-node layer-insertion sampling, so tests can reproduce a specific
// graph shape.
func New(metrics *obs.Metrics, seed int64) *Index {
	return &Index{rng: rand.New(rand.NewSource(seed)), metrics: metrics}
}

// Size returns the number of ids currently present in the index.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int(idx.size)
}

// EntryID returns the index's current global entry point.
func (idx *Index) EntryID() (id uint64, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entryID, idx.hasEntry
}

// BottomLayer returns the dense bottom layer (index 0), the complete
// census of every id in the index. The reblocker walks it via DFS to
// derive the new on-disk block order.
func (idx *Index) BottomLayer() (Layer, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.layers) == 0 {
		return nil, false
	}
	return idx.layers[0], true
}

// layerCount computes floor(log2(n)), clamped to a minimum of 1 so a
// freshly-started index always has somewhere to insert its first node.
func layerCount(n uint32) int {
	if n < 1 {
		n = 1
	}
	l := bits.Len32(n) - 1
	if l < 1 {
		l = 1
	}
	return l
}

// computeThresholds returns the per-layer insertion-probability
// thresholds for an index of size n: the geometric sequence
// `p*(1-p)^j`, largest at the bottom layer and shrinking toward the
// sparse top.
func computeThresholds(n uint32) []float32 {
	l := layerCount(n)
	p := float32(1.0 / float64(l))
	thresholds := make([]float32, l)
	factor := float32(1)
	for j := 0; j < l; j++ {
		thresholds[j] = p * factor
		factor *= 1 - p
	}
	return thresholds
}

// ensureLayers grows the layer set when the index has outgrown its
// current layer count, appending a new layer (seeded with the current
// entry point, if any) and recomputing the threshold schedule.
func (idx *Index) ensureLayers() {
	l := layerCount(idx.size)
	if len(idx.layers) > 0 && l <= len(idx.layers) {
		return
	}
	newLayer := make(Layer)
	if idx.hasEntry {
		newLayer[idx.entryID] = nil
	}
	idx.layers = append(idx.layers, newLayer)
	idx.thresholds = computeThresholds(idx.size)
}

// Build constructs an index over a complete census of ids in one batch.
// Unlike repeated Insert calls, which grow the layer count and
// threshold schedule off the running size one node at a time, Build
// computes both once from the final census size and inserts every node
// against that fixed schedule. This is the reindex path; Insert is the
// incremental one.
func Build(src EmbeddingSource, ids []uint64, metrics *obs.Metrics, seed int64) (*Index, error) {
	idx := New(metrics, seed)
	l := layerCount(uint32(len(ids)))
	idx.thresholds = computeThresholds(uint32(len(ids)))
	idx.layers = make([]Layer, l)
	for i := range idx.layers {
		idx.layers[i] = make(Layer)
	}

	for _, id := range ids {
		e, err := src.Get(id)
		if err != nil {
			return nil, fmt.Errorf("hnsw: build: resolve %d: %w", id, err)
		}
		prob := idx.rng.Float32()
		for j := 0; j < l; j++ {
			if j == 0 || prob < idx.thresholds[j] || !idx.hasEntry {
				entry := e.ID
				if idx.hasEntry {
					entry = idx.entryID
				}
				if err := insertIntoLayer(src, entry, idx.layers[j], e, ConstructionEf); err != nil {
					return nil, fmt.Errorf("hnsw: build: insert into layer %d: %w", j, err)
				}
			}
		}
		if !idx.hasEntry {
			idx.entryID = e.ID
			idx.hasEntry = true
		}
		idx.size++
	}

	return idx, nil
}

// Insert adds e to the index, sampling a single probability and testing
// it against every layer's threshold. The bottom layer (index 0) is
// exempt from sampling: every node always lands there, keeping it a
// complete census of the index — removal cleanup and the reblocker's DFS
// both depend on that. Because the same sampled probability is compared
// against a descending threshold schedule, membership in any higher
// layer implies membership in every layer below it. The very first node
// ever inserted becomes the entry point and is added to every layer
// unconditionally.
func (idx *Index) Insert(src EmbeddingSource, e *embed.Embedding) error {
	if idx.metrics != nil {
		start := time.Now()
		defer func() { idx.metrics.InsertLatency.Observe(time.Since(start).Seconds()) }()
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.ensureLayers()

	prob := idx.rng.Float32()
	for j := 0; j < len(idx.layers); j++ {
		sampled := j < len(idx.thresholds) && prob < idx.thresholds[j]
		if j == 0 || sampled || !idx.hasEntry {
			entry := e.ID
			if idx.hasEntry {
				entry = idx.entryID
			}
			if err := insertIntoLayer(src, entry, idx.layers[j], e, ConstructionEf); err != nil {
				return fmt.Errorf("hnsw: insert into layer %d: %w", j, err)
			}
		}
	}

	if !idx.hasEntry {
		idx.entryID = e.ID
		idx.hasEntry = true
	}
	idx.size++
	return nil
}
