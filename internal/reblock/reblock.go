// Package reblock implements the graph-locality re-layout pass: walk
// the HNSW bottom layer depth-first in neighbor-sorted order and repack
// the block store so that embeddings likely to be visited together
// during a query also live in the same block file.
package reblock

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xDarkicex/embedstore/internal/bstore"
	"github.com/xDarkicex/embedstore/internal/cache"
	"github.com/xDarkicex/embedstore/internal/embed"
	"github.com/xDarkicex/embedstore/internal/index/hnsw"
	"github.com/xDarkicex/embedstore/internal/ingest"
	"github.com/xDarkicex/embedstore/internal/obs"
)

const tempDirName = "temp"

// Run repacks store's on-disk blocks to follow idx's bottom-layer DFS
// visit order, refreshing each embedding's metadata from ledger along the
// way. It is a no-op if idx has no bottom layer (an empty index).
//
// Not transactional across a crash: a failure between deleting the old
// blocks and moving the new ones into place leaves a mixed state that
// only a fresh sync or reindex can repair.
func Run(store *bstore.Store, c *cache.Cache, idx *hnsw.Index, ledger ingest.Ledger, metrics *obs.Metrics) error {
	start := nowFunc()
	defer func() {
		if metrics != nil {
			metrics.ReblockDuration.Observe(time.Since(start).Seconds())
		}
	}()

	layer, ok := idx.BottomLayer()
	if !ok || len(layer) == 0 {
		return nil
	}

	visitOrder := dfsVisitOrder(layer)

	ledgerMeta, err := ledgerMetaByFilepath(ledger)
	if err != nil {
		return fmt.Errorf("reblock: read ledger: %w", err)
	}

	blocks := packBlocks(visitOrder, bstore.BlockSize)

	tempDir := filepath.Join(store.Dir(), tempDirName)
	if err := os.RemoveAll(tempDir); err != nil {
		return fmt.Errorf("reblock: clear temp dir: %w", err)
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return fmt.Errorf("reblock: create temp dir: %w", err)
	}

	directory := bstore.NewDirectory()
	for blockNum, ids := range blocks {
		embeddings := make([]*embed.Embedding, 0, len(ids))
		for _, id := range ids {
			e, err := c.Get(id)
			if err != nil {
				return fmt.Errorf("reblock: fetch embedding %d: %w", id, err)
			}
			if meta, ok := ledgerMeta[e.SourceFile.Filepath]; ok {
				e.SourceFile.Meta = meta
			}
			// else: file unaccounted for in the ledger; preserve prior
			// meta rather than clearing it.
			embeddings = append(embeddings, e)
			directory.Put(bstore.Entry{ID: e.ID, Filepath: e.SourceFile.Filepath, Block: uint64(blockNum)})
		}
		if err := bstore.WriteBlock(tempDir, uint64(blockNum), embeddings); err != nil {
			return fmt.Errorf("reblock: write temp block %d: %w", blockNum, err)
		}
	}

	if err := store.DeleteAllBlocks(); err != nil {
		return fmt.Errorf("reblock: delete old blocks: %w", err)
	}
	if err := os.Remove(filepath.Join(store.Dir(), "directory")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reblock: delete old directory: %w", err)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return fmt.Errorf("reblock: list temp blocks: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(tempDir, entry.Name())
		dst := filepath.Join(store.Dir(), entry.Name())
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("reblock: move block %s into place: %w", entry.Name(), err)
		}
	}
	if err := os.RemoveAll(tempDir); err != nil {
		return fmt.Errorf("reblock: remove temp dir: %w", err)
	}

	store.ReplaceDirectory(directory)
	if err := store.SaveDirectory(); err != nil {
		return fmt.Errorf("reblock: write new directory: %w", err)
	}
	c.Purge()

	return nil
}

// dfsVisitOrder walks layer depth-first from an arbitrary starting node,
// at each pop pushing unvisited neighbors farthest first so that the
// stack (which inverts push order) expands the closest neighbor first.
func dfsVisitOrder(layer hnsw.Layer) []uint64 {
	var start uint64
	for id := range layer {
		start = id
		break
	}

	visited := make(map[uint64]bool, len(layer))
	order := make([]uint64, 0, len(layer))
	stack := []uint64{start}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current] {
			continue
		}
		visited[current] = true
		order = append(order, current)

		neighbors := append([]hnsw.Neighbor(nil), layer[current]...)
		sort.Slice(neighbors, func(i, j int) bool {
			if neighbors[i].Distance != neighbors[j].Distance {
				return neighbors[i].Distance < neighbors[j].Distance
			}
			return neighbors[i].ID < neighbors[j].ID
		})
		for i := len(neighbors) - 1; i >= 0; i-- {
			if nb := neighbors[i]; !visited[nb.ID] {
				stack = append(stack, nb.ID)
			}
		}
	}

	return order
}

// packBlocks chunks ids, in order, into groups of at most size, indexed
// by new block number.
func packBlocks(ids []uint64, size int) map[int][]uint64 {
	blocks := make(map[int][]uint64)
	for i, id := range ids {
		b := i / size
		blocks[b] = append(blocks[b], id)
	}
	return blocks
}

func ledgerMetaByFilepath(ledger ingest.Ledger) (map[string]map[string]struct{}, error) {
	entries, err := ledger.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]struct{}, len(entries))
	for _, e := range entries {
		out[e.Filepath] = e.Meta
	}
	return out, nil
}

// nowFunc is a seam for tests that need deterministic timing; production
// code always uses time.Now.
var nowFunc = time.Now
