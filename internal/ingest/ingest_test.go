package ingest

import (
	"fmt"
	"testing"

	"github.com/xDarkicex/embedstore/internal/bstore"
	"github.com/xDarkicex/embedstore/internal/cache"
	"github.com/xDarkicex/embedstore/internal/embed"
	"github.com/xDarkicex/embedstore/internal/index/hnsw"
	"github.com/xDarkicex/embedstore/internal/obs"
)

// fakeEmbedder returns a deterministic, distinct vector per requested
// source so tests can tell embeddings apart without a real service.
type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) EmbedBulk(sources []EmbeddingSource) ([]*embed.Embedding, error) {
	out := make([]*embed.Embedding, len(sources))
	for i, s := range sources {
		data := make([]float32, f.dim)
		data[i%f.dim] = 1
		out[i] = &embed.Embedding{
			Data: data,
			SourceFile: embed.SourceFile{
				Filepath: s.Filepath,
				Meta:     s.Meta,
			},
		}
	}
	return out, nil
}

func newTestStore(t *testing.T) *bstore.Store {
	t.Helper()
	store, err := bstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestSyncFullWritesBlocksAndDirectory(t *testing.T) {
	store := newTestStore(t)
	ledger := NewMemoryLedger()
	ledger.Put("a.go", map[string]struct{}{"lang:go": {}})
	ledger.Put("b.go", map[string]struct{}{"lang:go": {}})

	syncer := NewSyncer(store, nil, fakeEmbedder{dim: 4}, ledger, nil)
	if err := syncer.Sync(true); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if store.Directory().Len() != 2 {
		t.Fatalf("expected 2 directory entries, got %d", store.Directory().Len())
	}

	block, found, err := store.HighestBlock()
	if err != nil || !found {
		t.Fatalf("expected a block file to exist: found=%v err=%v", found, err)
	}
	if block != 0 {
		t.Fatalf("expected single block 0 for 2 embeddings, got %d", block)
	}

	embeddings, err := store.ReadBlock(0)
	if err != nil {
		t.Fatalf("read block 0: %v", err)
	}
	if len(embeddings) != 2 {
		t.Fatalf("expected 2 embeddings in block 0, got %d", len(embeddings))
	}
	for _, e := range embeddings {
		if n := embed.Norm(e); n < 1-1e-5 || n > 1+1e-5 {
			t.Fatalf("expected normalized embedding, got norm %v", n)
		}
	}
}

func TestSyncBlockBoundary(t *testing.T) {
	store := newTestStore(t)
	ledger := NewMemoryLedger()
	for i := 0; i < bstore.BlockSize+1; i++ {
		ledger.Put(fmt.Sprintf("file%d.go", i), nil)
	}

	syncer := NewSyncer(store, nil, fakeEmbedder{dim: 8}, ledger, nil)
	if err := syncer.Sync(true); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if store.Directory().Len() != bstore.BlockSize+1 {
		t.Fatalf("expected %d directory entries, got %d", bstore.BlockSize+1, store.Directory().Len())
	}

	b0, err := store.ReadBlock(0)
	if err != nil {
		t.Fatalf("read block 0: %v", err)
	}
	if len(b0) != bstore.BlockSize {
		t.Fatalf("expected block 0 to hold %d embeddings, got %d", bstore.BlockSize, len(b0))
	}
	b1, err := store.ReadBlock(1)
	if err != nil {
		t.Fatalf("read block 1: %v", err)
	}
	if len(b1) != 1 {
		t.Fatalf("expected block 1 to hold 1 embedding, got %d", len(b1))
	}
}

func TestUpdateFileEmbeddingsNoOpForUnknownFile(t *testing.T) {
	store := newTestStore(t)
	c, err := cache.New(store, 4*bstore.BlockSize, obs.NewMetrics())
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	ledger := NewMemoryLedger()
	syncer := NewSyncer(store, c, fakeEmbedder{dim: 4}, ledger, nil)
	idx := hnsw.New(nil, 1)

	if err := syncer.UpdateFileEmbeddings("never-synced.go", idx); err != nil {
		t.Fatalf("expected no-op, got error: %v", err)
	}
}

// A file's chunks can end up in different blocks, since sync packs
// embeddings by sequential position. Updating such a file must rewrite
// every affected block and leave the directory and blocks coherent:
// no dangling directory entries, no unreferenced embeddings.
func TestUpdateFileEmbeddingsSpansBlocks(t *testing.T) {
	store := newTestStore(t)
	c, err := cache.New(store, 4*bstore.BlockSize, nil)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	mkStored := func(fp string, data []float32) *embed.Embedding {
		id, err := store.NextID()
		if err != nil {
			t.Fatalf("next id: %v", err)
		}
		e := &embed.Embedding{
			ID:   id,
			Data: data,
			SourceFile: embed.SourceFile{
				Filepath: fp,
				Meta:     map[string]struct{}{"lang:go": {}},
			},
		}
		embed.Normalize(e)
		return e
	}

	shared0 := mkStored("shared.go", []float32{1, 0, 0, 0})
	other := mkStored("other.go", []float32{0, 1, 0, 0})
	shared1 := mkStored("shared.go", []float32{0, 0, 1, 0})
	solo := mkStored("solo.go", []float32{0, 0, 0, 1})

	if err := store.WriteBlock(0, []*embed.Embedding{shared0, other}); err != nil {
		t.Fatalf("write block 0: %v", err)
	}
	if err := store.WriteBlock(1, []*embed.Embedding{shared1, solo}); err != nil {
		t.Fatalf("write block 1: %v", err)
	}
	for _, e := range []*embed.Embedding{shared0, other} {
		store.Directory().Put(bstore.Entry{ID: e.ID, Filepath: e.SourceFile.Filepath, Block: 0})
	}
	for _, e := range []*embed.Embedding{shared1, solo} {
		store.Directory().Put(bstore.Entry{ID: e.ID, Filepath: e.SourceFile.Filepath, Block: 1})
	}

	idx := hnsw.New(nil, 1)
	for _, e := range []*embed.Embedding{shared0, other, shared1, solo} {
		if err := idx.Insert(c, e); err != nil {
			t.Fatalf("insert %d: %v", e.ID, err)
		}
	}

	syncer := NewSyncer(store, c, fakeEmbedder{dim: 4}, NewMemoryLedger(), nil)
	if err := syncer.UpdateFileEmbeddings("shared.go", idx); err != nil {
		t.Fatalf("update file embeddings: %v", err)
	}

	for _, old := range []uint64{shared0.ID, shared1.ID} {
		if _, ok := store.Directory().Lookup(old); ok {
			t.Fatalf("stale id %d still in directory", old)
		}
	}
	newIDs := store.Directory().IDsForFilepath("shared.go")
	if len(newIDs) != 1 {
		t.Fatalf("expected 1 fresh id for shared.go, got %d", len(newIDs))
	}

	// Directory/block coherence in both directions across all blocks.
	for _, entry := range store.Directory().All() {
		blockEmbeddings, err := store.ReadBlock(entry.Block)
		if err != nil {
			t.Fatalf("read block %d: %v", entry.Block, err)
		}
		found := false
		for _, e := range blockEmbeddings {
			if e.ID == entry.ID {
				found = true
			}
		}
		if !found {
			t.Fatalf("directory entry %+v has no embedding in block %d", entry, entry.Block)
		}
	}
	for _, bn := range []uint64{0, 1} {
		embeddings, err := store.ReadBlock(bn)
		if err != nil {
			t.Fatalf("read block %d: %v", bn, err)
		}
		for _, e := range embeddings {
			entry, ok := store.Directory().Lookup(e.ID)
			if !ok {
				t.Fatalf("block %d embedding %d has no directory entry", bn, e.ID)
			}
			if entry.Block != bn {
				t.Fatalf("directory points id %d at block %d, found in %d", e.ID, entry.Block, bn)
			}
			if e.SourceFile.Filepath == "shared.go" && e.ID != newIDs[0] {
				t.Fatalf("stale shared.go embedding %d survived in block %d", e.ID, bn)
			}
		}
	}
}

func TestUpdateFileEmbeddingsReplacesNodes(t *testing.T) {
	store := newTestStore(t)
	metrics := obs.NewMetrics()
	c, err := cache.New(store, 4*bstore.BlockSize, metrics)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	ledger := NewMemoryLedger()
	ledger.Put("a.go", map[string]struct{}{"lang:go": {}})
	syncer := NewSyncer(store, c, fakeEmbedder{dim: 4}, ledger, metrics)
	if err := syncer.Sync(true); err != nil {
		t.Fatalf("sync: %v", err)
	}

	oldIDs := store.Directory().IDsForFilepath("a.go")
	if len(oldIDs) != 1 {
		t.Fatalf("expected 1 id for a.go, got %d", len(oldIDs))
	}

	idx := hnsw.New(nil, 1)
	old, err := c.Get(oldIDs[0])
	if err != nil {
		t.Fatalf("get old embedding: %v", err)
	}
	if err := idx.Insert(c, old); err != nil {
		t.Fatalf("insert old embedding: %v", err)
	}

	if err := syncer.UpdateFileEmbeddings("a.go", idx); err != nil {
		t.Fatalf("update file embeddings: %v", err)
	}

	newIDs := store.Directory().IDsForFilepath("a.go")
	if len(newIDs) != 1 {
		t.Fatalf("expected 1 id for a.go after update, got %d", len(newIDs))
	}
	if newIDs[0] == oldIDs[0] {
		t.Fatalf("expected a fresh id after update, got the same one")
	}
	if _, ok := store.Directory().Lookup(oldIDs[0]); ok {
		t.Fatalf("old id %d should no longer be in the directory", oldIDs[0])
	}
}
