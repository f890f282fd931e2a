package bstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xDarkicex/embedstore/internal/embed"
)

func mkEmbedding(id uint64, data []float32, fp string) *embed.Embedding {
	return &embed.Embedding{ID: id, Data: data, SourceFile: embed.SourceFile{Filepath: fp}}
}

func TestBlockRoundTripNormalizesOnLoad(t *testing.T) {
	dir := t.TempDir()
	embeddings := []*embed.Embedding{
		mkEmbedding(1, []float32{3, 4}, "a.go"),
		mkEmbedding(2, []float32{1, 0}, "b.go"),
	}
	if err := WriteBlock(dir, 0, embeddings); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	got, err := ReadBlock(dir, 0)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(got))
	}
	n := embed.Norm(got[0])
	if n < 0.999 || n > 1.001 {
		t.Fatalf("expected normalized vector, got norm %v", n)
	}
}

func TestHighestBlockNoneFound(t *testing.T) {
	dir := t.TempDir()
	_, found, err := HighestBlock(dir)
	if err != nil {
		t.Fatalf("HighestBlock: %v", err)
	}
	if found {
		t.Fatalf("expected no blocks found in empty dir")
	}
}

func TestHighestBlockIgnoresNonNumericFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "directory"), []byte("not a block"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := WriteBlock(dir, 3, nil); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	n, found, err := HighestBlock(dir)
	if err != nil {
		t.Fatalf("HighestBlock: %v", err)
	}
	if !found || n != 3 {
		t.Fatalf("expected block 3 to be highest, got %d found=%v", n, found)
	}
}

func TestDirectoryLoadAndSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "directory")

	d := NewDirectory()
	d.Put(Entry{ID: 1, Filepath: "a.go", Block: 0})
	d.Put(Entry{ID: 2, Filepath: "b.go", Block: 0})
	if err := d.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadDirectory(path)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", loaded.Len())
	}
	e, ok := loaded.Lookup(1)
	if !ok || e.Filepath != "a.go" {
		t.Fatalf("unexpected entry for id 1: %+v ok=%v", e, ok)
	}
}

func TestDirectoryMissingFileIsEmptyNotError(t *testing.T) {
	dir := t.TempDir()
	d, err := LoadDirectory(filepath.Join(dir, "does-not-exist"))
	if err != nil {
		t.Fatalf("expected no error for missing directory file, got %v", err)
	}
	if d.Len() != 0 {
		t.Fatalf("expected empty directory")
	}
}

func TestDirectoryWhitespaceFilepathIsJoinedLossily(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "directory")
	// A filepath containing a space serializes as extra fields; the
	// legacy parser reconstructs it by concatenating the middle fields
	// with no separator, losing the original whitespace.
	if err := os.WriteFile(path, []byte("5 my file with spaces.txt 2\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	d, err := LoadDirectory(path)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	e, ok := d.Lookup(5)
	if !ok {
		t.Fatalf("expected entry for id 5")
	}
	if e.Filepath != "myfilewithspaces.txt" {
		t.Fatalf("expected lossy join, got %q", e.Filepath)
	}
	if e.Block != 2 {
		t.Fatalf("expected block 2, got %d", e.Block)
	}
}

func TestDirectoryRemoveUpdatesBothIndexes(t *testing.T) {
	d := NewDirectory()
	d.Put(Entry{ID: 1, Filepath: "a.go", Block: 0})
	d.Remove(1)
	if d.Len() != 0 {
		t.Fatalf("expected directory empty after remove")
	}
	if d.HasFilepath("a.go") {
		t.Fatalf("expected filepath index cleared after remove")
	}
}

func TestIDCounterAllocatesSequentiallyAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "id_counter")

	c, err := loadIDCounter(path)
	if err != nil {
		t.Fatalf("loadIDCounter: %v", err)
	}
	first, err := c.allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	second, err := c.allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("expected sequential ids 1,2 got %d,%d", first, second)
	}

	reloaded, err := loadIDCounter(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	third, err := reloaded.allocate()
	if err != nil {
		t.Fatalf("allocate after reload: %v", err)
	}
	if third != 3 {
		t.Fatalf("expected counter to persist across reload, got %d", third)
	}
}

func TestStoreAppendEmbeddingStartsNewBlockWhenFull(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < BlockSize+1; i++ {
		e := mkEmbedding(0, []float32{1, 0}, "f.go")
		if _, err := store.AppendEmbedding(e); err != nil {
			t.Fatalf("AppendEmbedding %d: %v", i, err)
		}
	}
	block0, err := store.ReadBlock(0)
	if err != nil {
		t.Fatalf("ReadBlock(0): %v", err)
	}
	if len(block0) != BlockSize {
		t.Fatalf("expected block 0 to be full at %d, got %d", BlockSize, len(block0))
	}
	block1, err := store.ReadBlock(1)
	if err != nil {
		t.Fatalf("ReadBlock(1): %v", err)
	}
	if len(block1) != 1 {
		t.Fatalf("expected block 1 to hold the overflow embedding, got %d", len(block1))
	}
	if store.Directory().Len() != BlockSize+1 {
		t.Fatalf("expected directory to track every appended embedding")
	}
}

func TestStoreReopenPreservesDirectoryAndCounter(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	e := mkEmbedding(0, []float32{1, 0}, "f.go")
	if _, err := store.AppendEmbedding(e); err != nil {
		t.Fatalf("AppendEmbedding: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Directory().Len() != 1 {
		t.Fatalf("expected directory to survive reopen")
	}
	next, err := reopened.NextID()
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	if next != 2 {
		t.Fatalf("expected next id 2 after reopen, got %d", next)
	}
}
