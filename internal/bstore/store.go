package bstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xDarkicex/embedstore/internal/embed"
)

const (
	directoryFileName = "directory"
	idCounterFileName = "id_counter"
)

// Store is the on-disk block storage layer for a single workspace
// directory: embedding blocks, the directory side-file, and the id
// counter. It assumes a single writer, per the workspace's concurrency
// contract — Store itself does no locking.
type Store struct {
	dir       string
	directory *Directory
	counter   *idCounter
}

// Open loads (or initializes, if absent) the block store rooted at dir,
// creating the directory itself if it does not exist yet.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bstore: create data dir: %w", err)
	}
	directory, err := LoadDirectory(filepath.Join(dir, directoryFileName))
	if err != nil {
		return nil, err
	}
	counter, err := loadIDCounter(filepath.Join(dir, idCounterFileName))
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, directory: directory, counter: counter}, nil
}

// Dir returns the workspace directory this store is rooted at.
func (s *Store) Dir() string { return s.dir }

// Directory exposes the loaded directory for read access by other
// components (cache priming, reblocking, sync).
func (s *Store) Directory() *Directory { return s.directory }

// NextID allocates and persists the next embedding id.
func (s *Store) NextID() (uint64, error) {
	return s.counter.allocate()
}

// ReadBlock reads and decodes block n.
func (s *Store) ReadBlock(n uint64) ([]*embed.Embedding, error) {
	return ReadBlock(s.dir, n)
}

// WriteBlock writes block n, replacing it if it already exists.
func (s *Store) WriteBlock(n uint64, embeddings []*embed.Embedding) error {
	return WriteBlock(s.dir, n, embeddings)
}

// DeleteBlock removes block n.
func (s *Store) DeleteBlock(n uint64) error {
	return DeleteBlock(s.dir, n)
}

// HighestBlock returns the highest-numbered existing block, if any.
func (s *Store) HighestBlock() (uint64, bool, error) {
	return HighestBlock(s.dir)
}

// SaveDirectory rewrites the directory file in full.
func (s *Store) SaveDirectory() error {
	return s.directory.Save(filepath.Join(s.dir, directoryFileName))
}

// ReplaceDirectory swaps the in-memory directory wholesale, used by Sync
// and Reblock, both of which rebuild the census from scratch rather than
// mutating the existing one entry at a time.
func (s *Store) ReplaceDirectory(d *Directory) {
	s.directory = d
}

// DeleteAllBlocks removes every numerically-named block file in the
// store's directory, leaving the directory side-file and id counter
// untouched. Sync and Reblock both start a fresh on-disk layout this way
// before writing their own replacement blocks.
func (s *Store) DeleteAllBlocks() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("bstore: list blocks: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		n, err := strconv.ParseUint(entry.Name(), 10, 64)
		if err != nil {
			continue
		}
		if err := s.DeleteBlock(n); err != nil {
			return err
		}
	}
	return nil
}

// AppendEmbedding assigns e a fresh id, appends it to the last block (or
// starts a new one once the last block reaches BlockSize), and appends one
// line to the directory file. This mirrors the single-embedding ingestion
// path used outside of a full or incremental sync. It returns the number
// of the block e landed in, so callers holding a cache over this store
// can invalidate the rewritten block.
func (s *Store) AppendEmbedding(e *embed.Embedding) (uint64, error) {
	id, err := s.NextID()
	if err != nil {
		return 0, fmt.Errorf("bstore: append embedding: %w", err)
	}
	e.ID = id

	block, found, err := s.HighestBlock()
	if err != nil {
		return 0, fmt.Errorf("bstore: append embedding: %w", err)
	}

	var existing []*embed.Embedding
	if found {
		existing, err = s.ReadBlock(block)
		if err != nil {
			return 0, fmt.Errorf("bstore: append embedding: %w", err)
		}
	}
	if !found || len(existing) >= BlockSize {
		block = block + boolToUint64(found)
		existing = nil
	}
	existing = append(existing, e)
	if err := s.WriteBlock(block, existing); err != nil {
		return 0, fmt.Errorf("bstore: append embedding: %w", err)
	}

	entry := Entry{ID: e.ID, Filepath: e.SourceFile.Filepath, Block: block}
	s.directory.Put(entry)
	if err := AppendLine(filepath.Join(s.dir, directoryFileName), entry); err != nil {
		return 0, fmt.Errorf("bstore: append embedding: %w", err)
	}
	return block, nil
}

func boolToUint64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
