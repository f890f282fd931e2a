// Package ingest implements the sync pipeline that turns ledger entries
// into stored, embedded blocks, plus the Embedder and Ledger interfaces
// external collaborators implement.
package ingest

import (
	"fmt"
	"sort"

	"github.com/xDarkicex/embedstore/internal/bstore"
	"github.com/xDarkicex/embedstore/internal/cache"
	"github.com/xDarkicex/embedstore/internal/embed"
	"github.com/xDarkicex/embedstore/internal/index/hnsw"
	"github.com/xDarkicex/embedstore/internal/obs"
)

// EmbeddingSource is a single unembedded unit of work handed to an
// Embedder: a file (or byte-range subset of one) plus its ledger
// metadata tags.
type EmbeddingSource struct {
	Filepath string
	Meta     map[string]struct{}
	Subset   *embed.ByteRange
}

// Embedder is the external collaborator that turns EmbeddingSources into
// vectors. It returns one embedding per source, in input order, with
// ID left at zero — the Syncer assigns real ids after the RPC returns.
// Returned vectors are not required to be pre-normalized; the Syncer
// normalizes on ingest, matching the store's "normalize on load" policy.
type Embedder interface {
	EmbedBulk(sources []EmbeddingSource) ([]*embed.Embedding, error)
}

// EmbedderError wraps a failure from the external Embedder so callers
// can classify upstream RPC failures distinctly from local I/O ones.
type EmbedderError struct {
	Err error
}

func (e *EmbedderError) Error() string { return fmt.Sprintf("embedder: %v", e.Err) }

func (e *EmbedderError) Unwrap() error { return e.Err }

// LedgerEntry is a single file the ledger knows about, with its current
// metadata tags.
type LedgerEntry struct {
	Filepath string
	Meta     map[string]struct{}
}

// Ledger is the external collaborator tracking source files and their
// staleness relative to the embedding store.
type Ledger interface {
	ReadAll() ([]LedgerEntry, error)
	Stale() ([]LedgerEntry, error)
}

// Syncer drives the ingest pipeline: read the ledger, call the Embedder,
// assign ids, and rewrite the block store. Every sync pass — full or
// incremental — deletes every existing block file and replaces the
// whole on-disk layout with the embeddings produced by this pass alone;
// it does not merge with embeddings synced by a previous pass.
type Syncer struct {
	store    *bstore.Store
	cache    *cache.Cache
	embedder Embedder
	ledger   Ledger
	metrics  *obs.Metrics
}

// NewSyncer returns a Syncer wired to store, cache, embedder, and ledger.
// cache may be nil if no index traversal shares this store's cache.
func NewSyncer(store *bstore.Store, c *cache.Cache, embedder Embedder, ledger Ledger, metrics *obs.Metrics) *Syncer {
	return &Syncer{store: store, cache: c, embedder: embedder, ledger: ledger, metrics: metrics}
}

// Sync performs a full or incremental sync pass. full selects every
// ledger entry; incremental selects only ledger-reported stale entries.
func (s *Syncer) Sync(full bool) error {
	var entries []LedgerEntry
	var err error
	if full {
		entries, err = s.ledger.ReadAll()
	} else {
		entries, err = s.ledger.Stale()
	}
	if err != nil {
		return fmt.Errorf("ingest: sync: read ledger: %w", err)
	}

	sources := make([]EmbeddingSource, len(entries))
	for i, e := range entries {
		sources[i] = EmbeddingSource{Filepath: e.Filepath, Meta: e.Meta}
	}

	embeddings, err := s.embedder.EmbedBulk(sources)
	if err != nil {
		return fmt.Errorf("ingest: sync: embed bulk: %w", &EmbedderError{Err: err})
	}

	for _, e := range embeddings {
		id, err := s.store.NextID()
		if err != nil {
			return fmt.Errorf("ingest: sync: allocate id: %w", err)
		}
		e.ID = id
		embed.Normalize(e)
	}

	if err := s.store.DeleteAllBlocks(); err != nil {
		return fmt.Errorf("ingest: sync: delete existing blocks: %w", err)
	}

	directory := bstore.NewDirectory()
	for i := 0; i*bstore.BlockSize < len(embeddings); i++ {
		start := i * bstore.BlockSize
		end := start + bstore.BlockSize
		if end > len(embeddings) {
			end = len(embeddings)
		}
		chunk := embeddings[start:end]
		if err := s.store.WriteBlock(uint64(i), chunk); err != nil {
			return fmt.Errorf("ingest: sync: write block %d: %w", i, err)
		}
		if s.metrics != nil {
			s.metrics.BlockWrites.Inc()
		}
		for _, e := range chunk {
			directory.Put(bstore.Entry{ID: e.ID, Filepath: e.SourceFile.Filepath, Block: uint64(i)})
			if s.metrics != nil {
				s.metrics.SyncedEmbeddings.Inc()
			}
		}
	}
	s.store.ReplaceDirectory(directory)

	if err := s.store.SaveDirectory(); err != nil {
		return fmt.Errorf("ingest: sync: write directory: %w", err)
	}

	if s.cache != nil {
		s.cache.Purge()
	}

	return nil
}

// UpdateFileEmbeddings re-embeds a single already-indexed file in place:
// it drops the file's prior nodes from idx, strips its stale embeddings
// from every block holding one, re-embeds the file with its existing
// meta, writes the fresh embeddings into the lowest of those blocks,
// and — when a cache is wired — inserts them into idx so the store
// stays searchable without a full reindex. A filepath absent from the
// directory is a deliberate no-op, not an error — callers may invoke
// this speculatively.
func (s *Syncer) UpdateFileEmbeddings(filepath string, idx *hnsw.Index) error {
	ids := s.store.Directory().IDsForFilepath(filepath)
	if len(ids) == 0 {
		return nil
	}

	// A file's chunks can span blocks — sync packs embeddings by
	// sequential position, not by source file — so every block holding
	// one of the stale ids must be rewritten, not just the first. The
	// fresh embeddings all land in the lowest affected block.
	blockSet := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		entry, ok := s.store.Directory().Lookup(id)
		if !ok {
			continue
		}
		blockSet[entry.Block] = true
	}
	blocks := make([]uint64, 0, len(blockSet))
	for b := range blockSet {
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })
	if len(blocks) == 0 {
		return nil
	}
	home := blocks[0]

	var meta map[string]struct{}
	var homeKept []*embed.Embedding
	for _, bn := range blocks {
		embeddings, err := s.store.ReadBlock(bn)
		if err != nil {
			return fmt.Errorf("ingest: update file embeddings: read block %d: %w", bn, err)
		}
		kept := embeddings[:0]
		for _, e := range embeddings {
			if e.SourceFile.Filepath == filepath {
				meta = e.SourceFile.Meta
				continue
			}
			kept = append(kept, e)
		}
		if bn == home {
			// Written below, once the fresh embeddings are appended.
			homeKept = kept
			continue
		}
		if err := s.store.WriteBlock(bn, kept); err != nil {
			return fmt.Errorf("ingest: update file embeddings: write block %d: %w", bn, err)
		}
		if s.cache != nil {
			s.cache.Invalidate(bn)
		}
	}

	fresh, err := s.embedder.EmbedBulk([]EmbeddingSource{{Filepath: filepath, Meta: meta}})
	if err != nil {
		return fmt.Errorf("ingest: update file embeddings: embed bulk: %w", &EmbedderError{Err: err})
	}

	for _, e := range fresh {
		id, err := s.store.NextID()
		if err != nil {
			return fmt.Errorf("ingest: update file embeddings: allocate id: %w", err)
		}
		e.ID = id
		embed.Normalize(e)
		homeKept = append(homeKept, e)
	}

	if err := s.store.WriteBlock(home, homeKept); err != nil {
		return fmt.Errorf("ingest: update file embeddings: write block %d: %w", home, err)
	}
	if s.cache != nil {
		s.cache.Invalidate(home)
	}

	for _, id := range ids {
		s.store.Directory().Remove(id)
		idx.Remove(id)
	}
	for _, e := range fresh {
		entry := bstore.Entry{ID: e.ID, Filepath: filepath, Block: home}
		s.store.Directory().Put(entry)
	}
	if err := s.store.SaveDirectory(); err != nil {
		return fmt.Errorf("ingest: update file embeddings: write directory: %w", err)
	}

	if s.cache != nil {
		for _, e := range fresh {
			if err := idx.Insert(s.cache, e); err != nil {
				return fmt.Errorf("ingest: update file embeddings: index fresh embedding %d: %w", e.ID, err)
			}
		}
	}

	return nil
}
