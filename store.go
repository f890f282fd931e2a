package embedstore

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/xDarkicex/embedstore/internal/bstore"
	"github.com/xDarkicex/embedstore/internal/cache"
	"github.com/xDarkicex/embedstore/internal/embed"
	"github.com/xDarkicex/embedstore/internal/index/hnsw"
	"github.com/xDarkicex/embedstore/internal/ingest"
	"github.com/xDarkicex/embedstore/internal/obs"
	"github.com/xDarkicex/embedstore/internal/reblock"
)

const indexFileName = "index"

// Store ties together a workspace's on-disk blocks, its read-through
// cache, its HNSW index, and the ingest pipeline that keeps them in
// sync with an external ledger. It assumes a single writer — nothing in
// Store takes a lock of its own beyond what its components already
// hold.
type Store struct {
	ws      *Workspace
	store   *bstore.Store
	cache   *cache.Cache
	index   *hnsw.Index
	syncer  *ingest.Syncer
	metrics *obs.Metrics
}

// Open loads (or initializes, if absent) the Store rooted at
// ws.DataDir, wiring embedder and ledger into its Syncer. Both may be
// nil if the caller never intends to call Sync or UpdateFileEmbeddings
// — Insert, Query, and Remove work against the index and cache alone.
//
// The HNSW index is restored from ws.DataDir/index when that file
// exists; a missing index file triggers a rebuild from the directory
// census, which is then persisted. A present but undecodable index file
// surfaces as KindCorrupt rather than being silently rebuilt — callers
// choose whether to delete it and reopen.
func Open(ws *Workspace, embedder Embedder, ledger Ledger) (*Store, error) {
	bs, err := bstore.Open(ws.DataDir)
	if err != nil {
		return nil, wrapKind("open", err)
	}

	var metrics *obs.Metrics
	if ws.MetricsEnabled {
		metrics = obs.NewMetrics()
	}

	c, err := cache.New(bs, ws.CacheCapacity, metrics)
	if err != nil {
		return nil, wrapKind("open", err)
	}

	s := &Store{ws: ws, store: bs, cache: c, metrics: metrics}
	s.syncer = ingest.NewSyncer(bs, c, embedder, ledger, metrics)

	idx, err := hnsw.LoadFromFile(filepath.Join(ws.DataDir, indexFileName), metrics, ws.IndexSeed)
	switch {
	case err == nil:
		s.index = idx
	case errors.Is(err, fs.ErrNotExist):
		if err := s.reindex(); err != nil {
			return nil, err
		}
	default:
		return nil, wrapKind("open", err)
	}

	return s, nil
}

// reindex rebuilds the HNSW index from the directory census in one
// batch — the layer schedule is fixed up front from the census size,
// not grown node by node as the incremental Insert path does — reading
// each embedding through the cache in arbitrary directory order, then
// persists the result to the index file.
func (s *Store) reindex() error {
	entries := s.store.Directory().All()
	ids := make([]uint64, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	idx, err := hnsw.Build(s.cache, ids, s.metrics, s.ws.IndexSeed)
	if err != nil {
		return wrapKind("reindex", err)
	}
	s.index = idx
	return s.SaveIndex()
}

// SaveIndex persists the current in-memory HNSW index to the index file
// in the workspace's data directory. Insert and Remove mutate the index
// in memory only; callers that want those mutations to survive a
// process exit call this before shutting down. Sync and Open persist
// automatically.
func (s *Store) SaveIndex() error {
	if err := s.index.SaveToFile(filepath.Join(s.ws.DataDir, indexFileName)); err != nil {
		return wrapKind("save_index", err)
	}
	return nil
}

// Metrics returns the Store's Prometheus registry, or nil if
// WithMetrics(false) was used. Callers wire this into their own
// /metrics endpoint.
func (s *Store) Metrics() *obs.Metrics { return s.metrics }

// Insert embeds e into the store directly — the single-embedding
// ingestion path used outside of a full or incremental Sync. e.Data
// must already be of the workspace's EmbedDim; e.ID is overwritten with
// a freshly allocated one.
func (s *Store) Insert(e *Embedding) error {
	if len(e.Data) != s.ws.EmbedDim {
		return newErr(KindInvalidArgument, "insert", fmt.Errorf("embedstore: embedding has dimension %d, want %d", len(e.Data), s.ws.EmbedDim))
	}
	embed.Normalize(e)
	if _, err := s.store.AppendEmbedding(e); err != nil {
		return wrapKind("insert", err)
	}
	// The append rewrote the highest block out from under any cached
	// copy; patch the cached entry set so index traversal resolves the
	// new id without re-reading the block.
	s.cache.Put(e.ID, e)
	if err := s.index.Insert(s.cache, e); err != nil {
		return wrapKind("insert", err)
	}
	return nil
}

// Query performs a filtered approximate nearest-neighbor search for
// query against the current index, returning up to k matches. ef must
// be >= k.
func (s *Store) Query(query *Embedding, filters []Filter, k, ef int) ([]Match, error) {
	results, err := s.index.Query(s.cache, query, filters, k, ef)
	if err != nil {
		if err == hnsw.ErrEfLessThanK {
			return nil, newErr(KindInvalidArgument, "query", err)
		}
		return nil, wrapKind("query", err)
	}
	out := make([]Match, len(results))
	for i, r := range results {
		out[i] = Match{Embedding: r.Embedding, Distance: r.Distance}
	}
	return out, nil
}

// Remove deletes id from the index graph. It does not remove id's
// underlying embedding from the block store — that happens only via
// Reblock or a subsequent Sync.
func (s *Store) Remove(id uint64) {
	s.index.Remove(id)
}

// Sync rebuilds the block store from the ledger: full re-enumerates
// every ledger entry, incremental enumerates only entries the ledger
// reports stale. Every existing block is deleted and rewritten — a sync
// pass replaces the whole on-disk layout with what it embeds, it does
// not merge. Once the new blocks and directory are in place the HNSW
// index is rebuilt over them and persisted, so the Store stays
// internally consistent without a reopen.
func (s *Store) Sync(full bool) error {
	if err := s.syncer.Sync(full); err != nil {
		return wrapKind("sync", err)
	}
	return s.reindex()
}

// UpdateFileEmbeddings re-embeds every chunk derived from filepath,
// replacing their block contents, directory entries, and graph nodes in
// place, then persists the updated index. A filepath the directory has
// never seen is a deliberate no-op — callers may invoke this
// speculatively.
func (s *Store) UpdateFileEmbeddings(filepath string) error {
	if err := s.syncer.UpdateFileEmbeddings(filepath, s.index); err != nil {
		return wrapKind("update_file_embeddings", err)
	}
	return s.SaveIndex()
}

// Reblock repacks the block store to follow the index's bottom-layer
// depth-first visit order, refreshing each embedding's metadata from
// ledger along the way. Not transactional across a crash — recovery is
// via a fresh Sync or Reblock rerun.
func (s *Store) Reblock(ledger Ledger) error {
	if err := reblock.Run(s.store, s.cache, s.index, ledger, s.metrics); err != nil {
		return wrapKind("reblock", err)
	}
	return nil
}

// Size returns the number of ids currently present in the HNSW index.
func (s *Store) Size() int {
	return s.index.Size()
}
