package embedstore

import (
	"github.com/xDarkicex/embedstore/internal/embed"
	"github.com/xDarkicex/embedstore/internal/ingest"
)

// Embedding is a single stored vector plus its identity and provenance.
// Alias of internal/embed.Embedding, which every layer of the store
// (BlockStore, Cache, HNSW index) already operates on directly.
type Embedding = embed.Embedding

// SourceFile is the provenance attached to every Embedding.
type SourceFile = embed.SourceFile

// ByteRange is an optional [Start, End) subset of a source file that a
// single Embedding covers.
type ByteRange = embed.ByteRange

// Filter is a single metadata predicate evaluated against a candidate
// embedding during Query. A query carries zero or more Filters, all of
// which must match for a candidate to be accepted.
type Filter = embed.Filter

// FilterComparator selects how a Filter compares its Value against a
// metadata tag.
type FilterComparator = embed.FilterComparator

// Equal and NotEqual are the two FilterComparator values a Filter may
// use.
const (
	Equal    = embed.Equal
	NotEqual = embed.NotEqual
)

// ParseFilter parses the wire form "eq <value>" or "ne <value>" into a
// Filter.
func ParseFilter(s string) (Filter, error) {
	f, err := embed.ParseFilter(s)
	if err != nil {
		return Filter{}, newErr(KindInvalidArgument, "parse_filter", err)
	}
	return f, nil
}

// Match is a single query result: the matched Embedding and its cosine
// distance from the query vector.
type Match struct {
	Embedding *Embedding
	Distance  float32
}

// EmbeddingSource describes one unit of work an Embedder turns into a
// vector: a file (or byte-range subset of one) plus its ledger metadata
// tags.
type EmbeddingSource = ingest.EmbeddingSource

// Embedder is the external collaborator that turns EmbeddingSources into
// vectors in bulk, e.g. by calling a remote embedding service. Errors
// returned from EmbedBulk surface from Sync as KindEmbedder.
type Embedder = ingest.Embedder

// LedgerEntry is a single ledger-tracked file and its current metadata
// tags.
type LedgerEntry = ingest.LedgerEntry

// Ledger is the external collaborator tracking which files exist and
// which have changed since the last sync.
type Ledger = ingest.Ledger

// MemoryLedger is an in-process Ledger implementation, useful for tests
// and small single-process deployments that track their own file set
// rather than delegating to an external index.
type MemoryLedger = ingest.MemoryLedger

// NewMemoryLedger returns an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return ingest.NewMemoryLedger()
}
