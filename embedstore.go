// Package embedstore implements an embedding store with a single-entry
// cosine-distance HNSW index over it: a BlockStore of fixed-size,
// append-only embedding blocks; a read-through LRU cache over those
// blocks; an HNSW graph index supporting filtered approximate nearest
// neighbor queries; a Syncer that turns ledger entries into stored,
// embedded blocks via a pluggable Embedder; and a Reblocker that repacks
// blocks for graph-locality after the working set has drifted.
//
// The store assumes a single writer and performs no internal locking
// beyond what each component documents — concurrent access is the
// caller's responsibility, same as the file layout it manages. Every
// ambient input (data directory, id counter, dimension, random seed) is
// captured once in a Workspace value at startup rather than held in
// package state (see Option).
package embedstore

import (
	"fmt"

	"github.com/xDarkicex/embedstore/internal/bstore"
	"github.com/xDarkicex/embedstore/internal/embed"
)

// Workspace holds every ambient setting a Store needs: where its on-disk
// blocks live, the embedding dimension it enforces, and the random seed
// its HNSW index samples layer assignments from. Workspace is an
// explicit, passed-around value — never a package-level global.
type Workspace struct {
	// DataDir is the directory holding block files, the directory
	// side-file, and the id counter file.
	DataDir string
	// EmbedDim is the fixed vector dimension every embedding in this
	// workspace must have. Defaults to embed.DefaultDim (1536).
	EmbedDim int
	// CacheCapacity is the cache's capacity, measured in embeddings.
	// Defaults to 10*bstore.BlockSize.
	CacheCapacity int
	// IndexSeed seeds the HNSW index's random layer-assignment sampling.
	// Fix this in tests for a reproducible graph shape.
	IndexSeed int64
	// MetricsEnabled turns on Prometheus metrics collection across the
	// cache, index, syncer, and reblocker. Defaults to true.
	MetricsEnabled bool
}

// Config is the mutable value Options are applied against while building
// a Workspace. It exists separately from Workspace so validation in
// NewWorkspace runs once, after every Option has had a chance to adjust
// it.
type Config struct {
	DataDir        string
	EmbedDim       int
	CacheCapacity  int
	IndexSeed      int64
	MetricsEnabled bool
}

// Option configures a Workspace during construction. Each Option
// validates its own input and returns an error describing what was
// wrong, rather than panicking or silently clamping.
type Option func(*Config) error

// WithDataDir sets the on-disk directory a Store reads and writes block
// files, the directory side-file, and the id counter from. Required.
func WithDataDir(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return fmt.Errorf("embedstore: data dir cannot be empty")
		}
		c.DataDir = dir
		return nil
	}
}

// WithEmbedDim overrides the default embedding dimension (1536). Tests
// and alternate embedding services use this to configure a smaller,
// cheaper-to-construct dimension.
func WithEmbedDim(dim int) Option {
	return func(c *Config) error {
		if dim <= 0 {
			return fmt.Errorf("embedstore: embed dim must be positive")
		}
		c.EmbedDim = dim
		return nil
	}
}

// WithCacheCapacity sets the cache's capacity in embeddings (not
// blocks — the cache itself rounds up to whole blocks).
func WithCacheCapacity(capacity int) Option {
	return func(c *Config) error {
		if capacity <= 0 {
			return fmt.Errorf("embedstore: cache capacity must be positive")
		}
		c.CacheCapacity = capacity
		return nil
	}
}

// WithIndexSeed fixes the HNSW index's layer-sampling random source,
// producing a reproducible graph shape for a given insertion order.
func WithIndexSeed(seed int64) Option {
	return func(c *Config) error {
		c.IndexSeed = seed
		return nil
	}
}

// WithMetrics enables or disables Prometheus metrics collection.
func WithMetrics(enabled bool) Option {
	return func(c *Config) error {
		c.MetricsEnabled = enabled
		return nil
	}
}

// NewWorkspace builds a Workspace by applying opts over a set of
// defaults, then validating the result. WithDataDir is required; every
// other setting has a usable default.
func NewWorkspace(opts ...Option) (*Workspace, error) {
	cfg := &Config{
		EmbedDim:       embed.DefaultDim,
		CacheCapacity:  10 * bstore.BlockSize,
		IndexSeed:      1,
		MetricsEnabled: true,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, newErr(KindInvalidArgument, "new_workspace", err)
		}
	}
	if cfg.DataDir == "" {
		return nil, newErr(KindInvalidArgument, "new_workspace", fmt.Errorf("embedstore: WithDataDir is required"))
	}

	return &Workspace{
		DataDir:        cfg.DataDir,
		EmbedDim:       cfg.EmbedDim,
		CacheCapacity:  cfg.CacheCapacity,
		IndexSeed:      cfg.IndexSeed,
		MetricsEnabled: cfg.MetricsEnabled,
	}, nil
}
