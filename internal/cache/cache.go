// Package cache implements the block-granular, read-through LRU cache
// fronting the block store. Capacity is expressed in embeddings; eviction
// happens at block granularity, so a single eviction can free up to
// bstore.BlockSize embeddings at once. Recency is tracked per block using
// hashicorp/golang-lru.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xDarkicex/embedstore/internal/bstore"
	"github.com/xDarkicex/embedstore/internal/embed"
	"github.com/xDarkicex/embedstore/internal/obs"
)

// ErrNotFound is returned by Get when the requested id is not present in
// the directory.
var ErrNotFound = fmt.Errorf("cache: embedding not found")

// Cache is a read-through LRU over embedding blocks. It is safe for
// concurrent reads only insofar as the underlying *bstore.Store and
// *lru.Cache are; the workspace's single-writer contract is what actually
// guarantees safety.
type Cache struct {
	store   *bstore.Store
	blocks  *lru.Cache[uint64, []*embed.Embedding]
	metrics *obs.Metrics
}

// New returns a Cache fronting store, sized to hold approximately
// capacityEmbeddings embeddings (rounded up to whole blocks, minimum one
// block so a cache is never configured into uselessness).
func New(store *bstore.Store, capacityEmbeddings int, metrics *obs.Metrics) (*Cache, error) {
	blockCapacity := capacityEmbeddings / bstore.BlockSize
	if capacityEmbeddings%bstore.BlockSize != 0 {
		blockCapacity++
	}
	if blockCapacity < 1 {
		blockCapacity = 1
	}
	blocks, err := lru.New[uint64, []*embed.Embedding](blockCapacity)
	if err != nil {
		return nil, fmt.Errorf("cache: create block LRU: %w", err)
	}
	return &Cache{store: store, blocks: blocks, metrics: metrics}, nil
}

// Get returns a clone of the embedding with the given id, loading (and
// caching) its block on a miss.
func (c *Cache) Get(id uint64) (*embed.Embedding, error) {
	entry, ok := c.store.Directory().Lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	embeddings, err := c.block(entry.Block)
	if err != nil {
		return nil, err
	}
	for _, e := range embeddings {
		if e.ID == id {
			return embed.Clone(e), nil
		}
	}
	return nil, ErrNotFound
}

// block returns the cached embeddings for blockNumber, reading through to
// the store on a miss.
func (c *Cache) block(blockNumber uint64) ([]*embed.Embedding, error) {
	if embeddings, ok := c.blocks.Get(blockNumber); ok {
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		return embeddings, nil
	}
	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}
	embeddings, err := c.store.ReadBlock(blockNumber)
	if err != nil {
		return nil, fmt.Errorf("cache: load block %d: %w", blockNumber, err)
	}
	if c.metrics != nil {
		c.metrics.BlockReads.Inc()
	}
	c.blocks.Add(blockNumber, embeddings)
	return embeddings, nil
}

// Put records e in its block's cached entry set without any disk I/O,
// keeping the cache coherent with a block the caller just appended to.
// If e's block is not currently cached nothing happens — the next Get
// loads the whole block from the store anyway. An existing cached entry
// with the same id is replaced.
func (c *Cache) Put(id uint64, e *embed.Embedding) {
	entry, ok := c.store.Directory().Lookup(id)
	if !ok {
		return
	}
	embeddings, ok := c.blocks.Peek(entry.Block)
	if !ok {
		return
	}
	clone := embed.Clone(e)
	for i, existing := range embeddings {
		if existing.ID == id {
			embeddings[i] = clone
			return
		}
	}
	c.blocks.Add(entry.Block, append(embeddings, clone))
}

// Invalidate drops blockNumber from the cache, forcing the next Get to
// read it fresh from the store. Callers invoke this after writing to a
// block out from under the cache — reblocking, appends, and removals.
func (c *Cache) Invalidate(blockNumber uint64) {
	c.blocks.Remove(blockNumber)
}

// Purge evicts every cached block.
func (c *Cache) Purge() {
	c.blocks.Purge()
}

// Len returns the number of blocks currently cached.
func (c *Cache) Len() int {
	return c.blocks.Len()
}
