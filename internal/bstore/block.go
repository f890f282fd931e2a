// Package bstore implements the append-only block storage layer: fixed
// capacity embedding blocks, the plain-text directory side-file mapping
// ids and filepaths to blocks, and the persisted id counter.
package bstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xDarkicex/embedstore/internal/codec"
	"github.com/xDarkicex/embedstore/internal/embed"
)

// BlockSize is the maximum number of embeddings held in a single block
// file before a new block is started.
const BlockSize = 1024

// blockPath returns the on-disk path for block number n inside dir.
func blockPath(dir string, n uint64) string {
	return filepath.Join(dir, strconv.FormatUint(n, 10))
}

// EncodeBlock serializes embeddings as a u64 count followed by each
// embedding in sequence, in the order given.
func EncodeBlock(embeddings []*embed.Embedding) []byte {
	enc := codec.NewEncoder()
	enc.PutCount(len(embeddings))
	for _, e := range embeddings {
		embed.EncodeEmbedding(enc, e)
	}
	return enc.Bytes()
}

// DecodeBlock deserializes a block previously written by EncodeBlock. Every
// decoded embedding is re-normalized on load rather than trusting what
// was persisted.
func DecodeBlock(data []byte) ([]*embed.Embedding, error) {
	dec := codec.NewDecoder(data)
	n, err := dec.Count()
	if err != nil {
		return nil, fmt.Errorf("bstore: decode block: %w", err)
	}
	out := make([]*embed.Embedding, 0, n)
	for i := 0; i < n; i++ {
		e, err := embed.DecodeEmbedding(dec)
		if err != nil {
			return nil, fmt.Errorf("bstore: decode block entry %d: %w", i, err)
		}
		embed.Normalize(e)
		out = append(out, e)
	}
	return out, nil
}

// ReadBlock reads and decodes block number n from dir.
func ReadBlock(dir string, n uint64) ([]*embed.Embedding, error) {
	data, err := os.ReadFile(blockPath(dir, n))
	if err != nil {
		return nil, fmt.Errorf("bstore: read block %d: %w", n, err)
	}
	return DecodeBlock(data)
}

// WriteBlock atomically writes embeddings as block number n inside dir,
// via a temp-file-then-rename to avoid partial writes being observed.
func WriteBlock(dir string, n uint64, embeddings []*embed.Embedding) error {
	data := EncodeBlock(embeddings)
	target := blockPath(dir, n)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("bstore: write block %d: %w", n, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("bstore: rename block %d into place: %w", n, err)
	}
	return nil
}

// DeleteBlock removes block number n from dir. A missing block is not an
// error: callers may call this defensively during reblocking.
func DeleteBlock(dir string, n uint64) error {
	if err := os.Remove(blockPath(dir, n)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("bstore: delete block %d: %w", n, err)
	}
	return nil
}

// HighestBlock scans dir for the highest-numbered existing block file,
// returning found=false if none exist yet.
func HighestBlock(dir string) (n uint64, found bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, false, fmt.Errorf("bstore: list blocks: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		v, err := strconv.ParseUint(entry.Name(), 10, 64)
		if err != nil {
			continue
		}
		if !found || v > n {
			n = v
			found = true
		}
	}
	return n, found, nil
}
