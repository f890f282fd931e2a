package hnsw

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xDarkicex/embedstore/internal/codec"
	"github.com/xDarkicex/embedstore/internal/obs"
)

// Encode serializes the index: magic string, version, size, entry point,
// the threshold schedule, and the per-layer id -> neighbor-list graphs.
func (idx *Index) Encode() []byte {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	enc := codec.NewEncoder()
	enc.PutBytes([]byte(IndexFileMagic))
	enc.PutU32(FormatVersion)
	enc.PutU32(idx.size)

	if idx.hasEntry {
		enc.PutU8(1)
		enc.PutU64(idx.entryID)
	} else {
		enc.PutU8(0)
	}

	enc.PutCount(len(idx.thresholds))
	for _, t := range idx.thresholds {
		enc.PutF32(t)
	}

	enc.PutCount(len(idx.layers))
	for _, layer := range idx.layers {
		enc.PutCount(len(layer))
		for id, neighbors := range layer {
			enc.PutU64(id)
			enc.PutCount(len(neighbors))
			for _, nb := range neighbors {
				enc.PutU64(nb.ID)
				enc.PutF32(nb.Distance)
			}
		}
	}

	return enc.Bytes()
}

// Decode deserializes an index previously written by Encode. A payload
// smaller than the bare magic+version header, or one carrying a
// mismatched magic or version, is rejected as corrupt.
func Decode(data []byte, metrics *obs.Metrics, seed int64) (*Index, error) {
	if len(data) < minValidFileSize {
		return nil, fmt.Errorf("hnsw: decode: %w", &codec.ErrCorrupt{Reason: "file too small to contain a valid header"})
	}

	dec := codec.NewDecoder(data)
	magic, err := dec.Bytes()
	if err != nil {
		return nil, fmt.Errorf("hnsw: decode magic: %w", err)
	}
	if string(magic) != IndexFileMagic {
		return nil, fmt.Errorf("hnsw: decode: %w", &codec.ErrCorrupt{Reason: "magic mismatch"})
	}
	version, err := dec.U32()
	if err != nil {
		return nil, fmt.Errorf("hnsw: decode version: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("hnsw: decode: %w", &codec.ErrCorrupt{Reason: fmt.Sprintf("unsupported version %d", version)})
	}

	idx := New(nil, seed)
	idx.metrics = metrics

	size, err := dec.U32()
	if err != nil {
		return nil, fmt.Errorf("hnsw: decode size: %w", err)
	}
	idx.size = size

	hasEntry, err := dec.U8()
	if err != nil {
		return nil, fmt.Errorf("hnsw: decode entry flag: %w", err)
	}
	if hasEntry != 0 {
		entryID, err := dec.U64()
		if err != nil {
			return nil, fmt.Errorf("hnsw: decode entry id: %w", err)
		}
		idx.entryID = entryID
		idx.hasEntry = true
	}

	thresholdCount, err := dec.Count()
	if err != nil {
		return nil, fmt.Errorf("hnsw: decode threshold count: %w", err)
	}
	idx.thresholds = make([]float32, thresholdCount)
	for i := range idx.thresholds {
		v, err := dec.F32(true)
		if err != nil {
			return nil, fmt.Errorf("hnsw: decode threshold %d: %w", i, err)
		}
		idx.thresholds[i] = v
	}

	layerCount, err := dec.Count()
	if err != nil {
		return nil, fmt.Errorf("hnsw: decode layer count: %w", err)
	}
	idx.layers = make([]Layer, layerCount)
	for i := range idx.layers {
		nodeCount, err := dec.Count()
		if err != nil {
			return nil, fmt.Errorf("hnsw: decode layer %d node count: %w", i, err)
		}
		layer := make(Layer, nodeCount)
		for n := 0; n < nodeCount; n++ {
			id, err := dec.U64()
			if err != nil {
				return nil, fmt.Errorf("hnsw: decode layer %d node %d id: %w", i, n, err)
			}
			neighborCount, err := dec.Count()
			if err != nil {
				return nil, fmt.Errorf("hnsw: decode layer %d node %d neighbor count: %w", i, n, err)
			}
			neighbors := make([]Neighbor, neighborCount)
			for e := range neighbors {
				nid, err := dec.U64()
				if err != nil {
					return nil, fmt.Errorf("hnsw: decode layer %d neighbor %d id: %w", i, e, err)
				}
				dist, err := dec.F32(true)
				if err != nil {
					return nil, fmt.Errorf("hnsw: decode layer %d neighbor %d distance: %w", i, e, err)
				}
				neighbors[e] = Neighbor{ID: nid, Distance: dist}
			}
			layer[id] = neighbors
		}
		idx.layers[i] = layer
	}

	return idx, nil
}

// SaveToFile atomically writes the index to path via a temp-file-then-
// rename, matching the block store's atomic write pattern.
func (idx *Index) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("hnsw: create index directory: %w", err)
	}
	data := idx.Encode()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("hnsw: write index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("hnsw: rename index file into place: %w", err)
	}
	return nil
}

// LoadFromFile reads and decodes the index at path.
func LoadFromFile(path string, metrics *obs.Metrics, seed int64) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hnsw: read index file: %w", err)
	}
	return Decode(data, metrics, seed)
}
