package embed

import "github.com/xDarkicex/embedstore/internal/codec"

// EncodeEmbedding appends e to enc in declared field order: id, data
// (count-prefixed f32 sequence), then source_file (filepath, meta set,
// optional subset).
func EncodeEmbedding(enc *codec.Encoder, e *Embedding) {
	enc.PutU64(e.ID)
	enc.PutCount(len(e.Data))
	for _, v := range e.Data {
		enc.PutF32(v)
	}
	encodeSourceFile(enc, e.SourceFile)
}

func encodeSourceFile(enc *codec.Encoder, s SourceFile) {
	enc.PutString(s.Filepath)
	enc.PutCount(len(s.Meta))
	for tag := range s.Meta {
		enc.PutString(tag)
	}
	if s.Subset == nil {
		enc.PutU8(0)
	} else {
		enc.PutU8(1)
		enc.PutU64(s.Subset.Start)
		enc.PutU64(s.Subset.End)
	}
}

// DecodeEmbedding reads an Embedding previously written by EncodeEmbedding.
// It returns a codec corruption error if the payload is truncated or
// carries a non-finite vector component.
func DecodeEmbedding(dec *codec.Decoder) (*Embedding, error) {
	id, err := dec.U64()
	if err != nil {
		return nil, err
	}
	n, err := dec.Count()
	if err != nil {
		return nil, err
	}
	data := make([]float32, n)
	for i := range data {
		v, err := dec.F32(true)
		if err != nil {
			return nil, err
		}
		data[i] = v
	}
	sf, err := decodeSourceFile(dec)
	if err != nil {
		return nil, err
	}
	return &Embedding{ID: id, Data: data, SourceFile: sf}, nil
}

func decodeSourceFile(dec *codec.Decoder) (SourceFile, error) {
	filepath, err := dec.String()
	if err != nil {
		return SourceFile{}, err
	}
	n, err := dec.Count()
	if err != nil {
		return SourceFile{}, err
	}
	var meta map[string]struct{}
	if n > 0 {
		meta = make(map[string]struct{}, n)
	}
	for i := 0; i < n; i++ {
		tag, err := dec.String()
		if err != nil {
			return SourceFile{}, err
		}
		meta[tag] = struct{}{}
	}
	hasSubset, err := dec.U8()
	if err != nil {
		return SourceFile{}, err
	}
	var subset *ByteRange
	if hasSubset != 0 {
		start, err := dec.U64()
		if err != nil {
			return SourceFile{}, err
		}
		end, err := dec.U64()
		if err != nil {
			return SourceFile{}, err
		}
		subset = &ByteRange{Start: start, End: end}
	}
	return SourceFile{Filepath: filepath, Subset: subset, Meta: meta}, nil
}
