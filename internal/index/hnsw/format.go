package hnsw

// Binary format constants for the on-disk index file. The magic string
// and version are checked before the rest of the file is trusted.
const (
	// IndexFileMagic identifies an embedstore HNSW index file.
	IndexFileMagic = "EMBHNSW1"

	// FormatVersion is the current on-disk format version. There is no
	// migration path between versions — a mismatch is treated as
	// corruption, not as a forward/backward compatibility case.
	FormatVersion = uint32(1)

	// minValidFileSize rejects trivially truncated or empty files before
	// attempting a full decode.
	minValidFileSize = len(IndexFileMagic) + 4
)
