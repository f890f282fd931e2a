package embedstore

import (
	"errors"
	"fmt"
	"os"

	"github.com/xDarkicex/embedstore/internal/cache"
	"github.com/xDarkicex/embedstore/internal/codec"
	"github.com/xDarkicex/embedstore/internal/ingest"
)

// Kind classifies an Error by what went wrong. Callers compare against
// these with errors.Is (e.g. errors.Is(err, embedstore.NotFound)) rather
// than switching on Kind directly.
type Kind int

const (
	// KindUnknown is the zero value; never intentionally returned.
	KindUnknown Kind = iota
	// KindNotFound means a block file, index file, or directory entry is
	// absent. Recoverable; treated as "empty" by several call sites.
	KindNotFound
	// KindCorrupt means codec or directory parsing failed. Fatal for the
	// affected operation.
	KindCorrupt
	// KindMissing means an id exists in some caller's view but not in the
	// directory or cache. A programmer error.
	KindMissing
	// KindInvalidArgument means a caller-supplied argument violates an
	// operation's precondition (ef < k, a malformed filter string, a
	// mismatched vector dimension).
	KindInvalidArgument
	// KindIO means an underlying filesystem operation failed.
	KindIO
	// KindEmbedder means the upstream embedding RPC failed during a sync.
	KindEmbedder
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindCorrupt:
		return "corrupt"
	case KindMissing:
		return "missing"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindIO:
		return "io"
	case KindEmbedder:
		return "embedder"
	default:
		return "unknown"
	}
}

// sentinel kind markers, compared against via errors.Is. A *Error with
// matching Kind reports true for errors.Is(err, <sentinel>) through Is().
var (
	NotFound        = &Error{Kind: KindNotFound}
	Corrupt         = &Error{Kind: KindCorrupt}
	Missing         = &Error{Kind: KindMissing}
	InvalidArgument = &Error{Kind: KindInvalidArgument}
	IO              = &Error{Kind: KindIO}
	EmbedderErr     = &Error{Kind: KindEmbedder}
)

// Error is the structured error type returned by every embedstore
// operation: the Kind of failure, the operation it surfaced from, and
// the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("embedstore: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("embedstore: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so sentinel
// comparisons like errors.Is(err, embedstore.NotFound) work without
// requiring an exact wrapped-error match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsKind reports whether err is (or wraps) an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// newErr wraps cause as an *Error of the given kind, attributed to op.
func newErr(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// wrapKind maps a known sentinel error from an internal package to the
// Kind embedstore's public API promises. Internal packages propagate
// plain fmt.Errorf-wrapped errors rather than typed ones, so this is
// the single place that inspects an error chain and assigns it a Kind.
func wrapKind(op string, err error) error {
	if err == nil {
		return nil
	}
	var embedErr *Error
	if errors.As(err, &embedErr) {
		return err
	}

	var corrupt *codec.ErrCorrupt
	if errors.As(err, &corrupt) {
		return newErr(KindCorrupt, op, err)
	}
	var embedderErr *ingest.EmbedderError
	if errors.As(err, &embedderErr) {
		return newErr(KindEmbedder, op, err)
	}
	if errors.Is(err, cache.ErrNotFound) {
		return newErr(KindMissing, op, err)
	}
	if errors.Is(err, os.ErrNotExist) {
		return newErr(KindNotFound, op, err)
	}
	return newErr(KindIO, op, err)
}
