package experience

import (
	"errors"
	"fmt"

	"github.com/hupe1980/experience/chunk"
)

// The chunk-level sentinels are re-exported so callers need one import.
var (
	// ErrMalformedMetadata indicates an unparseable or structurally invalid metadata record.
	ErrMalformedMetadata = chunk.ErrMalformedMetadata
	// ErrInconsistentChunk indicates the three records of one label disagree
	// on directory or example count.
	ErrInconsistentChunk = chunk.ErrInconsistentChunk
	// ErrIndexOutOfRange is returned for an access outside [0, Len()).
	ErrIndexOutOfRange = chunk.ErrIndexOutOfRange
	// ErrClosed is returned when reading from a closed chunk or chunk set.
	ErrClosed = chunk.ErrClosed
)

var (
	// ErrMissingChunkMember is returned when a states record has no matching
	// rewards or visit-counts record.
	ErrMissingChunkMember = errors.New("missing chunk member")
	// ErrSubsetTooLarge is returned when a subset would need more examples than available.
	ErrSubsetTooLarge = errors.New("subset too large")
	// ErrInvalidSubsetSize is returned for negative, NaN or fractional (> 1) subset sizes.
	ErrInvalidSubsetSize = errors.New("invalid subset size")
	// ErrShapeMismatch is returned when states do not match the configured encoding.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// IndexError reports an out-of-range access; it matches ErrIndexOutOfRange.
type IndexError = chunk.IndexError

// MetadataError describes a rejected metadata record; it matches ErrMalformedMetadata.
type MetadataError = chunk.MetadataError

// MissingMemberError names the absent member of a session.
type MissingMemberError struct {
	Label  string
	Member string
	Path   string
}

func (e *MissingMemberError) Error() string {
	return fmt.Sprintf("%s: label %q has no %s record (%s)", ErrMissingChunkMember, e.Label, e.Member, e.Path)
}

func (e *MissingMemberError) Unwrap() error { return ErrMissingChunkMember }

// SubsetSizeError reports a subset request exceeding the available examples.
type SubsetSizeError struct {
	Requested int
	Available int
}

func (e *SubsetSizeError) Error() string {
	return fmt.Sprintf("%s: requested %d of %d examples", ErrSubsetTooLarge, e.Requested, e.Available)
}

func (e *SubsetSizeError) Unwrap() error { return ErrSubsetTooLarge }
