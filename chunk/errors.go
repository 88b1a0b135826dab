package chunk

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMetadata indicates an unparseable or structurally invalid metadata record.
	ErrMalformedMetadata = errors.New("malformed metadata")
	// ErrInconsistentChunk indicates the three records of one session disagree.
	ErrInconsistentChunk = errors.New("inconsistent chunk")
	// ErrIndexOutOfRange is returned for an access outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrClosed is returned when reading from a closed chunk.
	ErrClosed = errors.New("experience data is closed")
)

// MetadataError describes why a metadata record was rejected.
// It matches ErrMalformedMetadata with errors.Is.
type MetadataError struct {
	Path   string
	Field  string
	Reason string
	cause  error
}

func (e *MetadataError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrMalformedMetadata, e.Path)
	if e.Field != "" {
		msg += ": " + e.Field
	}
	msg += ": " + e.Reason
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *MetadataError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrMalformedMetadata}
	}
	return []error{ErrMalformedMetadata, e.cause}
}

// IndexError reports an out-of-range access.
// It matches ErrIndexOutOfRange with errors.Is.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: index %d, length %d", ErrIndexOutOfRange, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrIndexOutOfRange }

// CheckIndex returns an *IndexError unless 0 <= i < n.
func CheckIndex(i, n int) error {
	if i < 0 || i >= n {
		return &IndexError{Index: i, Len: n}
	}
	return nil
}

func inconsistent(label, format string, args ...any) error {
	return fmt.Errorf("%w: label %q: %s", ErrInconsistentChunk, label, fmt.Sprintf(format, args...))
}
