package mmap

import "errors"

// AccessPattern provides hints to the kernel about how the data will be accessed.
type AccessPattern int

const (
	// AccessDefault is the default access pattern (no specific advice).
	AccessDefault AccessPattern = iota
	// AccessSequential expects rows to be read front to back.
	AccessSequential
	// AccessRandom expects rows to be sampled in random order.
	AccessRandom
	// AccessWillNeed expects the whole file to be read soon.
	AccessWillNeed
	// AccessDontNeed expects the data to not be accessed in the near future.
	AccessDontNeed
)

// String returns the name used in flags and logs.
func (p AccessPattern) String() string {
	switch p {
	case AccessSequential:
		return "sequential"
	case AccessRandom:
		return "random"
	case AccessWillNeed:
		return "willneed"
	case AccessDontNeed:
		return "dontneed"
	default:
		return "default"
	}
}

// ParseAccessPattern is the inverse of AccessPattern.String.
func ParseAccessPattern(s string) (AccessPattern, error) {
	switch s {
	case "", "default":
		return AccessDefault, nil
	case "sequential":
		return AccessSequential, nil
	case "random":
		return AccessRandom, nil
	case "willneed":
		return AccessWillNeed, nil
	case "dontneed":
		return AccessDontNeed, nil
	}
	return AccessDefault, errors.New("mmap: unknown access pattern " + s)
}

var (
	// ErrClosed is returned when attempting to access a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned when the file size is invalid (e.g. negative or too large).
	ErrInvalidSize = errors.New("mmap: invalid file size")
	// ErrOutOfBounds is returned when a view would extend past the mapping.
	ErrOutOfBounds = errors.New("mmap: out of bounds")
	// ErrInvalidOffset is returned when the offset is invalid (e.g. negative).
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
