package experience

import "github.com/hupe1980/experience/chunk"

// Row is one training example: a state tensor, the scalar reward from the
// side to move's perspective and the search visit counts.
type Row = chunk.Row

// Tensor is one example's array.
type Tensor = chunk.Tensor

// Dataset is the read contract shared by chunks, chunk sets and subsets.
//
// Implementations are safe for concurrent use and Get is a pure read:
// the same index always yields the same row.
type Dataset interface {
	// Len returns the number of examples.
	Len() int
	// Get returns example i, or an error matching ErrIndexOutOfRange
	// unless 0 <= i < Len().
	Get(i int) (Row, error)
}

var (
	_ Dataset = (*chunk.Chunk)(nil)
	_ Dataset = (*ChunkSet)(nil)
	_ Dataset = (*Subset)(nil)
)
