package experience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/experience/chunk"
)

// Subset is a fixed random sample, drawn without replacement, of another
// dataset's indices. The sample is drawn once at construction: Get(i)
// always returns the same underlying example.
type Subset struct {
	source  Dataset
	indices []int
	members *roaring64.Bitmap
}

// Select draws a subset of ds.
//
// A value <= 1 is a fraction of ds.Len() and selects floor(value*Len())
// examples; a larger value must be a whole number and is the absolute count.
// Counts exceeding ds.Len() fail with ErrSubsetTooLarge; negative, NaN and
// fractional counts fail with ErrInvalidSubsetSize.
func Select(ds Dataset, value float64, optFns ...SelectOption) (*Subset, error) {
	opts := applySelectOptions(optFns)
	total := ds.Len()

	n, err := subsetSize(value, total)
	if err != nil {
		opts.metrics.RecordSelect(0, 0, err)
		opts.logger.LogSelect(context.Background(), value, 0, total, err)
		return nil, err
	}
	return selectN(ds, n, value, opts)
}

// SelectN draws exactly n examples of ds. Unlike Select, n == 1 means one
// example rather than the whole dataset.
func SelectN(ds Dataset, n int, optFns ...SelectOption) (*Subset, error) {
	opts := applySelectOptions(optFns)
	if n < 0 {
		err := fmt.Errorf("%w: %d", ErrInvalidSubsetSize, n)
		opts.metrics.RecordSelect(0, 0, err)
		opts.logger.LogSelect(context.Background(), float64(n), 0, ds.Len(), err)
		return nil, err
	}
	return selectN(ds, n, float64(n), opts)
}

func subsetSize(value float64, total int) (int, error) {
	switch {
	case math.IsNaN(value) || value < 0:
		return 0, fmt.Errorf("%w: %v", ErrInvalidSubsetSize, value)
	case value <= 1:
		return int(math.Floor(value * float64(total))), nil
	case value != math.Trunc(value):
		return 0, fmt.Errorf("%w: %v is neither a fraction <= 1 nor a whole count", ErrInvalidSubsetSize, value)
	case value >= math.MaxInt:
		return 0, &SubsetSizeError{Requested: math.MaxInt, Available: total}
	case value > float64(total):
		return 0, &SubsetSizeError{Requested: int(value), Available: total}
	default:
		return int(value), nil
	}
}

func selectN(ds Dataset, n int, requested float64, opts selectOptions) (*Subset, error) {
	start := time.Now()
	total := ds.Len()

	if n > total {
		err := &SubsetSizeError{Requested: n, Available: total}
		opts.metrics.RecordSelect(0, time.Since(start), err)
		opts.logger.LogSelect(context.Background(), requested, 0, total, err)
		return nil, err
	}

	var seed uint64
	if opts.seed != nil {
		seed = *opts.seed
	} else {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	indices, members := sample(rng, total, n)

	opts.metrics.RecordSelect(n, time.Since(start), nil)
	opts.logger.LogSelect(context.Background(), requested, n, total, nil)

	return &Subset{
		source:  ds,
		indices: indices,
		members: members,
	}, nil
}

// sample draws n distinct values from [0, total) with Floyd's algorithm and
// returns them in uniformly random order.
func sample(rng *rand.Rand, total, n int) ([]int, *roaring64.Bitmap) {
	members := roaring64.New()
	indices := make([]int, 0, n)

	for j := total - n; j < total; j++ {
		t := rng.IntN(j + 1)
		if members.Contains(uint64(t)) {
			t = j
		}
		members.Add(uint64(t))
		indices = append(indices, t)
	}

	// Floyd's algorithm yields a uniform set but a biased order.
	rng.Shuffle(len(indices), func(a, b int) {
		indices[a], indices[b] = indices[b], indices[a]
	})
	return indices, members
}

// Len returns the subset size.
func (s *Subset) Len() int { return len(s.indices) }

// Get returns the i-th selected example.
func (s *Subset) Get(i int) (Row, error) {
	if err := chunk.CheckIndex(i, len(s.indices)); err != nil {
		return Row{}, err
	}
	return s.source.Get(s.indices[i])
}

// Index returns the source index behind subset position i.
func (s *Subset) Index(i int) (int, error) {
	if err := chunk.CheckIndex(i, len(s.indices)); err != nil {
		return 0, err
	}
	return s.indices[i], nil
}

// Indices returns a copy of the selected source indices in subset order.
func (s *Subset) Indices() []int {
	return slices.Clone(s.indices)
}

// Contains reports whether source index i was selected.
func (s *Subset) Contains(i int) bool {
	return i >= 0 && s.members.Contains(uint64(i))
}

// Source returns the dataset the subset was drawn from.
func (s *Subset) Source() Dataset { return s.source }
