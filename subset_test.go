package experience

import (
	"math"
	"testing"

	"github.com/hupe1980/experience/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rangeDataset yields rows whose reward is the index.
type rangeDataset int

func (d rangeDataset) Len() int { return int(d) }

func (d rangeDataset) Get(i int) (Row, error) {
	if err := chunk.CheckIndex(i, int(d)); err != nil {
		return Row{}, err
	}
	return Row{Reward: float32(i)}, nil
}

func TestSelect_Scenario(t *testing.T) {
	dir := t.TempDir()
	writeSessions(t, dir, 4, 6)
	cs := mustDiscover(t, dir)
	require.Equal(t, 10, cs.Len())

	s, err := Select(cs, 0.5)
	require.NoError(t, err)
	require.Equal(t, 5, s.Len())

	seen := map[int]bool{}
	for i := 0; i < s.Len(); i++ {
		idx, err := s.Index(i)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 10)
		assert.False(t, seen[idx], "duplicate index %d", idx)
		seen[idx] = true

		row, err := s.Get(i)
		require.NoError(t, err)
		assert.Equal(t, float32(idx), row.Reward)
	}
}

func TestSelect_Sizes(t *testing.T) {
	tests := []struct {
		value float64
		total int
		want  int
	}{
		{0, 10, 0},
		{0.5, 10, 5},
		{0.55, 10, 5},
		{0.99, 10, 9},
		{1, 10, 10},
		{1, 0, 0},
		{2, 10, 2},
		{10, 10, 10},
		{0.5, 7, 3},
	}
	for _, tt := range tests {
		s, err := Select(rangeDataset(tt.total), tt.value, WithSeed(1))
		require.NoError(t, err, "value %v total %d", tt.value, tt.total)
		assert.Equal(t, tt.want, s.Len(), "value %v total %d", tt.value, tt.total)
	}
}

func TestSelect_TooLarge(t *testing.T) {
	_, err := Select(rangeDataset(10), 11)
	require.ErrorIs(t, err, ErrSubsetTooLarge)

	var se *SubsetSizeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 11, se.Requested)
	assert.Equal(t, 10, se.Available)

	_, err = Select(rangeDataset(10), 1e300)
	assert.ErrorIs(t, err, ErrSubsetTooLarge)

	_, err = SelectN(rangeDataset(3), 4)
	assert.ErrorIs(t, err, ErrSubsetTooLarge)
}

func TestSelect_Invalid(t *testing.T) {
	for _, v := range []float64{-0.1, -3, math.NaN(), 2.5, math.Inf(-1)} {
		_, err := Select(rangeDataset(10), v)
		assert.ErrorIs(t, err, ErrInvalidSubsetSize, "value %v", v)
	}

	_, err := Select(rangeDataset(10), math.Inf(1))
	assert.Error(t, err)

	_, err = SelectN(rangeDataset(10), -1)
	assert.ErrorIs(t, err, ErrInvalidSubsetSize)
}

func TestSelectN(t *testing.T) {
	s, err := SelectN(rangeDataset(10), 1, WithSeed(3))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	s, err = SelectN(rangeDataset(10), 10, WithSeed(3))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, s.Indices())
}

func TestSelect_Reproducible(t *testing.T) {
	ds := rangeDataset(1000)

	a, err := Select(ds, 0.1, WithSeed(42))
	require.NoError(t, err)
	b, err := Select(ds, 0.1, WithSeed(42))
	require.NoError(t, err)
	c, err := Select(ds, 0.1, WithSeed(43))
	require.NoError(t, err)

	assert.Equal(t, a.Indices(), b.Indices())
	assert.NotEqual(t, a.Indices(), c.Indices())
}

func TestSubset_Frozen(t *testing.T) {
	s, err := SelectN(rangeDataset(50), 20)
	require.NoError(t, err)

	for i := 0; i < s.Len(); i++ {
		a, err := s.Get(i)
		require.NoError(t, err)
		b, err := s.Get(i)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}

	indices := s.Indices()
	indices[0] = -1
	first, err := s.Index(0)
	require.NoError(t, err)
	assert.NotEqual(t, -1, first)
}

func TestSubset_Contains(t *testing.T) {
	s, err := SelectN(rangeDataset(100), 30, WithSeed(9))
	require.NoError(t, err)

	selected := map[int]bool{}
	for _, idx := range s.Indices() {
		selected[idx] = true
	}
	for i := -1; i <= 100; i++ {
		assert.Equal(t, selected[i], s.Contains(i), "index %d", i)
	}
}

func TestSubset_OutOfRange(t *testing.T) {
	s, err := SelectN(rangeDataset(10), 4)
	require.NoError(t, err)

	for _, i := range []int{-1, 4, 10} {
		_, err := s.Get(i)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		_, err = s.Index(i)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	}
}

func TestSubset_OfSubset(t *testing.T) {
	outer, err := SelectN(rangeDataset(100), 40, WithSeed(5))
	require.NoError(t, err)
	inner, err := Select(outer, 0.5, WithSeed(6))
	require.NoError(t, err)
	require.Equal(t, 20, inner.Len())
	assert.Equal(t, Dataset(outer), inner.Source())

	for i := 0; i < inner.Len(); i++ {
		row, err := inner.Get(i)
		require.NoError(t, err)
		assert.True(t, outer.Contains(int(row.Reward)))
	}
}

// Every index should be drawn with roughly equal probability.
func TestSelect_Uniform(t *testing.T) {
	const (
		total  = 10
		n      = 3
		trials = 20000
	)
	counts := make([]int, total)
	firsts := make([]int, total)
	for seed := range uint64(trials) {
		s, err := SelectN(rangeDataset(total), n, WithSeed(seed))
		require.NoError(t, err)
		for _, idx := range s.Indices() {
			counts[idx]++
		}
		first, err := s.Index(0)
		require.NoError(t, err)
		firsts[first]++
	}

	want := float64(trials*n) / total
	for i, c := range counts {
		assert.InDelta(t, want, float64(c), want*0.1, "index %d", i)
	}
	// The order is shuffled too, not just the membership.
	wantFirst := float64(trials) / total
	for i, c := range firsts {
		assert.InDelta(t, wantFirst, float64(c), wantFirst*0.15, "first index %d", i)
	}
}

func TestSelect_Metrics(t *testing.T) {
	metrics := &BasicMetricsCollector{}

	_, err := Select(rangeDataset(10), 0.3, WithSelectMetrics(metrics), WithSelectLogger(nil))
	require.NoError(t, err)
	_, err = Select(rangeDataset(10), 20, WithSelectMetrics(metrics))
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.SelectCount)
	assert.Equal(t, int64(1), stats.SelectErrors)
	assert.Equal(t, int64(3), stats.SelectedExamples)
}
