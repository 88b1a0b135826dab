package chunk

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hupe1980/experience/internal/fs"
	"github.com/hupe1980/experience/internal/mapcache"
	"github.com/hupe1980/experience/internal/mmap"
	"github.com/hupe1980/experience/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFixture(t *testing.T, dir string, spec testutil.ChunkSpec, opts ...Option) *Chunk {
	t.Helper()
	files := testutil.WriteChunk(t, dir, spec)
	c, err := Open(files.States, files.Rewards, files.VisitCounts, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpen_Get(t *testing.T) {
	dir := t.TempDir()
	c := openFixture(t, dir, testutil.ChunkSpec{Label: "_1", Rows: 4, Base: 100})

	assert.Equal(t, "_1", c.Label())
	assert.Equal(t, 4, c.Len())
	absDir, _ := filepath.Abs(dir)
	assert.Equal(t, absDir, c.Dir())

	for i := 0; i < c.Len(); i++ {
		row, err := c.Get(i)
		require.NoError(t, err)

		assert.Equal(t, []int{22, 8, 8}, row.State.Shape())
		assert.Equal(t, Float32, row.State.DType())
		v, err := row.State.At(21, 7, 7)
		require.NoError(t, err)
		assert.Equal(t, float32(100+i), v)

		assert.Equal(t, float32(100+i), row.Reward)

		assert.Equal(t, []int{4, 8, 8}, row.VisitCounts.Shape())
		vc := row.VisitCounts.Float32s()
		require.Len(t, vc, 4*64)
		assert.Equal(t, float32(100+i), vc[0])
		assert.Equal(t, float32(100+i+255), vc[255])
	}
}

func TestGet_IndexOutOfRange(t *testing.T) {
	c := openFixture(t, t.TempDir(), testutil.ChunkSpec{Label: "_1", Rows: 3})

	for _, i := range []int{-1, 3, 100} {
		_, err := c.Get(i)
		assert.ErrorIs(t, err, ErrIndexOutOfRange, "index %d", i)

		var ie *IndexError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, i, ie.Index)
		assert.Equal(t, 3, ie.Len)
	}
}

func TestGet_Idempotent(t *testing.T) {
	c := openFixture(t, t.TempDir(), testutil.ChunkSpec{Label: "", Rows: 5, Base: 7})

	first, err := c.Get(3)
	require.NoError(t, err)
	for k := 0; k < 3; k++ {
		again, err := c.Get(3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestGet_IntegerDTypes(t *testing.T) {
	c := openFixture(t, t.TempDir(), testutil.ChunkSpec{
		Label:       "_i",
		Rows:        3,
		Base:        -1,
		Planes:      2,
		BoardSize:   2,
		StateDType:  "int8",
		RewardDType: "int16",
		VisitDType:  "int16",
		VisitShape:  []int{3},
	})

	row, err := c.Get(0)
	require.NoError(t, err)
	assert.Equal(t, Int8, row.State.DType())
	assert.Equal(t, []float32{-1, -1, -1, -1, -1, -1, -1, -1}, row.State.Float32s())
	assert.Equal(t, float32(-1), row.Reward)
	assert.Equal(t, []float32{-1, 0, 1}, row.VisitCounts.Float32s())
	assert.Equal(t, float64(0), row.VisitCounts.Sum())
}

func TestRow_OutlivesClose(t *testing.T) {
	files := testutil.WriteChunk(t, t.TempDir(), testutil.ChunkSpec{Label: "_1", Rows: 2, Base: 5})
	c, err := Open(files.States, files.Rewards, files.VisitCounts)
	require.NoError(t, err)

	row, err := c.Get(1)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, float32(6), row.State.Value(0))
	_, err = c.Get(0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGet_SharedMapperClosed(t *testing.T) {
	cache := mapcache.New(mapcache.Unlimited, mmap.AccessRandom)
	c := openFixture(t, t.TempDir(), testutil.ChunkSpec{Label: "_1", Rows: 2}, WithMapper(cache))

	_, err := c.Get(0)
	require.NoError(t, err)

	// The owner closed the shared cache while the chunk is still open.
	require.NoError(t, cache.Close())

	_, err = c.Get(1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NotErrorIs(t, err, mapcache.ErrClosed)
}

func TestOpen_FileSystemFaults(t *testing.T) {
	files := testutil.WriteChunk(t, t.TempDir(), testutil.ChunkSpec{Label: "_1", Rows: 2})

	t.Run("MetadataRead", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		ffs.AddRule("rewards_1.json", fs.Fault{FailAfterBytes: -1, FailOnOpen: true})

		_, err := Open(files.States, files.Rewards, files.VisitCounts, WithFileSystem(ffs))
		assert.ErrorIs(t, err, fs.ErrInjected)
		assert.NotErrorIs(t, err, ErrMalformedMetadata)
	})

	t.Run("DataFileStat", func(t *testing.T) {
		ffs := fs.NewFaultyFS(nil)
		ffs.AddRule("visit_counts_1.dat", fs.Fault{FailAfterBytes: -1, FailOnStat: true})

		_, err := Open(files.States, files.Rewards, files.VisitCounts, WithFileSystem(ffs))
		assert.ErrorIs(t, err, fs.ErrInjected)
		assert.ErrorIs(t, err, ErrMalformedMetadata)

		var me *MetadataError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, files.VisitCounts, me.Path)
		assert.Equal(t, "data", me.Field)
	})

	t.Run("Passthrough", func(t *testing.T) {
		c, err := Open(files.States, files.Rewards, files.VisitCounts, WithFileSystem(fs.NewFaultyFS(nil)))
		require.NoError(t, err)
		require.NoError(t, c.Close())
	})
}

func TestOpen_CountMismatch(t *testing.T) {
	dir := t.TempDir()
	files := testutil.WriteChunk(t, dir, testutil.ChunkSpec{Label: "_1", Rows: 4})
	// Overwrite rewards with only 3 rows.
	testutil.WriteArray(t, dir, "rewards_1", []int{3}, "float32", func(int, int) float64 { return 0 })

	_, err := Open(files.States, files.Rewards, files.VisitCounts)
	assert.ErrorIs(t, err, ErrInconsistentChunk)
}

func TestOpen_NonScalarRewards(t *testing.T) {
	dir := t.TempDir()
	files := testutil.WriteChunk(t, dir, testutil.ChunkSpec{Label: "_1", Rows: 4})
	testutil.WriteArray(t, dir, "rewards_1", []int{4, 2}, "float32", func(int, int) float64 { return 0 })

	_, err := Open(files.States, files.Rewards, files.VisitCounts)
	assert.ErrorIs(t, err, ErrInconsistentChunk)
}

func TestOpen_SplitDirectories(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	a := testutil.WriteChunk(t, dirA, testutil.ChunkSpec{Label: "_1", Rows: 2})
	b := testutil.WriteChunk(t, dirB, testutil.ChunkSpec{Label: "_1", Rows: 2})

	_, err := Open(a.States, b.Rewards, a.VisitCounts)
	assert.ErrorIs(t, err, ErrInconsistentChunk)
}

func TestOpen_TruncatedDataFile(t *testing.T) {
	dir := t.TempDir()
	files := testutil.WriteChunk(t, dir, testutil.ChunkSpec{Label: "_1", Rows: 4})
	require.NoError(t, os.Truncate(filepath.Join(dir, "states_1.dat"), 10))

	_, err := Open(files.States, files.Rewards, files.VisitCounts)
	assert.ErrorIs(t, err, ErrMalformedMetadata)
}

func TestOpen_MissingDataFile(t *testing.T) {
	dir := t.TempDir()
	files := testutil.WriteChunk(t, dir, testutil.ChunkSpec{Label: "_1", Rows: 4})
	require.NoError(t, os.Remove(filepath.Join(dir, "visit_counts_1.dat")))

	_, err := Open(files.States, files.Rewards, files.VisitCounts)
	assert.ErrorIs(t, err, ErrMalformedMetadata)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_MalformedStrides(t *testing.T) {
	dir := t.TempDir()
	files := testutil.WriteChunk(t, dir, testutil.ChunkSpec{Label: "_1", Rows: 2, Planes: 2, BoardSize: 2})
	testutil.WriteRecord(t, files.States, testutil.Record{
		Shape: []int{2, 2, 2, 2}, Strides: []int{1, 2, 3, 4}, DType: "float32", Data: "states_1.dat",
	})

	_, err := Open(files.States, files.Rewards, files.VisitCounts)
	assert.ErrorIs(t, err, ErrMalformedMetadata)
}

func TestLabelOf(t *testing.T) {
	tests := []struct {
		name  string
		label string
		ok    bool
	}{
		{"states_12.json", "_12", true},
		{"/x/y/states.json", "", true},
		{"states-abc.json", "-abc", true},
		{"rewards_12.json", "", false},
		{"states_12.dat", "", false},
		{"mystates_1.json", "", false},
	}
	for _, tt := range tests {
		label, ok := LabelOf(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.label, label, tt.name)
	}

	s, r, v := Paths("d", "_4")
	assert.Equal(t, filepath.Join("d", "states_4.json"), s)
	assert.Equal(t, filepath.Join("d", "rewards_4.json"), r)
	assert.Equal(t, filepath.Join("d", "visit_counts_4.json"), v)
}

func TestGet_Concurrent(t *testing.T) {
	c := openFixture(t, t.TempDir(), testutil.ChunkSpec{Label: "_1", Rows: 16, Planes: 2, BoardSize: 2})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for k := 0; k < 100; k++ {
				i := (g*7 + k) % c.Len()
				row, err := c.Get(i)
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, float32(i), row.Reward)
			}
		}(g)
	}
	wg.Wait()
}

func TestTensor(t *testing.T) {
	tn, err := NewTensor([]int{2, 2}, Int16, []byte{1, 0, 2, 0, 3, 0, 0xff, 0xff})
	require.NoError(t, err)

	assert.Equal(t, 4, tn.Len())
	v, err := tn.At(1, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(-1), v)

	_, err = tn.At(2, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = tn.At(0)
	assert.Error(t, err)

	assert.Equal(t, float64(5), tn.Sum())

	ints, err := tn.Int16s()
	require.NoError(t, err)
	assert.Equal(t, []int16{1, 2, 3, -1}, ints)
	_, err = tn.Int8s()
	assert.Error(t, err)

	_, err = NewTensor([]int{3}, Float32, make([]byte, 8))
	assert.Error(t, err)

	scalar, err := NewTensor(nil, Float32, []byte{0, 0, 0x80, 0x3f})
	require.NoError(t, err)
	s, err := scalar.At()
	require.NoError(t, err)
	assert.Equal(t, float32(1), s)
}
