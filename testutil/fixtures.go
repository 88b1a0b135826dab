package testutil

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/experience/codec"
)

// ChunkSpec describes a fixture session.
type ChunkSpec struct {
	Label string
	Rows  int
	// Base offsets every row marker, typically the chunk's global start index.
	Base int
	// Planes and BoardSize shape the states as Rows x Planes x BoardSize x BoardSize.
	// Defaults: 22 and 8.
	Planes    int
	BoardSize int
	// VisitShape is the per-example visit-count shape. Default: [4, BoardSize, BoardSize].
	VisitShape []int

	StateDType  string // default "float32"
	RewardDType string // default "float32"
	VisitDType  string // default "float32"
}

// ChunkFiles holds the metadata paths of a written fixture.
type ChunkFiles struct {
	States      string
	Rewards     string
	VisitCounts string
}

// Record is the on-disk metadata schema.
type Record struct {
	Shape   []int  `json:"shape"`
	Strides []int  `json:"strides"`
	DType   string `json:"dtype"`
	Data    string `json:"data"`
}

func (s *ChunkSpec) defaults() {
	if s.Planes == 0 {
		s.Planes = 22
	}
	if s.BoardSize == 0 {
		s.BoardSize = 8
	}
	if s.VisitShape == nil {
		s.VisitShape = []int{4, s.BoardSize, s.BoardSize}
	}
	if s.StateDType == "" {
		s.StateDType = "float32"
	}
	if s.RewardDType == "" {
		s.RewardDType = "float32"
	}
	if s.VisitDType == "" {
		s.VisitDType = "float32"
	}
}

// WriteChunk writes the three members of a fixture session into dir.
func WriteChunk(tb testing.TB, dir string, spec ChunkSpec) ChunkFiles {
	tb.Helper()
	spec.defaults()

	states := append([]int{spec.Rows, spec.Planes}, spec.BoardSize, spec.BoardSize)
	visits := append([]int{spec.Rows}, spec.VisitShape...)

	return ChunkFiles{
		States: WriteArray(tb, dir, "states"+spec.Label, states, spec.StateDType, func(row, _ int) float64 {
			return float64(spec.Base + row)
		}),
		Rewards: WriteArray(tb, dir, "rewards"+spec.Label, []int{spec.Rows}, spec.RewardDType, func(row, _ int) float64 {
			return float64(spec.Base + row)
		}),
		VisitCounts: WriteArray(tb, dir, "visit_counts"+spec.Label, visits, spec.VisitDType, func(row, j int) float64 {
			return float64(spec.Base + row + j)
		}),
	}
}

// WriteArray writes name.dat and name.json for an array of the given shape.
// value(row, j) yields element j of example row. It returns the metadata path.
func WriteArray(tb testing.TB, dir, name string, shape []int, dtype string, value func(row, j int) float64) string {
	tb.Helper()

	size := ItemSize(dtype)
	if size == 0 {
		tb.Fatalf("testutil: unsupported dtype %q", dtype)
	}

	rowElems := 1
	for _, s := range shape[1:] {
		rowElems *= s
	}

	data := make([]byte, 0, shape[0]*rowElems*size)
	for row := 0; row < shape[0]; row++ {
		for j := 0; j < rowElems; j++ {
			data = appendValue(data, dtype, value(row, j))
		}
	}

	dataName := name + ".dat"
	if err := os.WriteFile(filepath.Join(dir, dataName), data, 0o644); err != nil {
		tb.Fatalf("testutil: write %s: %v", dataName, err)
	}

	path := filepath.Join(dir, name+".json")
	WriteRecord(tb, path, Record{
		Shape:   shape,
		Strides: Strides(shape, size),
		DType:   dtype,
		Data:    dataName,
	})
	return path
}

// WriteRecord writes any JSON-encodable metadata record to path.
func WriteRecord(tb testing.TB, path string, record any) {
	tb.Helper()
	if err := os.WriteFile(path, codec.MustMarshal(nil, record), 0o644); err != nil {
		tb.Fatalf("testutil: write %s: %v", path, err)
	}
}

// Strides returns C-contiguous byte strides for shape.
func Strides(shape []int, itemSize int) []int {
	strides := make([]int, len(shape))
	acc := itemSize
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// ItemSize returns the byte size of dtype, or 0 if unsupported.
func ItemSize(dtype string) int {
	switch dtype {
	case "float32":
		return 4
	case "int16":
		return 2
	case "int8":
		return 1
	default:
		return 0
	}
}

func appendValue(dst []byte, dtype string, v float64) []byte {
	switch dtype {
	case "float32":
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	case "int16":
		return binary.LittleEndian.AppendUint16(dst, uint16(int16(v)))
	case "int8":
		return append(dst, byte(int8(v)))
	default:
		panic(fmt.Sprintf("testutil: unsupported dtype %q", dtype))
	}
}
