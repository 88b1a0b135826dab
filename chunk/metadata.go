package chunk

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/hupe1980/experience/codec"
	"github.com/hupe1980/experience/internal/fs"
)

// Metadata describes one on-disk array.
type Metadata struct {
	// Shape holds the axis extents; axis 0 is the example axis.
	Shape []int
	// Strides holds one stride per axis, in elements or bytes. They must be
	// strictly decreasing and match the dense row-major layout of Shape.
	Strides []int
	DType   DType
	// Data is the backing file, relative to the metadata file's directory.
	Data string
	// Path is the metadata file the record was read from.
	Path string
}

type rawMetadata struct {
	Shape   *[]int  `json:"shape"`
	Strides *[]int  `json:"strides"`
	DType   *string `json:"dtype"`
	Data    *string `json:"data"`
}

// ParseMetadata reads and validates the metadata record at path using codec.Default.
func ParseMetadata(path string) (*Metadata, error) {
	return ParseMetadataWith(nil, path)
}

// ParseMetadataWith is ParseMetadata with an explicit codec.
func ParseMetadataWith(c codec.Codec, path string) (*Metadata, error) {
	return parseMetadata(fs.Default, c, path)
}

func parseMetadata(fsys fs.FileSystem, c codec.Codec, path string) (*Metadata, error) {
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	defer f.Close()

	return DecodeMetadata(c, f, path)
}

// DecodeMetadata decodes and validates a metadata record read from r.
// path names the record in errors and anchors the relative data path.
func DecodeMetadata(c codec.Codec, r io.Reader, path string) (*Metadata, error) {
	var raw rawMetadata
	if err := codec.Decode(c, r, &raw); err != nil {
		return nil, &MetadataError{Path: path, Reason: "decode", cause: err}
	}

	if raw.Shape == nil {
		return nil, &MetadataError{Path: path, Field: "shape", Reason: "missing"}
	}
	if raw.Strides == nil {
		return nil, &MetadataError{Path: path, Field: "strides", Reason: "missing"}
	}
	if raw.DType == nil {
		return nil, &MetadataError{Path: path, Field: "dtype", Reason: "missing"}
	}
	if raw.Data == nil {
		return nil, &MetadataError{Path: path, Field: "data", Reason: "missing"}
	}

	dt, err := ParseDType(*raw.DType)
	if err != nil {
		return nil, &MetadataError{Path: path, Field: "dtype", Reason: err.Error()}
	}

	md := &Metadata{
		Shape:   *raw.Shape,
		Strides: *raw.Strides,
		DType:   dt,
		Data:    *raw.Data,
		Path:    path,
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return md, nil
}

// Validate checks the structural invariants of the record.
func (md *Metadata) Validate() error {
	if len(md.Shape) == 0 {
		return &MetadataError{Path: md.Path, Field: "shape", Reason: "no axes"}
	}
	for i, s := range md.Shape {
		if s <= 0 {
			return &MetadataError{Path: md.Path, Field: "shape", Reason: fmt.Sprintf("axis %d has extent %d", i, s)}
		}
	}
	if len(md.Strides) != len(md.Shape) {
		return &MetadataError{Path: md.Path, Field: "strides",
			Reason: fmt.Sprintf("%d strides for %d axes", len(md.Strides), len(md.Shape))}
	}
	// A non-decreasing stride pair means a foreign or corrupted layout.
	for i := 1; i < len(md.Strides); i++ {
		if md.Strides[i] >= md.Strides[i-1] {
			return &MetadataError{Path: md.Path, Field: "strides",
				Reason: fmt.Sprintf("not strictly decreasing at axis %d: %v", i, md.Strides)}
		}
	}
	if md.DType.Size() == 0 {
		return &MetadataError{Path: md.Path, Field: "dtype", Reason: md.DType.String()}
	}
	if md.Data == "" {
		return &MetadataError{Path: md.Path, Field: "data", Reason: "empty"}
	}
	if !filepath.IsLocal(md.Data) {
		return &MetadataError{Path: md.Path, Field: "data", Reason: fmt.Sprintf("%q is not relative to the metadata directory", md.Data)}
	}
	elems, ok := product(md.Shape)
	if ok {
		_, ok = mul(elems, md.DType.Size())
	}
	if !ok {
		return &MetadataError{Path: md.Path, Field: "shape", Reason: "size overflows"}
	}
	// Rows are read as dense slices, so strides must describe exactly that
	// layout, counted in elements or in bytes.
	if !contiguous(md.Shape, md.Strides, 1) && !contiguous(md.Shape, md.Strides, md.DType.Size()) {
		return &MetadataError{Path: md.Path, Field: "strides",
			Reason: fmt.Sprintf("%v do not describe a contiguous %v %s array", md.Strides, md.Shape, md.DType)}
	}
	return nil
}

// contiguous reports whether strides are the row-major strides of shape
// for elements of unit size.
func contiguous(shape, strides []int, unit int) bool {
	want := unit
	for i := len(shape) - 1; i >= 0; i-- {
		if strides[i] != want {
			return false
		}
		want *= shape[i]
	}
	return true
}

// Rows returns the number of examples (extent of axis 0).
func (md *Metadata) Rows() int {
	return md.Shape[0]
}

// ExampleShape returns the shape of one example.
func (md *Metadata) ExampleShape() []int {
	return md.Shape[1:]
}

// RowElems returns the number of elements in one example.
func (md *Metadata) RowElems() int {
	n, _ := product(md.Shape[1:])
	return n
}

// RowBytes returns the byte size of one example.
func (md *Metadata) RowBytes() int {
	return md.RowElems() * md.DType.Size()
}

// DataBytes returns the number of bytes the data file must hold.
func (md *Metadata) DataBytes() int64 {
	return int64(md.Rows()) * int64(md.RowBytes())
}

// DataPath returns the backing file path resolved against the metadata directory.
func (md *Metadata) DataPath() string {
	return filepath.Join(filepath.Dir(md.Path), md.Data)
}

func product(xs []int) (int, bool) {
	n := 1
	for _, x := range xs {
		var ok bool
		if n, ok = mul(n, x); !ok {
			return 0, false
		}
	}
	return n, true
}

func mul(a, b int) (int, bool) {
	if a != 0 && b > math.MaxInt/a {
		return 0, false
	}
	return a * b, true
}
