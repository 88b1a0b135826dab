package chunk

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/experience/codec"
	"github.com/hupe1980/experience/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "states_1.json")
	testutil.WriteRecord(t, path, testutil.Record{
		Shape:   []int{4, 22, 8, 8},
		Strides: []int{5632, 256, 32, 4},
		DType:   "float32",
		Data:    "states_1.dat",
	})

	md, err := ParseMetadata(path)
	require.NoError(t, err)

	assert.Equal(t, []int{4, 22, 8, 8}, md.Shape)
	assert.Equal(t, Float32, md.DType)
	assert.Equal(t, 4, md.Rows())
	assert.Equal(t, []int{22, 8, 8}, md.ExampleShape())
	assert.Equal(t, 22*64, md.RowElems())
	assert.Equal(t, 22*64*4, md.RowBytes())
	assert.Equal(t, int64(4*22*64*4), md.DataBytes())
	assert.Equal(t, filepath.Join(dir, "states_1.dat"), md.DataPath())
}

func TestDecodeMetadata_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		field string
	}{
		{"syntax", `{"shape": [1,`, ""},
		{"missing shape", `{"strides": [4], "dtype": "float32", "data": "a.dat"}`, "shape"},
		{"missing strides", `{"shape": [1], "dtype": "float32", "data": "a.dat"}`, "strides"},
		{"missing dtype", `{"shape": [1], "strides": [4], "data": "a.dat"}`, "dtype"},
		{"missing data", `{"shape": [1], "strides": [4], "dtype": "float32"}`, "data"},
		{"unknown dtype", `{"shape": [1], "strides": [8], "dtype": "float64", "data": "a.dat"}`, "dtype"},
		{"increasing strides", `{"shape": [2, 3, 4], "strides": [1, 2, 3], "dtype": "int8", "data": "a.dat"}`, "strides"},
		{"equal strides", `{"shape": [2, 1], "strides": [4, 4], "dtype": "float32", "data": "a.dat"}`, "strides"},
		{"sparse strides", `{"shape": [2, 3], "strides": [100, 1], "dtype": "float32", "data": "a.dat"}`, "strides"},
		{"padded rows", `{"shape": [2, 3], "strides": [16, 4], "dtype": "float32", "data": "a.dat"}`, "strides"},
		{"mixed units", `{"shape": [2, 3], "strides": [12, 1], "dtype": "float32", "data": "a.dat"}`, "strides"},
		{"stride count", `{"shape": [2, 3], "strides": [12], "dtype": "float32", "data": "a.dat"}`, "strides"},
		{"empty shape", `{"shape": [], "strides": [], "dtype": "float32", "data": "a.dat"}`, "shape"},
		{"zero extent", `{"shape": [0, 3], "strides": [12, 4], "dtype": "float32", "data": "a.dat"}`, "shape"},
		{"negative extent", `{"shape": [2, -3], "strides": [12, 4], "dtype": "float32", "data": "a.dat"}`, "shape"},
		{"empty data", `{"shape": [1], "strides": [4], "dtype": "float32", "data": ""}`, "data"},
		{"absolute data", `{"shape": [1], "strides": [4], "dtype": "float32", "data": "/etc/passwd"}`, "data"},
		{"escaping data", `{"shape": [1], "strides": [4], "dtype": "float32", "data": "../a.dat"}`, "data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMetadata(codec.GoJSON{}, strings.NewReader(tt.json), "x.json")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedMetadata)

			var me *MetadataError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, "x.json", me.Path)
			assert.Equal(t, tt.field, me.Field)
		})
	}
}

func TestDecodeMetadata_ScalarAxis(t *testing.T) {
	md, err := DecodeMetadata(nil, strings.NewReader(`{"shape": [7], "strides": [2], "dtype": "int16", "data": "r.dat"}`), "r.json")
	require.NoError(t, err)
	assert.Equal(t, Int16, md.DType)
	assert.Empty(t, md.ExampleShape())
	assert.Equal(t, 1, md.RowElems())
	assert.Equal(t, 2, md.RowBytes())
}

func TestDecodeMetadata_StrideUnits(t *testing.T) {
	for _, strides := range []string{"[12, 4]", "[3, 1]"} {
		t.Run(strides, func(t *testing.T) {
			in := `{"shape": [2, 3], "strides": ` + strides + `, "dtype": "float32", "data": "a.dat"}`
			md, err := DecodeMetadata(nil, strings.NewReader(in), "a.json")
			require.NoError(t, err)
			assert.Equal(t, 12, md.RowBytes())
		})
	}
}

func TestParseMetadata_MissingFile(t *testing.T) {
	_, err := ParseMetadata(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, ErrMalformedMetadata)
}

func TestParseDType(t *testing.T) {
	for _, d := range []DType{Float32, Int8, Int16} {
		got, err := ParseDType(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 1, Int8.Size())
	assert.Equal(t, 2, Int16.Size())
	assert.Equal(t, 0, DTypeInvalid.Size())

	_, err := ParseDType("int32")
	assert.Error(t, err)
}
