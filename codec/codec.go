// Package codec centralizes the encoding of chunk metadata records.
//
// Metadata files are small JSON documents written next to every data file
// by the self-play producer. Both codecs here read the same bytes; GoJSON is
// the default because discovery decodes three records per chunk and large
// experience directories hold thousands of chunks.
package codec

import (
	"fmt"
	"io"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Decode reads r to EOF and unmarshals it into v.
// A nil codec selects Default.
func Decode(c Codec, r io.Reader, v any) error {
	if c == nil {
		c = Default
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return c.Unmarshal(data, v)
}

// MustMarshal is a helper for tests and fixtures.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
