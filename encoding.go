package experience

import "fmt"

// EncodingVersion identifies the board encoder that produced the states.
type EncodingVersion int

const (
	// EncodingV0 encodes a position as 21 planes.
	EncodingV0 EncodingVersion = 0
	// EncodingV1 adds a plane and encodes a position as 22 planes.
	EncodingV1 EncodingVersion = 1
)

var encodingPlanes = map[EncodingVersion]int{
	EncodingV0: 21,
	EncodingV1: 22,
}

// StatePlanes returns the number of input planes of encoding v.
func StatePlanes(v EncodingVersion) (int, error) {
	planes, ok := encodingPlanes[v]
	if !ok {
		return 0, fmt.Errorf("unknown encoding version %d", int(v))
	}
	return planes, nil
}
