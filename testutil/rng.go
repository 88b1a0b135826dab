package testutil

import (
	"math/rand"
	"sync"
)

// RNG wraps a seeded random source. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// ChunkSizes returns n chunk sizes in [1, maxRows].
func (r *RNG) ChunkSizes(n, maxRows int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = 1 + r.rand.Intn(maxRows)
	}
	return sizes
}
