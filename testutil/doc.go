// Package testutil writes experience fixtures for tests and benchmarks.
//
// This package is intended for use in tests only. WriteChunk produces the
// same files the self-play producer writes: three metadata records plus
// three row-major little-endian data files. Every value in a fixture row
// encodes the row's marker (Base + local row index), so a test can tell
// exactly which chunk and row a read came from:
//
//	files := testutil.WriteChunk(t, dir, testutil.ChunkSpec{Label: "_1", Rows: 4, Base: 100})
//	// states[i][...] == 100+i, rewards[i] == 100+i, visit_counts[i][j] == 100+i+j
package testutil
