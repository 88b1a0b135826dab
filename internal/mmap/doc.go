// Package mmap provides read-only memory-mapped access to experience data files.
//
// # Usage
//
//	m, err := mmap.Open("states_7.dat")
//	if err != nil { ... }
//	defer m.Close()
//
//	// Zero-copy view of one row
//	row, _ := m.Slice(offset, rowBytes)
//
//	// Training samples rows in random order
//	_ = m.Advise(mmap.AccessRandom)
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with madvise(2) hints
//   - Windows: CreateFileMapping/MapViewOfFile (Advise is a no-op)
//
// # Thread Safety
//
// A Mapping is safe for concurrent reads. Close is idempotent and guarded by
// an atomic flag, but callers must make sure no goroutine still holds a slice
// obtained from Bytes or Slice once Close returns.
package mmap
