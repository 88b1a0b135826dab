// Package experience gives training code random access to self-play
// experience without loading it into memory.
//
// Self-play workers write one session at a time as three row-major arrays
// (states, rewards, visit counts), each described by a small JSON metadata
// record. This package discovers every session in a directory, memory-maps
// the arrays read-only and exposes them as one contiguous dataset.
//
// # Quick Start
//
//	ctx := context.Background()
//	cs, err := experience.Discover(ctx, "./experience")
//	if err != nil { ... }
//	defer cs.Close()
//
//	// Train on half of the examples, drawn without replacement.
//	subset, err := experience.Select(cs, 0.5)
//	if err != nil { ... }
//
//	row, err := subset.Get(0)
//	// row.State, row.Reward, row.VisitCounts
//
// # Datasets
//
// ChunkSet, Subset and chunk.Chunk all implement Dataset:
//
//	type Dataset interface {
//	    Len() int
//	    Get(i int) (Row, error)
//	}
//
// Reads are pure and safe for concurrent use. Rows are copied out of the
// mappings, so they stay valid after Close. Use the loader package to
// assemble batches concurrently.
//
// # Errors
//
// Corrupt or incomplete data is detected by Discover, before training
// starts: ErrMalformedMetadata, ErrInconsistentChunk, ErrMissingChunkMember.
// Select fails with ErrSubsetTooLarge instead of truncating. During
// iteration the only expected error is ErrIndexOutOfRange, which always
// indicates a caller bug.
//
// # Remote Experience
//
// Experience kept in S3 or MinIO is copied into a local directory with the
// mirror package first, since memory mapping needs local files.
package experience
