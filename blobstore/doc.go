// Package blobstore provides read access to experience stored outside the
// local file system.
//
// Self-play workers often upload finished sessions to object storage.
// Memory mapping needs local files, so training first copies them with the
// mirror package, which reads through a Store.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with mmap support
//   - MemoryStore: In-memory store for tests
//   - s3.Store: Amazon S3 with ranged reads and parallel downloads
//   - minio.Store: MinIO and other S3-compatible servers
//
// # Custom Implementations
//
// Implement the Store interface to support custom storage backends:
//
//	type Store interface {
//	    Open(ctx, name) (Blob, error)
//	    List(ctx, prefix) ([]Info, error)
//	}
//
// Stores that can transfer a whole blob faster than a single stream
// implement Downloader as well.
package blobstore
