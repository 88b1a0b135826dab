// Package minio provides a blobstore.Store implementation using the MinIO client.
//
// MinIO is an S3-compatible object storage system. The official MinIO Go
// client also works with other S3-compatible servers like Ceph, SeaweedFS
// and Garage, which makes this store a good fit for self-hosted self-play
// clusters.
//
// # Basic Usage
//
//	store, err := minioblob.New("localhost:9000", "experience", minioblob.Config{
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Prefix:    "run-7/",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = mirror.Run(ctx, store, "./experience")
//
// An existing *minio.Client can be wrapped with NewStore.
package minio
