// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "selfplay-bucket",
//	    s3.WithPrefix("experience/run-7/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	err = mirror.Run(ctx, store, "./experience")
//
// # Features
//
//   - Range reads for partial fetches
//   - Parallel multi-part downloads via the transfer manager
//   - Automatic pagination for listing
//   - Custom endpoints for S3-compatible services
package s3
