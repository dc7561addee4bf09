// Package minio provides a blobstore.BlobStore for MinIO and other
// S3-compatible object stores, built on minio-go.
//
// # Usage
//
//	client, err := minio.NewClient(minio.Options{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	})
//	store := minio.NewStore(client, "transcripts", "vectors/")
//
// Combine it with a blobstore.CommitStore for multi-writer safety; MinIO
// alone offers no compare-and-swap.
package minio
