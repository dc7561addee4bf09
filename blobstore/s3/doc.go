// Package s3 provides an S3 implementation of the blobstore.BlobStore
// interface and a DynamoDB-backed blobstore.CommitStore.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := s3.NewFromConfig(cfg)
//	store := s3store.NewStore(client, "transcripts-bucket", "vectors/")
//	commits := s3store.NewDDBCommitStore(dynamodb.NewFromConfig(cfg), "ccvec-commits", "s3://transcripts-bucket/vectors/")
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Multipart uploads for large index blobs via feature/s3/manager
//   - CRC32C integrity validation on upload
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
