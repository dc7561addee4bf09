// Package ccvec provides a persistent vector index and similarity search for
// contact-center transcripts.
//
// Many independent producers append (id, embedding) pairs to a single index
// that lives in blob storage. Every append commits a new version of the
// (index, id table) pair through compare-and-swap, so concurrent producers
// never lose each other's records. Queries embed text, search the index,
// resolve positions to transcript ids and post-filter by metadata.
//
// # Quick Start
//
//	ctx := context.Background()
//	db, err := ccvec.Open(
//	    blobstore.NewLocalStore("./data"),
//	    blobstore.NewLocalCommitStore("./data/commits"),
//	    768, embedder, metastore.NewMemory(),
//	)
//	if err != nil {
//	    return err
//	}
//
//	err = db.Append(ctx, "t-123", vector)
//
//	results, err := db.Search(ctx, "customer disputes a late fee", 5,
//	    model.FilterSet{}.WithResolved(true).WithMinScore(4))
//
// # Backends
//
// Two backends share the same contract:
//
//   - BackendANN (default): a flat or HNSW index with k*3 oversampling before
//     filtering. Scores are squared L2 distances, similarity is 1/(1+d).
//   - BackendBruteForce: an exhaustive cosine scan that filters the full
//     ranking. Scores are cosine similarities.
//
// Every SearchResult carries the Scale its numbers come from.
//
// # Storage
//
// Blobs can live in memory, on local disk, in S3 (blobstore/s3) or in any
// S3-compatible store (blobstore/minio). Versions are committed through a
// CommitStore: memory, local files or DynamoDB conditional writes.
//
// # Observability
//
// A Logger (log/slog) and a MetricsCollector can be attached with WithLogger
// and WithMetricsCollector. PrometheusCollector exports counters and
// histograms for the HTTP server.
package ccvec
