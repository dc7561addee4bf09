// Package embedding provides text embedders for the search and indexing
// paths.
//
// Titan calls the Amazon Bedrock Titan text embedding model over HTTPS with
// SigV4 signing. Hash produces deterministic pseudo-embeddings for tests and
// offline use. Cached and RateLimited wrap any embedder.
//
// Input text is limited to MaxInputChars characters; use Truncate before
// submitting text of unknown length.
package embedding
