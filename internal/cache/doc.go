// Package cache provides a cost-bounded LRU cache.
//
// It backs the whole-blob read cache in blobstore and the query embedding
// cache in embedding. Values must be treated as immutable once inserted.
package cache
