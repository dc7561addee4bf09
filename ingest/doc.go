// Package ingest turns index requests into committed index entries.
//
// An index request names a record id and the blob key of its source
// document. The pipeline fetches the document, writes its metadata, obtains
// an embedding (the precomputed one when present, otherwise from the
// embedder) and appends it to the backend.
package ingest
