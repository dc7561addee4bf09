// Package metastore provides engine.MetadataStore implementations.
//
//   - Memory: map-backed, for tests and single-process use
//   - DynamoDB: one item per record keyed by transcript_id
//   - SQLite: pure-Go SQLite (modernc.org/sqlite) for local deployments
package metastore
