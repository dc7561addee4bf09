// Package model defines the core types shared by the index, the search engine
// and the storage adapters.
//
// # Identity Types
//
//   - RecordID: stable transcript identifier assigned by the producing pipeline
//   - Position: dense index position (the i-th inserted vector)
//
// # Data Types
//
//   - Vector: fixed-dimension float32 embedding
//   - Metadata: record attributes used for filtering and display
//   - FilterSet: closed set of supported filter predicates
//   - SearchResult: ranked hit with raw score, bounded similarity and scale
package model
