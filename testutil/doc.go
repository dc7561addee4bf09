// Package testutil provides testing utilities for ccvec.
//
// This package is intended for use in tests only. It provides deterministic
// helpers for generating random vectors and record identifiers.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UniformVectors(100, 768) // uniform [0, 1)
//	unit := rng.UnitVector(768)          // on the hypersphere
package testutil
