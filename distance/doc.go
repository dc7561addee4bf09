// Package distance provides the vector kernels used by the index backends.
//
// # Supported Metrics
//
//   - MetricL2: squared Euclidean distance (lower is better)
//   - MetricCosine: cosine similarity (higher is better)
//
// # Usage
//
//	d := distance.SquaredL2(a, b)
//	sim := distance.Cosine(a, b)
//	unit, ok := distance.NormalizeL2Copy(vec)
package distance
