// Package testutil provides testing utilities for quantgo.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating sorted sample columns with controlled
// duplicate rates and weights, and for computing exact weighted ranks as
// ground truth.
//
// # Sample Generation
//
//	rng := testutil.NewRNG(seed)
//	values := rng.SortedValues(1000, 100) // 1000 samples over 100 distinct values
//	weights := rng.UniformWeights(1000)
//
// # Ground Truth
//
//	rank := testutil.ExactRank(values, weights, query)
package testutil
