package testutil

import (
	"math/rand"
	"sort"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// SortedValues generates n samples drawn from `distinct` possible values,
// sorted ascending. Duplicates are expected whenever n > distinct, which is
// what the duplicate-accumulation scan needs to exercise.
func (r *RNG) SortedValues(n, distinct int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]float32, n)
	for i := range out {
		out[i] = float32(r.rand.Intn(distinct)) / float32(distinct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UniformWeights generates n weights in [0.5, 1.5).
func (r *RNG) UniformWeights(n int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 + r.rand.Float64()
	}
	return out
}

// ExactRank returns the exact weighted rank bounds of query among the given
// samples: the total weight strictly below query and the total weight at or
// below it. values need not be sorted; nil weights means unit weight.
func ExactRank(values []float32, weights []float64, query float32) (below, atOrBelow float64) {
	for i, v := range values {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		if v < query {
			below += w
		}
		if v <= query {
			atOrBelow += w
		}
	}
	return below, atOrBelow
}

// TotalWeight sums the weights, or returns float64(len(values)) when weights
// is nil.
func TotalWeight(values []float32, weights []float64) float64 {
	if weights == nil {
		return float64(len(values))
	}
	var sum float64
	for _, w := range weights {
		sum += w
	}
	return sum
}
