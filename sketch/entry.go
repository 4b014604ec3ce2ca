// Package sketch implements the per-column weighted quantile summary
// primitives: building a summary from sorted samples, merging two summaries,
// pruning a summary to a fixed budget, collapsing duplicate values and
// repairing rank-bound drift.
//
// All functions here operate on contiguous segments of a flat entry buffer.
// Segment boundaries come from a layout.Columns offset array; the functions
// themselves are column-agnostic and never allocate beyond the destination
// slice they append to, which lets the container run them in parallel over
// disjoint sub-ranges of one output buffer.
package sketch

// Entry is one quantile sample of a per-column summary.
//
// RankMin and RankMax bound the true weighted rank of Value among all samples
// seen so far for the column. WMin is the weight mass accumulated on Value
// itself. Within a column entries are ordered by Value, and after FixSegment
// both rank bounds are non-decreasing in that order.
type Entry struct {
	Value   float32
	RankMin float64
	RankMax float64
	WMin    float64
}

// RMinNext returns the lowest possible rank of the value immediately after
// this entry: everything ranked below Value plus Value's own mass.
func (e Entry) RMinNext() float64 {
	return e.RankMin + e.WMin
}

// RMaxPrev returns the highest possible rank of the value immediately before
// this entry.
func (e Entry) RMaxPrev() float64 {
	return e.RankMax - e.WMin
}

// MidRank returns the midpoint of the rank bounds, used as the effective rank
// of the entry during pruning and quantile lookup.
func (e Entry) MidRank() float64 {
	return (e.RankMin + e.RankMax) / 2
}

// Width returns the size of the rank-bound interval.
func (e Entry) Width() float64 {
	return e.RankMax - e.RankMin
}

// EqualFunc compares two entries for duplicate collapsing. The default used
// by the container is exact value equality.
type EqualFunc func(a, b Entry) bool

// ValueEq is the default duplicate comparator: exact value equality.
func ValueEq(a, b Entry) bool {
	return a.Value == b.Value
}
