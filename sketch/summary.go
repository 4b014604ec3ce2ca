package sketch

import (
	"math"
	"sort"
)

// BuildWeighted materializes a summary segment from one column's pre-sorted
// samples and appends it to dst. Exact-value duplicates are collapsed into a
// single entry carrying the accumulated weight mass; rank bounds come from the
// running prefix sum of weights. A nil weights slice means unit weight per
// sample.
//
// values must be sorted ascending; the caller validates this.
func BuildWeighted(dst []Entry, values []float32, weights []float64) []Entry {
	var cum float64
	for i := 0; i < len(values); {
		v := values[i]
		var w float64
		for i < len(values) && values[i] == v {
			if weights == nil {
				w++
			} else {
				w += weights[i]
			}
			i++
		}
		dst = append(dst, Entry{
			Value:   v,
			RankMin: cum,
			RankMax: cum + w,
			WMin:    w,
		})
		cum += w
	}
	return dst
}

// MergeSegments merges two summary segments of the same column into dst,
// recomputing rank bounds so that the merged bounds stay valid for the union
// of the underlying data.
//
// The merge walks both inputs in value order while tracking, per side, the
// lowest rank any not-yet-consumed entry of that side can have. An entry taken
// from one side has its bounds shifted by the other side's running offsets;
// value ties combine both entries into one, summing bounds and weight.
func MergeSegments(dst, a, b []Entry) []Entry {
	if len(a) == 0 {
		return append(dst, b...)
	}
	if len(b) == 0 {
		return append(dst, a...)
	}

	var (
		i, j         int
		aNext, bNext float64 // lowest rank the next entry of each side can take
	)
	for i < len(a) && j < len(b) {
		x, y := a[i], b[j]
		switch {
		case x.Value < y.Value:
			dst = append(dst, Entry{
				Value:   x.Value,
				RankMin: x.RankMin + bNext,
				RankMax: x.RankMax + y.RMaxPrev(),
				WMin:    x.WMin,
			})
			aNext = x.RMinNext()
			i++
		case x.Value > y.Value:
			dst = append(dst, Entry{
				Value:   y.Value,
				RankMin: y.RankMin + aNext,
				RankMax: y.RankMax + x.RMaxPrev(),
				WMin:    y.WMin,
			})
			bNext = y.RMinNext()
			j++
		default:
			dst = append(dst, Entry{
				Value:   x.Value,
				RankMin: x.RankMin + y.RankMin,
				RankMax: x.RankMax + y.RankMax,
				WMin:    x.WMin + y.WMin,
			})
			aNext = x.RMinNext()
			bNext = y.RMinNext()
			i++
			j++
		}
	}

	// Residual tail: everything left ranks above the exhausted side.
	for ; i < len(a); i++ {
		x := a[i]
		dst = append(dst, Entry{
			Value:   x.Value,
			RankMin: x.RankMin + bNext,
			RankMax: x.RankMax + b[len(b)-1].RankMax,
			WMin:    x.WMin,
		})
	}
	for ; j < len(b); j++ {
		y := b[j]
		dst = append(dst, Entry{
			Value:   y.Value,
			RankMin: y.RankMin + aNext,
			RankMax: y.RankMax + a[len(a)-1].RankMax,
			WMin:    y.WMin,
		})
	}
	return dst
}

// PruneSegment appends to dst at most `to` entries of src, chosen at
// approximately evenly spaced rank positions. The first and last entries and
// the entry with the widest rank-bound interval are always retained, so that
// the column minimum, maximum and the loosest bound survive pruning.
//
// Interior picks use nearest-rank binary search over the rank midpoints; on an
// exact tie between two candidates the lower index (lower value) wins.
func PruneSegment(dst, src []Entry, to int) []Entry {
	n := len(src)
	if to < 2 {
		to = 2
	}
	if n <= to {
		return append(dst, src...)
	}

	total := src[n-1].RankMax
	picks := make([]int, 0, to)
	picks = append(picks, 0)
	step := total / float64(to-1)
	for k := 1; k < to-1; k++ {
		idx := nearestMidRank(src, step*float64(k))
		if idx < 1 {
			idx = 1
		}
		if idx > n-2 {
			idx = n - 2
		}
		picks = append(picks, idx)
	}
	picks = append(picks, n-1)

	// Force-retain the widest-bound entry: swap it in for the interior pick
	// closest to it so the output count stays bounded by `to`.
	w := widestIndex(src)
	if !containsSorted(picks, w) && w > 0 && w < n-1 {
		nearest := 1
		for p := 1; p < len(picks)-1; p++ {
			if abs(picks[p]-w) < abs(picks[nearest]-w) {
				nearest = p
			}
		}
		picks[nearest] = w
		sort.Ints(picks)
	}

	prev := -1
	for _, p := range picks {
		if p == prev {
			continue
		}
		dst = append(dst, src[p])
		prev = p
	}
	return dst
}

// nearestMidRank returns the index of the entry whose rank midpoint is
// closest to target, preferring the lower index on ties.
func nearestMidRank(src []Entry, target float64) int {
	idx := sort.Search(len(src), func(i int) bool {
		return src[i].MidRank() >= target
	})
	if idx == 0 {
		return 0
	}
	if idx == len(src) {
		return len(src) - 1
	}
	if target-src[idx-1].MidRank() <= src[idx].MidRank()-target {
		return idx - 1
	}
	return idx
}

func widestIndex(src []Entry) int {
	w := 0
	for i := 1; i < len(src); i++ {
		if src[i].Width() > src[w].Width() {
			w = i
		}
	}
	return w
}

func containsSorted(s []int, v int) bool {
	i := sort.SearchInts(s, v)
	return i < len(s) && s[i] == v
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// UniqueSegment appends to dst one representative per maximal run of entries
// comparing equal under eq. The representative keeps the first entry of the
// run but carries the maximum RankMax observed across the run, so collapsing
// never tightens an upper bound.
//
// src must be sorted by value, which Push and Merge guarantee.
func UniqueSegment(dst, src []Entry, eq EqualFunc) []Entry {
	for i := 0; i < len(src); {
		keep := src[i]
		j := i + 1
		for j < len(src) && eq(src[j], keep) {
			if src[j].RankMax > keep.RankMax {
				keep.RankMax = src[j].RankMax
			}
			j++
		}
		dst = append(dst, keep)
		i = j
	}
	return dst
}

// FixSegment repairs floating-point drift in a segment's rank bounds with a
// single monotone forward pass: RankMin never decreases along the segment,
// and RankMax never drops below the entry's own RankMin nor the previous
// entry's RankMax. Entries are never removed or reordered; running the pass
// twice is a no-op.
func FixSegment(seg []Entry) {
	var prevMin, prevMax float64
	for i := range seg {
		e := &seg[i]
		if e.RankMin < prevMin {
			e.RankMin = prevMin
		}
		if e.RankMax < e.RankMin {
			e.RankMax = e.RankMin
		}
		if e.RankMax < prevMax {
			e.RankMax = prevMax
		}
		prevMin, prevMax = e.RankMin, e.RankMax
	}
}

// SegmentQuantile returns the value of the entry whose effective rank is
// closest to q*totalWeight, for q in [0, 1].
func SegmentQuantile(seg []Entry, q float64) float32 {
	if len(seg) == 0 {
		return float32(math.NaN())
	}
	target := q * seg[len(seg)-1].RankMax
	return seg[nearestMidRank(seg, target)].Value
}
