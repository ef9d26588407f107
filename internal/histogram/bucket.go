// Package histogram implements fixed-relative-precision histograms
// bucketed directly on the bit layout of float64 values. A bucket is
// identified by the sign bit, the 11 exponent bits and the top
// Precision mantissa bits of its members; the remaining low-order bits
// are dropped. Bucket width therefore grows geometrically with
// magnitude, and classification is O(1) with no lookup table.
package histogram

import "math"

// Precision is the number of mantissa bits retained when assigning a
// sample to a bucket. It is fixed for every histogram produced by this
// package.
const Precision = 7

const (
	prefixBits  = 1 + 11 + Precision
	droppedBits = 64 - prefixBits
	prefixMask  = ^uint64(0) >> droppedBits << droppedBits
)

// Truncate returns the canonical representative of v's bucket: the
// bound on the side of the bucket nearer the origin. Zeroing mantissa
// bits always reduces magnitude, so this is the numerically smaller
// bound for positive values and the larger one for negative values.
func Truncate(v float64) float64 {
	return math.Float64frombits(math.Float64bits(v) & prefixMask)
}

// InclusiveBound returns the bound of v's bucket on the far side from
// the origin: an inclusive upper bound for positive values and an
// inclusive lower bound for negative values. The bucket prefix is
// incremented and the dropped bits are set to all-ones.
func InclusiveBound(v float64) float64 {
	b := int64(math.Float64bits(v))
	b >>= droppedBits
	b++
	b <<= droppedBits
	b--
	return math.Float64frombits(uint64(b))
}

// IsNegative reports whether v carries the sign bit. Unlike v < 0 it
// distinguishes -0.0 from +0.0, which occupy separate, adjoining
// buckets.
func IsNegative(v float64) bool {
	return int64(math.Float64bits(v)) < 0
}

// Bounds returns the numeric lower and upper inclusive bounds of the
// bucket containing v. The roles of Truncate and InclusiveBound swap
// for negative values, where the bit-pattern direction of increasing
// magnitude is reversed.
func Bounds(v float64) (lower, upper float64) {
	if IsNegative(v) {
		return InclusiveBound(v), Truncate(v)
	}
	return Truncate(v), InclusiveBound(v)
}
