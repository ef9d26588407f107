package histogram

import (
	"math"
	"sort"
)

// GroupType is the logical data-point group handled by histogram
// aggregators.
const GroupType = "histogram"

// Bin is one bucket of a histogram: the canonical representative of
// the bucket (its Truncate value) and the number of samples in it.
type Bin struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// Histogram is an immutable per-timestamp snapshot of bucketed samples
// together with the summary statistics describing them. Min and max
// are outer bounds of the underlying data and may be tighter than the
// range spanned by the canonical bin keys.
type Histogram struct {
	timestamp     int64
	bins          []Bin
	min           float64
	max           float64
	mean          float64
	sum           float64
	sampleCount   int
	originalCount int
}

// New builds a histogram from bins that are already in ascending key
// order with unique canonical keys, plus precomputed statistics.
// originalCount is the sample count before any filtering; it travels
// with the histogram so downstream stages can tell "was empty" from
// "filtered to empty".
func New(timestamp int64, bins []Bin, min, max, mean, sum float64, originalCount int) *Histogram {
	sampleCount := 0
	for _, b := range bins {
		sampleCount += b.Count
	}
	return &Histogram{
		timestamp:     timestamp,
		bins:          bins,
		min:           min,
		max:           max,
		mean:          mean,
		sum:           sum,
		sampleCount:   sampleCount,
		originalCount: originalCount,
	}
}

// FromValues buckets raw samples into a histogram. Each sample is
// truncated to its canonical bin key; min and max track both the raw
// sample and its inclusive bucket bound so they remain valid outer
// bounds; sum accumulates the truncated values. A zero-sample call
// yields mean = NaN (0/0), which callers treat as an empty histogram.
func FromValues(timestamp int64, values ...float64) *Histogram {
	counts := make(map[uint64]int, len(values))
	min := math.MaxFloat64
	max := -math.MaxFloat64
	sum := 0.0
	for _, v := range values {
		key := Truncate(v)
		// Keyed by bit pattern: -0.0 and +0.0 are distinct buckets but
		// equal float64 map keys.
		counts[math.Float64bits(key)]++
		bound := InclusiveBound(v)
		min = math.Min(min, math.Min(v, bound))
		max = math.Max(max, math.Max(v, bound))
		sum += key
	}
	bins := make([]Bin, 0, len(counts))
	for bits, c := range counts {
		bins = append(bins, Bin{Value: math.Float64frombits(bits), Count: c})
	}
	sort.Slice(bins, func(i, j int) bool { return binLess(bins[i].Value, bins[j].Value) })
	mean := sum / float64(len(values))
	return New(timestamp, bins, min, max, mean, sum, len(values))
}

// binLess orders bin keys ascending, keeping -0.0 ahead of +0.0.
func binLess(a, b float64) bool {
	if a != b {
		return a < b
	}
	return IsNegative(a) && !IsNegative(b)
}

// Timestamp returns milliseconds since the Unix epoch.
func (h *Histogram) Timestamp() int64 { return h.timestamp }

// Precision returns the number of mantissa bits retained by the codec.
func (h *Histogram) Precision() int { return Precision }

// Bins returns the bins in ascending key order. Callers must not
// modify the returned slice.
func (h *Histogram) Bins() []Bin { return h.bins }

func (h *Histogram) Min() float64  { return h.min }
func (h *Histogram) Max() float64  { return h.max }
func (h *Histogram) Mean() float64 { return h.mean }
func (h *Histogram) Sum() float64  { return h.sum }

// SampleCount is the number of samples across all bins.
func (h *Histogram) SampleCount() int { return h.sampleCount }

// OriginalCount is the sample count before the most recent filter
// pass. It is preserved even when every bin has been discarded.
func (h *Histogram) OriginalCount() int { return h.originalCount }
