// Package aggregators implements the aggregation operators that run
// over data point groups, and the capability registry that selects the
// right implementation for a group type.
package aggregators

import (
	"errors"
	"fmt"
	"math"

	"github.com/histfilter/histfilter/internal/histogram"
	"github.com/histfilter/histfilter/internal/models"
)

// ErrNilGroup is returned when a filter is asked to aggregate a nil
// upstream group.
var ErrNilGroup = errors.New("aggregators: nil data point group")

// FilterOperation is the comparison applied between a value and the
// configured threshold. A value accepted by the operation is removed.
type FilterOperation int

const (
	FilterLT FilterOperation = iota
	FilterLTE
	FilterGT
	FilterGTE
	FilterEqual
)

// ParseFilterOperation maps the configuration-surface spelling of an
// operation to its enum value.
func ParseFilterOperation(s string) (FilterOperation, error) {
	switch s {
	case "lt":
		return FilterLT, nil
	case "lte":
		return FilterLTE, nil
	case "gt":
		return FilterGT, nil
	case "gte":
		return FilterGTE, nil
	case "equal":
		return FilterEqual, nil
	}
	return 0, fmt.Errorf("unknown filter operation %q", s)
}

func (op FilterOperation) String() string {
	switch op {
	case FilterLT:
		return "lt"
	case FilterLTE:
		return "lte"
	case FilterGT:
		return "gt"
	case FilterGTE:
		return "gte"
	case FilterEqual:
		return "equal"
	}
	return fmt.Sprintf("FilterOperation(%d)", int(op))
}

// accepts reports whether the operation, applied to v against the
// threshold, matches. FilterEqual is handled separately by callers and
// must not reach this path.
func (op FilterOperation) accepts(v, threshold float64) bool {
	switch op {
	case FilterLT:
		return v < threshold
	case FilterLTE:
		return v <= threshold
	case FilterGT:
		return v > threshold
	case FilterGTE:
		return v >= threshold
	}
	panic("aggregators: unsupported filter operation")
}

// Inclusion decides the fate of an indeterminate bucket, one whose
// range straddles the threshold.
type Inclusion int

const (
	// InclusionKeep retains a bucket unless its entire range
	// unambiguously satisfies the filter condition.
	InclusionKeep Inclusion = iota
	// InclusionDiscard removes a bucket whenever any part of its range
	// might satisfy the filter condition.
	InclusionDiscard
)

// ParseInclusion maps the configuration-surface spelling of an
// indeterminate-inclusion policy to its enum value.
func ParseInclusion(s string) (Inclusion, error) {
	switch s {
	case "keep":
		return InclusionKeep, nil
	case "discard":
		return InclusionDiscard, nil
	}
	return 0, fmt.Errorf("unknown indeterminate inclusion %q", s)
}

func (inc Inclusion) String() string {
	switch inc {
	case InclusionKeep:
		return "keep"
	case InclusionDiscard:
		return "discard"
	}
	return fmt.Sprintf("Inclusion(%d)", int(inc))
}

// shouldDiscard combines the per-bound acceptance results for a bucket.
func (inc Inclusion) shouldDiscard(acceptsLower, acceptsUpper bool) bool {
	switch inc {
	case InclusionKeep:
		return acceptsLower && acceptsUpper
	case InclusionDiscard:
		return acceptsLower || acceptsUpper
	}
	panic("aggregators: unsupported indeterminate inclusion")
}

// FilterSpec is the pipeline-construction-time configuration of a
// filter stage. It is immutable once captured by an aggregator.
type FilterSpec struct {
	Operation FilterOperation
	Inclusion Inclusion
	Threshold float64
}

// HistogramFilter removes histogram bins accepted by the threshold
// comparison and recomputes the summary statistics of the survivors.
// Histograms left with no surviving bins are dropped from the output
// group entirely, as are non-histogram data points.
type HistogramFilter struct {
	spec FilterSpec
}

func NewHistogramFilter(spec FilterSpec) *HistogramFilter {
	return &HistogramFilter{spec: spec}
}

// WithSpec returns a filter configured with spec, leaving the receiver
// untouched.
func (f *HistogramFilter) WithSpec(spec FilterSpec) Aggregator {
	return NewHistogramFilter(spec)
}

func (f *HistogramFilter) CanAggregate(groupType string) bool {
	return groupType == histogram.GroupType
}

func (f *HistogramFilter) AggregatedGroupType(groupType string) string {
	return histogram.GroupType
}

// Aggregate wraps group in a lazy filtering sequence. It fails
// immediately on a nil group rather than on first pull.
func (f *HistogramFilter) Aggregate(group models.DataPointGroup) (models.DataPointGroup, error) {
	if group == nil {
		return nil, ErrNilGroup
	}
	return &histogramFilterGroup{spec: f.spec, upstream: group}, nil
}

// histogramFilterGroup is the streaming transform: it pulls from
// upstream, filters each histogram, and skips results with zero
// surviving bins so that every emitted item carries at least one
// sample.
type histogramFilterGroup struct {
	spec     FilterSpec
	upstream models.DataPointGroup
}

func (g *histogramFilterGroup) Next() (models.DataPoint, bool) {
	for {
		dp, ok := g.upstream.Next()
		if !ok {
			return nil, false
		}
		if h := g.filterBins(dp); h != nil && h.SampleCount() > 0 {
			return h, true
		}
	}
}

// filterBins applies the per-bin decision to a single data point.
// Non-histogram points yield nil, which the caller drops. A histogram
// provably unaffected by the threshold is returned unchanged, with no
// allocation or summary recomputation.
func (g *histogramFilterGroup) filterBins(dp models.DataPoint) *histogram.Histogram {
	hist, ok := dp.(*histogram.Histogram)
	if !ok {
		return nil
	}
	if g.histUnaffected(hist) {
		return hist
	}

	filtered := make([]histogram.Bin, 0, len(hist.Bins()))
	min := math.MaxFloat64
	max := -math.MaxFloat64
	sum := 0.0
	count := 0
	for _, bin := range hist.Bins() {
		if g.shouldDiscard(bin.Value) {
			continue
		}
		filtered = append(filtered, bin)
		lower, upper := histogram.Bounds(bin.Value)
		min = math.Min(min, lower)
		max = math.Max(max, upper)
		sum += bin.Value * float64(bin.Count)
		count += bin.Count
	}
	if g.minUnaffected(hist) {
		min = hist.Min()
	}
	if g.maxUnaffected(hist) {
		max = hist.Max()
	}
	// mean is NaN when no bins survive; such results are skipped by
	// Next before reaching a consumer.
	mean := sum / float64(count)
	return histogram.New(hist.Timestamp(), filtered, min, max, mean, sum, hist.OriginalCount())
}

// histUnaffected reports whether the outer [min, max] bounds already
// decide the comparison for the whole histogram.
func (g *histogramFilterGroup) histUnaffected(h *histogram.Histogram) bool {
	switch g.spec.Operation {
	case FilterGT, FilterGTE:
		return g.boundUnaffected(h.Max(), true)
	case FilterLT, FilterLTE:
		return g.boundUnaffected(h.Min(), false)
	case FilterEqual:
		return g.spec.Threshold < h.Min() ||
			(h.Max() < g.spec.Threshold && g.spec.Inclusion == InclusionDiscard)
	}
	panic("aggregators: unsupported filter operation")
}

// minUnaffected reports whether the filter cannot have moved the
// histogram's lower bound, in which case the original min is kept
// verbatim.
func (g *histogramFilterGroup) minUnaffected(h *histogram.Histogram) bool {
	return g.boundUnaffected(h.Min(), false)
}

// maxUnaffected is the symmetric rule for the upper bound.
func (g *histogramFilterGroup) maxUnaffected(h *histogram.Histogram) bool {
	return g.boundUnaffected(h.Max(), true)
}

// boundUnaffected reports whether the operation and threshold provably
// cannot discard mass at the given histogram bound. The upper flag
// selects which side of the histogram the bound describes; operations
// pointing away from that side never affect it.
func (g *histogramFilterGroup) boundUnaffected(bound float64, upper bool) bool {
	switch g.spec.Operation {
	case FilterGT:
		return !upper || g.spec.Threshold >= bound
	case FilterGTE:
		return !upper || g.spec.Threshold > bound
	case FilterLT:
		return upper || g.spec.Threshold <= bound
	case FilterLTE:
		return upper || g.spec.Threshold < bound
	case FilterEqual:
		return !g.shouldDiscard(bound)
	}
	panic("aggregators: unsupported filter operation")
}

// shouldDiscard classifies one bin by evaluating the comparison against
// both of its bucket bounds and combining the results under the
// configured inclusion policy. Equality is special-cased: a bucket is
// discarded under InclusionDiscard when the threshold falls anywhere
// within its range, and never under InclusionKeep, since a bucket
// cannot be proven equal to a point threshold across its whole range.
func (g *histogramFilterGroup) shouldDiscard(value float64) bool {
	lower, upper := histogram.Bounds(value)
	if g.spec.Operation == FilterEqual {
		switch g.spec.Inclusion {
		case InclusionDiscard:
			return g.spec.Threshold >= lower && g.spec.Threshold <= upper
		case InclusionKeep:
			return false
		}
		panic("aggregators: unsupported indeterminate inclusion")
	}
	acceptsLower := g.spec.Operation.accepts(lower, g.spec.Threshold)
	acceptsUpper := g.spec.Operation.accepts(upper, g.spec.Threshold)
	return g.spec.Inclusion.shouldDiscard(acceptsLower, acceptsUpper)
}
