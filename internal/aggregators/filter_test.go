package aggregators_test

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histfilter/histfilter/internal/aggregators"
	"github.com/histfilter/histfilter/internal/histogram"
	"github.com/histfilter/histfilter/internal/models"
)

var negZero = math.Copysign(0, -1)

var (
	neg516   = histogram.Truncate(-516.0)
	neg512   = histogram.Truncate(-512.0)
	neg100_5 = histogram.Truncate(-100.5)
	neg100_0 = histogram.Truncate(-100.0)
	neg99_5  = histogram.Truncate(-99.5)
	negTiny  = nextLargestBin(negZero)
	posTiny  = nextLargestBin(0.0)
	pos99_5  = histogram.Truncate(99.5)
	pos100_0 = histogram.Truncate(100.0)
	pos100_5 = histogram.Truncate(100.5)
	pos512   = histogram.Truncate(512.0)
	pos516   = histogram.Truncate(516.0)
)

// Middle-of-bin probe values.
const (
	neg100_01 = -100.01
	pos100_01 = 100.01
)

// nextLargestBin returns the canonical key of the bucket adjacent to
// v's bucket, one prefix increment away from the origin.
func nextLargestBin(v float64) float64 {
	b := int64(math.Float64bits(v))
	b >>= 45
	b++
	b <<= 45
	return math.Float64frombits(uint64(b))
}

// exactHistogram mirrors FromValues but keeps min/max at the raw
// sample values instead of extending them to bucket bounds.
func exactHistogram(ts int64, values ...float64) *histogram.Histogram {
	counts := make(map[uint64]int, len(values))
	min := math.MaxFloat64
	max := -math.MaxFloat64
	sum := 0.0
	for _, v := range values {
		key := histogram.Truncate(v)
		counts[math.Float64bits(key)]++
		min = math.Min(min, v)
		max = math.Max(max, v)
		sum += key
	}
	bins := make([]histogram.Bin, 0, len(counts))
	for bits, c := range counts {
		bins = append(bins, histogram.Bin{Value: math.Float64frombits(bits), Count: c})
	}
	sort.Slice(bins, func(i, j int) bool {
		a, b := bins[i].Value, bins[j].Value
		if a != b {
			return a < b
		}
		return histogram.IsNegative(a) && !histogram.IsNegative(b)
	})
	return histogram.New(ts, bins, min, max, sum/float64(len(values)), sum, len(values))
}

func positiveGroup() models.DataPointGroup {
	return models.NewListGroup(
		histogram.FromValues(1, pos99_5, pos100_0, pos100_5),
		histogram.FromValues(2, 0.0, pos512, pos516),
	)
}

func negativeGroup() models.DataPointGroup {
	return models.NewListGroup(
		histogram.FromValues(1, neg99_5, neg100_0, neg100_5),
		histogram.FromValues(2, negZero, neg512, neg516),
	)
}

func filterGroup(t *testing.T, spec aggregators.FilterSpec, group models.DataPointGroup) models.DataPointGroup {
	t.Helper()
	out, err := aggregators.NewHistogramFilter(spec).Aggregate(group)
	require.NoError(t, err)
	return out
}

func assertGroupsEqual(t *testing.T, expected, actual models.DataPointGroup) {
	t.Helper()
	for {
		expDP, expOK := expected.Next()
		actDP, actOK := actual.Next()
		if !expOK {
			require.False(t, actOK, "actual group has too many data points")
			return
		}
		require.True(t, actOK, "actual group is missing data points")
		require.Equal(t, expDP.Timestamp(), actDP.Timestamp(), "timestamps do not match")

		exp, ok := expDP.(*histogram.Histogram)
		require.True(t, ok, "expected point is not a histogram")
		act, ok := actDP.(*histogram.Histogram)
		require.True(t, ok, "actual point is not a histogram")

		assert.Equal(t, exp.Bins(), act.Bins(), "bins do not match")
		assert.Equal(t, exp.SampleCount(), act.SampleCount(), "sample counts do not match")
		assert.Equal(t, exp.Sum(), act.Sum(), "sums do not match")
		assert.Equal(t, exp.Min(), act.Min(), "mins do not match")
		assert.Equal(t, exp.Max(), act.Max(), "maxes do not match")
	}
}

func TestHistogramFilterNilGroup(t *testing.T) {
	_, err := aggregators.NewHistogramFilter(aggregators.FilterSpec{}).Aggregate(nil)
	require.ErrorIs(t, err, aggregators.ErrNilGroup)
}

func TestHistogramFilterEmptyGroup(t *testing.T) {
	out := filterGroup(t, aggregators.FilterSpec{Operation: aggregators.FilterLT}, models.NewListGroup())
	_, ok := out.Next()
	assert.False(t, ok, "expected no data points")
}

func TestHistogramFilterNonHistogramPoints(t *testing.T) {
	group := models.NewListGroup(
		models.ScalarPoint{Time: 1, Value: 100.0},
		models.ScalarPoint{Time: 2, Value: 100.0},
	)
	out := filterGroup(t, aggregators.FilterSpec{Operation: aggregators.FilterLT}, group)
	_, ok := out.Next()
	assert.False(t, ok, "non-histogram points must be dropped")
}

func TestHistogramFilterRemoveAllBins(t *testing.T) {
	group := models.NewListGroup(
		histogram.FromValues(1, pos100_0, pos512, pos516),
		histogram.FromValues(2, pos100_0, pos512, pos516),
	)
	spec := aggregators.FilterSpec{
		Operation: aggregators.FilterGTE,
		Inclusion: aggregators.InclusionKeep,
		Threshold: 0.0,
	}
	out := filterGroup(t, spec, group)
	_, ok := out.Next()
	assert.False(t, ok, "all-bins-removed histograms must be skipped")
}

func TestHistogramFilterOriginalCountPreserved(t *testing.T) {
	h := histogram.FromValues(1, pos99_5, pos100_0, pos100_5)
	spec := aggregators.FilterSpec{
		Operation: aggregators.FilterLT,
		Inclusion: aggregators.InclusionDiscard,
		Threshold: pos100_01,
	}
	out := filterGroup(t, spec, models.NewListGroup(h))
	dp, ok := out.Next()
	require.True(t, ok)
	filtered := dp.(*histogram.Histogram)
	assert.Equal(t, h.OriginalCount(), filtered.OriginalCount())
	assert.Less(t, filtered.SampleCount(), h.SampleCount())
}

func TestHistogramFilterAroundZero(t *testing.T) {
	t.Run("lte positive zero keeps positive buckets", func(t *testing.T) {
		group := models.NewListGroup(histogram.FromValues(1, posTiny, 0.0, negZero, negTiny))
		spec := aggregators.FilterSpec{
			Operation: aggregators.FilterLTE,
			Inclusion: aggregators.InclusionKeep,
			Threshold: 0.0,
		}
		expected := models.NewListGroup(histogram.FromValues(1, posTiny, 0.0))
		assertGroupsEqual(t, expected, filterGroup(t, spec, group))
	})

	t.Run("gte negative zero keeps negative buckets", func(t *testing.T) {
		group := models.NewListGroup(histogram.FromValues(1, posTiny, 0.0, negZero, negTiny))
		spec := aggregators.FilterSpec{
			Operation: aggregators.FilterGTE,
			Inclusion: aggregators.InclusionKeep,
			Threshold: negZero,
		}
		expected := models.NewListGroup(histogram.FromValues(1, negZero, negTiny))
		assertGroupsEqual(t, expected, filterGroup(t, spec, group))
	})
}

func TestHistogramFilterMatrix(t *testing.T) {
	type expectation struct {
		first  []float64 // surviving raw values of the timestamp-1 histogram
		second []float64 // surviving raw values of the timestamp-2 histogram
	}
	tests := []struct {
		name       string
		op         aggregators.FilterOperation
		inc        aggregators.Inclusion
		atBoundary bool
		positive   bool
		expected   expectation
	}{
		{"lt keep boundary positive", aggregators.FilterLT, aggregators.InclusionKeep, true, true,
			expectation{[]float64{pos100_0, pos100_5}, []float64{pos512, pos516}}},
		{"lt keep boundary negative", aggregators.FilterLT, aggregators.InclusionKeep, true, false,
			expectation{[]float64{neg99_5, neg100_0}, []float64{negZero}}},
		{"lt keep middle positive", aggregators.FilterLT, aggregators.InclusionKeep, false, true,
			expectation{[]float64{pos100_0, pos100_5}, []float64{pos512, pos516}}},
		{"lt keep middle negative", aggregators.FilterLT, aggregators.InclusionKeep, false, false,
			expectation{[]float64{neg99_5, neg100_0}, []float64{negZero}}},
		{"lt discard boundary positive", aggregators.FilterLT, aggregators.InclusionDiscard, true, true,
			expectation{[]float64{pos100_0, pos100_5}, []float64{pos512, pos516}}},
		{"lt discard boundary negative", aggregators.FilterLT, aggregators.InclusionDiscard, true, false,
			expectation{[]float64{neg99_5}, []float64{negZero}}},
		{"lt discard middle positive", aggregators.FilterLT, aggregators.InclusionDiscard, false, true,
			expectation{[]float64{pos100_5}, []float64{pos512, pos516}}},
		{"lt discard middle negative", aggregators.FilterLT, aggregators.InclusionDiscard, false, false,
			expectation{[]float64{neg99_5}, []float64{negZero}}},

		{"lte keep boundary positive", aggregators.FilterLTE, aggregators.InclusionKeep, true, true,
			expectation{[]float64{pos100_0, pos100_5}, []float64{pos512, pos516}}},
		{"lte keep boundary negative", aggregators.FilterLTE, aggregators.InclusionKeep, true, false,
			expectation{[]float64{neg99_5}, []float64{negZero}}},
		{"lte keep middle positive", aggregators.FilterLTE, aggregators.InclusionKeep, false, true,
			expectation{[]float64{pos100_0, pos100_5}, []float64{pos512, pos516}}},
		{"lte keep middle negative", aggregators.FilterLTE, aggregators.InclusionKeep, false, false,
			expectation{[]float64{neg99_5, neg100_0}, []float64{negZero}}},
		{"lte discard boundary positive", aggregators.FilterLTE, aggregators.InclusionDiscard, true, true,
			expectation{[]float64{pos100_5}, []float64{pos512, pos516}}},
		{"lte discard boundary negative", aggregators.FilterLTE, aggregators.InclusionDiscard, true, false,
			expectation{[]float64{neg99_5}, []float64{negZero}}},
		{"lte discard middle positive", aggregators.FilterLTE, aggregators.InclusionDiscard, false, true,
			expectation{[]float64{pos100_5}, []float64{pos512, pos516}}},
		{"lte discard middle negative", aggregators.FilterLTE, aggregators.InclusionDiscard, false, false,
			expectation{[]float64{neg99_5}, []float64{negZero}}},

		{"gt keep boundary positive", aggregators.FilterGT, aggregators.InclusionKeep, true, true,
			expectation{[]float64{pos99_5, pos100_0}, []float64{0.0}}},
		{"gt keep boundary negative", aggregators.FilterGT, aggregators.InclusionKeep, true, false,
			expectation{[]float64{neg100_0, neg100_5}, []float64{neg512, neg516}}},
		{"gt keep middle positive", aggregators.FilterGT, aggregators.InclusionKeep, false, true,
			expectation{[]float64{pos99_5, pos100_0}, []float64{0.0}}},
		{"gt keep middle negative", aggregators.FilterGT, aggregators.InclusionKeep, false, false,
			expectation{[]float64{neg100_0, neg100_5}, []float64{neg512, neg516}}},
		{"gt discard boundary positive", aggregators.FilterGT, aggregators.InclusionDiscard, true, true,
			expectation{[]float64{pos99_5}, []float64{0.0}}},
		{"gt discard boundary negative", aggregators.FilterGT, aggregators.InclusionDiscard, true, false,
			expectation{[]float64{neg100_0, neg100_5}, []float64{neg512, neg516}}},
		{"gt discard middle positive", aggregators.FilterGT, aggregators.InclusionDiscard, false, true,
			expectation{[]float64{pos99_5}, []float64{0.0}}},
		{"gt discard middle negative", aggregators.FilterGT, aggregators.InclusionDiscard, false, false,
			expectation{[]float64{neg100_5}, []float64{neg512, neg516}}},

		{"gte keep boundary positive", aggregators.FilterGTE, aggregators.InclusionKeep, true, true,
			expectation{[]float64{pos99_5}, []float64{0.0}}},
		{"gte keep boundary negative", aggregators.FilterGTE, aggregators.InclusionKeep, true, false,
			expectation{[]float64{neg100_0, neg100_5}, []float64{neg512, neg516}}},
		{"gte keep middle positive", aggregators.FilterGTE, aggregators.InclusionKeep, false, true,
			expectation{[]float64{pos99_5, pos100_0}, []float64{0.0}}},
		{"gte keep middle negative", aggregators.FilterGTE, aggregators.InclusionKeep, false, false,
			expectation{[]float64{neg100_0, neg100_5}, []float64{neg512, neg516}}},
		{"gte discard boundary positive", aggregators.FilterGTE, aggregators.InclusionDiscard, true, true,
			expectation{[]float64{pos99_5}, []float64{0.0}}},
		{"gte discard boundary negative", aggregators.FilterGTE, aggregators.InclusionDiscard, true, false,
			expectation{[]float64{neg100_5}, []float64{neg512, neg516}}},
		{"gte discard middle positive", aggregators.FilterGTE, aggregators.InclusionDiscard, false, true,
			expectation{[]float64{pos99_5}, []float64{0.0}}},
		{"gte discard middle negative", aggregators.FilterGTE, aggregators.InclusionDiscard, false, false,
			expectation{[]float64{neg100_5}, []float64{neg512, neg516}}},

		{"equal keep boundary positive", aggregators.FilterEqual, aggregators.InclusionKeep, true, true,
			expectation{[]float64{pos99_5, pos100_0, pos100_5}, []float64{0.0, pos512, pos516}}},
		{"equal keep boundary negative", aggregators.FilterEqual, aggregators.InclusionKeep, true, false,
			expectation{[]float64{neg99_5, neg100_0, neg100_5}, []float64{negZero, neg512, neg516}}},
		{"equal keep middle positive", aggregators.FilterEqual, aggregators.InclusionKeep, false, true,
			expectation{[]float64{pos99_5, pos100_0, pos100_5}, []float64{0.0, pos512, pos516}}},
		{"equal keep middle negative", aggregators.FilterEqual, aggregators.InclusionKeep, false, false,
			expectation{[]float64{neg99_5, neg100_0, neg100_5}, []float64{negZero, neg512, neg516}}},
		{"equal discard boundary positive", aggregators.FilterEqual, aggregators.InclusionDiscard, true, true,
			expectation{[]float64{pos99_5, pos100_5}, []float64{0.0, pos512, pos516}}},
		{"equal discard boundary negative", aggregators.FilterEqual, aggregators.InclusionDiscard, true, false,
			expectation{[]float64{neg99_5, neg100_5}, []float64{negZero, neg512, neg516}}},
		{"equal discard middle positive", aggregators.FilterEqual, aggregators.InclusionDiscard, false, true,
			expectation{[]float64{pos99_5, pos100_5}, []float64{0.0, pos512, pos516}}},
		{"equal discard middle negative", aggregators.FilterEqual, aggregators.InclusionDiscard, false, false,
			expectation{[]float64{neg99_5, neg100_5}, []float64{negZero, neg512, neg516}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var group models.DataPointGroup
			var threshold float64
			if tt.positive {
				group = positiveGroup()
				if tt.atBoundary {
					threshold = pos100_0
				} else {
					threshold = pos100_01
				}
			} else {
				group = negativeGroup()
				if tt.atBoundary {
					threshold = neg100_0
				} else {
					threshold = neg100_01
				}
			}
			spec := aggregators.FilterSpec{Operation: tt.op, Inclusion: tt.inc, Threshold: threshold}

			var points []models.DataPoint
			if len(tt.expected.first) > 0 {
				points = append(points, histogram.FromValues(1, tt.expected.first...))
			}
			if len(tt.expected.second) > 0 {
				points = append(points, histogram.FromValues(2, tt.expected.second...))
			}
			expected := models.NewListGroup(points...)

			assertGroupsEqual(t, expected, filterGroup(t, spec, group))
		})
	}
}

// Short-circuit cases: a histogram whose outer bounds already decide
// the comparison is returned as the very same instance, and the
// min/max short-circuits keep original bounds verbatim.
func TestHistogramFilterShortCircuits(t *testing.T) {
	mixed := func() *histogram.Histogram {
		return exactHistogram(1, neg100_01, 0.0, pos100_01)
	}

	t.Run("lt unaffected histogram is identity", func(t *testing.T) {
		in := mixed()
		spec := aggregators.FilterSpec{Operation: aggregators.FilterLT, Inclusion: aggregators.InclusionKeep, Threshold: neg512}
		out := filterGroup(t, spec, models.NewListGroup(in))
		dp, ok := out.Next()
		require.True(t, ok)
		require.Same(t, in, dp, "unaffected histogram must be returned unchanged")
	})

	t.Run("lte unaffected histogram is identity", func(t *testing.T) {
		in := mixed()
		spec := aggregators.FilterSpec{Operation: aggregators.FilterLTE, Inclusion: aggregators.InclusionKeep, Threshold: neg512}
		out := filterGroup(t, spec, models.NewListGroup(in))
		dp, ok := out.Next()
		require.True(t, ok)
		require.Same(t, in, dp)
	})

	t.Run("gte unaffected histogram is identity", func(t *testing.T) {
		in := mixed()
		spec := aggregators.FilterSpec{Operation: aggregators.FilterGTE, Inclusion: aggregators.InclusionKeep, Threshold: pos512}
		out := filterGroup(t, spec, models.NewListGroup(in))
		dp, ok := out.Next()
		require.True(t, ok)
		require.Same(t, in, dp)
	})

	t.Run("equal unaffected above range is identity", func(t *testing.T) {
		in := mixed()
		spec := aggregators.FilterSpec{Operation: aggregators.FilterEqual, Inclusion: aggregators.InclusionDiscard, Threshold: pos512}
		out := filterGroup(t, spec, models.NewListGroup(in))
		dp, ok := out.Next()
		require.True(t, ok)
		require.Same(t, in, dp)
	})

	t.Run("equal unaffected below range is identity", func(t *testing.T) {
		in := mixed()
		spec := aggregators.FilterSpec{Operation: aggregators.FilterEqual, Inclusion: aggregators.InclusionDiscard, Threshold: neg512}
		out := filterGroup(t, spec, models.NewListGroup(in))
		dp, ok := out.Next()
		require.True(t, ok)
		require.Same(t, in, dp)
	})

	t.Run("lt keeps original max", func(t *testing.T) {
		spec := aggregators.FilterSpec{Operation: aggregators.FilterLT, Inclusion: aggregators.InclusionKeep, Threshold: negTiny}
		expected := models.NewListGroup(exactHistogram(1, 0.0, pos100_01))
		assertGroupsEqual(t, expected, filterGroup(t, spec, models.NewListGroup(mixed())))
	})

	t.Run("lte keeps original max", func(t *testing.T) {
		spec := aggregators.FilterSpec{Operation: aggregators.FilterLTE, Inclusion: aggregators.InclusionKeep, Threshold: negTiny}
		expected := models.NewListGroup(exactHistogram(1, 0.0, pos100_01))
		assertGroupsEqual(t, expected, filterGroup(t, spec, models.NewListGroup(mixed())))
	})

	t.Run("gte keeps original min", func(t *testing.T) {
		spec := aggregators.FilterSpec{Operation: aggregators.FilterGTE, Inclusion: aggregators.InclusionKeep, Threshold: posTiny}
		expected := models.NewListGroup(exactHistogram(1, neg100_01, histogram.InclusiveBound(0.0)))
		assertGroupsEqual(t, expected, filterGroup(t, spec, models.NewListGroup(mixed())))
	})

	t.Run("equal keeps original min", func(t *testing.T) {
		spec := aggregators.FilterSpec{Operation: aggregators.FilterEqual, Inclusion: aggregators.InclusionDiscard, Threshold: pos100_0}
		expected := models.NewListGroup(exactHistogram(1, neg100_01, histogram.InclusiveBound(0.0)))
		assertGroupsEqual(t, expected, filterGroup(t, spec, models.NewListGroup(mixed())))
	})

	t.Run("equal keeps original max", func(t *testing.T) {
		spec := aggregators.FilterSpec{Operation: aggregators.FilterEqual, Inclusion: aggregators.InclusionDiscard, Threshold: neg100_01}
		expected := models.NewListGroup(exactHistogram(1, 0.0, pos100_01))
		assertGroupsEqual(t, expected, filterGroup(t, spec, models.NewListGroup(mixed())))
	})
}

// Under the same operation and threshold, the discard policy removes a
// superset of the bins removed by the keep policy.
func TestHistogramFilterPolicyMonotonicity(t *testing.T) {
	ops := []aggregators.FilterOperation{
		aggregators.FilterLT, aggregators.FilterLTE,
		aggregators.FilterGT, aggregators.FilterGTE,
		aggregators.FilterEqual,
	}
	thresholds := []float64{neg100_01, negZero, 0.0, pos100_0, pos100_01, pos512}

	survivors := func(spec aggregators.FilterSpec) map[uint64]bool {
		group := models.NewListGroup(histogram.FromValues(1,
			neg516, neg100_5, neg100_01, negZero, 0.0, pos99_5, pos100_01, pos512))
		out := filterGroup(t, spec, group)
		kept := make(map[uint64]bool)
		if dp, ok := out.Next(); ok {
			for _, bin := range dp.(*histogram.Histogram).Bins() {
				kept[math.Float64bits(bin.Value)] = true
			}
		}
		return kept
	}

	for _, op := range ops {
		for _, threshold := range thresholds {
			keep := survivors(aggregators.FilterSpec{Operation: op, Inclusion: aggregators.InclusionKeep, Threshold: threshold})
			discard := survivors(aggregators.FilterSpec{Operation: op, Inclusion: aggregators.InclusionDiscard, Threshold: threshold})
			for bits := range discard {
				assert.True(t, keep[bits],
					"op %v threshold %v: bin kept under discard policy but removed under keep policy", op, threshold)
			}
		}
	}
}

func TestHistogramFilterConservation(t *testing.T) {
	spec := aggregators.FilterSpec{
		Operation: aggregators.FilterGT,
		Inclusion: aggregators.InclusionDiscard,
		Threshold: pos100_01,
	}
	out := filterGroup(t, spec, models.NewListGroup(
		histogram.FromValues(1, pos99_5, pos99_5, pos100_0, pos512, pos516)))
	dp, ok := out.Next()
	require.True(t, ok)
	h := dp.(*histogram.Histogram)

	sum := 0.0
	count := 0
	for _, bin := range h.Bins() {
		sum += bin.Value * float64(bin.Count)
		count += bin.Count
	}
	assert.Equal(t, sum, h.Sum())
	assert.Equal(t, count, h.SampleCount())
	assert.Equal(t, 5, h.OriginalCount())
	assert.Equal(t, sum/float64(count), h.Mean())
}

func TestHistogramFilterUnknownOperationPanics(t *testing.T) {
	spec := aggregators.FilterSpec{Operation: aggregators.FilterOperation(42)}
	out := filterGroup(t, spec, models.NewListGroup(histogram.FromValues(1, pos100_0)))
	require.Panics(t, func() { out.Next() })
}
