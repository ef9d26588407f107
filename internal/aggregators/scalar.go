package aggregators

import (
	"github.com/histfilter/histfilter/internal/models"
)

// ScalarFilter removes scalar points whose value is accepted by the
// threshold comparison. It is the plain-number counterpart of
// HistogramFilter; scalar points carry an exact value, so there are no
// indeterminate buckets and the inclusion policy does not apply.
type ScalarFilter struct {
	spec FilterSpec
}

func NewScalarFilter(spec FilterSpec) *ScalarFilter {
	return &ScalarFilter{spec: spec}
}

// WithSpec returns a filter configured with spec, leaving the receiver
// untouched.
func (f *ScalarFilter) WithSpec(spec FilterSpec) Aggregator {
	return NewScalarFilter(spec)
}

func (f *ScalarFilter) CanAggregate(groupType string) bool {
	return groupType == models.GroupTypeNumber
}

func (f *ScalarFilter) AggregatedGroupType(groupType string) string {
	return models.GroupTypeNumber
}

func (f *ScalarFilter) Aggregate(group models.DataPointGroup) (models.DataPointGroup, error) {
	if group == nil {
		return nil, ErrNilGroup
	}
	return &scalarFilterGroup{spec: f.spec, upstream: group}, nil
}

type scalarFilterGroup struct {
	spec     FilterSpec
	upstream models.DataPointGroup
}

func (g *scalarFilterGroup) Next() (models.DataPoint, bool) {
	for {
		dp, ok := g.upstream.Next()
		if !ok {
			return nil, false
		}
		p, ok := dp.(models.ScalarPoint)
		if !ok {
			continue
		}
		if !g.accepts(p.Value) {
			return p, true
		}
	}
}

func (g *scalarFilterGroup) accepts(v float64) bool {
	if g.spec.Operation == FilterEqual {
		return v == g.spec.Threshold
	}
	return g.spec.Operation.accepts(v, g.spec.Threshold)
}
