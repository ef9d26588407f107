package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/histfilter/histfilter/internal/aggregators"
)

const maxTimeRange = 2 * 365 * 24 * time.Hour

// RequestValidator handles query input validation. Inclusion and
// threshold fall back to the configured defaults when omitted; the
// operation has no default and must always be supplied.
type RequestValidator struct {
	defaultInclusion aggregators.Inclusion
	defaultThreshold float64
}

func NewRequestValidator(defaultInclusion aggregators.Inclusion, defaultThreshold float64) *RequestValidator {
	return &RequestValidator{
		defaultInclusion: defaultInclusion,
		defaultThreshold: defaultThreshold,
	}
}

// ValidateQuery checks the request parameters and assembles the filter
// configuration for this query.
func (v *RequestValidator) ValidateQuery(start, end time.Time, op, inclusion, threshold string) (aggregators.FilterSpec, error) {
	var spec aggregators.FilterSpec

	// Validate timestamps are present
	if start.IsZero() || end.IsZero() || start.Equal(time.Unix(0, 0)) || end.Equal(time.Unix(0, 0)) {
		return spec, fmt.Errorf("missing timestamp")
	}

	// Validate time range
	if start.After(end) {
		return spec, fmt.Errorf("start time must be before end time")
	}

	// Validate maximum time range
	if end.Sub(start) > maxTimeRange {
		return spec, fmt.Errorf("time range exceeds maximum allowed")
	}

	if op == "" {
		return spec, fmt.Errorf("missing filter operation")
	}
	operation, err := aggregators.ParseFilterOperation(op)
	if err != nil {
		return spec, err
	}

	inc := v.defaultInclusion
	if inclusion != "" {
		if inc, err = aggregators.ParseInclusion(inclusion); err != nil {
			return spec, err
		}
	}

	thr := v.defaultThreshold
	if threshold != "" {
		if thr, err = strconv.ParseFloat(threshold, 64); err != nil {
			return spec, fmt.Errorf("invalid threshold: %s", threshold)
		}
	}

	spec = aggregators.FilterSpec{
		Operation: operation,
		Inclusion: inc,
		Threshold: thr,
	}
	return spec, nil
}
