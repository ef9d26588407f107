package server

import (
	"testing"
	"time"

	"github.com/histfilter/histfilter/internal/aggregators"
)

func TestRequestValidator_ValidateQuery(t *testing.T) {
	validator := NewRequestValidator(aggregators.InclusionKeep, 0)
	now := time.Now()

	tests := []struct {
		name       string
		start      time.Time
		end        time.Time
		op         string
		inclusion  string
		threshold  string
		wantErr    bool
		errMessage string
		wantSpec   aggregators.FilterSpec
	}{
		{
			name:      "valid request",
			start:     now.Add(-24 * time.Hour),
			end:       now,
			op:        "lt",
			inclusion: "discard",
			threshold: "3.5",
			wantSpec: aggregators.FilterSpec{
				Operation: aggregators.FilterLT,
				Inclusion: aggregators.InclusionDiscard,
				Threshold: 3.5,
			},
		},
		{
			name:  "defaults applied",
			start: now.Add(-24 * time.Hour),
			end:   now,
			op:    "gte",
			wantSpec: aggregators.FilterSpec{
				Operation: aggregators.FilterGTE,
				Inclusion: aggregators.InclusionKeep,
				Threshold: 0,
			},
		},
		{
			name:       "missing timestamp",
			start:      time.Time{},
			end:        now,
			op:         "lt",
			wantErr:    true,
			errMessage: "missing timestamp",
		},
		{
			name:       "invalid time range",
			start:      now,
			end:        now.Add(-24 * time.Hour),
			op:         "lt",
			wantErr:    true,
			errMessage: "start time must be before end time",
		},
		{
			name:       "exceeds max time range",
			start:      now.Add(-3 * 365 * 24 * time.Hour),
			end:        now,
			op:         "lt",
			wantErr:    true,
			errMessage: "time range exceeds maximum allowed",
		},
		{
			name:       "missing operation",
			start:      now.Add(-24 * time.Hour),
			end:        now,
			op:         "",
			wantErr:    true,
			errMessage: "missing filter operation",
		},
		{
			name:       "invalid operation",
			start:      now.Add(-24 * time.Hour),
			end:        now,
			op:         "between",
			wantErr:    true,
			errMessage: `unknown filter operation "between"`,
		},
		{
			name:       "invalid inclusion",
			start:      now.Add(-24 * time.Hour),
			end:        now,
			op:         "lt",
			inclusion:  "maybe",
			wantErr:    true,
			errMessage: `unknown indeterminate inclusion "maybe"`,
		},
		{
			name:       "invalid threshold",
			start:      now.Add(-24 * time.Hour),
			end:        now,
			op:         "lt",
			threshold:  "abc",
			wantErr:    true,
			errMessage: "invalid threshold: abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := validator.ValidateQuery(tt.start, tt.end, tt.op, tt.inclusion, tt.threshold)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateQuery() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && err.Error() != tt.errMessage {
				t.Errorf("ValidateQuery() error message = %v, want %v", err.Error(), tt.errMessage)
			}
			if !tt.wantErr && spec != tt.wantSpec {
				t.Errorf("ValidateQuery() spec = %+v, want %+v", spec, tt.wantSpec)
			}
		})
	}
}
