// Package models holds the data-point contracts shared by the
// aggregation pipeline: a timestamped point, a pull sequence of points,
// and the scalar point type used for non-histogram series.
package models

// Group types select which aggregator implementations are compatible
// with a series. Histogram points carry their own group type in the
// histogram package.
const GroupTypeNumber = "number"

// DataPoint is a single timestamped item flowing through the pipeline.
type DataPoint interface {
	// Timestamp returns milliseconds since the Unix epoch.
	Timestamp() int64
}

// DataPointGroup is a lazy, single-pass pull sequence of data points.
// It is not restartable, and a consumer may abandon it at any point
// without cleanup obligations.
type DataPointGroup interface {
	// Next returns the next data point, or false once the sequence is
	// exhausted.
	Next() (DataPoint, bool)
}

// ScalarPoint is a plain numeric sample.
type ScalarPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

func (p ScalarPoint) Timestamp() int64 { return p.Time }

// ListGroup adapts an in-memory slice of points to DataPointGroup.
type ListGroup struct {
	points []DataPoint
}

func NewListGroup(points ...DataPoint) *ListGroup {
	return &ListGroup{points: points}
}

func (g *ListGroup) Next() (DataPoint, bool) {
	if len(g.points) == 0 {
		return nil, false
	}
	dp := g.points[0]
	g.points = g.points[1:]
	return dp, true
}
