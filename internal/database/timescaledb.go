//go:generate go run github.com/golang/mock/mockgen -destination=./mocks/timescaledb.go -package=mocks . HistogramRepository

// Package database implements TimescaleDB-backed storage for histogram
// time series.
//
// Each row stores one per-timestamp histogram: the ordered bins as
// JSONB plus the derived summary statistics, partitioned by metric
// name. Queries stream rows back lazily as a models.DataPointGroup so
// a filter stage can consume arbitrarily long ranges without holding
// them in memory.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/histfilter/histfilter/internal/histogram"
	"github.com/histfilter/histfilter/internal/models"
)

// HistogramRepository defines the storage operations for histogram
// series.
type HistogramRepository interface {
	// InsertHistogram stores a single histogram for a metric.
	InsertHistogram(ctx context.Context, metric string, h *histogram.Histogram) error

	// BatchInsertHistograms stores multiple histograms in a single
	// transaction. Either all rows are inserted or none.
	BatchInsertHistograms(ctx context.Context, metric string, hists []*histogram.Histogram) error

	// QueryHistograms returns the histograms of a metric within
	// [start, end], ordered by time ascending, as a lazy single-pass
	// group.
	QueryHistograms(ctx context.Context, metric string, start, end time.Time) (models.DataPointGroup, error)

	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}

// PostgresRepo implements HistogramRepository on TimescaleDB. The
// histogram_data table is expected to be a hypertable partitioned on
// the time column.
type PostgresRepo struct {
	db *sql.DB
}

// NewPostgresRepo opens and verifies a connection pool. The connection
// string uses the usual lib/pq form:
// "host=... port=... user=... password=... dbname=... sslmode=...".
func NewPostgresRepo(connStr string) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PostgresRepo{db: db}, nil
}

// NewPostgresRepoWithDB wraps an existing handle. Used by tests.
func NewPostgresRepoWithDB(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const insertQuery = `
        INSERT INTO histogram_data
            (metric, time, bins, min, max, mean, sum, sample_count, original_count)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

func (s *PostgresRepo) InsertHistogram(ctx context.Context, metric string, h *histogram.Histogram) error {
	bins, err := json.Marshal(h.Bins())
	if err != nil {
		return fmt.Errorf("failed to encode bins: %w", err)
	}
	_, err = s.db.ExecContext(ctx, insertQuery,
		metric,
		time.UnixMilli(h.Timestamp()).UTC(),
		bins,
		h.Min(), h.Max(), h.Mean(), h.Sum(),
		h.SampleCount(), h.OriginalCount(),
	)
	return err
}

func (s *PostgresRepo) BatchInsertHistograms(ctx context.Context, metric string, hists []*histogram.Histogram) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // rollback if not committed

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, h := range hists {
		bins, err := json.Marshal(h.Bins())
		if err != nil {
			return fmt.Errorf("failed to encode bins: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			metric,
			time.UnixMilli(h.Timestamp()).UTC(),
			bins,
			h.Min(), h.Max(), h.Mean(), h.Sum(),
			h.SampleCount(), h.OriginalCount(),
		); err != nil {
			return fmt.Errorf("failed to insert histogram: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *PostgresRepo) QueryHistograms(ctx context.Context, metric string, start, end time.Time) (models.DataPointGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT time, bins, min, max, mean, sum, original_count
        FROM histogram_data
        WHERE metric = $1 AND time BETWEEN $2 AND $3
        ORDER BY time
    `, metric, start, end)
	if err != nil {
		return nil, err
	}
	return &histogramRows{rows: rows}, nil
}

// Ping verifies the connection pool is healthy.
func (s *PostgresRepo) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases all database resources.
func (s *PostgresRepo) Close() error {
	return s.db.Close()
}

// histogramRows adapts a sql.Rows cursor to a lazy DataPointGroup.
// A scan failure ends the sequence; the consumer can inspect Err.
type histogramRows struct {
	rows *sql.Rows
	err  error
	done bool
}

func (g *histogramRows) Next() (models.DataPoint, bool) {
	if g.done {
		return nil, false
	}
	if !g.rows.Next() {
		g.err = g.rows.Err()
		g.close()
		return nil, false
	}

	var (
		ts            time.Time
		binsRaw       []byte
		min, max      float64
		mean, sum     float64
		originalCount int
	)
	if err := g.rows.Scan(&ts, &binsRaw, &min, &max, &mean, &sum, &originalCount); err != nil {
		g.err = err
		g.close()
		return nil, false
	}

	var bins []histogram.Bin
	if err := json.Unmarshal(binsRaw, &bins); err != nil {
		g.err = fmt.Errorf("failed to decode bins: %w", err)
		g.close()
		return nil, false
	}

	return histogram.New(ts.UnixMilli(), bins, min, max, mean, sum, originalCount), true
}

// Err reports the error, if any, that ended the sequence early.
func (g *histogramRows) Err() error {
	return g.err
}

func (g *histogramRows) close() {
	if !g.done {
		g.done = true
		g.rows.Close()
	}
}

// Compile-time interface implementation check
var _ HistogramRepository = (*PostgresRepo)(nil)
