package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/histfilter/histfilter/internal/database"
	"github.com/histfilter/histfilter/internal/histogram"
)

// APIResponse is the upstream sample payload: one entry per timestamp
// with the raw float64 samples observed in that interval.
type APIResponse struct {
	Result []struct {
		Time   int64     `json:"time"`
		Values []float64 `json:"values"`
	} `json:"result"`
}

// SeriesFetcher pulls raw samples from an upstream API, folds them into
// per-timestamp histograms and stores them.
type SeriesFetcher struct {
	apiURL    string
	metric    string
	dbService database.HistogramRepository
	logger    *logrus.Logger
}

var (
	ErrUpstreamRequest = errors.New("error making upstream request")
	ErrUpstreamStatus  = errors.New("error status from upstream service")
)

func NewSeriesFetcher(apiURL, metric string, dbService database.HistogramRepository, logger *logrus.Logger) *SeriesFetcher {
	return &SeriesFetcher{
		apiURL:    apiURL,
		metric:    metric,
		dbService: dbService,
		logger:    logger,
	}
}

// FetchData retrieves the samples for [start, end], aggregates each
// timestamp's samples into a histogram and batch-inserts the result.
// Timestamps without samples are dropped.
func (f *SeriesFetcher) FetchData(ctx context.Context, start, end time.Time) error {
	url := fmt.Sprintf("%s?start=%s&end=%s",
		f.apiURL,
		start.Format(time.RFC3339),
		end.Format(time.RFC3339))

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamRequest, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: got %d", ErrUpstreamStatus, resp.StatusCode)
	}

	var apiResp APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	if len(apiResp.Result) == 0 {
		return nil
	}

	hists := make([]*histogram.Histogram, 0, len(apiResp.Result))
	for _, entry := range apiResp.Result {
		if len(entry.Values) == 0 {
			continue
		}
		ts := time.Unix(entry.Time, 0).UnixMilli()
		hists = append(hists, histogram.FromValues(ts, entry.Values...))
	}
	if len(hists) == 0 {
		return nil
	}

	if err := f.dbService.BatchInsertHistograms(ctx, f.metric, hists); err != nil {
		return fmt.Errorf("failed to insert histograms: %v", err)
	}

	f.logger.WithFields(logrus.Fields{
		"metric":     f.metric,
		"histograms": len(hists),
	}).Debug("Stored fetched histograms")

	return nil
}

// BootstrapHistoricalData backfills the last two years of samples.
func (f *SeriesFetcher) BootstrapHistoricalData(ctx context.Context) error {
	endTime := time.Now()
	startTime := endTime.AddDate(-2, 0, 0)

	return f.FetchData(ctx, startTime, endTime)
}
