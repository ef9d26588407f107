package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/histfilter/histfilter/internal/api"
)

type Scheduler struct {
	ctx      context.Context
	fetcher  *api.SeriesFetcher
	logger   *logrus.Logger
	cron     *cron.Cron
	schedule string
}

// NewScheduler builds a cron-driven collector. The schedule uses the
// standard five-field cron syntax.
func NewScheduler(ctx context.Context, fetcher *api.SeriesFetcher, logger *logrus.Logger, schedule string) *Scheduler {
	return &Scheduler{
		ctx:      ctx,
		fetcher:  fetcher,
		logger:   logger,
		cron:     cron.New(),
		schedule: schedule,
	}
}

// Start the scheduler
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.collectData)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// collectData fetches samples from the API and stores the histograms
func (s *Scheduler) collectData() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	endTime := time.Now()
	startTime := endTime.Add(-5 * time.Minute)

	if err := s.fetcher.FetchData(ctx, startTime, endTime); err != nil {
		s.logger.Error("Failed to fetch data", err)
	}
}

// Stop the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
