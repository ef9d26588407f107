package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/histfilter/histfilter/internal/aggregators"
	"github.com/histfilter/histfilter/internal/api"
	"github.com/histfilter/histfilter/internal/config"
	"github.com/histfilter/histfilter/internal/database"
	"github.com/histfilter/histfilter/internal/histogram"
	"github.com/histfilter/histfilter/internal/models"
	"github.com/histfilter/histfilter/internal/scheduler"
	"github.com/histfilter/histfilter/internal/server"
)

// Command histfilter provides an HTTP service for histogram time series.
//
// The service supports:
//   - Historical sample bootstrapping (up to 2 years)
//   - Histogram ingestion from raw float64 samples
//   - Threshold bin filtering (lt, lte, gt, gte, equal) with
//     keep/discard handling of straddling buckets
//   - TimescaleDB integration
//   - Prometheus metrics
//
// Usage:
//
//	histfilter [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-cache-size int
//	      size of the LRU response cache (default 1000)
func main() {
	// Parse command line flags
	cfg := parseFlags()

	// Load configuration
	appConfig, err := config.Load(cfg.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	connStr := cfg.ConnectionString
	if connStr == "" {
		connStr = appConfig.Database.ConnectionString()
	}

	// Initialize structured logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(appConfig.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	logger.WithFields(logrus.Fields{
		"port": appConfig.Server.Port,
	}).Info("Starting server")

	repo, err := database.NewPostgresRepo(connStr)
	if err != nil {
		logger.Fatalf("Failed to create repository: %v", err)
	}

	// Create a context that will be canceled on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize components
	seriesFetcher := api.NewSeriesFetcher(appConfig.Source.URL, appConfig.Source.Metric, repo, logger)
	sched := scheduler.NewScheduler(ctx, seriesFetcher, logger, appConfig.Source.Schedule)

	aggMap, err := aggregators.NewAggregatorMap(storageTypeResolver{}, []aggregators.Provider{
		func() aggregators.Aggregator { return aggregators.NewHistogramFilter(aggregators.FilterSpec{}) },
		func() aggregators.Aggregator { return aggregators.NewScalarFilter(aggregators.FilterSpec{}) },
	})
	if err != nil {
		logger.Fatalf("Failed to build aggregator map: %v", err)
	}

	defaultInclusion, err := aggregators.ParseInclusion(appConfig.Filter.Inclusion)
	if err != nil {
		logger.Fatalf("Invalid filter defaults: %v", err)
	}
	validator := server.NewRequestValidator(defaultInclusion, appConfig.Filter.Threshold)

	serverConfig := server.ServerConfig{
		CacheSize:      cfg.CacheSize,
		RateLimit:      cfg.RateLimit,
		RateLimitBurst: cfg.RateLimitBurst,
	}

	srv, err := server.SetupServer(repo, aggMap, validator, logger, serverConfig)
	if err != nil {
		logger.Fatalf("Failed to setup server: %v", err)
	}

	// Start background services
	errChan := make(chan error, 1)

	// Bootstrap historical data in a goroutine
	go func() {
		if err := seriesFetcher.BootstrapHistoricalData(ctx); err != nil {
			errChan <- fmt.Errorf("bootstrap error: %w", err)
		}
	}()

	// Start scheduler in a goroutine
	go func() {
		if err := sched.Start(); err != nil {
			errChan <- fmt.Errorf("scheduler error: %w", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", appConfig.Server.Host, appConfig.Server.Port)
	go func() {
		errChan <- srv.Run(ctx, addr)
	}()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.Fatalf("Service error: %v", err)
		}
	case sig := <-sigChan:
		logger.Infof("Received signal %v, initiating shutdown", sig)
		cancel()
		if err := <-errChan; err != nil {
			logger.Errorf("Shutdown error: %v", err)
		}
	}

	sched.Stop()
	repo.Close()
	logger.Info("Server stopped")
}

type Config struct {
	ConfigPath       string
	CacheSize        int
	RateLimit        float64
	RateLimitBurst   int
	ConnectionString string
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.ConfigPath, "config", "config.yaml", "Path to config file")
	flag.IntVar(&cfg.CacheSize, "cache-size", 1000, "Size of the LRU response cache")
	flag.Float64Var(&cfg.RateLimit, "rate-limit", 5.0, "Rate limit in requests per second")
	flag.IntVar(&cfg.RateLimitBurst, "rate-limit-burst", 10, "Maximum burst size for rate limiting")
	flag.StringVar(&cfg.ConnectionString, "conn-string", "", "Database connection string")

	flag.Parse()

	return cfg
}

// storageTypeResolver maps raw storage type names to the logical group
// type their points belong to.
type storageTypeResolver struct{}

func (storageTypeResolver) GroupTypeForStorageType(storageType string) (string, error) {
	switch storageType {
	case "histogram":
		return histogram.GroupType, nil
	case "double", "long":
		return models.GroupTypeNumber, nil
	}
	return "", fmt.Errorf("unknown storage type %q", storageType)
}
