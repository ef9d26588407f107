// Package server exposes the histogram series over HTTP: ingestion of
// raw samples, threshold-filtered range queries, health and metrics.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/histfilter/histfilter/internal/aggregators"
	"github.com/histfilter/histfilter/internal/database"
	"github.com/histfilter/histfilter/internal/histogram"
	middleware "github.com/histfilter/histfilter/internal/server/middlewares"
)

// ServerConfig holds configuration options for the HTTP server
type ServerConfig struct {
	CacheSize      int     // Size of the LRU response cache
	RateLimit      float64 // Requests per second
	RateLimitBurst int     // Maximum burst size for rate limiting
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		CacheSize:      1000,
		RateLimit:      5.0, // 5 requests per second
		RateLimitBurst: 10,  // Burst of 10 requests
	}
}

// Server wires the repository, the aggregator registry and the HTTP
// routes together.
type Server struct {
	Engine *gin.Engine

	repo        database.HistogramRepository
	aggregators *aggregators.AggregatorMap
	validator   *RequestValidator
	logger      *logrus.Logger
	registry    *prometheus.Registry
}

// SetupServer initializes the HTTP server with all middleware. The
// validator's inclusion and threshold defaults apply when a query
// omits them.
func SetupServer(
	repo database.HistogramRepository,
	aggMap *aggregators.AggregatorMap,
	validator *RequestValidator,
	logger *logrus.Logger,
	config ServerConfig,
) (*Server, error) {
	respCache, err := middleware.NewResponseCache(config.CacheSize)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	requests, latency, err := middleware.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestID(), // Add request ID first
		middleware.RateLimiting(rate.Limit(config.RateLimit), config.RateLimitBurst), // Rate limit early
		middleware.Logging(logger),            // Log all requests (with request ID)
		middleware.Metrics(requests, latency), // Collect metrics
	)

	s := &Server{
		Engine:      engine,
		repo:        repo,
		aggregators: aggMap,
		validator:   validator,
		logger:      logger,
		registry:    registry,
	}

	engine.GET("/health", s.healthHandler)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := engine.Group("/api/v1")
	api.POST("/series/:metric/histograms", s.ingestHandler)
	// Cache last so errors are never replayed.
	api.GET("/series/:metric/query", respCache.Middleware(), s.queryHandler)

	return s, nil
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.repo.Ping(ctx); err != nil {
		s.logger.WithError(err).Error("Health check failed: database unreachable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
	})
}

// ingestRequest carries raw samples grouped by timestamp (unix
// seconds). Each entry becomes one stored histogram.
type ingestRequest struct {
	Samples []struct {
		Time   int64     `json:"time"`
		Values []float64 `json:"values"`
	} `json:"samples"`
}

func (s *Server) ingestHandler(c *gin.Context) {
	metric := c.Param("metric")

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	hists := make([]*histogram.Histogram, 0, len(req.Samples))
	for _, entry := range req.Samples {
		if len(entry.Values) == 0 {
			continue
		}
		ts := time.Unix(entry.Time, 0).UnixMilli()
		hists = append(hists, histogram.FromValues(ts, entry.Values...))
	}
	if len(hists) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no samples provided"})
		return
	}

	if err := s.repo.BatchInsertHistograms(c.Request.Context(), metric, hists); err != nil {
		s.logger.WithError(err).Error("Failed to store histograms")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store histograms"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"stored": len(hists)})
}

// histogramJSON is the wire form of one filtered histogram.
type histogramJSON struct {
	Time          int64           `json:"time"`
	Bins          []histogram.Bin `json:"bins"`
	Min           float64         `json:"min"`
	Max           float64         `json:"max"`
	Mean          float64         `json:"mean"`
	Sum           float64         `json:"sum"`
	SampleCount   int             `json:"sample_count"`
	OriginalCount int             `json:"original_count"`
}

func (s *Server) queryHandler(c *gin.Context) {
	metric := c.Param("metric")

	start := parseUnixParam(c.Query("start"))
	end := parseUnixParam(c.Query("end"))

	spec, err := s.validator.ValidateQuery(start, end,
		c.Query("op"), c.Query("inclusion"), c.Query("threshold"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	provider, ok := s.aggregators.ForGroupType(histogram.GroupType)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no aggregator registered for histograms"})
		return
	}
	agg := provider()
	if configurable, ok := agg.(aggregators.Configurable); ok {
		agg = configurable.WithSpec(spec)
	}

	group, err := s.repo.QueryHistograms(c.Request.Context(), metric, start, end)
	if err != nil {
		s.logger.WithError(err).Error("Query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	filtered, err := agg.Aggregate(group)
	if err != nil {
		s.logger.WithError(err).Error("Aggregation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregation failed"})
		return
	}

	data := make([]histogramJSON, 0)
	for {
		dp, ok := filtered.Next()
		if !ok {
			break
		}
		h, ok := dp.(*histogram.Histogram)
		if !ok {
			continue
		}
		data = append(data, histogramJSON{
			Time:          h.Timestamp(),
			Bins:          h.Bins(),
			Min:           h.Min(),
			Max:           h.Max(),
			Mean:          h.Mean(),
			Sum:           h.Sum(),
			SampleCount:   h.SampleCount(),
			OriginalCount: h.OriginalCount(),
		})
	}
	if errGroup, ok := group.(interface{ Err() error }); ok {
		if err := errGroup.Err(); err != nil {
			s.logger.WithError(err).Error("Query stream failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"metric": metric,
		"data":   data,
	})
}

// parseUnixParam converts a unix-seconds query parameter. Absent or
// malformed values map to the zero time so validation rejects them.
func parseUnixParam(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Engine,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	go func() {
		<-ctx.Done()
		s.logger.Info("Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Error("HTTP server forced to shutdown")
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
