// Package httpapi exposes the operator HTTP surface: health, readiness,
// metrics, event queries, and manual triggers for fetch, cleanup, and
// analysis.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seismowatch/quake-ingest/internal/domain"
	"github.com/seismowatch/quake-ingest/internal/pipeline"
)

// Pipeline is the server's view of the ingest runner.
type Pipeline interface {
	Run(ctx context.Context, opts pipeline.RunOptions) pipeline.RunResult
	Cleanup(ctx context.Context, retention time.Duration) (int, error)
	CheckReadiness(ctx context.Context) error
}

// Server exposes the operator endpoints.
type Server struct {
	httpServer *http.Server
	store      domain.EventStore
	summaries  domain.SummaryStore
	pipeline   Pipeline
	analyzer   pipeline.AnalysisRunner // nil disables the analysis endpoints
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates the operator HTTP server. analyzer may be nil.
func NewServer(
	addr string,
	store domain.EventStore,
	summaries domain.SummaryStore,
	pl Pipeline,
	analyzer pipeline.AnalysisRunner,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:     store,
		summaries: summaries,
		pipeline:  pl,
		analyzer:  analyzer,
		clock:     clock,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/events/{source}", s.handleEventsBySource)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/analysis", s.handleAnalysis)
	mux.HandleFunc("POST /api/trigger-fetch", s.handleTriggerFetch)
	mux.HandleFunc("POST /api/trigger-analysis", s.handleTriggerAnalysis)
	mux.HandleFunc("POST /api/cleanup", s.handleCleanup)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.pipeline.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type eventsResponse struct {
	Count  int            `json:"count"`
	Events []domain.Event `json:"events"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ReadAll(r.Context())
	if err != nil {
		s.serverError(w, "read events", err)
		return
	}
	writeJSON(w, http.StatusOK, newestFirst(events))
}

func (s *Server) handleEventsBySource(w http.ResponseWriter, r *http.Request) {
	source := domain.Source(r.PathValue("source"))
	if source != domain.SourceFeed && source != domain.SourceScrape {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown source, expected feed or scrape",
		})
		return
	}

	events, err := s.store.ReadAll(r.Context())
	if err != nil {
		s.serverError(w, "read events", err)
		return
	}

	filtered := make([]domain.Event, 0, len(events))
	for _, e := range events {
		if e.Source == source {
			filtered = append(filtered, e)
		}
	}
	writeJSON(w, http.StatusOK, newestFirst(filtered))
}

type statsResponse struct {
	Total        int                   `json:"total"`
	LastHour     int                   `json:"lastHour"`
	Last24Hours  int                   `json:"last24Hours"`
	LastWeek     int                   `json:"lastWeek"`
	BySource     map[domain.Source]int `json:"bySource"`
	AvgMagnitude float64               `json:"avgMagnitude"`
	MaxMagnitude float64               `json:"maxMagnitude"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ReadAll(r.Context())
	if err != nil {
		s.serverError(w, "read events", err)
		return
	}

	now := s.clock.Now()
	hourAgo := now.Add(-time.Hour).UnixMilli()
	dayAgo := now.Add(-24 * time.Hour).UnixMilli()
	weekAgo := now.Add(-7 * 24 * time.Hour).UnixMilli()

	stats := statsResponse{
		Total: len(events),
		BySource: map[domain.Source]int{
			domain.SourceFeed:   0,
			domain.SourceScrape: 0,
		},
	}
	magSum := 0.0
	for _, e := range events {
		if e.OccurredAt >= hourAgo {
			stats.LastHour++
		}
		if e.OccurredAt >= dayAgo {
			stats.Last24Hours++
		}
		if e.OccurredAt >= weekAgo {
			stats.LastWeek++
		}
		stats.BySource[e.Source]++
		magSum += e.Magnitude
		if e.Magnitude > stats.MaxMagnitude {
			stats.MaxMagnitude = e.Magnitude
		}
	}
	if len(events) > 0 {
		stats.AvgMagnitude = math.Round(magSum/float64(len(events))*100) / 100
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	record, err := s.summaries.LatestSummary(r.Context())
	if err != nil {
		s.serverError(w, "read analysis", err)
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no analysis has been generated yet",
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(record) //nolint:errcheck // best-effort response
}

func (s *Server) handleTriggerFetch(w http.ResponseWriter, r *http.Request) {
	useAPI := r.URL.Query().Get("useAPI") == "true"
	includeScrape := r.URL.Query().Get("scrape") != "false"

	s.logger.Info("manual fetch triggered", "use_api", useAPI, "include_scrape", includeScrape)
	go s.pipeline.Run(context.WithoutCancel(r.Context()), pipeline.RunOptions{
		UseRegionalQuery: useAPI,
		IncludeScrape:    includeScrape,
	})

	writeJSON(w, http.StatusAccepted, map[string]any{
		"message":       "fetch triggered",
		"useAPI":        useAPI,
		"includeScrape": includeScrape,
	})
}

func (s *Server) handleTriggerAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "analysis is not configured",
		})
		return
	}

	s.logger.Info("manual analysis triggered")
	go func(ctx context.Context) {
		if err := s.analyzer.Analyze(ctx); err != nil {
			s.logger.Error("manual analysis failed", "error", err)
		}
	}(context.WithoutCancel(r.Context()))

	writeJSON(w, http.StatusAccepted, map[string]string{"message": "analysis triggered"})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.pipeline.Cleanup(r.Context(), pipeline.RetentionPeriod)
	if err != nil {
		s.serverError(w, "cleanup", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":           "cleanup completed",
		"deletedPartitions": deleted,
	})
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("request failed", "op", op, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func newestFirst(events []domain.Event) eventsResponse {
	sort.Slice(events, func(i, j int) bool {
		return events[i].OccurredAt > events[j].OccurredAt
	})
	if events == nil {
		events = []domain.Event{}
	}
	return eventsResponse{Count: len(events), Events: events}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
