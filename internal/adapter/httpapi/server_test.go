package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismowatch/quake-ingest/internal/adapter/httpapi"
	"github.com/seismowatch/quake-ingest/internal/domain"
	"github.com/seismowatch/quake-ingest/internal/pipeline"
)

var testNow = time.Date(2025, time.October, 5, 12, 0, 0, 0, time.UTC)

type stubStore struct {
	events  []domain.Event
	readErr error
}

func (s *stubStore) Exists(context.Context, string, string) (bool, error) { return false, nil }
func (s *stubStore) Put(context.Context, string, domain.Event) (bool, error) {
	return false, errors.New("read-only")
}
func (s *stubStore) ReadPartition(context.Context, string) ([]domain.Event, error) {
	return nil, nil
}
func (s *stubStore) ReadAll(context.Context) ([]domain.Event, error) {
	return s.events, s.readErr
}
func (s *stubStore) Partitions(context.Context) ([]string, error)  { return nil, nil }
func (s *stubStore) DeletePartition(context.Context, string) error { return nil }

type stubSummaries struct {
	latest []byte
	err    error
}

func (s *stubSummaries) PutSummary(context.Context, []byte, int64) error { return nil }
func (s *stubSummaries) LatestSummary(context.Context) ([]byte, error) {
	return s.latest, s.err
}

type stubPipeline struct {
	mu         sync.Mutex
	runs       []pipeline.RunOptions
	cleanupN   int
	cleanupErr error
	readyErr   error
}

func (s *stubPipeline) Run(_ context.Context, opts pipeline.RunOptions) pipeline.RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, opts)
	return pipeline.RunResult{}
}

func (s *stubPipeline) snapshot() []pipeline.RunOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pipeline.RunOptions(nil), s.runs...)
}

func (s *stubPipeline) Cleanup(context.Context, time.Duration) (int, error) {
	return s.cleanupN, s.cleanupErr
}

func (s *stubPipeline) CheckReadiness(context.Context) error { return s.readyErr }

type stubAnalyzer struct {
	mu    sync.Mutex
	calls int
}

func (s *stubAnalyzer) Analyze(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func (s *stubAnalyzer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type serverDeps struct {
	store     *stubStore
	summaries *stubSummaries
	pipeline  *stubPipeline
	analyzer  pipeline.AnalysisRunner
}

func newTestServer(deps serverDeps) *httpapi.Server {
	if deps.store == nil {
		deps.store = &stubStore{}
	}
	if deps.summaries == nil {
		deps.summaries = &stubSummaries{}
	}
	if deps.pipeline == nil {
		deps.pipeline = &stubPipeline{}
	}
	return httpapi.NewServer(
		":0", deps.store, deps.summaries, deps.pipeline, deps.analyzer,
		clockwork.NewFakeClockAt(testNow),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func doRequest(srv *httpapi.Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func storedEvent(id string, source domain.Source, mag float64, age time.Duration) domain.Event {
	return domain.Event{
		ID: id, Source: source, Magnitude: mag,
		Latitude: 13.5, Longitude: 121.0,
		OccurredAt: testNow.Add(-age).UnixMilli(), Place: "somewhere",
	}
}

func TestHealthz(t *testing.T) {
	rec := doRequest(newTestServer(serverDeps{}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		rec := doRequest(newTestServer(serverDeps{}), http.MethodGet, "/readyz")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		srv := newTestServer(serverDeps{pipeline: &stubPipeline{readyErr: errors.New("no run yet")}})
		rec := doRequest(srv, http.MethodGet, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not ready", body["status"])
		assert.Equal(t, "no run yet", body["error"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	rec := doRequest(newTestServer(serverDeps{}), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestEvents_NewestFirst(t *testing.T) {
	store := &stubStore{events: []domain.Event{
		storedEvent("older", domain.SourceFeed, 3.0, 2*time.Hour),
		storedEvent("newest", domain.SourceScrape, 4.0, time.Hour),
	}}
	rec := doRequest(newTestServer(serverDeps{store: store}), http.MethodGet, "/api/events")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count  int            `json:"count"`
		Events []domain.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Events, 2)
	assert.Equal(t, "newest", body.Events[0].ID)
}

func TestEvents_EmptyStore(t *testing.T) {
	rec := doRequest(newTestServer(serverDeps{}), http.MethodGet, "/api/events")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"events":[]}`, rec.Body.String())
}

func TestEvents_StoreFailure(t *testing.T) {
	store := &stubStore{readErr: errors.New("store unreachable")}
	rec := doRequest(newTestServer(serverDeps{store: store}), http.MethodGet, "/api/events")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEventsBySource(t *testing.T) {
	store := &stubStore{events: []domain.Event{
		storedEvent("f1", domain.SourceFeed, 3.0, time.Hour),
		storedEvent("s1", domain.SourceScrape, 4.0, 2*time.Hour),
	}}
	srv := newTestServer(serverDeps{store: store})

	rec := doRequest(srv, http.MethodGet, "/api/events/scrape")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count  int            `json:"count"`
		Events []domain.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "s1", body.Events[0].ID)
}

func TestEventsBySource_UnknownSource(t *testing.T) {
	rec := doRequest(newTestServer(serverDeps{}), http.MethodGet, "/api/events/usgs")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	store := &stubStore{events: []domain.Event{
		storedEvent("a", domain.SourceFeed, 4.0, 30*time.Minute),
		storedEvent("b", domain.SourceFeed, 5.0, 3*time.Hour),
		storedEvent("c", domain.SourceScrape, 3.0, 3*24*time.Hour),
		storedEvent("d", domain.SourceScrape, 2.0, 10*24*time.Hour),
	}}
	rec := doRequest(newTestServer(serverDeps{store: store}), http.MethodGet, "/api/stats")
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		Total        int            `json:"total"`
		LastHour     int            `json:"lastHour"`
		Last24Hours  int            `json:"last24Hours"`
		LastWeek     int            `json:"lastWeek"`
		BySource     map[string]int `json:"bySource"`
		AvgMagnitude float64        `json:"avgMagnitude"`
		MaxMagnitude float64        `json:"maxMagnitude"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.LastHour)
	assert.Equal(t, 2, stats.Last24Hours)
	assert.Equal(t, 3, stats.LastWeek)
	assert.Equal(t, 2, stats.BySource["feed"])
	assert.Equal(t, 2, stats.BySource["scrape"])
	assert.Equal(t, 3.5, stats.AvgMagnitude)
	assert.Equal(t, 5.0, stats.MaxMagnitude)
}

func TestAnalysis(t *testing.T) {
	t.Run("latest record", func(t *testing.T) {
		summaries := &stubSummaries{latest: []byte(`{"analysis":"quiet day"}`)}
		rec := doRequest(newTestServer(serverDeps{summaries: summaries}), http.MethodGet, "/api/analysis")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"analysis":"quiet day"}`, rec.Body.String())
	})

	t.Run("none yet", func(t *testing.T) {
		rec := doRequest(newTestServer(serverDeps{}), http.MethodGet, "/api/analysis")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTriggerFetch(t *testing.T) {
	pl := &stubPipeline{}
	srv := newTestServer(serverDeps{pipeline: pl})

	rec := doRequest(srv, http.MethodPost, "/api/trigger-fetch?useAPI=true&scrape=false")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		runs := pl.snapshot()
		return len(runs) == 1 &&
			runs[0] == pipeline.RunOptions{UseRegionalQuery: true, IncludeScrape: false}
	}, time.Second, 5*time.Millisecond)
}

func TestTriggerFetch_ScrapeDefaultsOn(t *testing.T) {
	pl := &stubPipeline{}
	srv := newTestServer(serverDeps{pipeline: pl})

	rec := doRequest(srv, http.MethodPost, "/api/trigger-fetch")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		runs := pl.snapshot()
		return len(runs) == 1 &&
			runs[0] == pipeline.RunOptions{UseRegionalQuery: false, IncludeScrape: true}
	}, time.Second, 5*time.Millisecond)
}

func TestTriggerAnalysis(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		analyzer := &stubAnalyzer{}
		srv := newTestServer(serverDeps{analyzer: analyzer})

		rec := doRequest(srv, http.MethodPost, "/api/trigger-analysis")
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Eventually(t, func() bool { return analyzer.count() == 1 },
			time.Second, 5*time.Millisecond)
	})

	t.Run("disabled", func(t *testing.T) {
		rec := doRequest(newTestServer(serverDeps{}), http.MethodPost, "/api/trigger-analysis")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestCleanup(t *testing.T) {
	t.Run("reports deleted partitions", func(t *testing.T) {
		srv := newTestServer(serverDeps{pipeline: &stubPipeline{cleanupN: 3}})
		rec := doRequest(srv, http.MethodPost, "/api/cleanup")
		assert.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			DeletedPartitions int `json:"deletedPartitions"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 3, body.DeletedPartitions)
	})

	t.Run("failure", func(t *testing.T) {
		srv := newTestServer(serverDeps{pipeline: &stubPipeline{cleanupErr: errors.New("store unreachable")}})
		rec := doRequest(srv, http.MethodPost, "/api/cleanup")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
