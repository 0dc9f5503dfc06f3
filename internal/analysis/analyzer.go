package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/seismowatch/quake-ingest/internal/domain"
	"github.com/seismowatch/quake-ingest/internal/observability"
)

// Summarizer produces a prose assessment from an analysis prompt.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Record is the persisted shape of one analysis pass. Failed passes carry
// Error instead of Analysis so operators can see the last attempt either way.
type Record struct {
	Analysis          string                     `json:"analysis,omitempty"`
	LocationSummaries map[string]LocationSummary `json:"locationSummaries,omitempty"`
	Error             string                     `json:"error,omitempty"`
	Timestamp         int64                      `json:"timestamp"`
	GeneratedAt       string                     `json:"generatedAt,omitempty"`
}

// Analyzer reads the event store, aggregates the recent window, and persists
// the model's assessment.
type Analyzer struct {
	events     domain.EventStore
	summaries  domain.SummaryStore
	summarizer Summarizer
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
}

// NewAnalyzer wires an analyzer over the given stores and summarizer.
func NewAnalyzer(
	events domain.EventStore,
	summaries domain.SummaryStore,
	summarizer Summarizer,
	logger *slog.Logger,
	metrics *observability.Metrics,
	clock clockwork.Clock,
) *Analyzer {
	return &Analyzer{
		events:     events,
		summaries:  summaries,
		summarizer: summarizer,
		logger:     logger,
		metrics:    metrics,
		clock:      clock,
	}
}

// Analyze runs one pass. A pass with no recent events is a no-op, not a
// failure. Summarizer failures are persisted as error records so the latest
// record always reflects the last attempt.
func (a *Analyzer) Analyze(ctx context.Context) error {
	now := a.clock.Now()

	events, err := a.events.ReadAll(ctx)
	if err != nil {
		a.metrics.AnalysisRuns.WithLabelValues("failure").Inc()
		return fmt.Errorf("read events for analysis: %w", err)
	}

	summaries := Aggregate(events, now)
	if len(summaries) == 0 {
		a.logger.Info("no recent events, skipping analysis")
		a.metrics.AnalysisRuns.WithLabelValues("skipped").Inc()
		return nil
	}

	prompt, err := buildPrompt(summaries)
	if err != nil {
		a.metrics.AnalysisRuns.WithLabelValues("failure").Inc()
		return fmt.Errorf("build analysis prompt: %w", err)
	}

	text, err := a.summarizer.Summarize(ctx, prompt)
	if err != nil {
		if perr := a.persist(ctx, Record{Error: err.Error(), Timestamp: now.UnixMilli()}, now); perr != nil {
			a.logger.Warn("could not persist analysis error record", "error", perr)
		}
		a.metrics.AnalysisRuns.WithLabelValues("failure").Inc()
		return fmt.Errorf("summarize: %w", err)
	}

	record := Record{
		Analysis:          text,
		LocationSummaries: summaries,
		Timestamp:         now.UnixMilli(),
		GeneratedAt:       now.UTC().Format(time.RFC3339),
	}
	if err := a.persist(ctx, record, now); err != nil {
		a.metrics.AnalysisRuns.WithLabelValues("failure").Inc()
		return err
	}

	a.metrics.AnalysisRuns.WithLabelValues("success").Inc()
	a.logger.Info("analysis complete", "locations", len(summaries))
	return nil
}

func (a *Analyzer) persist(ctx context.Context, record Record, now time.Time) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode analysis record: %w", err)
	}
	if err := a.summaries.PutSummary(ctx, payload, now.UnixMilli()); err != nil {
		return fmt.Errorf("persist analysis record: %w", err)
	}
	return nil
}

func buildPrompt(summaries map[string]LocationSummary) (string, error) {
	encoded, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`You are an expert seismologist analyzing earthquake events by location in the Philippines.

Analyze the earthquake events recorded in the past 24 hours per location:

%s

For each location, provide:
1. Seismic activity level (Low, Moderate, High, or Critical)
2. Patterns or clusters you observe
3. Areas of concern (e.g., provinces, regions)
4. Public awareness and safety tips for people in the affected locations.`, encoded), nil
}
