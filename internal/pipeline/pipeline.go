// Package pipeline orchestrates one ingest run: fetch both sources, filter
// to the monitored region, and dedup-enrich-persist each event in arrival
// order. A run never fails as a whole; individual sources, records, and
// writes degrade independently.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/seismowatch/quake-ingest/internal/domain"
	"github.com/seismowatch/quake-ingest/internal/observability"
)

// FeedSource fetches normalized events from the structured feed.
type FeedSource interface {
	// FetchRecent returns the rolling global recent window (caller filters
	// to the monitored region).
	FetchRecent(ctx context.Context) ([]domain.Event, error)
	// FetchRegional returns the server-side region-scoped query.
	FetchRegional(ctx context.Context) ([]domain.Event, error)
}

// ScrapeSource fetches normalized events from the regional authority page.
type ScrapeSource interface {
	Fetch(ctx context.Context) ([]domain.Event, error)
}

// PlaceResolver resolves an event's coordinates to a place name. Resolve
// must not fail; its worst case is the event's own place label.
type PlaceResolver interface {
	Resolve(ctx context.Context, event domain.Event) string
}

// Publisher announces newly persisted events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// RunOptions selects the feed mode and whether the scrape runs.
type RunOptions struct {
	// UseRegionalQuery switches the feed to the server-side regional query
	// instead of the client-filtered recent window.
	UseRegionalQuery bool
	// IncludeScrape enables the regional-authority scrape for this run.
	IncludeScrape bool
}

// RunResult reports per-run counters.
type RunResult struct {
	FeedFetched   int
	ScrapeFetched int
	New           int
	Skipped       int
	Failed        int
	Duration      time.Duration
}

// Runner executes ingest runs against a store. Runs may overlap (the
// scheduler does not serialize them); the store's atomic write-once Put is
// the idempotency guard between them.
type Runner struct {
	feed      FeedSource
	scrape    ScrapeSource
	store     domain.EventStore
	resolver  PlaceResolver // nil disables enrichment
	publisher Publisher     // nil disables publication
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	ready     atomic.Bool
}

// NewRunner wires an ingest runner. resolver and publisher may be nil.
func NewRunner(
	feed FeedSource,
	scrape ScrapeSource,
	store domain.EventStore,
	resolver PlaceResolver,
	publisher Publisher,
	logger *slog.Logger,
	metrics *observability.Metrics,
	clock clockwork.Clock,
) *Runner {
	return &Runner{
		feed:      feed,
		scrape:    scrape,
		store:     store,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
	}
}

// CheckReadiness returns nil once at least one run has completed.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no ingest run has completed yet")
	}
	return nil
}

// Run executes one full ingest cycle and returns its counters. Source
// failures and per-event store failures are logged and counted, never
// propagated: a run always completes.
func (r *Runner) Run(ctx context.Context, opts RunOptions) RunResult {
	start := r.clock.Now()
	r.metrics.ActiveRuns.Inc()
	defer r.metrics.ActiveRuns.Dec()

	feedEvents, scrapeEvents := r.fetchSources(ctx, opts)

	if !opts.UseRegionalQuery {
		feedEvents = filterRegion(feedEvents)
	}

	result := RunResult{
		FeedFetched:   len(feedEvents),
		ScrapeFetched: len(scrapeEvents),
	}

	// Strictly sequential: bounds concurrent enrichment lookups and keeps
	// the per-run counters single-writer.
	for _, event := range append(feedEvents, scrapeEvents...) {
		r.ingestOne(ctx, event, &result)
	}

	result.Duration = r.clock.Now().Sub(start)
	r.metrics.RunDuration.Observe(result.Duration.Seconds())
	r.ready.Store(true)

	r.logger.Info("ingest run complete",
		"feed_fetched", result.FeedFetched,
		"scrape_fetched", result.ScrapeFetched,
		"new", result.New,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", result.Duration,
	)
	return result
}

// fetchSources runs both source adapters concurrently. A failed source
// contributes zero events and is counted, nothing more.
func (r *Runner) fetchSources(ctx context.Context, opts RunOptions) (feedEvents, scrapeEvents []domain.Event) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		if opts.UseRegionalQuery {
			feedEvents, err = r.feed.FetchRegional(ctx)
		} else {
			feedEvents, err = r.feed.FetchRecent(ctx)
		}
		if err != nil {
			r.logger.Warn("feed fetch failed, continuing without feed events", "error", err)
			r.metrics.SourceFailures.WithLabelValues(string(domain.SourceFeed)).Inc()
			feedEvents = nil
		}
	}()

	if opts.IncludeScrape {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			scrapeEvents, err = r.scrape.Fetch(ctx)
			if err != nil {
				r.logger.Warn("scrape fetch failed, continuing with feed-only results", "error", err)
				r.metrics.SourceFailures.WithLabelValues(string(domain.SourceScrape)).Inc()
				scrapeEvents = nil
			}
		}()
	}

	wg.Wait()
	return feedEvents, scrapeEvents
}

// ingestOne runs the existence-check-then-write for a single event.
func (r *Runner) ingestOne(ctx context.Context, event domain.Event, result *RunResult) {
	event.ID = domain.SanitizeID(event.ID)
	partition := domain.PartitionDate(event.OccurredAt)

	exists, err := r.store.Exists(ctx, partition, event.ID)
	if err != nil {
		r.logger.Error("existence check failed, event deferred to next cycle",
			"partition", partition, "id", event.ID, "error", err)
		r.metrics.EventsFailed.Inc()
		result.Failed++
		return
	}
	if exists {
		r.metrics.EventsSkipped.Inc()
		result.Skipped++
		return
	}

	// Scrape place labels are authoritative; only feed events get enriched.
	if event.Source == domain.SourceFeed && r.resolver != nil {
		event.Place = r.resolver.Resolve(ctx, event)
	}

	written, err := r.store.Put(ctx, partition, domain.Stamped(event))
	if err != nil {
		r.logger.Error("event write failed, event deferred to next cycle",
			"partition", partition, "id", event.ID, "error", err)
		r.metrics.EventsFailed.Inc()
		result.Failed++
		return
	}
	if !written {
		// A concurrent run won the write; content is identical, so this is harmless.
		r.metrics.EventsSkipped.Inc()
		result.Skipped++
		return
	}

	r.metrics.EventsIngested.WithLabelValues(string(event.Source)).Inc()
	result.New++

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.Warn("new-event publication failed", "id", event.ID, "error", err)
			r.metrics.PublishFailures.Inc()
		}
	}
}

func filterRegion(events []domain.Event) []domain.Event {
	kept := events[:0]
	for _, e := range events {
		if domain.InMonitoredRegion(e.Latitude, e.Longitude) {
			kept = append(kept, e)
		}
	}
	return kept
}
