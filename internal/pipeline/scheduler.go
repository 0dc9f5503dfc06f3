package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// initialAnalysisDelay gives the first ingest run time to land before the
// first analysis reads the store.
const initialAnalysisDelay = 30 * time.Second

// IngestRunner is the scheduler's view of the pipeline.
type IngestRunner interface {
	Run(ctx context.Context, opts RunOptions) RunResult
}

// AnalysisRunner triggers one AI analysis pass over recent events.
type AnalysisRunner interface {
	Analyze(ctx context.Context) error
}

// Scheduler drives the pipeline on fixed intervals: a recent-window poll
// every PollInterval, and a wider regional sync plus an analysis pass every
// SyncInterval. Triggers fire as independent goroutines and are not
// mutually excluded — overlapping runs race only on the store's atomic
// write-once guard, which is the accepted behavior.
type Scheduler struct {
	runner       IngestRunner
	analyzer     AnalysisRunner // nil disables analysis scheduling
	pollInterval time.Duration
	syncInterval time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger
}

// NewScheduler creates a scheduler. analyzer may be nil.
func NewScheduler(
	runner IngestRunner,
	analyzer AnalysisRunner,
	pollInterval, syncInterval time.Duration,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		runner:       runner,
		analyzer:     analyzer,
		pollInterval: pollInterval,
		syncInterval: syncInterval,
		clock:        clock,
		logger:       logger,
	}
}

// Run blocks until the context is cancelled, firing scheduled triggers.
// An initial recent-window ingest fires immediately; the first analysis
// fires after a short delay.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		"poll_interval", s.pollInterval,
		"sync_interval", s.syncInterval,
		"analysis_enabled", s.analyzer != nil,
	)

	s.launchIngest(ctx, RunOptions{IncludeScrape: true})

	poll := s.clock.NewTicker(s.pollInterval)
	defer poll.Stop()
	sync := s.clock.NewTicker(s.syncInterval)
	defer sync.Stop()

	var firstAnalysis <-chan time.Time
	var analysisTick <-chan time.Time
	if s.analyzer != nil {
		firstAnalysis = s.clock.After(initialAnalysisDelay)
		analysis := s.clock.NewTicker(s.syncInterval)
		defer analysis.Stop()
		analysisTick = analysis.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return
		case <-poll.Chan():
			s.launchIngest(ctx, RunOptions{IncludeScrape: true})
		case <-sync.Chan():
			s.launchIngest(ctx, RunOptions{UseRegionalQuery: true, IncludeScrape: true})
		case <-firstAnalysis:
			firstAnalysis = nil
			s.launchAnalysis(ctx)
		case <-analysisTick:
			s.launchAnalysis(ctx)
		}
	}
}

func (s *Scheduler) launchIngest(ctx context.Context, opts RunOptions) {
	go s.runner.Run(ctx, opts)
}

func (s *Scheduler) launchAnalysis(ctx context.Context) {
	go func() {
		if err := s.analyzer.Analyze(ctx); err != nil {
			s.logger.Error("scheduled analysis failed", "error", err)
		}
	}()
}
