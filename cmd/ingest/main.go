package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/seismowatch/quake-ingest/internal/adapter/gemini"
	"github.com/seismowatch/quake-ingest/internal/adapter/httpapi"
	kafkaadapter "github.com/seismowatch/quake-ingest/internal/adapter/kafka"
	"github.com/seismowatch/quake-ingest/internal/adapter/nominatim"
	"github.com/seismowatch/quake-ingest/internal/adapter/phivolcs"
	"github.com/seismowatch/quake-ingest/internal/adapter/redisstore"
	"github.com/seismowatch/quake-ingest/internal/adapter/usgs"
	"github.com/seismowatch/quake-ingest/internal/analysis"
	"github.com/seismowatch/quake-ingest/internal/config"
	"github.com/seismowatch/quake-ingest/internal/observability"
	"github.com/seismowatch/quake-ingest/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := redisstore.New(redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}), logger)
	if err := store.Ping(ctx); err != nil {
		logger.Error("event store unreachable", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}

	feed := usgs.NewClient(cfg.FeedURL, cfg.QueryURL, cfg.FeedTimeout, clock, logger)
	scrape := phivolcs.NewScraper(cfg.ScrapeURL, cfg.ScrapeTimeout, cfg.ScrapeAttempts, clock, logger)

	// Place enrichment is feature-flagged; without it events keep their
	// source-provided labels.
	var resolver pipeline.PlaceResolver
	if cfg.GeocodeEnabled {
		geocoder := nominatim.NewClient(cfg.GeocodeURL, cfg.GeocodeTimeout)
		resolver = nominatim.NewResolver(geocoder, cfg.GeocodeCacheSize, logger)
		logger.Info("place enrichment enabled", "cache_size", cfg.GeocodeCacheSize)
	} else {
		logger.Info("place enrichment disabled")
	}

	var publisher pipeline.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.PublishEnabled() {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = kafkaPublisher
		logger.Info("event publication enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("event publication disabled")
	}

	var analyzer pipeline.AnalysisRunner
	if cfg.AnalysisEnabled() {
		summarizer := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout)
		analyzer = analysis.NewAnalyzer(store, store, summarizer, logger, metrics, clock)
		logger.Info("ai analysis enabled", "model", cfg.GeminiModel)
	} else {
		logger.Info("ai analysis disabled")
	}

	runner := pipeline.NewRunner(feed, scrape, store, resolver, publisher, logger, metrics, clock)
	scheduler := pipeline.NewScheduler(runner, analyzer, cfg.PollInterval, cfg.SyncInterval, clock, logger)

	srv := httpapi.NewServer(cfg.HTTPAddr, store, store, runner, analyzer, clock, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go scheduler.Run(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
