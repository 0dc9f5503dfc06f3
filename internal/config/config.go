// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	RedisAddr     string `env:"REDIS_ADDR,required,notEmpty"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	FeedURL     string        `env:"FEED_URL" envDefault:"https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_hour.geojson"`
	QueryURL    string        `env:"QUERY_URL" envDefault:"https://earthquake.usgs.gov/fdsnws/event/1/query"`
	FeedTimeout time.Duration `env:"FEED_TIMEOUT" envDefault:"10s"`

	ScrapeURL      string        `env:"SCRAPE_URL" envDefault:"https://earthquake.phivolcs.dost.gov.ph/"`
	ScrapeTimeout  time.Duration `env:"SCRAPE_TIMEOUT" envDefault:"30s"`
	ScrapeAttempts int           `env:"SCRAPE_ATTEMPTS" envDefault:"3"`

	GeocodeEnabled   bool          `env:"GEOCODE_ENABLED" envDefault:"true"`
	GeocodeURL       string        `env:"GEOCODE_URL" envDefault:"https://nominatim.openstreetmap.org/reverse"`
	GeocodeTimeout   time.Duration `env:"GEOCODE_TIMEOUT" envDefault:"10s"`
	GeocodeCacheSize int           `env:"GEOCODE_CACHE_SIZE" envDefault:"1000"`

	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5m"`
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"1h"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"quake.events.new"`

	GeminiAPIKey  string        `env:"GEMINI_API_KEY" envDefault:""`
	GeminiModel   string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiTimeout time.Duration `env:"GEMINI_TIMEOUT" envDefault:"60s"`

	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
}

// PublishEnabled reports whether a Kafka publisher should be wired.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// AnalysisEnabled reports whether the AI analyzer should be wired.
func (c *Config) AnalysisEnabled() bool {
	return c.GeminiAPIKey != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ScrapeAttempts < 1 {
		return fmt.Errorf("SCRAPE_ATTEMPTS must be at least 1, got %d", c.ScrapeAttempts)
	}
	if c.GeocodeCacheSize < 1 {
		return fmt.Errorf("GEOCODE_CACHE_SIZE must be at least 1, got %d", c.GeocodeCacheSize)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive, got %s", c.SyncInterval)
	}
	return nil
}
