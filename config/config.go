package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"3000"`
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DBDSN    string `env:"DB_DSN" envDefault:"./data/parliament.db"`
	RedisURL string `env:"REDIS_URL"`

	Jurisdiction          string        `env:"JURISDICTION" envDefault:"ca-federal"`
	OpenParliamentBaseURL string        `env:"OPENPARLIAMENT_BASE_URL" envDefault:"https://api.openparliament.ca"`
	OpenParliamentSiteURL string        `env:"OPENPARLIAMENT_SITE_URL" envDefault:"https://openparliament.ca"`
	LegisInfoBaseURL      string        `env:"LEGISINFO_BASE_URL" envDefault:"https://www.parl.ca/legisinfo"`
	HTTPUserAgent         string        `env:"HTTP_USER_AGENT" envDefault:"parliament-api/1.0 (+https://github.com/parliament-api)"`
	HTTPTimeout           time.Duration `env:"HTTP_TIMEOUT" envDefault:"20s"`
	UpstreamRPS           float64       `env:"UPSTREAM_RPS" envDefault:"2"`

	IngestInterval     time.Duration `env:"INGEST_INTERVAL" envDefault:"6h"`
	IngestMaxInterval  time.Duration `env:"INGEST_MAX_INTERVAL" envDefault:"24h"`
	IngestOnStart      bool          `env:"INGEST_ON_START" envDefault:"true"`
	IngestPageLimit    int           `env:"INGEST_PAGE_LIMIT" envDefault:"5"`
	PipelineMaxRetries int           `env:"PIPELINE_MAX_RETRIES" envDefault:"3"`
	PipelineRetryDelay time.Duration `env:"PIPELINE_RETRY_DELAY" envDefault:"1s"`

	RateLimitRPS    float64       `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" envDefault:"20"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"120"`

	AdminAPIKey  string        `env:"ADMIN_API_KEY"`
	CORSOrigins  string        `env:"CORS_ORIGINS" envDefault:"*"`
	FeedBaseURL  string        `env:"FEED_BASE_URL" envDefault:"http://localhost:3000"`
	FeedCacheTTL time.Duration `env:"FEED_CACHE_TTL" envDefault:"5m"`
}

var AppConfig *Config

// Load reads .env (if present) and the process environment into AppConfig.
func Load() {
	_ = godotenv.Load()

	cfg, err := Parse()
	if err != nil {
		log.Fatal(err)
	}
	AppConfig = cfg
}

// Parse builds a Config from the environment and validates it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", c.DBDriver)
	}
	if c.PipelineMaxRetries < 1 {
		return fmt.Errorf("PIPELINE_MAX_RETRIES must be at least 1")
	}
	if c.PipelineRetryDelay <= 0 {
		return fmt.Errorf("PIPELINE_RETRY_DELAY must be positive")
	}
	if c.IngestInterval <= 0 {
		return fmt.Errorf("INGEST_INTERVAL must be positive")
	}
	if c.IngestMaxInterval < c.IngestInterval {
		c.IngestMaxInterval = c.IngestInterval
	}
	if c.IngestPageLimit < 1 {
		c.IngestPageLimit = 1
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
