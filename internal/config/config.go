// Package config defines the top-level configuration for the replay service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLY_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Database   DatabaseConfig   `toml:"database"`
	Ingest     IngestConfig     `toml:"ingest"`
	Archive    ArchiveConfig    `toml:"archive"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds the upstream Polymarket API endpoints.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	ClobHost  string `toml:"clob_host"`
	DataHost  string `toml:"data_host"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// IngestConfig holds the snapshot/ingestion job parameters.
type IngestConfig struct {
	// IntervalSeconds is the delay between ingestion cycles.
	IntervalSeconds int `toml:"interval_seconds"`
	// TradeLimit is how many recent trades to request per market per cycle.
	TradeLimit int `toml:"trade_limit"`
}

// Interval returns the ingestion cycle interval as a duration.
func (c IngestConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	Cron          string `toml:"cron"`
	RetentionDays int    `toml:"retention_days"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds the HTTP/WebSocket server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey protects mutating endpoints; empty disables authentication.
	APIKey string `toml:"api_key"`
	// RateLimit is requests per second allowed per client IP; zero
	// disables rate limiting.
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
}

// Defaults returns a Config populated with sensible defaults. Load merges
// the TOML file on top of these values.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			ClobHost:  "https://clob.polymarket.com",
			DataHost:  "https://data-api.polymarket.com",
		},
		Database: DatabaseConfig{
			Port:          5432,
			SSLMode:       "disable",
			PoolMaxConns:  8,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Ingest: IngestConfig{
			IntervalSeconds: 300,
			TradeLimit:      100,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Cron:          "0 3 * * *",
			RetentionDays: 30,
		},
		Server: ServerConfig{
			Port:      8080,
			RateLimit: 0,
			RateBurst: 20,
		},
		Mode:     "all",
		LogLevel: "info",
	}
}

// Validate checks the configuration for invalid or missing values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "serve", "ingest", "all":
	default:
		return fmt.Errorf("config: unsupported mode %q (want serve, ingest, or all)", c.Mode)
	}

	if c.Polymarket.GammaHost == "" {
		return fmt.Errorf("config: polymarket.gamma_host is required")
	}
	if c.Polymarket.ClobHost == "" {
		return fmt.Errorf("config: polymarket.clob_host is required")
	}
	if c.Polymarket.DataHost == "" {
		return fmt.Errorf("config: polymarket.data_host is required")
	}

	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("config: database.dsn or database.host is required")
	}

	if c.Ingest.IntervalSeconds <= 0 {
		return fmt.Errorf("config: ingest.interval_seconds must be positive")
	}
	if c.Ingest.TradeLimit <= 0 {
		return fmt.Errorf("config: ingest.trade_limit must be positive")
	}

	if c.Archive.Enabled {
		if c.Archive.RetentionDays <= 0 {
			return fmt.Errorf("config: archive.retention_days must be positive")
		}
		if c.S3.Bucket == "" {
			return fmt.Errorf("config: s3.bucket is required when archive.enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("config: s3.region is required when archive.enabled")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("config: server.rate_limit must not be negative")
	}

	return nil
}
