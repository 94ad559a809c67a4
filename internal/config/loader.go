package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLY_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLY_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "POLY_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "POLY_CLOB_HOST")
	setStr(&cfg.Polymarket.DataHost, "POLY_DATA_HOST")

	// ── Database ──
	setStr(&cfg.Database.DSN, "POLY_DATABASE_DSN")
	setStr(&cfg.Database.Host, "POLY_DATABASE_HOST")
	setInt(&cfg.Database.Port, "POLY_DATABASE_PORT")
	setStr(&cfg.Database.Database, "POLY_DATABASE_NAME")
	setStr(&cfg.Database.User, "POLY_DATABASE_USER")
	setStr(&cfg.Database.Password, "POLY_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "POLY_DATABASE_SSL_MODE")
	setBool(&cfg.Database.RunMigrations, "POLY_DATABASE_RUN_MIGRATIONS")

	// ── Ingest ──
	setInt(&cfg.Ingest.IntervalSeconds, "POLY_INGEST_INTERVAL_SECONDS")
	setInt(&cfg.Ingest.TradeLimit, "POLY_INGEST_TRADE_LIMIT")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "POLY_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "POLY_ARCHIVE_CRON")
	setInt(&cfg.Archive.RetentionDays, "POLY_ARCHIVE_RETENTION_DAYS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POLY_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLY_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLY_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLY_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLY_S3_SECRET_KEY")

	// ── Server ──
	setInt(&cfg.Server.Port, "POLY_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "POLY_SERVER_API_KEY")
	if v := os.Getenv("POLY_SERVER_CORS_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		cfg.Server.CORSOrigins = origins
	}

	// ── Top-level ──
	setStr(&cfg.Mode, "POLY_MODE")
	setStr(&cfg.LogLevel, "POLY_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
