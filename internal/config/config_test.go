package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "serve"

[database]
host = "db.internal"
user = "poly"

[ingest]
interval_seconds = 60

[server]
port = 9090
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "serve", cfg.Mode)
	require.Equal(t, "db.internal", cfg.Database.Host)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 60*time.Second, cfg.Ingest.Interval())

	// Untouched fields keep their defaults.
	require.Equal(t, "https://gamma-api.polymarket.com", cfg.Polymarket.GammaHost)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, 100, cfg.Ingest.TradeLimit)
	require.True(t, cfg.Database.RunMigrations)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[database]
host = "from-file"
`)

	t.Setenv("POLY_DATABASE_HOST", "from-env")
	t.Setenv("POLY_SERVER_PORT", "7070")
	t.Setenv("POLY_MODE", "ingest")
	t.Setenv("POLY_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "from-env", cfg.Database.Host)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "ingest", cfg.Mode)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	valid.Database.Host = "localhost"
	require.NoError(t, valid.Validate())

	badMode := valid
	badMode.Mode = "replay"
	require.Error(t, badMode.Validate())

	noDB := valid
	noDB.Database.Host = ""
	noDB.Database.DSN = ""
	require.Error(t, noDB.Validate())

	badPort := valid
	badPort.Server.Port = 70000
	require.Error(t, badPort.Validate())

	badInterval := valid
	badInterval.Ingest.IntervalSeconds = 0
	require.Error(t, badInterval.Validate())

	archiveNoBucket := valid
	archiveNoBucket.Archive.Enabled = true
	archiveNoBucket.S3.Region = "us-east-1"
	require.Error(t, archiveNoBucket.Validate())

	archiveOK := archiveNoBucket
	archiveOK.S3.Bucket = "poly-archive"
	require.NoError(t, archiveOK.Validate())
}
