package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/sonpham-org/poly/internal/blob/s3"
	"github.com/sonpham-org/poly/internal/config"
	"github.com/sonpham-org/poly/internal/memocache"
	"github.com/sonpham-org/poly/internal/pipeline"
	"github.com/sonpham-org/poly/internal/platform/polymarket"
	"github.com/sonpham-org/poly/internal/service"
	"github.com/sonpham-org/poly/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is built by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Upstream clients
	Gamma *polymarket.GammaClient
	Clob  *polymarket.ClobClient
	Data  *polymarket.DataClient

	// Stores
	Tracked    *postgres.TrackedMarketStore
	Snapshots  *postgres.SnapshotStore
	TradeCache *postgres.TradeCacheStore

	// Services
	Markets *service.MarketService
	Trades  *service.TradeService
	Prices  *service.PriceService

	// Pipelines
	Snapshotter *pipeline.Snapshotter
	Archiver    *pipeline.Archiver // nil when archival is disabled
}

// needsArchiver reports whether the configuration calls for the cold-storage
// archival job. Serve mode never archives.
func needsArchiver(cfg *config.Config) bool {
	return cfg.Archive.Enabled && cfg.Mode != "serve"
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function to be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Tracked = postgres.NewTrackedMarketStore(pool)
	deps.Snapshots = postgres.NewSnapshotStore(pool)
	deps.TradeCache = postgres.NewTradeCacheStore(pool)

	// --- Upstream clients ---
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost)
	deps.Data = polymarket.NewDataClient(cfg.Polymarket.DataHost)

	// --- Services, sharing one in-process response cache ---
	cache := memocache.New()
	deps.Markets = service.NewMarketService(deps.Gamma, deps.Tracked, cache, logger)
	deps.Trades = service.NewTradeService(deps.Data, deps.TradeCache, cfg.Ingest.TradeLimit, logger)
	deps.Prices = service.NewPriceService(deps.Clob, deps.Snapshots, cache, logger)

	// --- Pipelines ---
	deps.Snapshotter = pipeline.NewSnapshotter(
		deps.Tracked, deps.Snapshots, deps.TradeCache,
		deps.Clob, deps.Data,
		cfg.Ingest.TradeLimit, logger,
	)

	if needsArchiver(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3 health: %w", err)
		}

		deps.Archiver = pipeline.NewArchiver(
			deps.Snapshots, s3blob.NewWriter(s3Client),
			cfg.Archive.RetentionDays, logger,
		)
	}

	return deps, cleanup, nil
}
