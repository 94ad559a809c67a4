package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sonpham-org/poly/internal/pipeline"
	"github.com/sonpham-org/poly/internal/server"
	"github.com/sonpham-org/poly/internal/server/handler"
	"github.com/sonpham-org/poly/internal/server/ws"
)

// shutdownGrace bounds how long in-flight HTTP requests may run after the
// context is cancelled.
const shutdownGrace = 10 * time.Second

// ServeMode runs only the HTTP + WebSocket API.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// IngestMode runs only the background pipelines: the periodic snapshot and
// trade ingestion loop, plus the archival cron when enabled.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode")

	orch := pipeline.NewOrchestrator(
		deps.Snapshotter, deps.Archiver,
		a.cfg.Ingest.Interval(), a.cfg.Archive.Cron,
		a.logger,
	)
	return orch.Run(ctx)
}

// AllMode runs the API server and the background pipelines together.
func (a *App) AllMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting all mode")

	g, ctx := errgroup.WithContext(ctx)

	orch := pipeline.NewOrchestrator(
		deps.Snapshotter, deps.Archiver,
		a.cfg.Ingest.Interval(), a.cfg.Archive.Cron,
		a.logger,
	)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// startHTTPServer registers the API server goroutines on g: one serving, one
// waiting on ctx to trigger a graceful shutdown.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Markets: handler.NewMarketHandler(deps.Markets, a.logger),
		Replay:  handler.NewReplayHandler(deps.Prices, deps.Trades, deps.Snapshotter, a.logger),
	}
	replayWS := ws.NewReplayHandler(deps.Markets, deps.Trades, deps.Prices, a.logger)

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateBurst:   a.cfg.Server.RateBurst,
	}, handlers, replayWS, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed", slog.String("error", err.Error()))
		}
		return ctx.Err()
	})
}
