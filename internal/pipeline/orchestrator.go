package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Orchestrator manages the background jobs: the ingestion loop and the
// optional snapshot archiver cron.
type Orchestrator struct {
	snapshotter    *Snapshotter
	archiver       *Archiver // nil disables archival
	ingestInterval time.Duration
	archiveCron    string
	logger         *slog.Logger
}

// NewOrchestrator creates a new Orchestrator. archiver may be nil when
// cold-storage archival is disabled.
func NewOrchestrator(
	snapshotter *Snapshotter,
	archiver *Archiver,
	ingestInterval time.Duration,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		snapshotter:    snapshotter,
		archiver:       archiver,
		ingestInterval: ingestInterval,
		archiveCron:    archiveCron,
		logger:         logger,
	}
}

// Run starts the background jobs as concurrent goroutines using an
// errgroup. Each goroutine respects ctx cancellation; a clean shutdown
// returns nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("ingest_interval", o.ingestInterval),
		slog.Bool("archiver_enabled", o.archiver != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.logger.Info("starting ingestion loop")
		err := o.snapshotter.RunLoop(ctx, o.ingestInterval)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("ingestion loop: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			o.logger.Info("starting archiver cron", slog.String("cron", o.archiveCron))
			err := o.runArchiverCron(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver cron: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}

// runArchiverCron schedules archive runs on the configured cron expression
// and blocks until the context is cancelled.
func (o *Orchestrator) runArchiverCron(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))

	_, err := c.AddFunc(o.archiveCron, func() {
		if err := o.archiver.Run(ctx); err != nil {
			o.logger.Error("archive run failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", o.archiveCron, err)
	}

	c.Start()
	<-ctx.Done()

	// Wait for any in-flight archive run to finish before returning.
	<-c.Stop().Done()
	return ctx.Err()
}
