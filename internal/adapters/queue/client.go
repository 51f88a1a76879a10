package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

// ClientConfig sizes the river client.
type ClientConfig struct {
	MaxWorkers    int
	SweepInterval time.Duration
	Logger        *slog.Logger
}

// Migrate brings river's own tables up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("river migrate up failed: %w", err)
	}
	return nil
}

// NewWorkers registers the notification and sweep workers.
func NewWorkers(notifications *NotificationWorker, sweep *SweepWorker) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker(workers, notifications)
	river.AddWorker(workers, sweep)
	return workers
}

// NewClient creates the river client that runs both queues and schedules the sweep.
func NewClient(pool *pgxpool.Pool, workers *river.Workers, cfg ClientConfig) (*river.Client[pgx.Tx], error) {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Logger: cfg.Logger,
		Queues: map[string]river.QueueConfig{
			QueueNotifications: {MaxWorkers: maxWorkers},
			QueueMaintenance:   {MaxWorkers: 1},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{PeriodicSweep(cfg.SweepInterval)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create river client: %w", err)
	}
	return client, nil
}

// NewInsertOnlyClient creates a client that only inserts jobs. Services enqueue through it
// so they can be built before the worker client that depends on them.
func NewInsertOnlyClient(pool *pgxpool.Pool, logger *slog.Logger) (*river.Client[pgx.Tx], error) {
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to create river insert client: %w", err)
	}
	return client, nil
}
