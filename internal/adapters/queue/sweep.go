package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/riverqueue/river"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
	portssvc "github.com/SscSPs/takas_swap_engine/internal/core/ports/services"
)

// SweepArgs triggers one dispute window sweep.
type SweepArgs struct{}

func (SweepArgs) Kind() string { return "dispute_window_sweep" }

func (SweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueMaintenance, MaxAttempts: 1}
}

// SweepWorker runs the dispute window sweep and owns its scheduler state.
type SweepWorker struct {
	river.WorkerDefaults[SweepArgs]
	sweeper portssvc.DisputeWindowSvc

	mu    sync.Mutex
	state *domain.SweepState
}

// NewSweepWorker creates a worker that skips runs closer together than minInterval.
func NewSweepWorker(sweeper portssvc.DisputeWindowSvc, minInterval time.Duration) *SweepWorker {
	return &SweepWorker{
		sweeper: sweeper,
		state:   &domain.SweepState{MinInterval: minInterval},
	}
}

func (w *SweepWorker) Work(ctx context.Context, job *river.Job[SweepArgs]) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	result, err := w.sweeper.SweepDisputeWindows(ctx, w.state)
	if err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		// Failed swaps stay due and are picked up by the next run.
		slog.WarnContext(ctx, "Dispute window sweep left swaps unfinalized",
			slog.Any("swap_ids", result.Failed),
			slog.Int("attempt", attemptOf(job)))
	}
	return nil
}

// State returns a copy of the scheduler state.
func (w *SweepWorker) State() domain.SweepState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.state
}

// PeriodicSweep schedules the sweep every interval, starting at boot.
func PeriodicSweep(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return SweepArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
