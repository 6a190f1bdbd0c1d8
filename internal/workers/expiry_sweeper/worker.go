// Package expiry_sweeper runs the scheduled expiry sweep over withdrawal
// requests and proposals. The sweep uses the same compare-and-set transitions
// as the request path, so it is safe against concurrent admin decisions and
// against overlapping runs.
package expiry_sweeper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/justthetip/treasury_service/pkg/logger"
)

// Sweeper is implemented by services that can expire their stale records.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Worker schedules the periodic expiry sweep.
type Worker struct {
	cron        *cron.Cron
	schedule    string
	withdrawals Sweeper
	proposals   Sweeper
	logger      *logger.Logger
}

// NewWorker creates an expiry sweeper running on the given cron schedule.
func NewWorker(schedule string, withdrawals, proposals Sweeper, log *logger.Logger) *Worker {
	return &Worker{
		cron:        cron.New(),
		schedule:    schedule,
		withdrawals: withdrawals,
		proposals:   proposals,
		logger:      log,
	}
}

// Start registers the sweep job and starts the scheduler. An initial sweep
// runs immediately so records that expired while the service was down are
// cleaned up on boot.
func (w *Worker) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, w.sweep); err != nil {
		return err
	}

	go w.sweep()

	w.cron.Start()
	w.logger.Info("Expiry sweeper started", "schedule", w.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (w *Worker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("Expiry sweeper stopped")
}

func (w *Worker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := w.withdrawals.SweepExpired(ctx); err != nil {
		w.logger.Error("Withdrawal expiry sweep failed", "error", err)
	}
	if _, err := w.proposals.SweepExpired(ctx); err != nil {
		w.logger.Error("Proposal expiry sweep failed", "error", err)
	}
}
