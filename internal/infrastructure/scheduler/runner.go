package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/dto"
	apperrors "github.com/Liwei1020T/appointmentSystem-sub002/pkg/errors"
)

// AutomationJob is one automation run
type AutomationJob interface {
	Run(ctx context.Context) (*dto.AutomationSummary, error)
}

// Runner triggers job on a fixed interval
type Runner struct {
	job      AutomationJob
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewRunner creates a runner. Each run is bounded by the interval so a slow
// run never overlaps the next tick.
func NewRunner(job AutomationJob, interval time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		job:      job,
		interval: interval,
		timeout:  interval,
		logger:   logger,
	}
}

// Start blocks until ctx is cancelled. The first run happens immediately.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("Order automation scheduler started", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Order automation scheduler stopped")
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	summary, err := r.job.Run(runCtx)
	if err != nil {
		// An interrupted run still reports what it committed
		apperrors.LogError(r.logger, err, "Order automation run failed", summaryFields(summary)...)
		return
	}
	if summary.Skipped {
		r.logger.Debug("Order automation run skipped, lock held elsewhere")
		return
	}

	r.logger.Info("Order automation run completed", summaryFields(summary)...)
}

func summaryFields(summary *dto.AutomationSummary) []zap.Field {
	if summary == nil {
		return nil
	}
	return []zap.Field{
		zap.Int("cancelled", summary.CancelledOrders.Count),
		zap.Int("warnings", summary.WarningOrders.Count),
		zap.Int("reminders", summary.Reminders.Count),
		zap.Int("failed", len(summary.CancelledOrders.Failed)+len(summary.WarningOrders.Failed)+len(summary.Reminders.Failed)),
	}
}
