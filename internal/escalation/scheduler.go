package escalation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-escalation/internal/domain"
)

// Sweeper runs one sweep.
type Sweeper interface {
	RunSweep(ctx context.Context, trigger domain.SweepTrigger) (domain.SweepSummary, error)
}

// Scheduler runs sweeps periodically until its context is cancelled.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewScheduler builds a scheduler. timeout bounds each sweep; zero disables it.
func NewScheduler(sweeper Sweeper, interval, timeout time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{sweeper: sweeper, interval: interval, timeout: timeout, logger: logger}
}

// Run sweeps once immediately, then every interval. It returns when ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("escalation scheduler started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("escalation scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single bounded sweep and logs its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	summary, err := s.sweeper.RunSweep(ctx, domain.TriggerScheduler)
	if err != nil {
		s.logger.Error("scheduled escalation sweep failed", zap.Error(err))
		return
	}
	if summary.Skipped {
		return
	}
	s.logger.Info(SummaryLine(summary),
		zap.Int("checked", summary.Checked),
		zap.Int("errors", len(summary.Errors)),
	)
}
