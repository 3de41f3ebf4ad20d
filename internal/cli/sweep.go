package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-escalation/internal/app"
	"github.com/spec-kit/issue-escalation/internal/domain"
	"github.com/spec-kit/issue-escalation/internal/escalation"
)

// SweepCmd runs one escalation sweep and exits.
func SweepCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Escalate every overdue ticket once",
		Long: `Run a single escalation sweep with the same policy as the scheduler and
the HTTP trigger. Mail queued during the sweep is flushed before exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(ctx context.Context, c *app.Container) error {
				if c.MailQueue != nil {
					c.MailQueue.Start()
					defer func() {
						drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
						defer cancel()
						if err := c.MailQueue.Stop(drainCtx); err != nil {
							c.Logger.Warn("notification queue not drained", zap.Error(err))
						}
					}()
				}
				summary, err := runSweep(ctx, c.Runner, timeout, c.Logger)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), escalation.SummaryLine(summary))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "bound the sweep duration (0 = unbounded)")
	return cmd
}

func runSweep(ctx context.Context, sweeper escalation.Sweeper, timeout time.Duration, logger *zap.Logger) (domain.SweepSummary, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	summary, err := sweeper.RunSweep(ctx, domain.TriggerCLI)
	if err != nil {
		return summary, fmt.Errorf("escalation sweep: %w", err)
	}
	logger.Info(escalation.SummaryLine(summary),
		zap.Int("checked", summary.Checked),
		zap.Int("escalated", summary.Escalated),
		zap.Strings("errors", summary.Errors),
		zap.Bool("skipped", summary.Skipped),
		zap.Bool("cancelled", summary.Cancelled),
	)
	return summary, nil
}
