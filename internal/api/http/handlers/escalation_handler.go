package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-escalation/internal/api/dto"
	"github.com/spec-kit/issue-escalation/internal/auth"
	"github.com/spec-kit/issue-escalation/internal/domain"
	apperrors "github.com/spec-kit/issue-escalation/pkg/util/errorutil"
)

// TriggerHeader carries the shared secret of the escalation trigger.
const TriggerHeader = "X-CRON-TOKEN"

// Sweeper runs one escalation sweep.
type Sweeper interface {
	RunSweep(ctx context.Context, trigger domain.SweepTrigger) (domain.SweepSummary, error)
}

// EscalationHandler exposes the sweep to external cron callers.
type EscalationHandler struct {
	sweeper  Sweeper
	verifier *auth.TriggerVerifier
	logger   *zap.Logger
}

// NewEscalationHandler constructs handler.
func NewEscalationHandler(sweeper Sweeper, verifier *auth.TriggerVerifier, logger *zap.Logger) *EscalationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationHandler{sweeper: sweeper, verifier: verifier, logger: logger}
}

// Trigger POST|GET /internal/escalate/.
func (h *EscalationHandler) Trigger(c *fiber.Ctx) error {
	if !h.verifier.Verify(c.Get(TriggerHeader)) {
		h.logger.Warn("escalation trigger rejected",
			zap.String("ip", c.IP()),
			zap.Bool("secret_configured", h.verifier.Configured()),
		)
		return apperrors.NewForbidden("invalid trigger token")
	}

	summary, err := h.sweeper.RunSweep(c.UserContext(), domain.TriggerHTTP)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	finished := summary.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	errs := summary.Errors
	if errs == nil {
		errs = []string{}
	}
	return c.JSON(dto.SweepResponse{
		Status:    "ok",
		Checked:   summary.Checked,
		Escalated: summary.Escalated,
		Errors:    errs,
		Skipped:   summary.Skipped,
		Cancelled: summary.Cancelled,
		Timestamp: finished.UTC().Format(time.RFC3339),
	})
}
