package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-escalation/internal/notification"
	"github.com/spec-kit/issue-escalation/internal/service"
)

// StartNotificationWorker starts the mail queue, if any, and registers the
// event handlers that feed it. The returned function drains the queue.
func StartNotificationWorker(notificationService *service.NotificationService, queue *notification.Queue, logger *zap.Logger) func(context.Context) error {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if queue == nil {
		logger.Warn("mail is not configured; notifications are disabled")
		return func(context.Context) error { return nil }
	}
	queue.Start()
	return queue.Stop
}
