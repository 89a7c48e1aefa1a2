// util/notification_service.go

package util

import (
	"context"

	"go.uber.org/zap"

	logger "github.com/flowgate/api/logging"
	"github.com/flowgate/api/model"
)

type NotificationService struct {
	// You might want to add dependencies here, such as a message queue client
}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotifyAccessChange tells interested systems a user's chatflow access changed.
func (n *NotificationService) NotifyAccessChange(ctx context.Context, changeType, userID, chatflowID string) error {
	logger.Info("NOTIFICATION: Chatflow access changed",
		zap.String("changeType", changeType),
		zap.String("userID", userID),
		zap.String("chatflowID", chatflowID))

	// Here you would implement the actual notification logic
	// This could involve sending messages to a queue, calling an external API, etc.

	return nil
}

// NotifyAdmins sends an operational message to system administrators.
func (n *NotificationService) NotifyAdmins(ctx context.Context, message string) error {
	logger.Info("Notifying admins", zap.String("message", message))
	return nil
}

// NotifyCleanupRun summarizes a finished reconciliation cleanup for admins.
func (n *NotificationService) NotifyCleanupRun(ctx context.Context, report *model.CleanupReport) error {
	logger.Info("NOTIFICATION: Reconciliation cleanup finished",
		zap.String("action", string(report.Action)),
		zap.Bool("dryRun", report.DryRun),
		zap.Int("deleted", report.Deleted),
		zap.Int("deactivated", report.Deactivated),
		zap.Int("reassigned", report.Reassigned),
		zap.Int("failed", report.Failed))
	return nil
}
