// util/notification_service.go

package util

import (
	"context"

	"go.uber.org/zap"

	logger "github.com/sentra-labs/sentra/logging"
)

type NotificationService struct {
	// You might want to add dependencies here, such as a message queue client
}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotifyGuardian alerts a minor's guardian when a decision carries the
// adult_notification obligation.
func (n *NotificationService) NotifyGuardian(ctx context.Context, actorID, auditID string) error {
	// In a real implementation, you might send this to a message queue or external notification service
	logger.Info("NOTIFICATION: Guardian notified",
		zap.String("actorID", actorID),
		zap.String("auditID", auditID))
	return nil
}

// NotifySecurityTeam escalates denied privileged operations.
func (n *NotificationService) NotifySecurityTeam(ctx context.Context, auditID string, reasons []string) error {
	logger.Info("NOTIFICATION: Security team notified",
		zap.String("auditID", auditID),
		zap.Strings("reasons", reasons))
	return nil
}

func (n *NotificationService) NotifyAdmins(ctx context.Context, message string) error {
	// Logic to notify all system administrators
	logger.Info("Notifying admins", zap.String("message", message))
	return nil
}
