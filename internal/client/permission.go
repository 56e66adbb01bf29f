package client

import (
	"context"
	"log/slog"

	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/logger"
)

// PermissionGate decides whether notifications may be shown, prompting at most once.
type PermissionGate struct {
	center NotificationCenter
	logger *slog.Logger
}

func NewPermissionGate(center NotificationCenter, log *slog.Logger) *PermissionGate {
	if log == nil {
		log = logger.Discard()
	}
	return &PermissionGate{center: center, logger: log}
}

// RequestPermission returns true when notifications are allowed. A granted or
// denied state is final and never re-prompted; only the default state prompts.
func (g *PermissionGate) RequestPermission(ctx context.Context) bool {
	if g.center == nil || !g.center.Supported() {
		g.logger.Warn("notifications not supported")
		return false
	}

	switch g.center.Permission() {
	case PermissionGranted:
		return true
	case PermissionDenied:
		return false
	}

	answer, err := g.center.RequestPermission(ctx)
	if err != nil {
		g.logger.Error("permission prompt failed", slog.Any("error", err))
		return false
	}
	return answer == PermissionGranted
}
