package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/repository"
)

const (
	StatusProcessing = "processing"
	StatusDelivered  = "delivered"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
)

type statusWriter interface {
	UpdateStatus(ctx context.Context, ns repository.NotificationStatus) error
}

// StatusUpdater records event progress. Write failures are logged, never returned;
// delivery must not depend on bookkeeping.
type StatusUpdater struct {
	store  statusWriter
	logger *slog.Logger
}

func NewStatusUpdater(store statusWriter, logger *slog.Logger) *StatusUpdater {
	return &StatusUpdater{
		store:  store,
		logger: logger,
	}
}

func (s *StatusUpdater) MarkProcessing(ctx context.Context, requestID, event, userID string) {
	s.write(ctx, repository.NotificationStatus{RequestID: requestID, Event: event, UserID: userID, Status: StatusProcessing})
}

func (s *StatusUpdater) MarkDelivered(ctx context.Context, requestID string, sent, failed int) {
	detail := ""
	if failed > 0 {
		detail = fmt.Sprintf("%d of %d endpoints failed", failed, sent+failed)
	}
	s.write(ctx, repository.NotificationStatus{RequestID: requestID, Status: StatusDelivered, Sent: sent, Failed: failed, Detail: detail})
}

func (s *StatusUpdater) MarkFailed(ctx context.Context, requestID string, failed int, detail string) {
	s.write(ctx, repository.NotificationStatus{RequestID: requestID, Status: StatusFailed, Failed: failed, Detail: detail})
}

func (s *StatusUpdater) MarkSkipped(ctx context.Context, requestID, detail string) {
	s.write(ctx, repository.NotificationStatus{RequestID: requestID, Status: StatusSkipped, Detail: detail})
}

func (s *StatusUpdater) write(ctx context.Context, ns repository.NotificationStatus) {
	if err := s.store.UpdateStatus(ctx, ns); err != nil {
		s.logger.Error("failed to update notification status",
			slog.String("request_id", ns.RequestID),
			slog.String("status", ns.Status),
			slog.Any("error", err),
		)
	}
}
