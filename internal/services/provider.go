package services

import (
	"context"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/models"
)

// PushProvider delivers one encrypted payload to one subscription.
//
// A non-nil error is transient (network, 429, 5xx) and worth retrying. Gone
// and permanent failures come back as a result with a nil error.
type PushProvider interface {
	Name() string
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) (models.PushResult, error)
}
