// Package client implements the subscription side of web push: asking for
// notification permission, resolving the server key, subscribing and
// unsubscribing against the platform push manager, and keeping the backend in
// sync with the platform state.
//
// The browser runtime is reached through the small interfaces in this file so
// the same flow runs against a real bridge or against in-memory fakes.
package client

import (
	"context"
	"errors"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/models"
)

// ErrUnsupported is returned when the runtime has no push capability.
var ErrUnsupported = errors.New("push: not supported by this runtime")

// Permission is the notification permission state reported by the runtime.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// NotificationCenter exposes the runtime's notification permission.
type NotificationCenter interface {
	// Supported reports whether notifications exist at all in this runtime.
	Supported() bool
	// Permission returns the current state without prompting.
	Permission() Permission
	// RequestPermission shows the interactive prompt once and returns the user's answer.
	RequestPermission(ctx context.Context) (Permission, error)
}

// ServiceWorker is the registered background worker. Ready blocks until the
// worker is installed and active.
type ServiceWorker interface {
	Ready(ctx context.Context) (PushManager, error)
}

// SubscribeOptions mirrors the platform subscribe options.
type SubscribeOptions struct {
	// UserVisibleOnly requires every push to surface a notification.
	UserVisibleOnly bool
	// ApplicationServerKey is the raw uncompressed P-256 VAPID public key.
	ApplicationServerKey []byte
}

// PushManager owns the single subscription slot of a worker registration.
type PushManager interface {
	// Subscription returns the current subscription or nil when none exists.
	Subscription(ctx context.Context) (*models.PushSubscription, error)
	Subscribe(ctx context.Context, opts SubscribeOptions) (*models.PushSubscription, error)
	// Unsubscribe removes the subscription for endpoint and reports whether the platform removed it.
	Unsubscribe(ctx context.Context, endpoint string) (bool, error)
}
