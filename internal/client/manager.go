package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/models"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/logger"
)

// UnsubscribeResult reports both halves of an unsubscribe.
type UnsubscribeResult struct {
	// Removed is true once the platform dropped the subscription.
	Removed  bool
	Endpoint string
	// BackendErr is the backend notification failure, if any. It does not
	// change Removed.
	BackendErr error
}

// Manager subscribes and unsubscribes the client and mirrors the result to the backend.
// Concurrent calls are not deduplicated; the platform owns the single subscription slot.
type Manager struct {
	worker  ServiceWorker
	keys    *KeyProvisioner
	backend *Backend
	logger  *slog.Logger
}

func NewManager(worker ServiceWorker, keys *KeyProvisioner, backend *Backend, log *slog.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		worker:  worker,
		keys:    keys,
		backend: backend,
		logger:  log,
	}
}

// Subscribe creates a user-visible platform subscription and registers it with
// the backend. When registration fails the platform subscription is kept; the
// caller decides whether to retry or clean up.
func (m *Manager) Subscribe(ctx context.Context, id models.Identity) (*models.PushSubscription, error) {
	sub, err := m.subscribe(ctx, id)
	if err != nil {
		m.logger.Error("push subscribe failed", slog.String("user_id", id.UserID), slog.Any("error", err))
		return nil, err
	}
	m.logger.Info("push subscription registered",
		slog.String("endpoint", models.ShortEndpoint(sub.Endpoint)),
		slog.String("user_id", id.UserID),
	)
	return sub, nil
}

func (m *Manager) subscribe(ctx context.Context, id models.Identity) (*models.PushSubscription, error) {
	pm, err := m.ready(ctx)
	if err != nil {
		return nil, err
	}

	key, err := m.keys.ResolvePublicKey(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := pm.Subscribe(ctx, SubscribeOptions{
		UserVisibleOnly:      true,
		ApplicationServerKey: key,
	})
	if err != nil {
		return nil, fmt.Errorf("platform subscribe: %w", err)
	}
	if sub == nil {
		return nil, errors.New("platform subscribe returned no subscription")
	}

	if err := m.backend.RegisterSubscription(ctx, models.NewSubscribeRequest(*sub, id)); err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe removes the current subscription. With no subscription it
// returns Removed=false and never contacts the backend.
func (m *Manager) Unsubscribe(ctx context.Context, id models.Identity) (*UnsubscribeResult, error) {
	res, err := m.unsubscribe(ctx, id)
	if err != nil {
		m.logger.Error("push unsubscribe failed", slog.String("user_id", id.UserID), slog.Any("error", err))
		return nil, err
	}
	if res.BackendErr != nil {
		m.logger.Warn("backend unsubscribe failed",
			slog.String("endpoint", models.ShortEndpoint(res.Endpoint)),
			slog.Any("error", res.BackendErr),
		)
	}
	return res, nil
}

func (m *Manager) unsubscribe(ctx context.Context, id models.Identity) (*UnsubscribeResult, error) {
	pm, err := m.ready(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := pm.Subscription(ctx)
	if err != nil {
		return nil, fmt.Errorf("query subscription: %w", err)
	}
	if sub == nil {
		return &UnsubscribeResult{}, nil
	}

	removed, err := pm.Unsubscribe(ctx, sub.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("platform unsubscribe: %w", err)
	}
	res := &UnsubscribeResult{Removed: removed, Endpoint: sub.Endpoint}
	if !removed {
		return res, nil
	}

	res.BackendErr = m.backend.RemoveSubscription(ctx, models.NewUnsubscribeRequest(sub.Endpoint, id))
	return res, nil
}

func (m *Manager) ready(ctx context.Context) (PushManager, error) {
	if m.worker == nil {
		return nil, ErrUnsupported
	}
	pm, err := m.worker.Ready(ctx)
	if err != nil {
		return nil, fmt.Errorf("service worker not ready: %w", err)
	}
	if pm == nil {
		return nil, ErrUnsupported
	}
	return pm, nil
}
