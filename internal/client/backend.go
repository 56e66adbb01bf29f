package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/models"
)

var (
	// ErrRegistrationFailed means the backend did not accept a new subscription.
	ErrRegistrationFailed = errors.New("push: backend rejected subscription")
	// ErrRemovalFailed means the backend did not acknowledge an unsubscribe.
	ErrRemovalFailed = errors.New("push: backend rejected unsubscribe")
)

// Backend talks to the storefront push endpoints.
type Backend struct {
	baseURL string
	client  *http.Client
}

// NewBackend returns a Backend for baseURL. A nil client uses a plain
// http.Client, leaving timeouts to the transport.
func NewBackend(baseURL string, client *http.Client) *Backend {
	if client == nil {
		client = &http.Client{}
	}
	return &Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// VapidPublicKey fetches the server's public key from GET /push/vapid.
func (b *Backend) VapidPublicKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/push/vapid", nil)
	if err != nil {
		return "", err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		return "", fmt.Errorf("vapid endpoint returned %d", resp.StatusCode)
	}

	var body models.VapidKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode vapid response: %w", err)
	}
	if body.PublicKey == "" {
		return "", errors.New("vapid response has no publicKey")
	}
	return body.PublicKey, nil
}

// RegisterSubscription posts a new subscription to /push/subscribe.
func (b *Backend) RegisterSubscription(ctx context.Context, body models.SubscribeRequest) error {
	status, err := b.post(ctx, "/push/subscribe", body)
	if err != nil {
		return err
	}
	if !success(status) {
		return fmt.Errorf("%w: status %d", ErrRegistrationFailed, status)
	}
	return nil
}

// RemoveSubscription posts a removed endpoint to /push/unsubscribe.
func (b *Backend) RemoveSubscription(ctx context.Context, body models.UnsubscribeRequest) error {
	status, err := b.post(ctx, "/push/unsubscribe", body)
	if err != nil {
		return err
	}
	if !success(status) {
		return fmt.Errorf("%w: status %d", ErrRemovalFailed, status)
	}
	return nil
}

func (b *Backend) post(ctx context.Context, path string, body interface{}) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}
