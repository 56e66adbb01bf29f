// Package worker renders delivered push messages as system notifications and
// routes notification clicks to a single window per destination.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/models"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/logger"
)

// Notifier displays a system notification.
type Notifier interface {
	Show(ctx context.Context, n models.Notification) error
}

// WindowClient is an open application window.
type WindowClient interface {
	URL() string
	Focus(ctx context.Context) error
}

// Clients enumerates and opens application windows.
type Clients interface {
	// Windows lists window clients. includeUncontrolled also returns windows
	// not controlled by this worker.
	Windows(ctx context.Context, includeUncontrolled bool) ([]WindowClient, error)
	OpenWindow(ctx context.Context, url string) error
}

// PushEvent is a delivered push message. Data is nil when the message had no payload.
type PushEvent struct {
	Data []byte
}

// ClickEvent is a click on a displayed notification.
type ClickEvent struct {
	Notification models.Notification
	// Close dismisses the clicked notification.
	Close func()
}

// Handler reacts to push and notificationclick events.
type Handler struct {
	notifier Notifier
	clients  Clients
	logger   *slog.Logger
}

func NewHandler(notifier Notifier, clients Clients, log *slog.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{notifier: notifier, clients: clients, logger: log}
}

// HandlePush renders the payload. A malformed payload still produces a
// notification with the raw text as body.
func (h *Handler) HandlePush(ctx context.Context, ev PushEvent) error {
	n := Render(ev.Data)
	if err := h.notifier.Show(ctx, n); err != nil {
		h.logger.Error("show notification failed", slog.String("tag", n.Tag), slog.Any("error", err))
		return fmt.Errorf("show notification: %w", err)
	}
	return nil
}

// Render maps a raw push payload to a notification with every default applied.
// Text that is not a JSON object becomes the body. Inside an object, a field of
// the wrong type is ignored and takes its default.
func Render(data []byte) models.Notification {
	var p models.NotificationPayload
	if text := strings.TrimSpace(string(data)); text != "" {
		var raw interface{}
		if err := json.Unmarshal(data, &raw); err != nil {
			p.Body = text
		} else if obj, ok := raw.(map[string]interface{}); ok {
			p = payloadFromObject(obj)
		} else if raw != nil {
			p.Body = text
		}
	}

	n := models.Notification{
		Title:              firstNonEmpty(p.Title, models.DefaultTitle),
		Body:               firstNonEmpty(p.Body, p.Message, models.DefaultBody),
		Icon:               firstNonEmpty(p.Icon, models.DefaultIcon),
		Badge:              firstNonEmpty(p.Badge, models.DefaultBadge),
		Tag:                firstNonEmpty(p.Tag, models.DefaultTag),
		Data:               p.Data,
		RequireInteraction: false,
	}
	if n.Data == nil {
		n.Data = map[string]interface{}{}
	}
	if n.URL() == "" {
		n.Data["url"] = models.DefaultURL
	}
	return n
}

func payloadFromObject(obj map[string]interface{}) models.NotificationPayload {
	p := models.NotificationPayload{
		Title:   stringField(obj, "title"),
		Body:    stringField(obj, "body"),
		Message: stringField(obj, "message"),
		Icon:    stringField(obj, "icon"),
		Badge:   stringField(obj, "badge"),
		Tag:     stringField(obj, "tag"),
	}
	if data, ok := obj["data"].(map[string]interface{}); ok {
		p.Data = data
	}
	return p
}

func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

// HandleClick closes the notification, then focuses a window already showing
// the target URL or opens one.
func (h *Handler) HandleClick(ctx context.Context, ev ClickEvent) error {
	if ev.Close != nil {
		ev.Close()
	}

	target := firstNonEmpty(ev.Notification.URL(), models.DefaultURL)

	windows, err := h.clients.Windows(ctx, true)
	if err != nil {
		h.logger.Warn("listing windows failed, opening a new one", slog.Any("error", err))
	}
	for _, w := range windows {
		if w.URL() != target {
			continue
		}
		if err := w.Focus(ctx); err != nil {
			h.logger.Warn("focus failed, opening a new window", slog.String("url", target), slog.Any("error", err))
			break
		}
		return nil
	}

	if err := h.clients.OpenWindow(ctx, target); err != nil {
		return errors.Join(fmt.Errorf("open window %s", target), err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
