package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/models"
	plog "github.com/tuneldeltiempo/alienfood/services/push_service/pkg/logger"
)

// VAPIDConfig identifies this server to the push services.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// WebPushProvider sends notifications through the browser push services using VAPID.
type WebPushProvider struct {
	vapid   VAPIDConfig
	ttl     int
	urgency webpush.Urgency
	client  webpush.HTTPClient
	breaker *gobreaker.CircuitBreaker[models.PushResult]
	logger  *slog.Logger
}

func NewWebPushProvider(vapid VAPIDConfig, ttl int, urgency string, timeout time.Duration, logger *slog.Logger) *WebPushProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewWebPushProviderWithClient(vapid, ttl, urgency, &http.Client{Timeout: timeout}, logger)
}

// NewWebPushProviderWithClient is NewWebPushProvider with a caller-supplied HTTP client.
func NewWebPushProviderWithClient(vapid VAPIDConfig, ttl int, urgency string, client webpush.HTTPClient, logger *slog.Logger) *WebPushProvider {
	if ttl <= 0 {
		ttl = 60 * 60 * 24
	}
	if urgency == "" {
		urgency = string(webpush.UrgencyNormal)
	}
	if logger == nil {
		logger = plog.Discard()
	}
	p := &WebPushProvider{
		vapid:   vapid,
		ttl:     ttl,
		urgency: webpush.Urgency(urgency),
		client:  client,
		logger:  logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker[models.PushResult](gobreaker.Settings{
		Name:        "webpush",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("push circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return p
}

func (p *WebPushProvider) Name() string {
	return "webpush"
}

func (p *WebPushProvider) Send(ctx context.Context, sub models.PushSubscription, payload []byte) (models.PushResult, error) {
	if sub.Endpoint == "" {
		return models.PushResult{Provider: p.Name(), Status: models.ResultFailed, Error: "empty endpoint"}, nil
	}

	res, err := p.breaker.Execute(func() (models.PushResult, error) {
		return p.send(ctx, sub, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.PushResult{Endpoint: sub.Endpoint, Provider: p.Name(), Status: models.ResultFailed, Error: err.Error()}, err
	}
	return res, err
}

func (p *WebPushProvider) send(ctx context.Context, sub models.PushSubscription, payload []byte) (models.PushResult, error) {
	result := models.PushResult{Endpoint: sub.Endpoint, Provider: p.Name()}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      p.client,
		Subscriber:      p.vapid.Subject,
		VAPIDPublicKey:  p.vapid.PublicKey,
		VAPIDPrivateKey: p.vapid.PrivateKey,
		TTL:             p.ttl,
		Urgency:         p.urgency,
	})
	if err != nil {
		result.Status = models.ResultFailed
		result.Error = err.Error()
		return result, err
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Status = models.ResultDelivered
		return result, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		result.Status = models.ResultGone
		return result, nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	result.Status = models.ResultFailed
	result.Error = fmt.Sprintf("push service returned %d: %s", resp.StatusCode, string(detail))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return result, errors.New(result.Error)
	}
	return result, nil
}
