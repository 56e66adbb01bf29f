package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/models"
	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/repository"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/metrics"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/retry"
)

// ErrUnknownEvent is returned for events without a template. Redelivery cannot fix it.
var ErrUnknownEvent = errors.New("unknown event")

// SubscriptionSource is the part of the subscription store the processor needs.
type SubscriptionSource interface {
	ListByUser(ctx context.Context, userID string) ([]repository.SubscriptionRecord, error)
	ListAll(ctx context.Context) ([]repository.SubscriptionRecord, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// Suppressor remembers gone endpoints. Optional.
type Suppressor interface {
	IsSuppressed(ctx context.Context, endpoint string) (bool, error)
	Suppress(ctx context.Context, endpoint string, ttl time.Duration) error
}

type PushProcessor struct {
	subscriptions SubscriptionSource
	provider      PushProvider
	statusUpdater *StatusUpdater
	cache         Suppressor
	metrics       *metrics.Metrics
	logger        *slog.Logger
	retryCfg      retry.Config
}

func NewPushProcessor(
	subscriptions SubscriptionSource,
	provider PushProvider,
	statusUpdater *StatusUpdater,
	cache Suppressor,
	metrics *metrics.Metrics,
	logger *slog.Logger,
	retryCfg retry.Config,
) *PushProcessor {
	p := &PushProcessor{
		subscriptions: subscriptions,
		provider:      provider,
		statusUpdater: statusUpdater,
		cache:         cache,
		metrics:       metrics,
		logger:        logger,
		retryCfg:      retryCfg,
	}
	p.retryCfg.OnRetry = func(attempt int, err error) {
		metrics.IncRetried()
		logger.Warn("push send failed, retrying", slog.Int("attempt", attempt), slog.Any("error", err))
	}
	return p
}

// Process fans one order event out to every live subscription of its user.
// A returned error means nothing was delivered. It is marked retry.Permanent
// when redelivering the event cannot change the outcome.
func (p *PushProcessor) Process(ctx context.Context, envelope *models.MessageEnvelope) error {
	if envelope.Channel != "" && envelope.Channel != "push" {
		return retry.Permanent(fmt.Errorf("unexpected channel %s", envelope.Channel))
	}
	if envelope.RequestID == "" {
		envelope.RequestID = uuid.NewString()
	}
	p.metrics.IncConsumed()

	payload, err := BuildPayload(envelope)
	if err != nil {
		p.statusUpdater.MarkFailed(ctx, envelope.RequestID, 0, err.Error())
		p.metrics.IncFailed()
		return retry.Permanent(err)
	}

	targets, err := p.targets(ctx, envelope)
	if err != nil {
		p.logger.Error("failed to load subscriptions", slog.String("request_id", envelope.RequestID), slog.Any("error", err))
		return err
	}
	if len(targets) == 0 {
		p.statusUpdater.MarkSkipped(ctx, envelope.RequestID, "no active subscriptions")
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(err)
	}

	p.statusUpdater.MarkProcessing(ctx, envelope.RequestID, envelope.Event, envelope.UserID)

	var (
		sent      int
		failed    int
		retryable int
		errs      []error
	)
	for _, sub := range targets {
		rejected, err := p.deliver(ctx, sub, body)
		switch {
		case errors.Is(err, errGone):
		case err != nil:
			failed++
			if !rejected {
				retryable++
			}
			errs = append(errs, err)
		default:
			sent++
		}
	}

	switch {
	case sent > 0:
		p.metrics.IncDelivered()
		p.statusUpdater.MarkDelivered(ctx, envelope.RequestID, sent, failed)
		return nil
	case failed == 0:
		p.statusUpdater.MarkSkipped(ctx, envelope.RequestID, "all endpoints gone")
		return nil
	}

	joined := errors.Join(errs...)
	p.metrics.IncFailed()
	p.statusUpdater.MarkFailed(ctx, envelope.RequestID, failed, joined.Error())
	if retryable == 0 {
		return retry.Permanent(joined)
	}
	return joined
}

var errGone = errors.New("endpoint gone")

// deliver sends body to sub with retries. rejected reports that the push
// service refused the message in a way redelivery cannot fix.
func (p *PushProcessor) deliver(ctx context.Context, sub models.PushSubscription, body []byte) (rejected bool, err error) {
	err = retry.Do(ctx, p.retryCfg, func() error {
		started := time.Now()
		res, err := p.provider.Send(ctx, sub, body)
		p.metrics.ObserveSend(time.Since(started).Seconds())
		if err != nil {
			return err
		}
		switch res.Status {
		case models.ResultDelivered:
			return nil
		case models.ResultGone:
			p.dropEndpoint(ctx, sub.Endpoint, res.StatusCode)
			return retry.Permanent(errGone)
		default:
			rejected = true
			return retry.Permanent(fmt.Errorf("%s: status %d %s", models.ShortEndpoint(sub.Endpoint), res.StatusCode, res.Error))
		}
	})
	return rejected, err
}

func (p *PushProcessor) dropEndpoint(ctx context.Context, endpoint string, status int) {
	p.metrics.IncGone()
	p.logger.Info("removing expired subscription",
		slog.String("endpoint", models.ShortEndpoint(endpoint)),
		slog.Int("status", status),
	)
	if err := p.subscriptions.DeleteByEndpoint(ctx, endpoint); err != nil {
		p.logger.Error("failed to delete subscription", slog.String("endpoint", models.ShortEndpoint(endpoint)), slog.Any("error", err))
	}
	if p.cache != nil {
		_ = p.cache.Suppress(ctx, endpoint, 0)
	}
}

func (p *PushProcessor) targets(ctx context.Context, envelope *models.MessageEnvelope) ([]models.PushSubscription, error) {
	var (
		recs []repository.SubscriptionRecord
		err  error
	)
	switch {
	case envelope.Broadcast:
		recs, err = p.subscriptions.ListAll(ctx)
	case envelope.UserID != "":
		recs, err = p.subscriptions.ListByUser(ctx, envelope.UserID)
	default:
		return nil, retry.Permanent(errors.New("event has no user_id and is not a broadcast"))
	}
	if err != nil {
		return nil, err
	}

	out := make([]models.PushSubscription, 0, len(recs))
	for i := range recs {
		if recs[i].Endpoint == "" {
			continue
		}
		if p.cache != nil {
			suppressed, err := p.cache.IsSuppressed(ctx, recs[i].Endpoint)
			if err != nil {
				return nil, err
			}
			if suppressed {
				continue
			}
		}
		out = append(out, recs[i].Subscription())
	}
	return out, nil
}

// BuildPayload renders the notification payload the background worker displays.
func BuildPayload(envelope *models.MessageEnvelope) (*models.NotificationPayload, error) {
	tpl, ok := LookupTemplate(envelope.Event)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, envelope.Event)
	}

	data := map[string]interface{}{
		"event":     envelope.Event,
		"requestId": envelope.RequestID,
	}
	if envelope.URL != "" {
		data["url"] = envelope.URL
	}

	return &models.NotificationPayload{
		Title: RenderTemplate(tpl.Title, envelope.Variables),
		Body:  RenderTemplate(tpl.Body, envelope.Variables),
		Icon:  envelope.Icon,
		Tag:   envelope.Tag,
		Data:  data,
	}, nil
}
