package consumer

import (
	"context"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/streadway/amqp"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/models"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/retry"
)

// EnvelopeProcessor handles one decoded order event.
type EnvelopeProcessor interface {
	Process(ctx context.Context, envelope *models.MessageEnvelope) error
}

// Republisher puts a failed delivery back on the queue with an attempt count.
type Republisher interface {
	Republish(ctx context.Context, msg Delivery, attempts int) error
}

type PushConsumer struct {
	base          *BaseConsumer
	republisher   Republisher
	processor     EnvelopeProcessor
	logger        *slog.Logger
	maxDeliveries int
}

func NewPushConsumer(base *BaseConsumer, processor EnvelopeProcessor, logger *slog.Logger, maxDeliveries int) *PushConsumer {
	if maxDeliveries <= 0 {
		maxDeliveries = 5
	}
	p := &PushConsumer{
		base:          base,
		processor:     processor,
		logger:        logger,
		maxDeliveries: maxDeliveries,
	}
	if base != nil {
		p.republisher = base
	}
	return p
}

func (p *PushConsumer) Start(ctx context.Context) error {
	return p.base.Start(ctx, p.handleDelivery)
}

// handleDelivery acks processed events. A failed event is republished with an
// incremented attempt count and the original acked, until maxDeliveries
// attempts were made. Permanent errors, exhausted attempts and failed
// republishes are nacked into the dead-letter queue.
func (p *PushConsumer) handleDelivery(ctx context.Context, msg Delivery) error {
	var envelope models.MessageEnvelope
	if err := json.Unmarshal(msg.Body(), &envelope); err != nil {
		p.logger.Error("failed to unmarshal envelope", slog.Any("error", err))
		_ = msg.Reject(false)
		return err
	}

	err := p.processor.Process(ctx, &envelope)
	if err == nil {
		return msg.Ack()
	}

	attempts := deliveryAttempts(msg) + 1
	if retry.IsPermanent(err) || attempts >= p.maxDeliveries || p.republisher == nil {
		p.logger.Error("processing failed, message dead-lettered",
			slog.String("request_id", envelope.RequestID),
			slog.Int("attempts", attempts),
			slog.Any("error", err),
		)
		_ = msg.Nack(false)
		return err
	}

	if pubErr := p.republisher.Republish(ctx, msg, attempts); pubErr != nil {
		p.logger.Error("republish failed, message dead-lettered", slog.String("request_id", envelope.RequestID), slog.Any("error", pubErr))
		_ = msg.Nack(false)
		return err
	}
	p.logger.Warn("processing failed, message republished",
		slog.String("request_id", envelope.RequestID),
		slog.Int("attempts", attempts),
		slog.Any("error", err),
	)
	_ = msg.Ack()
	return err
}

// deliveryAttempts returns how many times msg was already processed.
func deliveryAttempts(msg Delivery) int {
	headers := msg.Headers()
	if n, ok := headerInt(headers[AttemptsHeader]); ok {
		return n
	}
	if raw, ok := headers["x-death"]; ok {
		if deaths, ok := raw.([]interface{}); ok && len(deaths) > 0 {
			if table, ok := deaths[0].(amqp.Table); ok {
				if n, ok := headerInt(table["count"]); ok {
					return n
				}
			}
		}
	}
	if msg.Redelivered() {
		return 1
	}
	return 0
}

func headerInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}
