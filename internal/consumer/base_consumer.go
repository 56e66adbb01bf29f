package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"
)

// ExchangeName is the direct exchange order events are published to.
const ExchangeName = "notifications.direct"

// RoutingKey selects push-bound events on ExchangeName.
const RoutingKey = "push"

// AttemptsHeader counts how many times an event has been processed and put back.
const AttemptsHeader = "x-attempts"

var errNotStarted = errors.New("consumer channel not open")

// Delivery is the part of an AMQP delivery the handlers use.
type Delivery interface {
	Body() []byte
	Headers() amqp.Table
	Redelivered() bool
	Ack() error
	Nack(requeue bool) error
	Reject(requeue bool) error
}

// amqpDelivery adapts amqp.Delivery to Delivery.
type amqpDelivery struct{ d amqp.Delivery }

func (a amqpDelivery) Body() []byte              { return a.d.Body }
func (a amqpDelivery) Headers() amqp.Table       { return a.d.Headers }
func (a amqpDelivery) Redelivered() bool         { return a.d.Redelivered }
func (a amqpDelivery) Ack() error                { return a.d.Ack(false) }
func (a amqpDelivery) Nack(requeue bool) error   { return a.d.Nack(false, requeue) }
func (a amqpDelivery) Reject(requeue bool) error { return a.d.Reject(requeue) }

// BaseConsumer wires RabbitMQ connectivity, queue declaration and the worker pool.
type BaseConsumer struct {
	conn         *amqp.Connection
	queue        string
	dlq          string
	prefetch     int
	workerCount  int
	logger       *slog.Logger
	exchangeName string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewBaseConsumer(conn *amqp.Connection, queue, dlq string, prefetch, workerCount int, logger *slog.Logger) *BaseConsumer {
	if prefetch <= 0 {
		prefetch = 50
	}
	if workerCount <= 0 {
		workerCount = 5
	}
	return &BaseConsumer{
		conn:         conn,
		queue:        queue,
		dlq:          dlq,
		prefetch:     prefetch,
		workerCount:  workerCount,
		logger:       logger,
		exchangeName: ExchangeName,
	}
}

// Start consumes until ctx is done, handing each delivery to handler on one of
// workerCount goroutines. Handlers own ack/nack.
func (c *BaseConsumer) Start(ctx context.Context, handler func(context.Context, Delivery) error) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	c.setChannel(ch)
	defer c.setChannel(nil)

	if err := c.setupQueue(ch); err != nil {
		return fmt.Errorf("queue setup failed: %w", err)
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("qos configuration failed: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue,
		"",
		false, // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := 0; i < c.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-deliveries:
					if !ok {
						return
					}
					if err := handler(ctx, amqpDelivery{d: msg}); err != nil {
						c.logger.Error("handler returned error", slog.Int("worker", id), slog.Any("error", err))
					}
				}
			}
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

// setupQueue declares the exchange, the dead-letter queue and the push queue,
// in that order so rejected events always have somewhere to go.
func (c *BaseConsumer) setupQueue(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.exchangeName, err)
	}

	args := amqp.Table{}
	if c.dlq != "" {
		if _, err := ch.QueueDeclare(c.dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dead-letter queue %s: %w", c.dlq, err)
		}
		args["x-dead-letter-exchange"] = ""
		args["x-dead-letter-routing-key"] = c.dlq
	}

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := ch.QueueBind(c.queue, RoutingKey, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", c.queue, err)
	}
	return nil
}

func (c *BaseConsumer) setChannel(ch *amqp.Channel) {
	c.mu.Lock()
	c.ch = ch
	c.mu.Unlock()
}

// Republish puts msg back at the tail of the queue with AttemptsHeader set to
// attempts. The caller acks the original once this succeeds.
func (c *BaseConsumer) Republish(ctx context.Context, msg Delivery, attempts int) error {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	if ch == nil {
		return errNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	headers := amqp.Table{}
	for k, v := range msg.Headers() {
		headers[k] = v
	}
	headers[AttemptsHeader] = int32(attempts)

	return ch.Publish("", c.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         msg.Body(),
	})
}
