package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/taskboard-scheduler/internal/events"
	"github.com/streadway/amqp"
)

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher forwards events to the notification exchange. It implements
// events.EventHandler.
type Publisher struct {
	// amqp channels are not safe for concurrent publishing
	mu       sync.Mutex
	ch       Channel
	exchange string
	logger   *slog.Logger
}

var _ events.EventHandler = (*Publisher)(nil)

// NewPublisher creates a publisher on an already configured channel.
func NewPublisher(ch Channel, exchange string, logger *slog.Logger) *Publisher {
	return &Publisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger.With("component", "rabbitmq_publisher"),
	}
}

// HandleEvent publishes the event as a persistent JSON message routed by
// its type.
func (p *Publisher) HandleEvent(ctx context.Context, event *events.Event) error {
	const op = "rabbitmq.Publish"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	err = p.ch.Publish(p.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.CreatedAt,
		Type:         event.Type,
		Body:         body,
	})
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.logger.Debug("published notification",
		"event_id", event.ID,
		"event_type", event.Type,
		"subscriber_id", event.SubscriberID)
	return nil
}
