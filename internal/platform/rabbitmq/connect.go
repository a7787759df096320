// Package rabbitmq publishes assignment notifications to a RabbitMQ
// exchange.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// ExchangeKind is the exchange type notifications are published to. Routing
// keys are event types.
const ExchangeKind = "direct"

// QueueConfig binds a durable queue to the notification exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// NotificationQueues returns the queues consumers read assignment
// notifications from.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.tasks.assigned", RoutingKey: "tasks.assigned"},
		{QueueName: "notifications.tasks.completed", RoutingKey: "tasks.completed"},
	}
}

// Connect dials the broker, retrying up to retries times with delay between
// attempts.
func Connect(url string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	if retries < 1 {
		retries = 1
	}

	var err error
	for attempt := range retries {
		var conn *amqp.Connection
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		if attempt < retries-1 {
			time.Sleep(delay)
		}
	}
	return nil, fmt.Errorf("%s: %w", op, err)
}

// Declarer is the subset of *amqp.Channel used to declare the topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// DeclareTopology declares the durable exchange and binds every queue to it.
func DeclareTopology(ch Declarer, exchange string, queues []QueueConfig) error {
	const op = "rabbitmq.DeclareTopology"

	if err := ch.ExchangeDeclare(exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, exchange, false, nil); err != nil {
			return fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w",
				op, q.QueueName, q.RoutingKey, err)
		}
	}
	return nil
}

// SetupChannel opens a channel on conn and declares the notification
// topology on it.
func SetupChannel(conn *amqp.Connection, exchange string) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := DeclareTopology(ch, exchange, NotificationQueues()); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}
