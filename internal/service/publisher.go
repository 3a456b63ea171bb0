// Package service holds application services that sit between handlers
// and infrastructure: publishing order events and seeding the admin user.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/pizza-service/internal/queue"
)

// dialTimeout bounds the broker connection attempt made by each publish.
const dialTimeout = 2 * time.Second

// Publisher sends order events to RabbitMQ.  Each publish dials its own
// connection, so a broker outage never wedges request handling; errors
// are logged and returned so callers can ignore them.
type Publisher struct {
	url string
	log *zap.Logger
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// PublishOrderPlaced publishes ev to the durable order.placed queue as a
// persistent JSON message.
func (p *Publisher) PublishOrderPlaced(ctx context.Context, ev queue.OrderPlacedEvent) error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		p.log.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.OrderPlacedQueue, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq: queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", queue.OrderPlacedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.log.Warn("rabbitmq: publish failed", zap.Error(err), zap.Uint64("order_id", ev.OrderID))
		return err
	}
	return nil
}

// NopPublisher drops events.  Used when ORDER_EVENTS_ENABLED is off.
type NopPublisher struct{}

func (NopPublisher) PublishOrderPlaced(context.Context, queue.OrderPlacedEvent) error { return nil }
