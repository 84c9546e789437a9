package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"commute/internal/metrics"
)

// Channel is the subset of *amqp091.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// RabbitPublisher publishes trip events to a topic exchange.
type RabbitPublisher struct {
	ch       Channel
	exchange string
	log      *zap.Logger
}

// NewRabbitPublisher creates a publisher for an already declared exchange.
func NewRabbitPublisher(ch Channel, exchange string, log *zap.Logger) *RabbitPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &RabbitPublisher{ch: ch, exchange: exchange, log: log}
}

// Publish marshals the event and publishes it with the given routing key.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, event TripEvent) error {
	const op = "RabbitPublisher.Publish"

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal event: %w", op, err)
	}

	if err := p.ch.PublishWithContext(
		ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    event.EventID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(routingKey, "error").Inc()
		return fmt.Errorf("%s: failed to publish with context: %w", op, err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(routingKey, "ok").Inc()
	p.log.Debug("trip event published",
		zap.String("routing_key", routingKey),
		zap.String("session_id", event.SessionID),
		zap.String("event_id", event.EventID),
	)
	return nil
}

var (
	_ Publisher = (*RabbitPublisher)(nil)
	_ Publisher = NopPublisher{}
	_ Channel   = (*amqp091.Channel)(nil)
)
