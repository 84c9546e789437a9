package app

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"commute/internal/config"
)

// NewRabbitChannel dials RabbitMQ and declares the durable topic exchange
// trip events are published to. The caller closes both the connection and
// the channel.
func NewRabbitChannel(cfg config.RabbitMQConfig) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Properties: amqp.Table{
			"connection_name": "commute-service",
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	return conn, ch, nil
}
