package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange receives notifications when none is configured.
const DefaultExchange = "delivery.notifications"

// AMQPConfig holds broker settings for the AMQP notifier.
type AMQPConfig struct {
	URL      string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

// AMQPNotifier publishes notifications to a topic exchange, routed by
// channel ("notify.email", "notify.sms" ...). A delivery collaborator
// consumes them and formats channel-specific payloads.
type AMQPNotifier struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	now      func() time.Time
}

// NewAMQPNotifier connects to the broker and declares the exchange.
// Declaring is idempotent.
func NewAMQPNotifier(cfg AMQPConfig) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, exchange: exchange, now: time.Now}, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, msg Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = n.now()
	}
	pub, err := publishing(msg)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ch.PublishWithContext(ctx, n.exchange, routingKey(msg.Channel), false, false, pub); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Close closes the channel and the connection.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ch.Close(); err != nil {
		_ = n.conn.Close()
		return err
	}
	return n.conn.Close()
}

func routingKey(c Channel) string {
	if c == "" {
		c = ChannelEmail
	}
	return "notify." + string(c)
}

func publishing(msg Message) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to encode notification: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    msg.SentAt,
		Type:         "notification",
		Headers:      amqp.Table{"actor": msg.Actor, "job_id": msg.JobID},
		Body:         body,
	}, nil
}
