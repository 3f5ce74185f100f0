// Package events publishes quote change notifications to an AMQP topic exchange.
// Each event is a persistent JSON message routed by its event type, so
// consumers can bind to "quote.*" or to a single change kind.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jsamuelsen/quotes-api/internal/domain"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

const (
	exchangeKind   = "topic"
	contentType    = "application/json"
	publishTimeout = 5 * time.Second
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// Publisher implements ports.EventPublisher over AMQP.
type Publisher struct {
	channel  Channel
	conn     *amqp.Connection
	exchange string
	appID    string
	logger   *slog.Logger

	newID func() string
	now   func() time.Time
}

// NewPublisher wraps an open channel. The exchange must already exist.
func NewPublisher(ch Channel, exchange, appID string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		channel:  ch,
		exchange: exchange,
		appID:    appID,
		logger:   logger.With(slog.String("component", "events.Publisher")),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Dial connects to the broker, opens a channel and declares a durable topic exchange.
func Dial(cfg config.EventsConfig, appID string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		exchangeKind, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()

		return nil, fmt.Errorf("declare exchange %q: %w", cfg.Exchange, err)
	}

	p := NewPublisher(ch, cfg.Exchange, appID, logger)
	p.conn = conn

	return p, nil
}

// Publish sends an event routed by its type.
// Returns domain.ErrUnavailable when the broker rejects or cannot take the message.
func (p *Publisher) Publish(ctx context.Context, event ports.Event) error {
	body, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.EventType(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,        // exchange
		event.EventType(), // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  contentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    p.newID(),
			AppId:        p.appID,
			Type:         event.EventType(),
			Timestamp:    p.now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return domain.NewUnavailableError("amqp", err.Error())
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("event", event.EventType()),
		slog.String("exchange", p.exchange),
	)

	return nil
}

// Name returns the health check name for the broker.
// Implements ports.HealthChecker.
func (p *Publisher) Name() string {
	return "amqp"
}

// Check reports whether the channel is still open.
// Implements ports.HealthChecker.
func (p *Publisher) Check(_ context.Context) error {
	if p.channel.IsClosed() {
		return errors.New("amqp channel closed")
	}

	return nil
}

// Close closes the channel and, when the publisher owns it, the connection.
func (p *Publisher) Close() error {
	err := p.channel.Close()

	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}

	return err
}
