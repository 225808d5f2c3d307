package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	goSession "github.com/MrEthical07/goSession"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "password.reset"

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQP publishes reset notices to a durable RabbitMQ queue.
type AMQP struct {
	conn  *amqp.Connection
	ch    amqpPublisher
	queue string
}

// DialAMQP connects to url and declares queue.
func DialAMQP(url, queue string) (*AMQP, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: queue declare failed: %w", err)
	}

	return &AMQP{conn: conn, ch: ch, queue: queue}, nil
}

func (a *AMQP) DeliverResetToken(ctx context.Context, n goSession.ResetNotice) error {
	if a == nil || a.ch == nil {
		return errors.New("rabbitmq: publisher not connected")
	}

	body, err := encode(n)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal notice failed: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Expiration:   ttlMillis(n.ExpiresAt),
		Body:         body,
	}

	if err := a.ch.PublishWithContext(ctx,
		"",      // default exchange
		a.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}
	return nil
}

// Close closes the channel and the connection.
func (a *AMQP) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if c, ok := a.ch.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if a.conn != nil {
		errs = append(errs, a.conn.Close())
	}
	return errors.Join(errs...)
}

// ttlMillis expires the message together with the token.
func ttlMillis(expiresAt time.Time) string {
	ms := time.Until(expiresAt).Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	return fmt.Sprint(ms)
}
