package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/microshop/identity-service/internal/core/domain"
)

const routingKey = "identity.user.updated"

// AMQPTransport performs single publish attempts against a topic exchange.
// Failures are tagged retriable; permanence decisions for downstream
// consumer rejections arrive out of band and are modeled by the consumer
// returning the message to a dead-letter queue, so every broker-side error
// here is transient by definition.
type AMQPTransport struct {
	channel  *amqp.Channel
	exchange string
}

// NewAMQPTransport declares the durable topic exchange and returns the
// transport bound to it.
func NewAMQPTransport(conn *Connection, exchange string) (*AMQPTransport, error) {
	ch := conn.Channel()
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPTransport{channel: ch, exchange: exchange}, nil
}

// Send publishes one UserUpdated event as a persistent JSON message.
func (t *AMQPTransport) Send(ctx context.Context, event domain.UserUpdated) error {
	body, err := json.Marshal(event)
	if err != nil {
		// A payload that cannot serialize will never succeed.
		return domain.Permanent(fmt.Errorf("marshal event: %w", err))
	}

	err = t.channel.PublishWithContext(ctx,
		t.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			MessageId:    event.UserID,
			Body:         body,
		},
	)
	if err != nil {
		return domain.Retriable(fmt.Errorf("publish event: %w", err))
	}
	return nil
}
