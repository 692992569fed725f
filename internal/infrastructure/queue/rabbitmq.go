// Package queue implements the UserUpdated event transport on RabbitMQ.
package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection wraps an AMQP connection and the channel used for publishing.
type Connection struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Connect dials the broker and opens a publishing channel.
func Connect(uri string) (*Connection, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	return &Connection{conn: conn, channel: ch}, nil
}

// Channel returns the publishing channel.
func (c *Connection) Channel() *amqp.Channel { return c.channel }

// Close shuts down the channel and the underlying connection.
func (c *Connection) Close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
