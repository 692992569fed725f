package ports

import (
	"context"

	"github.com/microshop/identity-service/internal/core/domain"
)

// EventTransport performs a single publish attempt against the message
// broker. Failures are tagged *domain.PublishError; the transport decides
// permanence, the caller decides retries.
type EventTransport interface {
	Send(ctx context.Context, event domain.UserUpdated) error
}

// EventPublisher publishes UserUpdated events with the bounded retry policy
// applied on top of an EventTransport.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.UserUpdated) error
}
