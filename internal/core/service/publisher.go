package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/microshop/identity-service/internal/core/domain"
	"github.com/microshop/identity-service/internal/core/ports"
)

const (
	defaultRetryCount    = 3
	defaultRetryInterval = 5 * time.Second
)

// RetryingPublisher applies the bounded retry policy on top of a transport.
// The retry decision is carried by the *domain.PublishError tag on each
// attempt's failure, never by inspecting error types: permanent failures
// (unknown user downstream, insufficient funds) surface immediately, every
// other failure gets up to retries additional attempts after the first, with
// a fixed interval between attempts.
type RetryingPublisher struct {
	transport ports.EventTransport
	retries   int
	interval  time.Duration
	log       zerolog.Logger
}

func NewRetryingPublisher(transport ports.EventTransport, retries int, interval time.Duration, log zerolog.Logger) *RetryingPublisher {
	if retries <= 0 {
		retries = defaultRetryCount
	}
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	return &RetryingPublisher{transport: transport, retries: retries, interval: interval, log: log}
}

// Publish sends the event, retrying transient failures. With retries=3 the
// transport is tried up to 4 times with 3 waits in between. Exhausting every
// attempt returns ErrPublishExhausted wrapping the last transport error so
// the caller sees a hard, correlatable failure rather than a silent drop.
func (p *RetryingPublisher) Publish(ctx context.Context, event domain.UserUpdated) error {
	var lastErr error

	maxAttempts := p.retries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := p.transport.Send(ctx, event)
		if err == nil {
			if attempt > 1 {
				p.log.Info().
					Str("user_id", event.UserID).
					Int("attempt", attempt).
					Msg("event published after retry")
			}
			return nil
		}

		var pe *domain.PublishError
		if errors.As(err, &pe) && pe.Permanent {
			p.log.Error().Err(err).
				Str("user_id", event.UserID).
				Msg("permanent publish failure, not retrying")
			return err
		}

		lastErr = err
		if attempt < maxAttempts {
			p.log.Warn().Err(err).
				Str("user_id", event.UserID).
				Int("attempt", attempt).
				Int("max_attempts", maxAttempts).
				Dur("interval", p.interval).
				Msg("publish failed, retrying")

			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", domain.ErrPublishExhausted, ctx.Err())
			case <-time.After(p.interval):
			}
		}
	}

	return fmt.Errorf("%w: %w", domain.ErrPublishExhausted, lastErr)
}
