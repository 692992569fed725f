package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/microshop/identity-service/internal/core/domain"
	"github.com/microshop/identity-service/internal/core/ports"
)

// UserAdminService serves the administrative CRUD surface. Every mutation
// writes to the identity store first; only after the store acknowledges is
// the UserUpdated event handed to the publisher. A publish failure never
// rolls back the store write.
type UserAdminService struct {
	users     ports.UserRepository
	publisher ports.EventPublisher
	log       zerolog.Logger
}

func NewUserAdminService(users ports.UserRepository, publisher ports.EventPublisher, log zerolog.Logger) *UserAdminService {
	return &UserAdminService{users: users, publisher: publisher, log: log}
}

func (s *UserAdminService) List(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

func (s *UserAdminService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

// Update sets the user's email, username (always the same value as email)
// and balance, then publishes the corresponding event.
func (s *UserAdminService) Update(ctx context.Context, id, email string, balance int64) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}

	user.Username = email
	user.Email = email
	user.Balance = balance
	user.PasswordHash = "" // credential changes go through a separate path

	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, domain.NewUserUpdated(user)); err != nil {
		s.log.Error().Err(err).
			Str("user_id", user.ID).
			Str("operation", "update").
			Msg("event publication failed after store write")
		return fmt.Errorf("user updated but event publication failed: %w", err)
	}
	return nil
}

// Delete removes the user and publishes the event with balance forced to
// zero. Deletion is terminal; there is no tombstone.
func (s *UserAdminService) Delete(ctx context.Context, id string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, domain.NewUserDeleted(user)); err != nil {
		s.log.Error().Err(err).
			Str("user_id", user.ID).
			Str("operation", "delete").
			Msg("event publication failed after store write")
		return fmt.Errorf("user deleted but event publication failed: %w", err)
	}
	return nil
}
