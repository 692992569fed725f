package ports

import (
	"context"

	"github.com/microshop/identity-service/internal/core/domain"
)

// UserService is the administrative mutation surface. Update and Delete
// publish a UserUpdated event after the store write is acknowledged; the
// store write is authoritative and is never rolled back on publish failure.
type UserService interface {
	List(ctx context.Context) ([]*domain.User, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, id, email string, balance int64) error
	Delete(ctx context.Context, id string) error
}
