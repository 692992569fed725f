package ports

import (
	"context"

	"github.com/microshop/identity-service/internal/core/domain"
)

// UserRepository is the persistence boundary for users. Each write is atomic
// per document; the repository layers no locking of its own.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
	AssignRole(ctx context.Context, userID, roleName string) error
}

// RoleRepository is the persistence boundary for roles.
type RoleRepository interface {
	FindByName(ctx context.Context, name string) (*domain.Role, error)
	Create(ctx context.Context, role *domain.Role) (*domain.Role, error)
}
