package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/microshop/identity-service/internal/core/domain"
	"github.com/microshop/identity-service/internal/core/ports"
)

// CredentialVerifier validates a presented secret against the stored hash.
// Unknown users and wrong passwords collapse into the same uniform failure
// so the two are indistinguishable at the network boundary.
type CredentialVerifier struct {
	users ports.UserRepository
}

// dummyHash is a default-cost bcrypt hash. The unknown user path burns a
// comparison against it so lookup misses cost the same as a wrong password;
// the result is discarded either way.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

func NewCredentialVerifier(users ports.UserRepository) *CredentialVerifier {
	return &CredentialVerifier{users: users}
}

// Verify looks up the user by email (used interchangeably with username) and
// compares the secret with a constant-time bcrypt comparison.
func (v *CredentialVerifier) Verify(ctx context.Context, identifier, secret string) (*domain.User, error) {
	if identifier == "" || secret == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := v.users.FindByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(secret)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return user, nil
}
