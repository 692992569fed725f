package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/microshop/identity-service/internal/core/domain"
	"github.com/microshop/identity-service/internal/core/ports"
)

// Seeder idempotently ensures the baseline roles and the administrative user
// exist before the service accepts traffic. Any failure is fatal to startup:
// the process must not come up partially seeded and serve without an
// administrator.
type Seeder struct {
	users      ports.UserRepository
	roles      ports.RoleRepository
	adminEmail string
	adminPass  string
	log        zerolog.Logger
}

func NewSeeder(users ports.UserRepository, roles ports.RoleRepository, adminEmail, adminPassword string, log zerolog.Logger) *Seeder {
	return &Seeder{
		users:      users,
		roles:      roles,
		adminEmail: adminEmail,
		adminPass:  adminPassword,
		log:        log,
	}
}

// Run seeds roles and the admin user. Safe to run on every start.
func (s *Seeder) Run(ctx context.Context) error {
	for _, name := range []string{domain.RoleAdmin, domain.RoleUser} {
		if err := s.ensureRole(ctx, name); err != nil {
			return err
		}
	}
	return s.ensureAdminUser(ctx)
}

// ensureRole is lookup-then-create, not upsert: role names carry no natural
// versioning, so an existing role is simply left alone.
func (s *Seeder) ensureRole(ctx context.Context, name string) error {
	_, err := s.roles.FindByName(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrRoleNotFound) {
		return fmt.Errorf("seed role %s: %w", name, err)
	}

	if _, err := s.roles.Create(ctx, &domain.Role{ID: uuid.NewString(), Name: name}); err != nil {
		return fmt.Errorf("seed role %s: %w", name, err)
	}
	s.log.Info().Str("role", name).Msg("role created")
	return nil
}

func (s *Seeder) ensureAdminUser(ctx context.Context) error {
	_, err := s.users.FindByEmail(ctx, s.adminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("seed admin user: %w", err)
	}

	if s.adminPass == "" {
		return fmt.Errorf("seed admin user: admin password not configured")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.adminPass), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	admin := &domain.User{
		ID:           uuid.NewString(),
		Username:     s.adminEmail,
		Email:        s.adminEmail,
		PasswordHash: string(hash),
		CreatedOn:    time.Now().UTC(),
	}
	created, err := s.users.Create(ctx, admin)
	if err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	if err := s.users.AssignRole(ctx, created.ID, domain.RoleAdmin); err != nil {
		return fmt.Errorf("seed admin role assignment: %w", err)
	}

	s.log.Info().Str("email", s.adminEmail).Msg("administrative user created")
	return nil
}
