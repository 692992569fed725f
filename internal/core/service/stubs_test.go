package service

import (
	"context"
	"time"

	"github.com/microshop/identity-service/internal/core/domain"
	"github.com/microshop/identity-service/internal/core/ports"
)

// ── identity store stubs ──

type stubUserRepo struct {
	users map[string]*domain.User // keyed by id
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Roles = append([]string(nil), u.Roles...)
	return &clone
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) List(_ context.Context) ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *stubUserRepo) Update(_ context.Context, user *domain.User) error {
	existing, ok := r.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	existing.Username = user.Username
	existing.Email = user.Email
	existing.Balance = user.Balance
	if user.PasswordHash != "" {
		existing.PasswordHash = user.PasswordHash
	}
	return nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *stubUserRepo) AssignRole(_ context.Context, userID, roleName string) error {
	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	for _, existing := range u.Roles {
		if existing == roleName {
			return nil
		}
	}
	u.Roles = append(u.Roles, roleName)
	return nil
}

type stubRoleRepo struct {
	roles   map[string]*domain.Role
	creates int
}

func newStubRoleRepo() *stubRoleRepo {
	return &stubRoleRepo{roles: make(map[string]*domain.Role)}
}

func (r *stubRoleRepo) FindByName(_ context.Context, name string) (*domain.Role, error) {
	if role, ok := r.roles[name]; ok {
		return role, nil
	}
	return nil, domain.ErrRoleNotFound
}

func (r *stubRoleRepo) Create(_ context.Context, role *domain.Role) (*domain.Role, error) {
	r.creates++
	r.roles[role.Name] = role
	return role, nil
}

// ── registry stub ──

type stubRegistry struct {
	clients map[string]*domain.Client
	scopes  map[string]*domain.Scope
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		clients: make(map[string]*domain.Client),
		scopes: map[string]*domain.Scope{
			"openid":  {Name: "openid", Claims: []string{"sub"}},
			"profile": {Name: "profile", Claims: []string{"name", "preferred_username"}},
			"email":   {Name: "email", Claims: []string{"email"}},
			"roles":   {Name: "roles", Claims: []string{"role"}},
		},
	}
}

func (r *stubRegistry) Client(id string) (*domain.Client, error) {
	if c, ok := r.clients[id]; ok {
		return c, nil
	}
	return nil, domain.ErrUnknownClient
}

func (r *stubRegistry) Scope(name string) (*domain.Scope, error) {
	if s, ok := r.scopes[name]; ok {
		return s, nil
	}
	return nil, domain.ErrInvalidScope
}

// ── code store / revocation stubs ──

type stubCodeStore struct {
	codes map[string]ports.AuthorizationCode
}

func newStubCodeStore() *stubCodeStore {
	return &stubCodeStore{codes: make(map[string]ports.AuthorizationCode)}
}

func (s *stubCodeStore) Put(_ context.Context, code string, ac ports.AuthorizationCode, _ time.Duration) error {
	s.codes[code] = ac
	return nil
}

func (s *stubCodeStore) Take(_ context.Context, code string) (*ports.AuthorizationCode, error) {
	ac, ok := s.codes[code]
	if !ok {
		return nil, domain.ErrInvalidAuthorization
	}
	delete(s.codes, code)
	return &ac, nil
}

type stubRevocationList struct {
	revoked map[string]bool
}

func newStubRevocationList() *stubRevocationList {
	return &stubRevocationList{revoked: make(map[string]bool)}
}

func (l *stubRevocationList) Revoke(_ context.Context, tokenID string, _ time.Duration) error {
	l.revoked[tokenID] = true
	return nil
}

func (l *stubRevocationList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	return l.revoked[tokenID], nil
}

// ── transport stub ──

type stubTransport struct {
	calls  int
	errs   []error // consumed per call; nil entry means success
	events []domain.UserUpdated
}

func (t *stubTransport) Send(_ context.Context, event domain.UserUpdated) error {
	t.calls++
	var err error
	if len(t.errs) > 0 {
		err = t.errs[0]
		t.errs = t.errs[1:]
	}
	if err == nil {
		t.events = append(t.events, event)
	}
	return err
}
