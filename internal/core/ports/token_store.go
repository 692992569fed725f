package ports

import (
	"context"
	"time"
)

// AuthorizationCode is the transient state bound to a single-use code issued
// by the authorize endpoint and redeemed at the token endpoint.
type AuthorizationCode struct {
	ClientID    string   `json:"client_id"`
	Subject     string   `json:"subject"`
	RedirectURI string   `json:"redirect_uri"`
	Scopes      []string `json:"scopes"`
}

// CodeStore holds pending authorization codes. Take removes the code
// atomically so each code redeems at most once.
type CodeStore interface {
	Put(ctx context.Context, code string, ac AuthorizationCode, ttl time.Duration) error
	Take(ctx context.Context, code string) (*AuthorizationCode, error)
}

// RevocationList records token ids revoked before their natural expiry.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
