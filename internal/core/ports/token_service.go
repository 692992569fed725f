package ports

import (
	"context"

	"github.com/microshop/identity-service/internal/core/domain"
)

// TokenRequest carries the parameters of a token-endpoint transaction.
type TokenRequest struct {
	GrantType    domain.GrantType
	ClientID     string
	ClientSecret string
	Scopes       []string

	// password grant
	Username string
	Password string

	// authorization_code grant
	Code        string
	RedirectURI string
}

// TokenResponse is the successful outcome of a token-endpoint transaction.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// AuthorizeRequest carries the parameters of an authorization transaction.
type AuthorizeRequest struct {
	ClientID    string
	RedirectURI string
	Scopes      []string
	Username    string
	Password    string
}

// TokenService is the OIDC/OAuth2 protocol engine.
type TokenService interface {
	// Authorize validates client, redirect URI and scopes, authenticates the
	// resource owner, and returns a single-use authorization code.
	Authorize(ctx context.Context, req AuthorizeRequest) (code string, err error)

	// Issue runs the token-endpoint state machine for the requested grant.
	Issue(ctx context.Context, req TokenRequest) (*TokenResponse, error)

	// Validate parses and verifies a bearer token, returning its claims.
	// Revoked tokens fail validation until their natural expiry.
	Validate(ctx context.Context, token string) (*TokenClaims, error)

	// Revoke invalidates the presented token for its remaining lifetime.
	Revoke(ctx context.Context, token string) error
}

// TokenClaims is the validated claim set of an issued token.
type TokenClaims struct {
	Subject   string
	ClientID  string
	TokenID   string
	Scopes    []string
	Roles     []string
	Email     string
	Username  string
	Audiences []string
	ExpiresAt int64
}

// HasScope reports whether the token was granted the named scope.
func (c *TokenClaims) HasScope(name string) bool {
	for _, s := range c.Scopes {
		if s == name {
			return true
		}
	}
	return false
}

// HasRole reports whether the token carries the named role claim.
func (c *TokenClaims) HasRole(name string) bool {
	for _, r := range c.Roles {
		if r == name {
			return true
		}
	}
	return false
}
