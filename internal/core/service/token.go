package service

import (
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/microshop/identity-service/internal/core/domain"
	"github.com/microshop/identity-service/internal/core/ports"
)

const codeTTL = 5 * time.Minute

// ClientRegistry abstracts the static client/scope catalog.
type ClientRegistry interface {
	Client(id string) (*domain.Client, error)
	Scope(name string) (*domain.Scope, error)
}

// SigningKeys abstracts the process's signing key source. The material
// behind it is read-only after startup.
type SigningKeys interface {
	KeyID() string
	Signer() *rsa.PrivateKey
	Public() *rsa.PublicKey
}

// TokenIssuer is the OIDC/OAuth2 protocol engine. Every token-endpoint
// transaction walks the same path: validate the client, validate the
// requested scopes, authenticate the subject, assemble claims, sign.
type TokenIssuer struct {
	registry ClientRegistry
	verifier *CredentialVerifier
	users    ports.UserRepository
	keys     SigningKeys
	codes    ports.CodeStore
	revoked  ports.RevocationList
	issuer   string
	tokenTTL time.Duration
	log      zerolog.Logger
}

func NewTokenIssuer(
	reg ClientRegistry,
	verifier *CredentialVerifier,
	users ports.UserRepository,
	keys SigningKeys,
	codes ports.CodeStore,
	revoked ports.RevocationList,
	issuer string,
	tokenTTL time.Duration,
	log zerolog.Logger,
) *TokenIssuer {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &TokenIssuer{
		registry: reg,
		verifier: verifier,
		users:    users,
		keys:     keys,
		codes:    codes,
		revoked:  revoked,
		issuer:   issuer,
		tokenTTL: tokenTTL,
		log:      log,
	}
}

// Authorize validates the client, redirect URI and scopes, authenticates the
// resource owner, and stores a single-use authorization code.
func (s *TokenIssuer) Authorize(ctx context.Context, req ports.AuthorizeRequest) (string, error) {
	client, err := s.registry.Client(req.ClientID)
	if err != nil {
		return "", err
	}
	if !client.AllowsGrant(domain.GrantAuthorizationCode) {
		return "", domain.ErrUnsupportedGrant
	}
	if !client.AllowsRedirect(req.RedirectURI) {
		return "", domain.ErrInvalidRedirectURI
	}
	scopes, err := s.grantedScopes(client, req.Scopes)
	if err != nil {
		return "", err
	}

	user, err := s.verifier.Verify(ctx, req.Username, req.Password)
	if err != nil {
		return "", err
	}

	code := uuid.NewString()
	ac := ports.AuthorizationCode{
		ClientID:    client.ID,
		Subject:     user.ID,
		RedirectURI: req.RedirectURI,
		Scopes:      scopes,
	}
	if err := s.codes.Put(ctx, code, ac, codeTTL); err != nil {
		return "", fmt.Errorf("store authorization code: %w", err)
	}

	s.log.Info().
		Str("client_id", client.ID).
		Str("user_id", user.ID).
		Msg("authorization code issued")

	return code, nil
}

// Issue runs the token-endpoint state machine for the requested grant.
func (s *TokenIssuer) Issue(ctx context.Context, req ports.TokenRequest) (*ports.TokenResponse, error) {
	client, err := s.registry.Client(req.ClientID)
	if err != nil {
		return nil, err
	}
	if err := s.authenticateClient(client, req.ClientSecret); err != nil {
		return nil, err
	}
	if !client.AllowsGrant(req.GrantType) {
		return nil, domain.ErrUnsupportedGrant
	}

	switch req.GrantType {
	case domain.GrantClientCredentials:
		scopes, err := s.grantedScopes(client, req.Scopes)
		if err != nil {
			return nil, err
		}
		return s.sign(client.ID, nil, scopes)

	case domain.GrantPassword:
		scopes, err := s.grantedScopes(client, req.Scopes)
		if err != nil {
			return nil, err
		}
		user, err := s.verifier.Verify(ctx, req.Username, req.Password)
		if err != nil {
			return nil, err
		}
		return s.sign(client.ID, user, scopes)

	case domain.GrantAuthorizationCode:
		ac, err := s.codes.Take(ctx, req.Code)
		if err != nil {
			return nil, err
		}
		if ac.ClientID != client.ID || ac.RedirectURI != req.RedirectURI {
			return nil, domain.ErrInvalidAuthorization
		}
		user, err := s.users.FindByID(ctx, ac.Subject)
		if err != nil {
			// The subject vanished between authorize and redemption.
			if errors.Is(err, domain.ErrUserNotFound) {
				return nil, domain.ErrInvalidAuthorization
			}
			return nil, err
		}
		return s.sign(client.ID, user, ac.Scopes)

	default:
		return nil, domain.ErrUnsupportedGrant
	}
}

// authenticateClient checks the presented secret for confidential clients.
// Public clients carry no secret and skip the check.
func (s *TokenIssuer) authenticateClient(client *domain.Client, secret string) error {
	if !client.Confidential() {
		return nil
	}
	for _, known := range client.Secrets {
		if subtle.ConstantTimeCompare([]byte(known), []byte(secret)) == 1 {
			return nil
		}
	}
	return domain.ErrInvalidClientSecret
}

// grantedScopes resolves the requested scopes against the client's allowance.
// An empty request defaults to everything the client may have.
func (s *TokenIssuer) grantedScopes(client *domain.Client, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return client.AllowedScopes, nil
	}
	for _, name := range requested {
		if !client.AllowsScope(name) {
			return nil, domain.ErrInvalidScope
		}
		if _, err := s.registry.Scope(name); err != nil {
			return nil, err
		}
	}
	return requested, nil
}

// sign assembles the claim set and produces a signed token. Claims are
// strictly the union of what each granted scope enumerates; nothing else
// about the user leaks into the token. Role claims reflect the roles held
// at issuance time.
func (s *TokenIssuer) sign(clientID string, user *domain.User, scopes []string) (*ports.TokenResponse, error) {
	now := time.Now().UTC()
	exp := now.Add(s.tokenTTL)

	subject := clientID
	if user != nil {
		subject = user.ID
	}

	claims := jwt.MapClaims{
		"iss":       s.issuer,
		"sub":       subject,
		"jti":       uuid.NewString(),
		"client_id": clientID,
		"iat":       now.Unix(),
		"exp":       exp.Unix(),
		"scope":     strings.Join(scopes, " "),
	}

	audiences := make([]string, 0, 2)
	seen := make(map[string]struct{})
	for _, name := range scopes {
		scope, err := s.registry.Scope(name)
		if err != nil {
			return nil, err
		}
		for _, aud := range scope.Audiences {
			if _, dup := seen[aud]; !dup {
				seen[aud] = struct{}{}
				audiences = append(audiences, aud)
			}
		}
		if user == nil {
			continue
		}
		for _, key := range scope.Claims {
			switch key {
			case "sub":
				// Already present.
			case "name", "preferred_username":
				claims[key] = user.Username
			case "email":
				claims[key] = user.Email
			case "role":
				claims[key] = user.Roles
			}
		}
	}
	if len(audiences) > 0 {
		claims["aud"] = audiences
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keys.KeyID()

	signed, err := token.SignedString(s.keys.Signer())
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &ports.TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenTTL.Seconds()),
		Scope:       strings.Join(scopes, " "),
	}, nil
}

// Validate parses and verifies a bearer token. Only RS256 tokens signed by
// the process's active key pass; revoked token ids fail until expiry.
func (s *TokenIssuer) Validate(ctx context.Context, tokenString string) (*ports.TokenClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		if kid, _ := t.Header["kid"].(string); kid != s.keys.KeyID() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.keys.Public(), nil
	})
	if err != nil || !parsed.Valid {
		return nil, domain.ErrInvalidToken
	}

	tc := mapClaims(claims)
	if tc.TokenID != "" {
		revoked, err := s.revoked.IsRevoked(ctx, tc.TokenID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, domain.ErrTokenRevoked
		}
	}
	return tc, nil
}

// Revoke invalidates the presented token for its remaining lifetime. The
// identity store is never touched.
func (s *TokenIssuer) Revoke(ctx context.Context, tokenString string) error {
	tc, err := s.Validate(ctx, tokenString)
	if err != nil {
		return err
	}
	ttl := time.Until(time.Unix(tc.ExpiresAt, 0))
	return s.revoked.Revoke(ctx, tc.TokenID, ttl)
}

func mapClaims(claims jwt.MapClaims) *ports.TokenClaims {
	tc := &ports.TokenClaims{}
	tc.Subject, _ = claims["sub"].(string)
	tc.ClientID, _ = claims["client_id"].(string)
	tc.TokenID, _ = claims["jti"].(string)
	tc.Email, _ = claims["email"].(string)
	tc.Username, _ = claims["preferred_username"].(string)
	if tc.Username == "" {
		tc.Username, _ = claims["name"].(string)
	}
	if scope, ok := claims["scope"].(string); ok && scope != "" {
		tc.Scopes = strings.Fields(scope)
	}
	tc.Roles = stringSlice(claims["role"])
	tc.Audiences = stringSlice(claims["aud"])
	if exp, ok := claims["exp"].(float64); ok {
		tc.ExpiresAt = int64(exp)
	}
	return tc
}

// stringSlice normalizes a claim that may arrive as a string or a JSON array.
func stringSlice(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
