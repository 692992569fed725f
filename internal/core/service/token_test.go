package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/microshop/identity-service/internal/core/domain"
	"github.com/microshop/identity-service/internal/core/ports"
)

type testKeys struct {
	kid string
	key *rsa.PrivateKey
}

func newTestKeys(t *testing.T, kid string) *testKeys {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &testKeys{kid: kid, key: key}
}

func (k *testKeys) KeyID() string           { return k.kid }
func (k *testKeys) Signer() *rsa.PrivateKey { return k.key }
func (k *testKeys) Public() *rsa.PublicKey  { return &k.key.PublicKey }

type issuerFixture struct {
	issuer  *TokenIssuer
	users   *stubUserRepo
	reg     *stubRegistry
	codes   *stubCodeStore
	revoked *stubRevocationList
	keys    *testKeys
}

func newIssuerFixture(t *testing.T) *issuerFixture {
	t.Helper()
	users := newStubUserRepo()
	reg := newStubRegistry()
	reg.clients["frontend"] = &domain.Client{
		ID:            "frontend",
		GrantTypes:    []domain.GrantType{domain.GrantPassword, domain.GrantAuthorizationCode},
		AllowedScopes: []string{"openid", "profile", "email", "roles"},
		RedirectURIs:  []string{"https://shop.example.com/cb"},
	}
	reg.clients["worker"] = &domain.Client{
		ID:            "worker",
		Secrets:       []string{"worker-secret"},
		GrantTypes:    []domain.GrantType{domain.GrantClientCredentials},
		AllowedScopes: []string{"openid"},
	}
	codes := newStubCodeStore()
	revoked := newStubRevocationList()
	keys := newTestKeys(t, "test-key")

	issuer := NewTokenIssuer(
		reg,
		NewCredentialVerifier(users),
		users,
		keys,
		codes,
		revoked,
		"https://identity.example.com",
		time.Hour,
		zerolog.Nop(),
	)
	return &issuerFixture{issuer: issuer, users: users, reg: reg, codes: codes, revoked: revoked, keys: keys}
}

func TestIssue_UnknownClient(t *testing.T) {
	fx := newIssuerFixture(t)
	_, err := fx.issuer.Issue(context.Background(), ports.TokenRequest{
		GrantType: domain.GrantPassword,
		ClientID:  "ghost",
	})
	if !errors.Is(err, domain.ErrUnknownClient) {
		t.Fatalf("expected ErrUnknownClient, got %v", err)
	}
}

func TestIssue_DisallowedGrant(t *testing.T) {
	fx := newIssuerFixture(t)
	_, err := fx.issuer.Issue(context.Background(), ports.TokenRequest{
		GrantType: domain.GrantClientCredentials,
		ClientID:  "frontend",
	})
	if !errors.Is(err, domain.ErrUnsupportedGrant) {
		t.Fatalf("expected ErrUnsupportedGrant, got %v", err)
	}
}

func TestIssue_DisallowedScope(t *testing.T) {
	fx := newIssuerFixture(t)
	seedUser(t, fx.users, "u1", "alice@example.com", "pw")
	_, err := fx.issuer.Issue(context.Background(), ports.TokenRequest{
		GrantType: domain.GrantPassword,
		ClientID:  "frontend",
		Username:  "alice@example.com",
		Password:  "pw",
		Scopes:    []string{"catalog.fullaccess"},
	})
	if !errors.Is(err, domain.ErrInvalidScope) {
		t.Fatalf("expected ErrInvalidScope, got %v", err)
	}
}

func TestIssue_BadClientSecret(t *testing.T) {
	fx := newIssuerFixture(t)
	_, err := fx.issuer.Issue(context.Background(), ports.TokenRequest{
		GrantType:    domain.GrantClientCredentials,
		ClientID:     "worker",
		ClientSecret: "nope",
	})
	if !errors.Is(err, domain.ErrInvalidClientSecret) {
		t.Fatalf("expected ErrInvalidClientSecret, got %v", err)
	}
}

func TestIssue_PasswordGrant_ClaimsMatchScopes(t *testing.T) {
	fx := newIssuerFixture(t)
	seedUser(t, fx.users, "u1", "alice@example.com", "pw", domain.RoleAdmin)

	resp, err := fx.issuer.Issue(context.Background(), ports.TokenRequest{
		GrantType: domain.GrantPassword,
		ClientID:  "frontend",
		Username:  "alice@example.com",
		Password:  "pw",
		Scopes:    []string{"openid", "email"},
	})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	claims := parseToken(t, fx.keys, resp.AccessToken)
	if claims["sub"] != "u1" {
		t.Fatalf("expected sub=u1, got %v", claims["sub"])
	}
	if claims["email"] != "alice@example.com" {
		t.Fatalf("expected email claim, got %v", claims["email"])
	}
	// Claims not granted by the requested scopes must be absent.
	if _, present := claims["role"]; present {
		t.Fatalf("role claim leaked without the roles scope")
	}
	if _, present := claims["preferred_username"]; present {
		t.Fatalf("profile claim leaked without the profile scope")
	}
}

func TestIssue_RoleClaimsStableAcrossIssuance(t *testing.T) {
	fx := newIssuerFixture(t)
	seedUser(t, fx.users, "u1", "alice@example.com", "pw", domain.RoleAdmin, domain.RoleUser)

	req := ports.TokenRequest{
		GrantType: domain.GrantPassword,
		ClientID:  "frontend",
		Username:  "alice@example.com",
		Password:  "pw",
		Scopes:    []string{"openid", "roles"},
	}

	first, err := fx.issuer.Issue(context.Background(), req)
	if err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	second, err := fx.issuer.Issue(context.Background(), req)
	if err != nil {
		t.Fatalf("second Issue: %v", err)
	}

	a := stringSlice(parseToken(t, fx.keys, first.AccessToken)["role"])
	b := stringSlice(parseToken(t, fx.keys, second.AccessToken)["role"])
	if len(a) != 2 || len(b) != 2 || a[0] != b[0] || a[1] != b[1] {
		t.Fatalf("role claims differ across issuance: %v vs %v", a, b)
	}
}

func TestIssue_ClientCredentials_NoUserClaims(t *testing.T) {
	fx := newIssuerFixture(t)

	resp, err := fx.issuer.Issue(context.Background(), ports.TokenRequest{
		GrantType:    domain.GrantClientCredentials,
		ClientID:     "worker",
		ClientSecret: "worker-secret",
	})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	claims := parseToken(t, fx.keys, resp.AccessToken)
	if claims["sub"] != "worker" {
		t.Fatalf("expected sub=worker, got %v", claims["sub"])
	}
	for _, key := range []string{"email", "role", "name", "preferred_username"} {
		if _, present := claims[key]; present {
			t.Fatalf("user claim %q present on client-credentials token", key)
		}
	}
}

func TestAuthorizeAndRedeemCode(t *testing.T) {
	fx := newIssuerFixture(t)
	seedUser(t, fx.users, "u1", "alice@example.com", "pw", domain.RoleUser)

	code, err := fx.issuer.Authorize(context.Background(), ports.AuthorizeRequest{
		ClientID:    "frontend",
		RedirectURI: "https://shop.example.com/cb",
		Scopes:      []string{"openid", "roles"},
		Username:    "alice@example.com",
		Password:    "pw",
	})
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}

	resp, err := fx.issuer.Issue(context.Background(), ports.TokenRequest{
		GrantType:   domain.GrantAuthorizationCode,
		ClientID:    "frontend",
		Code:        code,
		RedirectURI: "https://shop.example.com/cb",
	})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	claims := parseToken(t, fx.keys, resp.AccessToken)
	if claims["sub"] != "u1" {
		t.Fatalf("expected sub=u1, got %v", claims["sub"])
	}

	// The code is single-use.
	_, err = fx.issuer.Issue(context.Background(), ports.TokenRequest{
		GrantType:   domain.GrantAuthorizationCode,
		ClientID:    "frontend",
		Code:        code,
		RedirectURI: "https://shop.example.com/cb",
	})
	if !errors.Is(err, domain.ErrInvalidAuthorization) {
		t.Fatalf("expected ErrInvalidAuthorization on replay, got %v", err)
	}
}

func TestAuthorize_UnregisteredRedirect(t *testing.T) {
	fx := newIssuerFixture(t)
	seedUser(t, fx.users, "u1", "alice@example.com", "pw")

	_, err := fx.issuer.Authorize(context.Background(), ports.AuthorizeRequest{
		ClientID:    "frontend",
		RedirectURI: "https://evil.example.com/cb",
		Username:    "alice@example.com",
		Password:    "pw",
	})
	if !errors.Is(err, domain.ErrInvalidRedirectURI) {
		t.Fatalf("expected ErrInvalidRedirectURI, got %v", err)
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	fx := newIssuerFixture(t)
	seedUser(t, fx.users, "u1", "alice@example.com", "pw", domain.RoleAdmin)

	resp, err := fx.issuer.Issue(context.Background(), ports.TokenRequest{
		GrantType: domain.GrantPassword,
		ClientID:  "frontend",
		Username:  "alice@example.com",
		Password:  "pw",
		Scopes:    []string{"openid", "roles", "email"},
	})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	tc, err := fx.issuer.Validate(context.Background(), resp.AccessToken)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if tc.Subject != "u1" || !tc.HasRole(domain.RoleAdmin) || !tc.HasScope("email") {
		t.Fatalf("unexpected claims: %+v", tc)
	}
}

// A token signed under one key id must not validate against a process
// holding a different key.
func TestValidate_WrongKeyRejected(t *testing.T) {
	fx := newIssuerFixture(t)
	seedUser(t, fx.users, "u1", "alice@example.com", "pw")

	resp, err := fx.issuer.Issue(context.Background(), ports.TokenRequest{
		GrantType: domain.GrantPassword,
		ClientID:  "frontend",
		Username:  "alice@example.com",
		Password:  "pw",
	})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	other := newIssuerFixture(t)
	if _, err := other.issuer.Validate(context.Background(), resp.AccessToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken under foreign key, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	fx := newIssuerFixture(t)
	seedUser(t, fx.users, "u1", "alice@example.com", "pw")

	resp, err := fx.issuer.Issue(context.Background(), ports.TokenRequest{
		GrantType: domain.GrantPassword,
		ClientID:  "frontend",
		Username:  "alice@example.com",
		Password:  "pw",
	})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if err := fx.issuer.Revoke(context.Background(), resp.AccessToken); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if _, err := fx.issuer.Validate(context.Background(), resp.AccessToken); !errors.Is(err, domain.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func parseToken(t *testing.T, keys *testKeys, tokenString string) jwt.MapClaims {
	t.Helper()
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		if kid, _ := tok.Header["kid"].(string); kid != keys.KeyID() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return keys.Public(), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token failed to parse: %v", err)
	}
	return claims
}
