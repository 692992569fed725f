package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/microshop/identity-service/internal/api/metrics"
	"github.com/microshop/identity-service/internal/api/middleware"
	"github.com/microshop/identity-service/internal/core/domain"
	"github.com/microshop/identity-service/internal/core/ports"
	"github.com/microshop/identity-service/internal/infrastructure/signing"
)

// KeySetSource exposes the public verification material for the discovery
// boundary.
type KeySetSource interface {
	JWKS() signing.JWKSet
}

// ScopeCatalog lists the registered scope names for the discovery document.
type ScopeCatalog interface {
	ScopeNames() []string
}

// ClientCatalog resolves registered clients for endpoint authentication.
type ClientCatalog interface {
	Client(id string) (*domain.Client, error)
}

// OIDCHandler serves the protocol surface: discovery, JWKS, authorize,
// token, userinfo, introspection, and end-session.
type OIDCHandler struct {
	tokens    ports.TokenService
	keys      KeySetSource
	scopes    ScopeCatalog
	clients   ClientCatalog
	authority string
	pathBase  string
}

func NewOIDCHandler(tokens ports.TokenService, keys KeySetSource, scopes ScopeCatalog, clients ClientCatalog, authority, pathBase string) *OIDCHandler {
	return &OIDCHandler{
		tokens:    tokens,
		keys:      keys,
		scopes:    scopes,
		clients:   clients,
		authority: strings.TrimRight(authority, "/"),
		pathBase:  pathBase,
	}
}

// oauthError is the RFC 6749 §5.2 error envelope.
type oauthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// Discovery serves the OpenID Connect discovery document.
//
// @Summary      OpenID Connect discovery document
// @Tags         oidc
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /.well-known/openid-configuration [get]
func (h *OIDCHandler) Discovery(c echo.Context) error {
	base := h.authority + h.pathBase
	return c.JSON(http.StatusOK, map[string]interface{}{
		"issuer":                                h.authority,
		"jwks_uri":                              base + "/.well-known/jwks.json",
		"authorization_endpoint":                base + "/connect/authorize",
		"token_endpoint":                        base + "/connect/token",
		"userinfo_endpoint":                     base + "/connect/userinfo",
		"introspection_endpoint":                base + "/connect/introspect",
		"end_session_endpoint":                  base + "/connect/endsession",
		"scopes_supported":                      h.scopes.ScopeNames(),
		"grant_types_supported":                 []string{"authorization_code", "client_credentials", "password"},
		"response_types_supported":              []string{"code"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_post"},
	})
}

// JWKS serves the public signing key set.
//
// @Summary      JSON Web Key Set
// @Tags         oidc
// @Produce      json
// @Success      200  {object}  signing.JWKSet
// @Router       /.well-known/jwks.json [get]
func (h *OIDCHandler) JWKS(c echo.Context) error {
	return c.JSON(http.StatusOK, h.keys.JWKS())
}

type authorizeRequest struct {
	ClientID     string `form:"client_id" validate:"required"`
	RedirectURI  string `form:"redirect_uri" validate:"required"`
	ResponseType string `form:"response_type" validate:"required,oneof=code"`
	Scope        string `form:"scope"`
	State        string `form:"state"`
	Username     string `form:"username" validate:"required"`
	Password     string `form:"password" validate:"required"`
}

// Authorize authenticates the resource owner and redirects back to the
// client with a single-use authorization code.
//
// @Summary      Authorization endpoint
// @Tags         oidc
// @Accept       x-www-form-urlencoded
// @Success      302
// @Failure      400  {object}  oauthError
// @Failure      401  {object}  oauthError
// @Router       /connect/authorize [post]
func (h *OIDCHandler) Authorize(c echo.Context) error {
	var req authorizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, oauthError{Error: "invalid_request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, oauthError{Error: "invalid_request", Description: err.Error()})
	}

	code, err := h.tokens.Authorize(c.Request().Context(), ports.AuthorizeRequest{
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		Scopes:      strings.Fields(req.Scope),
		Username:    req.Username,
		Password:    req.Password,
	})
	if err != nil {
		return h.protocolError(c, err)
	}

	redirect, err := url.Parse(req.RedirectURI)
	if err != nil {
		return c.JSON(http.StatusBadRequest, oauthError{Error: "invalid_request"})
	}
	q := redirect.Query()
	q.Set("code", code)
	if req.State != "" {
		q.Set("state", req.State)
	}
	redirect.RawQuery = q.Encode()

	return c.Redirect(http.StatusFound, redirect.String())
}

type tokenRequest struct {
	GrantType    string `form:"grant_type" validate:"required"`
	ClientID     string `form:"client_id" validate:"required"`
	ClientSecret string `form:"client_secret"`
	Scope        string `form:"scope"`
	Username     string `form:"username"`
	Password     string `form:"password"`
	Code         string `form:"code"`
	RedirectURI  string `form:"redirect_uri"`
}

// Token runs the token-endpoint state machine.
//
// @Summary      Token endpoint
// @Tags         oidc
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Success      200  {object}  ports.TokenResponse
// @Failure      400  {object}  oauthError
// @Failure      401  {object}  oauthError
// @Router       /connect/token [post]
func (h *OIDCHandler) Token(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, oauthError{Error: "invalid_request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, oauthError{Error: "invalid_request", Description: err.Error()})
	}

	resp, err := h.tokens.Issue(c.Request().Context(), ports.TokenRequest{
		GrantType:    domain.GrantType(req.GrantType),
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Scopes:       strings.Fields(req.Scope),
		Username:     req.Username,
		Password:     req.Password,
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
	})
	if err != nil {
		return h.protocolError(c, err)
	}

	metrics.TokensIssuedTotal.WithLabelValues(req.GrantType).Inc()
	return c.JSON(http.StatusOK, resp)
}

// UserInfo returns the claims granted to the presented token. The identity
// store is never consulted; the token is the source of truth.
//
// @Summary      UserInfo endpoint
// @Tags         oidc
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  oauthError
// @Router       /connect/userinfo [get]
func (h *OIDCHandler) UserInfo(c echo.Context) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	info := map[string]interface{}{"sub": claims.Subject}
	if claims.HasScope("email") && claims.Email != "" {
		info["email"] = claims.Email
	}
	if claims.HasScope("profile") && claims.Username != "" {
		info["name"] = claims.Username
		info["preferred_username"] = claims.Username
	}
	if claims.HasScope("roles") && len(claims.Roles) > 0 {
		info["role"] = claims.Roles
	}
	return c.JSON(http.StatusOK, info)
}

type introspectRequest struct {
	Token        string `form:"token" validate:"required"`
	ClientID     string `form:"client_id" validate:"required"`
	ClientSecret string `form:"client_secret"`
}

// Introspect reports whether a token is active, per RFC 7662. Inactive
// tokens yield {"active": false} rather than an error so callers cannot
// probe for the failure reason.
//
// @Summary      Token introspection
// @Tags         oidc
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /connect/introspect [post]
func (h *OIDCHandler) Introspect(c echo.Context) error {
	var req introspectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, oauthError{Error: "invalid_request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, oauthError{Error: "invalid_request", Description: err.Error()})
	}

	// Introspection callers must authenticate, so only confidential clients
	// presenting a valid secret are served. Public clients have no secret to
	// authenticate with and get invalid_client.
	client, err := h.clients.Client(req.ClientID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, oauthError{Error: "invalid_client"})
	}
	if !client.Confidential() || !clientSecretMatches(client, req.ClientSecret) {
		return c.JSON(http.StatusUnauthorized, oauthError{Error: "invalid_client"})
	}

	claims, err := h.tokens.Validate(c.Request().Context(), req.Token)
	if err != nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"active": false})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"active":    true,
		"sub":       claims.Subject,
		"client_id": claims.ClientID,
		"scope":     strings.Join(claims.Scopes, " "),
		"exp":       claims.ExpiresAt,
		"aud":       claims.Audiences,
	})
}

type endSessionRequest struct {
	Token string `form:"token" validate:"required"`
}

// EndSession revokes the presented token for its remaining lifetime.
//
// @Summary      End-session endpoint
// @Tags         oidc
// @Accept       x-www-form-urlencoded
// @Success      204
// @Failure      401  {object}  oauthError
// @Router       /connect/endsession [post]
func (h *OIDCHandler) EndSession(c echo.Context) error {
	var req endSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, oauthError{Error: "invalid_request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, oauthError{Error: "invalid_request", Description: err.Error()})
	}

	if err := h.tokens.Revoke(c.Request().Context(), req.Token); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	return c.NoContent(http.StatusNoContent)
}

func clientSecretMatches(client *domain.Client, secret string) bool {
	for _, known := range client.Secrets {
		if subtle.ConstantTimeCompare([]byte(known), []byte(secret)) == 1 {
			return true
		}
	}
	return false
}

// protocolError translates domain errors into the OAuth error shape. Store
// failures fall through to the central error handler so internal detail
// never reaches the wire.
func (h *OIDCHandler) protocolError(c echo.Context, err error) error {
	var code string
	status := http.StatusBadRequest

	switch {
	case errors.Is(err, domain.ErrUnknownClient), errors.Is(err, domain.ErrInvalidClientSecret):
		code, status = "invalid_client", http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnsupportedGrant):
		code = "unauthorized_client"
	case errors.Is(err, domain.ErrInvalidScope):
		code = "invalid_scope"
	case errors.Is(err, domain.ErrInvalidRedirectURI):
		code = "invalid_request"
	case errors.Is(err, domain.ErrInvalidAuthorization):
		code = "invalid_grant"
	case errors.Is(err, domain.ErrInvalidCredentials):
		code, status = "invalid_grant", http.StatusBadRequest
		metrics.AuthFailuresTotal.Inc()
	default:
		return err
	}

	metrics.TokenRejectionsTotal.WithLabelValues(code).Inc()
	return c.JSON(status, oauthError{Error: code})
}
