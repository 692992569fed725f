package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/microshop/identity-service/internal/core/ports"
)

// Auth validates the bearer token through the token service and injects the
// validated claims into the request context. Revoked and foreign-key tokens
// fail here, before any handler runs.
func Auth(tokens ports.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := tokens.Validate(c.Request().Context(), parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set("claims", claims)
			return next(c)
		}
	}
}

// Claims extracts the validated token claims injected by Auth.
func Claims(c echo.Context) (*ports.TokenClaims, bool) {
	claims, ok := c.Get("claims").(*ports.TokenClaims)
	return claims, ok
}
