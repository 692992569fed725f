package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/microshop/identity-service/internal/api/handler"
	"github.com/microshop/identity-service/internal/api/middleware"
	"github.com/microshop/identity-service/internal/core/domain"
	"github.com/microshop/identity-service/internal/core/ports"
)

// Deps carries everything the router needs. Constructed once in main.
type Deps struct {
	Tokens    ports.TokenService
	Users     ports.UserService
	Keys      handler.KeySetSource
	Scopes    handler.ScopeCatalog
	Clients   handler.ClientCatalog
	Authority string
	PathBase  string
	Mongo     *mongo.Database
	Redis     *redis.Client
	Log       zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())

	// --- Handlers ---
	oidcHandler := handler.NewOIDCHandler(d.Tokens, d.Keys, d.Scopes, d.Clients, d.Authority, d.PathBase)
	userHandler := handler.NewUserHandler(d.Users)
	authMiddleware := middleware.Auth(d.Tokens)
	adminOnly := middleware.RBAC(domain.RoleAdmin)

	// PathBase prefixes every route for reverse-proxy deployments.
	root := e.Group(d.PathBase)

	// --- Protocol surface ---
	root.GET("/.well-known/openid-configuration", oidcHandler.Discovery)
	root.GET("/.well-known/jwks.json", oidcHandler.JWKS)
	root.POST("/connect/authorize", oidcHandler.Authorize)
	root.POST("/connect/token", oidcHandler.Token)
	root.GET("/connect/userinfo", oidcHandler.UserInfo, authMiddleware)
	root.POST("/connect/introspect", oidcHandler.Introspect)
	root.POST("/connect/endsession", oidcHandler.EndSession)

	// --- Administrative surface (admin role required) ---
	users := root.Group("/users", authMiddleware, adminOnly)
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Mongo, d.Redis)

	root.GET("/health", healthHandler.Liveness)            // liveness: is the process alive?
	root.GET("/health/ready", healthDepsHandler.Readiness) // readiness: are dependencies up?
	root.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}
