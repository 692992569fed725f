package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/microshop/identity-service/internal/api"
	"github.com/microshop/identity-service/internal/core/service"
	"github.com/microshop/identity-service/internal/infrastructure/config"
	mongodb "github.com/microshop/identity-service/internal/infrastructure/db/mongo"
	redisdb "github.com/microshop/identity-service/internal/infrastructure/db/redis"
	"github.com/microshop/identity-service/internal/infrastructure/queue"
	"github.com/microshop/identity-service/internal/infrastructure/registry"
	"github.com/microshop/identity-service/internal/infrastructure/signing"
	"github.com/microshop/identity-service/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Init(logger.Options{})
		fallback := logger.Get()
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	// --- Static registry ---
	reg, err := registry.Load(cfg.ClientsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.ClientsFile).Msg("failed to load client registry")
	}

	// --- Signing key source, resolved once ---
	keys, err := signing.FromConfig(cfg.Signing)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise signing key")
	}
	log.Info().Str("kid", keys.KeyID()).Bool("ephemeral", cfg.Signing.Ephemeral).Msg("signing key ready")

	// --- Stores ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	rdb, err := redisdb.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer func() { _ = rdb.Close() }()

	// --- Broker ---
	broker, err := queue.Connect(cfg.Broker.URI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to message broker")
	}
	defer func() { _ = broker.Close() }()

	transport, err := queue.NewAMQPTransport(broker, cfg.Broker.Exchange)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to declare event exchange")
	}

	// --- Core services ---
	userRepo := mongodb.NewUserRepository(db)
	roleRepo := mongodb.NewRoleRepository(db)
	verifier := service.NewCredentialVerifier(userRepo)
	publisher := service.NewRetryingPublisher(transport, cfg.Broker.RetryCount, cfg.Broker.RetryInterval, log)
	userService := service.NewUserAdminService(userRepo, publisher, log)
	tokenIssuer := service.NewTokenIssuer(
		reg,
		verifier,
		userRepo,
		keys,
		redisdb.NewCodeStore(rdb),
		redisdb.NewRevocationList(rdb),
		cfg.Authority,
		cfg.TokenTTL,
		log,
	)

	// --- Seed before accepting traffic; a partial seed is fatal ---
	seeder := service.NewSeeder(userRepo, roleRepo, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword, log)
	if err := seeder.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("identity seeding failed")
	}

	e := api.NewRouter(api.Deps{
		Tokens:    tokenIssuer,
		Users:     userService,
		Keys:      keys,
		Scopes:    reg,
		Clients:   reg,
		Authority: cfg.Authority,
		PathBase:  cfg.PathBase,
		Mongo:     db,
		Redis:     rdb,
		Log:       log,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("identity service listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
