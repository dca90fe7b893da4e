package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Roberto640Alvarado/sae-LTI/internal/config"
	"github.com/Roberto640Alvarado/sae-LTI/internal/database"
	"github.com/Roberto640Alvarado/sae-LTI/internal/handler"
	"github.com/Roberto640Alvarado/sae-LTI/internal/handoff"
	"github.com/Roberto640Alvarado/sae-LTI/internal/lti"
	"github.com/Roberto640Alvarado/sae-LTI/internal/middleware"
	"github.com/Roberto640Alvarado/sae-LTI/internal/models"
	"github.com/Roberto640Alvarado/sae-LTI/internal/repository"
	"github.com/Roberto640Alvarado/sae-LTI/internal/router"
	"github.com/Roberto640Alvarado/sae-LTI/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if !cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(rootCtx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, grade sync events go to redis only")
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	toolKey, err := loadToolKey(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load tool key")
	}

	platformRepo := repository.NewPlatformRepository(db)
	if err := registerPlatform(rootCtx, platformRepo, cfg.Platform); err != nil {
		logger.Fatal().Err(err).Msg("failed to register platform")
	}
	logger.Info().Str("issuer", cfg.Platform.URL).Str("client_id", cfg.Platform.ClientID).Msg("platform registered")

	validate := validator.New(validator.WithRequiredStructEnabled())

	ltiStore := lti.NewStore(redisClient)
	provider := lti.NewProvider(lti.ProviderConfig{
		Key:        cfg.LTIKey,
		StateTTL:   cfg.LTIStateTTL,
		SessionTTL: cfg.LTISessionTTL,
	}, platformRepo, lti.NewJWKSKeySource(rootCtx), ltiStore, logger)
	serviceClient := lti.NewServiceClient(platformRepo, ltiStore, toolKey, nil, logger)

	validationService := service.NewValidationService(
		repository.NewTaskLinkRepository(db),
		repository.NewUserRepository(db),
		repository.NewFeedbackRepository(db),
		repository.NewClassroomTaskRepository(db),
		logger,
	)
	launchService := service.NewLaunchService(validationService, handoff.NewSigner(cfg.JWTSecret), cfg.HandoffTTL, logger)
	gradeSyncService := service.NewGradeSyncService(service.GradeSyncConfig{
		LineItemLabel:     cfg.Grades.LineItemLabel,
		LineItemTag:       cfg.Grades.LineItemTag,
		LookupConcurrency: cfg.Grades.LookupConcurrency,
	}, provider, serviceClient, validationService,
		repository.NewGradeSyncRunRepository(db),
		service.NewGradeSyncPublisher(redisClient, natsConn, cfg.NATSSubject, logger),
		validate, logger)

	ltiHandler := handler.NewLTIHandler(provider, launchService, toolKey, handler.LTIHandlerConfig{
		FrontendURL:   cfg.FrontendURL,
		SecureCookies: cfg.LTISecureCookies,
	}, logger)
	gradeSyncHandler := handler.NewGradeSyncHandler(gradeSyncService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		// Behind the platform's reverse proxy the client IP arrives in X-Forwarded-For.
		ProxyHeader: fiber.HeaderXForwardedFor,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.FrontendURL})
	router.Register(app, cfg, router.Dependencies{
		LTIHandler:        ltiHandler,
		GradeSyncHandler:  gradeSyncHandler,
		SessionMiddleware: middleware.LaunchSessionProtected(provider),
		HealthProbes: map[string]handler.HealthProbe{
			"database": databaseProbe(db),
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, cancelRoot, logger)
}

func loadToolKey(cfg config.Config, logger zerolog.Logger) (lti.ToolKey, error) {
	if cfg.LTIPrivateKeyFile != "" {
		return lti.LoadToolKey(cfg.LTIPrivateKeyFile)
	}

	logger.Warn().Msg("no tool private key configured, generating an ephemeral key")
	return lti.GenerateToolKey()
}

func registerPlatform(ctx context.Context, repo repository.PlatformRepository, platform config.PlatformConfig) error {
	return repo.Upsert(ctx, &models.Platform{
		URL:                    platform.URL,
		Name:                   platform.Name,
		ClientID:               platform.ClientID,
		AuthenticationEndpoint: platform.AuthenticationEndpoint,
		AccessTokenEndpoint:    platform.AccessTokenEndpoint,
		AuthMethod:             models.PlatformAuthMethodJWKSet,
		AuthKey:                platform.JWKSURL,
	})
}

func databaseProbe(db *gorm.DB) handler.HealthProbe {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func waitForShutdown(app *fiber.App, cancelRoot context.CancelFunc, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	cancelRoot()

	logger.Info().Msg("server stopped")
}
