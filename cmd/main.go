package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/andressep95/notify-service/internal/config"
	"github.com/andressep95/notify-service/internal/handler"
	"github.com/andressep95/notify-service/internal/handler/middleware"
	"github.com/andressep95/notify-service/internal/repository/postgres"
	"github.com/andressep95/notify-service/internal/service"
	"github.com/andressep95/notify-service/pkg/blacklist"
	"github.com/andressep95/notify-service/pkg/logger"
	"github.com/andressep95/notify-service/pkg/push"
	"github.com/andressep95/notify-service/pkg/validator"
)

const (
	testNotificationLimit  = 5
	testNotificationWindow = time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, !cfg.IsProduction())

	// Initialize database connection
	db, err := initDB(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("error closing database connection")
		}
	}()
	log.Info().Msg("database connection established")

	if cfg.Database.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := postgres.RunMigrations(ctx, db.DB)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
		log.Info().Msg("database migrations applied")
	}

	// Initialize Redis client
	redisClient, err := initRedis(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis connection")
		}
	}()
	log.Info().Msg("redis connection established")

	validate := validator.NewValidator()

	// Initialize repositories
	sessionRepo := postgres.NewSessionRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	subscriptionRepo := postgres.NewPushSubscriptionRepository(db)

	sessionBlacklist := blacklist.NewSessionBlacklist(redisClient)

	// Initialize push transport
	var sender push.Sender
	if cfg.Push.Enabled {
		webPush, err := push.NewWebPushSender(&push.Config{
			Subscriber:      cfg.Push.Subscriber,
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			TTL:             cfg.Push.TTL,
			Urgency:         cfg.Push.Urgency,
			Timeout:         cfg.Push.Timeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize web push sender")
		}
		sender = webPush
		log.Info().Int("concurrency", cfg.Push.Concurrency).Msg("web push delivery enabled")
	} else {
		log.Info().Msg("web push delivery disabled (set PUSH_ENABLED=true to enable)")
	}

	// Initialize services
	deviceService := service.NewDeviceService(sessionRepo, cfg, log)
	notificationService := service.NewNotificationService(notificationRepo, subscriptionRepo, sender, cfg, log)

	// Initialize handlers
	deviceHandler := handler.NewDeviceHandler(deviceService, validate, log)
	notificationHandler := handler.NewNotificationHandler(notificationService, validate, log)
	sessionHandler := handler.NewSessionHandler(deviceService, log)
	healthHandler := handler.NewHealthHandler(map[string]handler.Check{
		"database": db.PingContext,
		"cache":    sessionBlacklist.Ping,
	}, log)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:               "Notify Service v1.0",
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(log),
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
	})

	// Setup global middlewares
	app.Use(middleware.RecoveryMiddleware(log))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))
	app.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))
	app.Use(middleware.CORSMiddleware(cfg.Server.AllowOrigins))

	authMiddleware := middleware.SessionAuth(sessionRepo, sessionBlacklist, cfg.Session.CookieName, log)
	testLimiter := middleware.SessionRateLimit(testNotificationLimit, testNotificationWindow)

	handler.SetupRoutes(
		app,
		deviceHandler,
		notificationHandler,
		sessionHandler,
		healthHandler,
		authMiddleware,
		testLimiter,
	)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Info().
			Str("addr", addr).
			Str("environment", cfg.Server.Environment).
			Msg("server starting")
		if err := app.Listen(addr); err != nil {
			log.Error().Err(err).Msg("server failed to start")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// initDB initializes PostgreSQL database connection with retry logic
func initDB(cfg *config.Config, log *zerolog.Logger) (*sqlx.DB, error) {
	dsn := cfg.Database.DSN()

	var db *sqlx.DB
	var err error

	maxRetries := 5
	retryInterval := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			break
		}

		log.Warn().Err(err).
			Int("attempt", i+1).
			Int("max_attempts", maxRetries).
			Msg("failed to connect to database")
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("error closing database after ping failure")
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// initRedis initializes Redis client and verifies connection
func initRedis(cfg *config.Config, log *zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("error closing redis after ping failure")
		}
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// customErrorHandler renders errors that escape handlers, such as unknown
// routes and oversized bodies
func customErrorHandler(log *zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		}

		log.Error().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("error handling request")

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": message,
		})
	}
}
