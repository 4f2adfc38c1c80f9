package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/redmonkez12/go-events-app/internal/auth"
	"github.com/redmonkez12/go-events-app/internal/config"
	"github.com/redmonkez12/go-events-app/internal/database"
	"github.com/redmonkez12/go-events-app/internal/email"
	"github.com/redmonkez12/go-events-app/internal/event"
	httpServer "github.com/redmonkez12/go-events-app/internal/http"
	"github.com/redmonkez12/go-events-app/internal/logging"
	"github.com/redmonkez12/go-events-app/internal/ratelimit"
	"github.com/redmonkez12/go-events-app/internal/user"
	"github.com/redmonkez12/go-events-app/internal/web"
)

const refreshTokenCleanupInterval = time.Hour

func runServe(cmd *cobra.Command, args []string) error {
	withMigrate, _ := cmd.Flags().GetBool("migrate")

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_strategy", cfg.Auth.TokenStrategy,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if withMigrate {
		if err := database.MigrateUp(cfg.Database.MigrationURL()); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	// Initialize database connection
	db, err := database.Open(ctx, cfg.Database.ConnectionString(), database.Pool{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	db.AddQueryHook(&database.QueryLogger{Logger: logger, Threshold: cfg.Database.SlowQueryTime})

	// Initialize Redis connection
	redisClient, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Initialize repositories
	userRepo := user.NewRepository(db)
	refreshRepo, err := auth.NewRefreshTokenRepository(cfg.Auth.RefreshTokenStore, db, redisClient)
	if err != nil {
		return err
	}
	passwordResetRepo := auth.NewPasswordResetRepository(redisClient)
	eventRepo := event.NewRepository(db)

	// Initialize rate limiter
	limiterStore, closeStore := newRateLimitStore(cfg.RateLimit.Backend, redisClient)
	defer closeStore()
	rateLimiter := ratelimit.NewLimiter(limiterStore, cfg.RateLimit, logger, "/"+cfg.Server.APIPrefix+"/health")

	tokenService, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	// Initialize email service
	sender, err := email.NewSender(cfg.Email, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mail sender: %w", err)
	}
	emailService, err := email.NewService(sender, cfg.Email.From, cfg.Email.FrontendURL, cfg.Auth.VerificationTokenTTL, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	// Initialize services
	authService := auth.NewService(
		userRepo,
		refreshRepo,
		passwordResetRepo,
		tokenService,
		emailService,
		logger,
		auth.Options{
			AccessTokenDuration:  cfg.Auth.AccessTokenDuration,
			RefreshTokenDuration: cfg.Auth.RefreshTokenDuration,
			VerificationTokenTTL: cfg.Auth.VerificationTokenTTL,
		},
	)
	eventService := event.NewService(eventRepo, logger)

	// Initialize HTTP handlers
	authHandler := auth.NewHandler(authService, rateLimiter, cfg.Server.IsProduction())
	authMiddleware := auth.NewMiddleware(tokenService)
	eventHandler := event.NewHandler(eventService)

	webHandler, err := web.NewHandler(authService, eventService, authMiddleware, logger, web.Options{
		CSRFKey: cfg.Web.CSRFKey,
		Secure:  cfg.Server.IsProduction(),
		Limiter: rateLimiter,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize web frontend: %w", err)
	}

	// Initialize router
	router := httpServer.NewRouter(httpServer.Deps{
		Config:         cfg,
		Logger:         logger,
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		EventHandler:   eventHandler,
		RateLimiter:    rateLimiter,
		Web:            webHandler.Routes(),
	})

	server := httpServer.NewServer(cfg.Server, router, logger)

	g, gctx := errgroup.WithContext(ctx)

	// Run returns once a signal arrives and in-flight requests drain; queued
	// mail is flushed before the process exits.
	g.Go(func() error {
		err := server.Run(gctx)
		authService.Wait()
		return err
	})

	g.Go(func() error {
		cleanupRefreshTokens(gctx, refreshRepo, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

// newRateLimitStore returns the configured limiter backend and its release func
func newRateLimitStore(backend string, client *redis.Client) (ratelimit.Store, func()) {
	if backend == config.BackendMemory {
		store := ratelimit.NewMemoryStore()
		return store, store.Close
	}
	return ratelimit.NewRedisStore(client), func() {}
}

// cleanupRefreshTokens purges expired refresh tokens until ctx is done
func cleanupRefreshTokens(ctx context.Context, repo auth.RefreshTokenRepository, logger *logging.Logger) {
	ticker := time.NewTicker(refreshTokenCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := repo.CleanupExpiredTokens(ctx); err != nil {
				logger.Error("failed to clean up refresh tokens", "error", err.Error())
			}
		}
	}
}
