package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/staff-service/internal/api/http"
	"github.com/spec-kit/staff-service/internal/api/http/handlers"
	"github.com/spec-kit/staff-service/internal/auth"
	"github.com/spec-kit/staff-service/internal/config"
	"github.com/spec-kit/staff-service/internal/events"
	"github.com/spec-kit/staff-service/internal/observability"
	"github.com/spec-kit/staff-service/internal/persistence"
	"github.com/spec-kit/staff-service/internal/repository"
	"github.com/spec-kit/staff-service/internal/service"
	"github.com/spec-kit/staff-service/internal/worker"
)

const shutdownTimeout = 15 * time.Second

// stores holds the repositories for the configured driver and the handles to close.
type stores struct {
	staff repository.StaffRepository
	users repository.UserRepository
	deps  []handlers.Dependency
	close []func(context.Context)
}

func (s *stores) Close(ctx context.Context) {
	for i := len(s.close) - 1; i >= 0; i-- {
		s.close[i](ctx)
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger, migrate bool) (*stores, error) {
	st := &stores{}
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		if migrate || cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, cfg.Postgres.DSN, logger); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect postgres: %w", err)
		}
		st.staff = repository.NewPostgresStaffRepository(pg.Pool)
		st.users = repository.NewPostgresUserRepository(pg.Pool)
		st.deps = append(st.deps, pg)
		st.close = append(st.close, func(context.Context) { pg.Close() })
	default:
		mg, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect mongo: %w", err)
		}
		st.close = append(st.close, mg.Close)
		if migrate || cfg.Mongo.EnsureSchema {
			if err := persistence.EnsureSchema(ctx, mg.DB, logger); err != nil {
				st.Close(context.Background())
				return nil, fmt.Errorf("failed to ensure mongo schema: %w", err)
			}
		}
		st.staff = repository.NewMongoStaffRepository(mg.DB)
		st.users = repository.NewMongoUserRepository(mg.DB)
		st.deps = append(st.deps, mg)
	}
	return st, nil
}

func runServe(parent context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	metrics.CountEvents(dispatcher)

	var webhooks service.WebhookQueue
	if cfg.Notification.WebhookURL != "" {
		w := worker.NewWebhookWorker(cfg.Notification.WebhookURL, logger)
		w.Start(context.Background())
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := w.Stop(stopCtx); err != nil {
				logger.Warn("webhook worker stopped with pending deliveries", zap.Error(err))
			}
		}()
		webhooks = w
	}
	service.NewNotificationService(dispatcher, logger, cfg.Notification, webhooks).RegisterHandlers()

	validate := service.NewValidator()
	staffService := service.NewStaffService(service.StaffDependencies{
		StaffRepo:  st.staff,
		Dispatcher: dispatcher,
		Validator:  validate,
		Conflicts:  metrics,
		Logger:     logger,
	})
	assignmentService := service.NewAssignmentService(staffService)

	denylist := auth.NewRedisDenylist(redis.Client)
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:          st.users,
		PasswordResetRepo: repository.NewPasswordResetRepository(redis.Client),
		Denylist:          denylist,
		Validator:         validate,
		Logger:            logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), st.users, denylist, logger)

	var rateLimiter *httptransport.RateLimiter
	if cfg.RateLimit.Requests > 0 {
		rateLimiter = httptransport.NewRateLimiter(
			limiter.Rate{Period: cfg.RateLimit.Period(), Limit: cfg.RateLimit.Requests},
			redis.Client, logger)
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:     cfg.App.RequestTimeout(),
		CORSOrigins: cfg.App.CORSAllowedOrigins,
		RateLimiter: rateLimiter,
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, append(st.deps, redis)...),
		Auth:           handlers.NewAuthHandler(authService, cfg.App.Env != "production"),
		Staff:          handlers.NewStaffHandler(staffService, assignmentService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("store", cfg.Store.Driver))
		errCh <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("fiber listen: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return nil
}
