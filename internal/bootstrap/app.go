// Package bootstrap wires configuration, storage and services for the API and the admin CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/trip-control-api/internal/handler"
	"github.com/noah-isme/trip-control-api/internal/middleware"
	"github.com/noah-isme/trip-control-api/internal/repository"
	"github.com/noah-isme/trip-control-api/internal/service"
	"github.com/noah-isme/trip-control-api/internal/source"
	"github.com/noah-isme/trip-control-api/pkg/cache"
	"github.com/noah-isme/trip-control-api/pkg/civil"
	"github.com/noah-isme/trip-control-api/pkg/config"
	"github.com/noah-isme/trip-control-api/pkg/database"
	"github.com/noah-isme/trip-control-api/pkg/jobs"
	"github.com/noah-isme/trip-control-api/pkg/lock"
	"github.com/noah-isme/trip-control-api/pkg/storage"
)

// App holds every long-lived dependency.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sqlx.DB
	Redis   *redis.Client
	Zone    *civil.Zone
	Archive *storage.LocalStorage

	Trips    *repository.TripRepository
	Users    *service.UserService
	Metrics  *service.MetricsService
	Auth     *service.AuthService
	Compare  *service.ComparisonService
	Schedule *service.ScheduleControlService
	Sync     *service.TripSyncService
	Export   *service.ExportService
	SyncJobs *jobs.Queue
}

// New connects to Postgres (and Redis when enabled) and builds the services.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	zone, err := civil.Load(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		// without Redis every read misses the cache and run locks are in-process
		logger.Warn("redis unavailable, continuing without cache", zap.Error(err))
	}

	archive, err := storage.NewLocalStorage(cfg.Sync.ArchiveDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger, DB: db, Redis: redisClient, Zone: zone, Archive: archive}
	app.wire()
	return app, nil
}

func (a *App) wire() {
	cfg := a.Config
	validate := validator.New()

	users := repository.NewUserRepository(a.DB)
	a.Users = service.NewUserService(users, a.Logger.Named("users"))
	trips := repository.NewTripRepository(a.DB)
	a.Trips = trips
	comparisons := repository.NewComparisonRepository(a.DB)
	overlays := repository.NewScheduleControlRepository(a.DB)

	a.Metrics = service.NewMetricsService()
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(a.Redis, a.Logger), a.Metrics, cfg.Reconciliation.CacheTTL, a.Logger, a.Redis != nil)

	a.Auth = service.NewAuthService(users, validate, a.Logger, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	a.Compare = service.NewComparisonService(trips, comparisons, lock.New(a.Redis), cacheSvc, a.Metrics, a.Zone, a.Logger.Named("reconciliation"), service.ComparisonConfig{
		Tolerance:    cfg.Reconciliation.Tolerance,
		Timeout:      cfg.Reconciliation.Timeout,
		LockTTL:      cfg.Reconciliation.LockTTL,
		CacheTTL:     cfg.Reconciliation.CacheTTL,
		DefaultLimit: cfg.Reconciliation.DefaultLimit,
	})
	a.Schedule = service.NewScheduleControlService(overlays, a.DB, a.Metrics, a.Zone, a.Logger.Named("schedule"), service.ScheduleControlConfig{
		DefaultLimit: cfg.Schedule.DefaultLimit,
	})
	a.Export = service.NewExportService(a.Compare, a.Zone, a.Logger.Named("export"))

	client := source.NewClient(source.ClientConfig{
		Timeout:  cfg.Sync.HTTPTimeout,
		RetryMax: cfg.Sync.Retries,
		Token:    cfg.Sync.APIToken,
	}, a.Logger)
	a.Sync = service.NewTripSyncService(trips, client, a.Archive, validate, a.Metrics, a.Zone, a.Logger.Named("sync"), service.TripSyncConfig{
		Transdata: source.Endpoint{URL: cfg.Sync.Transdata.URL, RecordsPath: cfg.Sync.Transdata.RecordsPath},
		Globus:    source.Endpoint{URL: cfg.Sync.Globus.URL, RecordsPath: cfg.Sync.Globus.RecordsPath},
	})
	a.SyncJobs = jobs.NewQueue("trip-sync", a.Sync.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Sync.Workers,
		MaxRetries: cfg.Sync.Retries,
		RetryDelay: cfg.Sync.RetryDelay,
		Logger:     a.Logger,
	})
	a.Sync.UseQueue(a.SyncJobs)
}

// Close releases connections. Stop the job queue first.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

// Routes builds the HTTP surface over the wired services.
func (a *App) Routes() handler.Routes {
	checks := map[string]handler.ReadinessCheck{
		"postgres": a.DB.PingContext,
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	return handler.Routes{
		Auth:            handler.NewAuthHandler(a.Auth),
		Comparison:      handler.NewComparisonHandler(a.Compare, a.Export),
		ScheduleControl: handler.NewScheduleControlHandler(a.Schedule),
		Trip:            handler.NewTripHandler(a.Sync),
		Metrics:         handler.NewMetricsHandler(a.Metrics, checks),
		Authenticate:    middleware.JWT(a.Auth),
		AuditLogger:     a.Logger,
	}
}
