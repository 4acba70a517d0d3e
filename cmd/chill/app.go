package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/meetme/progression-engine/config"
	"github.com/meetme/progression-engine/internal/application/engine"
	"github.com/meetme/progression-engine/internal/domain/blob"
	"github.com/meetme/progression-engine/internal/domain/shared"
	"github.com/meetme/progression-engine/internal/infrastructure/messaging"
	"github.com/meetme/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/meetme/progression-engine/internal/infrastructure/persistence/postgres"
	redisstore "github.com/meetme/progression-engine/internal/infrastructure/persistence/redis"
	"github.com/meetme/progression-engine/internal/infrastructure/persistence/sqlite"
	"github.com/meetme/progression-engine/pkg/logger"
	"github.com/meetme/progression-engine/pkg/retry"
	"github.com/meetme/progression-engine/pkg/timeutil"
)

// app is one wired engine with everything it needs released on Close.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	clock   timeutil.Clock
	engine  *engine.Engine
	bus     *messaging.Bus
	archive *postgres.WeekArchive

	closers []func() error
}

// appOpener builds an app for one command run.
type appOpener func(ctx context.Context) (*app, error)

// openFromEnv loads configuration from the environment and wires the app.
func openFromEnv(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level, _ := cfg.Observability.SlogLevel()
	log := logger.New(logger.Options{
		Level:  level,
		Format: logger.Format(cfg.Observability.Format),
		Attrs:  []slog.Attr{slog.String("app", cfg.App.Name)},
	})
	slog.SetDefault(log)

	return openApp(ctx, cfg, log, timeutil.NewSystemClock(cfg.App.Location), nil)
}

// openApp wires store, event bus, sinks and engine. A non-nil store
// overrides the configured backend.
func openApp(ctx context.Context, cfg *config.Config, log *slog.Logger, clock timeutil.Clock, store blob.Store) (_ *app, err error) {
	a := &app{cfg: cfg, log: log, clock: clock}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	var redisClient *goredis.Client
	if store == nil {
		store, redisClient, err = a.openStore(ctx)
		if err != nil {
			return nil, err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	a.bus = messaging.NewBus(messaging.BusConfig{
		AsyncMode: cfg.Events.Async,
		QueueSize: cfg.Events.QueueSize,
		Logger:    log,
	})
	if cfg.IsDevelopment() {
		a.bus.Use(messaging.LoggingMiddleware(log))
	}

	logSink := messaging.NewLogSink(log, slog.LevelInfo)
	if err := a.bus.SubscribeAll(func(event shared.Event) error {
		logSink.Notify(event)
		return nil
	}); err != nil {
		return nil, err
	}

	if cfg.Redis.PublishEvents {
		if redisClient == nil {
			redisClient, err = a.dialRedis(ctx)
			if err != nil {
				return nil, err
			}
		}
		pub, err := messaging.NewRedisPublisher(messaging.RedisPublisherConfig{
			Client:  redisClient,
			Channel: cfg.Redis.Channel,
			Logger:  log,
		})
		if err != nil {
			return nil, err
		}
		if err := a.bus.SubscribeAll(pub.Handle); err != nil {
			return nil, err
		}
		log.Info("publishing events to redis", "channel", pub.Channel())
	}

	if a.archive != nil {
		if err := a.bus.Subscribe(shared.EventWeekRolledOver, a.archive.Handle); err != nil {
			return nil, err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// ENGINE
	// ─────────────────────────────────────────────────────────────────────────
	a.engine, err = engine.Open(ctx, engine.Deps{
		Store:  store,
		Sink:   a.bus,
		Clock:  clock,
		Logger: log,
	}, engine.Config{
		PointsPerMinute:   cfg.Engine.PointsPerMinute,
		PrivateMultiplier: cfg.Engine.PrivateMultiplier,
		ProfileName:       cfg.Engine.ProfileName,
		SeedDefaultRoster: cfg.Engine.SeedDefaultRoster,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) (blob.Store, *goredis.Client, error) {
	cfg := a.cfg
	log := a.log.With(logger.Backend(cfg.Storage.Backend))

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		log.Warn("memory backend keeps nothing between runs")
		return memory.NewStore(), nil, nil

	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, s.Close)
		log.Debug("sqlite store opened", "path", cfg.Storage.SQLitePath)
		return s, nil, nil

	case config.BackendRedis:
		client, err := a.dialRedis(ctx)
		if err != nil {
			return nil, nil, err
		}
		prefix := redisstore.DefaultPrefix + cfg.Storage.Namespace + ":"
		return redisstore.NewStore(client, prefix), client, nil

	case config.BackendPostgres:
		conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
			return postgres.NewConnection(ctx, cfg.Database.URL, postgres.PoolConfig{
				MaxConns:        cfg.Database.MaxConns,
				MinConns:        cfg.Database.MinConns,
				MaxConnLifetime: cfg.Database.ConnMaxLifetime,
				MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
			})
		}, retry.WithOnRetry(a.logRetry("postgres")))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, func() error { conn.Close(); return nil })

		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if cfg.Database.ArchiveWeeks {
			a.archive = postgres.NewWeekArchive(conn, cfg.Storage.Namespace)
		}
		return postgres.NewBlobStore(conn, cfg.Storage.Namespace), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func (a *app) dialRedis(ctx context.Context) (*goredis.Client, error) {
	rc := redisstore.DefaultConfig()
	rc.Addr = a.cfg.Redis.Addr
	rc.Password = a.cfg.Redis.Password
	rc.DB = a.cfg.Redis.DB
	rc.PoolSize = a.cfg.Redis.PoolSize
	rc.DialTimeout = a.cfg.Redis.DialTimeout
	rc.ReadTimeout = a.cfg.Redis.ReadTimeout
	rc.WriteTimeout = a.cfg.Redis.WriteTimeout

	client, err := retry.DoWithData(ctx, func(ctx context.Context) (*goredis.Client, error) {
		return redisstore.NewClient(ctx, rc)
	}, retry.WithOnRetry(a.logRetry("redis")))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *app) logRetry(target string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		a.log.Warn("connection failed, retrying", "target", target, "attempt", attempt, "delay", delay, "error", err)
	}
}

// Close drains the bus before closing the stores its handlers write to.
func (a *app) Close() error {
	var errs []error
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
