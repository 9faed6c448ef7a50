// Package main is the entry point for the engagement worker: the autonomous
// process that runs the engagement engine's scheduled jobs (daily challenge
// distribution, weekly polls, reminders, leaderboard refresh, achievement
// sweep, cleanup) against the shared key-value store.
//
// The worker owns no user-facing surface. A bot or API layer links the
// service packages directly and the two sides meet in the store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/engagehub/engagement-core/config"
	"github.com/engagehub/engagement-core/internal/domain/shared"
	"github.com/engagehub/engagement-core/internal/infrastructure/messaging"
	"github.com/engagehub/engagement-core/internal/infrastructure/persistence/memory"
	"github.com/engagehub/engagement-core/internal/infrastructure/persistence/postgres"
	"github.com/engagehub/engagement-core/internal/infrastructure/persistence/redis"
	"github.com/engagehub/engagement-core/internal/infrastructure/scheduler"
	"github.com/engagehub/engagement-core/internal/infrastructure/scheduler/jobs"
	"github.com/engagehub/engagement-core/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting engagement worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
	)

	// Store and lock: Redis in real deployments, in-memory for local
	// development without one.
	var (
		store  shared.KeyValueStore
		locker shared.Locker
	)
	if cfg.Redis.Disabled {
		log.Warn("redis disabled, using in-memory store; state is process-local")
		mem := memory.NewStore()
		store = mem
		locker = memory.NewLock(mem)
	} else {
		rcfg := redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   3,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}
		rstore, err := redis.NewStore(rcfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			log.Info("closing redis connection")
			_ = rstore.Close()
		}()
		if err := rstore.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		log.Info("redis connection established", "addr", rcfg.Addr())
		store = rstore
		locker = redis.NewLock(rstore)
	}

	// Event bus. The notification collaborator subscribes here; the worker
	// itself only logs what it emits.
	busCfg := messaging.DefaultConfig()
	busCfg.Logger = log
	busCfg.AsyncMode = true
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("draining event bus")
		_ = bus.Close()
	}()
	logOutboundEvents(bus, log)

	// Durable transaction archive (optional).
	var archive service.Archiver
	var pruner jobs.ArchivePruner
	if cfg.Postgres.Enabled {
		pcfg := postgres.Config{
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			Database:        cfg.Postgres.Database,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxConns:        int32(cfg.Postgres.MaxConns),
			MinConns:        int32(cfg.Postgres.MinConns),
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
			ConnectTimeout:  cfg.Postgres.ConnectTimeout,
		}
		conn, err := postgres.NewConnection(ctx, pcfg)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer func() {
			log.Info("closing postgres connection")
			conn.Close()
		}()

		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("postgres archive ready")

		ledgerArchive := postgres.NewLedgerArchive(conn)
		archive = ledgerArchive
		pruner = ledgerArchive
	}

	eng := service.NewEngine(store, bus, archive, log)

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled, worker idles until shutdown")
		<-ctx.Done()
		return nil
	}

	sched, err := scheduler.New(scheduler.Config{
		Logger:  log,
		Locker:  locker,
		LockTTL: cfg.Scheduler.LockTTL,
	})
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	opts := jobs.Options{
		InactivityThreshold: cfg.Scheduler.InactivityThreshold,
		ArchiveRetention:    cfg.Scheduler.ArchiveRetention,
		Pruner:              pruner,
	}
	if err := jobs.RegisterAll(sched, eng, opts, log); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.Info("scheduler running", "jobs", len(sched.ListJobs()))

	<-ctx.Done()
	log.Info("shutdown signal received")

	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop", "error", err)
	}
	log.Info("engagement worker stopped")
	return nil
}

// logOutboundEvents mirrors every emitted event into the log so operators
// can trace the autonomous activity even with no notification layer wired.
func logOutboundEvents(bus *messaging.InMemoryEventBus, log *slog.Logger) {
	_ = bus.SubscribeAll(func(ctx context.Context, event shared.Event) error {
		log.Info("event emitted",
			"type", event.EventType(),
			"aggregate_id", event.AggregateID(),
		)
		return nil
	})
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(
		"app", cfg.App.Name,
		"version", cfg.App.Version,
	)
	slog.SetDefault(logger)
	return logger
}
