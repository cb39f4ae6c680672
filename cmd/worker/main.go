// Package main - точка входа для фоновых процессов (Worker) UPGRD Progression Engine.
//
// Worker отвечает за периодические задачи:
// - Полный пересчёт лидерборда и дельт рангов
//
// Пересчёт идёт пакетами по батчу пользователей, поэтому Worker
// безопасно запускать рядом с API-сервером: общие данные живут
// в PostgreSQL и Redis.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/upgrd-hub/progression-engine/config"
	"github.com/upgrd-hub/progression-engine/internal/infrastructure/messaging"
	"github.com/upgrd-hub/progression-engine/internal/infrastructure/persistence/postgres"
	"github.com/upgrd-hub/progression-engine/internal/infrastructure/persistence/redis"
	"github.com/upgrd-hub/progression-engine/internal/infrastructure/scheduler"
	"github.com/upgrd-hub/progression-engine/internal/infrastructure/scheduler/jobs"
	"github.com/upgrd-hub/progression-engine/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	})
	log.Info("starting UPGRD Progression Engine Worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("timezone", cfg.App.Timezone))

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler is disabled, nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	// Worker также должен иметь актуальную схему.
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПОДКЛЮЧЕНИЕ К REDIS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis...")
	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns

	redisCache, err := redis.NewCache(redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisCache.Close()

	leaderboardCache := redis.NewLeaderboardCache(redisCache)
	log.Info("Redis connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	eventBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:     redis.NewPubSubAdapter(redisCache),
		InstanceID: uuid.NewString(),
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПЛАНИРОВЩИК И ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	progressRepo := postgres.NewProgressRepository(dbConn)

	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	schedCfg.Timezone = cfg.App.Location
	sched := scheduler.NewScheduler(schedCfg)

	if cfg.Features.IsEnabled(config.FeatureLeaderboardRebuildJob, nil) {
		rebuildJob := jobs.NewRebuildLeaderboardJob(
			progressRepo,
			leaderboardCache,
			eventBus,
			jobs.RebuildLeaderboardConfig{
				Timeout:   cfg.Scheduler.JobTimeout,
				BatchSize: cfg.Scheduler.RebuildBatchSize,
			},
			log,
		)

		var schedule scheduler.Schedule = scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval)
		if cfg.Scheduler.RebuildLeaderboardCron != "" {
			cronExpr, err := scheduler.ParseCronExpression(cfg.Scheduler.RebuildLeaderboardCron)
			if err != nil {
				return fmt.Errorf("invalid rebuild cron expression: %w", err)
			}
			schedule = cronExpr
		}

		if err := sched.Register(rebuildJob, schedule); err != nil {
			return fmt.Errorf("failed to register rebuild job: %w", err)
		}
	} else {
		log.Warn("leaderboard rebuild job is disabled by feature flag")
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("worker is running",
		logger.Duration("rebuild_interval", cfg.Scheduler.RebuildLeaderboardInterval))

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("received shutdown signal", logger.String("signal", sig.String()))

	if err := sched.Stop(); err != nil {
		return fmt.Errorf("scheduler stop failed: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}
