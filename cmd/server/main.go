// Package main - точка входа для API-сервера UPGRD Progression Engine.
//
// Сервер обслуживает REST API прогрессии:
// - Регистрация пользователей и учёт логин-стриков
// - Оценка сетапов и тиры
// - Ежедневные и еженедельные миссии (с проверкой пруфов)
// - Достижения и лидерборд
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
	"github.com/upgrd-hub/progression-engine/internal/application/command"
	"github.com/upgrd-hub/progression-engine/internal/application/eventhandler"
	"github.com/upgrd-hub/progression-engine/internal/application/query"
	"github.com/upgrd-hub/progression-engine/internal/application/saga"
	"github.com/upgrd-hub/progression-engine/internal/domain/achievement"
	"github.com/upgrd-hub/progression-engine/internal/domain/mission"
	"github.com/upgrd-hub/progression-engine/internal/domain/shared"
	"github.com/upgrd-hub/progression-engine/internal/infrastructure/external/verifier"
	"github.com/upgrd-hub/progression-engine/internal/infrastructure/messaging"
	"github.com/upgrd-hub/progression-engine/internal/infrastructure/persistence/postgres"
	"github.com/upgrd-hub/progression-engine/internal/infrastructure/persistence/projections"
	"github.com/upgrd-hub/progression-engine/internal/infrastructure/persistence/redis"
	"github.com/upgrd-hub/progression-engine/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/upgrd-hub/progression-engine/internal/interface/http"
	"github.com/upgrd-hub/progression-engine/internal/interface/http/handlers"
	"github.com/upgrd-hub/progression-engine/pkg/keyedmutex"
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
	log.Info("starting UPGRD Progression Engine API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone))

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
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	redisCache, err := redis.NewCache(redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisCache.Close()

	leaderboardCache := redis.NewLeaderboardCache(redisCache)

	var progressCards *projections.ProgressCardStore
	if cfg.Features.IsEnabled(config.FeatureProgressCards, nil) {
		progressCards = projections.NewProgressCardStore(redisCache)
	}
	log.Info("Redis connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS И ДИСПЕТЧЕР СОБЫТИЙ
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

	dispatcherCfg := messaging.DefaultDispatcherConfig(eventBus)
	dispatcherCfg.Logger = log
	dispatcher := messaging.NewDispatcher(dispatcherCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. РЕПОЗИТОРИИ, КАТАЛОГИ И СЕРВИСЫ ДОМЕНА
	// ─────────────────────────────────────────────────────────────────────────
	progressRepo := postgres.NewProgressRepository(dbConn)
	completionRepo := postgres.NewCompletionRepository(dbConn)
	proofRepo := postgres.NewProofRepository(dbConn)
	setupRepo := postgres.NewSetupRepository(dbConn)

	missionCatalog := mission.NewCatalog()
	achievementCatalog := achievement.NewCatalog()

	locks := keyedmutex.New()

	verifierCfg := verifier.DefaultClientConfig(cfg.Verifier.BaseURL)
	verifierCfg.APIKey = cfg.Verifier.APIKey
	verifierCfg.Model = cfg.Verifier.Model
	verifierCfg.Timeout = cfg.Verifier.RequestTimeout
	verifierCfg.Logger = log
	proofVerifier := verifier.NewClient(verifierCfg)

	achievementFlow := saga.NewAchievementFlow(
		progressRepo,
		completionRepo,
		setupRepo,
		achievementCatalog,
		eventBus,
		log,
		saga.DefaultAchievementFlowConfig(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. CQRS: КОМАНДЫ И ЗАПРОСЫ
	// ─────────────────────────────────────────────────────────────────────────
	registerUser := command.NewRegisterUserHandler(progressRepo, eventBus, locks)
	recordLogin := command.NewRecordLoginHandler(progressRepo, achievementFlow, eventBus, locks)
	saveSetup := command.NewSaveSetupHandler(
		progressRepo, setupRepo, achievementFlow, leaderboardCache, eventBus, locks, log)
	completeMission := command.NewCompleteMissionHandler(
		progressRepo, completionRepo, missionCatalog, achievementFlow,
		leaderboardCache, eventBus, locks, log)
	submitProof := command.NewSubmitProofHandler(
		progressRepo, completionRepo, proofRepo, missionCatalog, proofVerifier,
		achievementFlow, leaderboardCache, eventBus, locks, log)

	getProgress := query.NewGetProgressHandler(progressRepo, registerUser, leaderboardCache)
	getLeaderboard := query.NewGetLeaderboardHandler(leaderboardCache)
	listMissions := query.NewListMissionsHandler(missionCatalog, completionRepo, proofRepo)
	listAchievements := query.NewListAchievementsHandler(achievementCatalog, progressRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ОБРАБОТЧИКИ СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	onXPGained := eventhandler.NewOnXPGainedHandler(progressRepo, leaderboardCache, eventBus, log)
	if err := dispatcher.RegisterHandler(shared.EventXPGained, messaging.HandlerRegistration{
		Name:    "on_xp_gained",
		Handler: onXPGained.Handle,
		Async:   true,
	}); err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}

	if progressCards != nil {
		projector := projections.NewProgressCardProjector(progressCards, log)
		for _, eventType := range []shared.EventType{
			shared.EventXPGained,
			shared.EventLevelUp,
			shared.EventLoginRecorded,
			shared.EventStreakBroken,
			shared.EventSetupScored,
			shared.EventTierChanged,
			shared.EventMissionCompleted,
			shared.EventAchievementUnlocked,
			shared.EventRankChanged,
		} {
			if err := dispatcher.RegisterHandler(eventType, messaging.HandlerRegistration{
				Name:    "progress_card_projector",
				Handler: projector.HandleEvent,
				Async:   true,
			}); err != nil {
				return fmt.Errorf("failed to register projector: %w", err)
			}
		}
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	defer func() {
		log.Info("stopping event dispatcher...")
		_ = dispatcher.Stop()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	healthChecker.AddCheck("redis", handlers.NewCacheCheck(redisCache))

	rebuildJob := jobs.NewRebuildLeaderboardJob(
		progressRepo,
		leaderboardCache,
		eventBus,
		jobs.RebuildLeaderboardConfig{BatchSize: cfg.Scheduler.RebuildBatchSize},
		log,
	)

	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.AdminKeyHashes = cfg.HTTP.AdminKeyHashes

	server, err := httpapi.NewServer(serverCfg, httpapi.Dependencies{
		RegisterUserHandler:     registerUser,
		RecordLoginHandler:      recordLogin,
		SaveSetupHandler:        saveSetup,
		CompleteMissionHandler:  completeMission,
		SubmitProofHandler:      submitProof,
		GetProgressHandler:      getProgress,
		GetLeaderboardHandler:   getLeaderboard,
		ListMissionsHandler:     listMissions,
		ListAchievementsHandler: listAchievements,
		ProgressCards:           progressCards,
		Rebuilder:               rebuildJob,
		Logger:                  log,
		HealthChecker:           healthChecker,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	serverErr := server.StartAsync()
	log.Info("HTTP server started", logger.String("address", serverCfg.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		log.Warn("http server stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}
