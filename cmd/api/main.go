// Package main - точка входа для REST API TradeQuest Core.
//
// API процесс принимает все команды записи (создание профиля,
// начисление XP, попытки квизов) и запросы чтения (профиль,
// лидерборд, достижения, рекомендации уроков). Пересчёт рангов
// выполняет отдельный worker процесс.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tradequest/tradequest-core/config"
	"github.com/tradequest/tradequest-core/internal/application/command"
	"github.com/tradequest/tradequest-core/internal/application/eventhandler"
	"github.com/tradequest/tradequest-core/internal/application/query"
	"github.com/tradequest/tradequest-core/internal/domain/achievement"
	"github.com/tradequest/tradequest-core/internal/domain/leaderboard"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
	domaintrading "github.com/tradequest/tradequest-core/internal/domain/trading"
	"github.com/tradequest/tradequest-core/internal/infrastructure/external/trading"
	"github.com/tradequest/tradequest-core/internal/infrastructure/messaging"
	"github.com/tradequest/tradequest-core/internal/infrastructure/persistence/postgres"
	"github.com/tradequest/tradequest-core/internal/infrastructure/persistence/redis"
	httpserver "github.com/tradequest/tradequest-core/internal/interface/http"
	"github.com/tradequest/tradequest-core/internal/interface/http/handlers"
	"github.com/tradequest/tradequest-core/pkg/logger"
	"github.com/tradequest/tradequest-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

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
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting TradeQuest Core API",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"version", cfg.App.Version,
	)

	// Отдельный логгер для HTTP слоя (свой формат полей)
	httpLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

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

	// База может подниматься параллельно с сервисом, поэтому
	// первый пинг идёт с ретраями.
	if err := retry.DatabaseRetrier().Do(ctx, dbConn.Ping); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.MigrateOnStart {
		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var leaderboardCache leaderboard.CacheRepository

	if !cfg.Redis.Disabled {
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

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			leaderboardCache = redis.NewLeaderboardCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ И UNIT OF WORK
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	profileRepo := postgres.NewProfileRepository(dbConn)
	userRepo := postgres.NewUserRepository(dbConn)
	achievementRepo := postgres.NewAchievementRepository(dbConn)
	lessonRepo := postgres.NewLessonRepository(dbConn)
	leaderboardRepo := postgres.NewLeaderboardRepository(dbConn)
	uow := postgres.NewUnitOfWork(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBusConfig.AsyncMode = true

	var eventBus eventBusCloser
	if redisCache != nil && cfg.Features.IsEnabled(config.FeatureExperimentalRedisEvents, nil) {
		// Кросс-инстансная шина: worker публикует событие о новом
		// снапшоте, API процесс сбрасывает свои кеши.
		redisBus, busErr := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisCache.Client(),
			LocalBusConfig: eventBusConfig,
			Logger:         log,
		})
		if busErr != nil {
			return fmt.Errorf("failed to create redis event bus: %w", busErr)
		}
		eventBus = redisBus
	} else {
		eventBus = messaging.NewInMemoryEventBus(eventBusConfig)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// Подписчики шины событий
	if leaderboardCache != nil {
		onRecomputed := eventhandler.NewOnRanksRecomputedHandler(leaderboardCache, log)
		if err := eventBus.Subscribe(onRecomputed.EventType(), onRecomputed.Handle); err != nil {
			return fmt.Errorf("failed to subscribe ranks recomputed handler: %w", err)
		}
	}

	if cfg.App.Debug {
		auditLog := eventhandler.NewEventAuditLogger(log)
		if err := eventBus.SubscribeAll(auditLog.Handle); err != nil {
			return fmt.Errorf("failed to subscribe event audit logger: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ВНЕШНИЙ КЛИЕНТ ТОРГОВОЙ ПЛАТФОРМЫ (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var statsProvider domaintrading.StatsProvider
	var tradingClient *trading.Client

	if !cfg.Trading.Disabled && cfg.Features.TradingIntegrationEnabled(nil) {
		log.Info("initializing trading stats client...", "base_url", cfg.Trading.BaseURL)
		tradingClient = trading.NewClient(trading.ClientConfig{
			BaseURL:            cfg.Trading.BaseURL,
			APIKey:             cfg.Trading.APIKey,
			Timeout:            cfg.Trading.RequestTimeout,
			MaxRetries:         cfg.Trading.MaxRetries,
			RetryBaseDelay:     cfg.Trading.RetryBaseDelay,
			RetryMaxDelay:      cfg.Trading.RetryMaxDelay,
			BreakerThreshold:   cfg.Trading.CircuitBreakerThreshold,
			BreakerTimeout:     cfg.Trading.CircuitBreakerTimeout,
			BreakerHalfOpenMax: cfg.Trading.CircuitBreakerHalfOpenMax,
			Logger:             log,
		})
		statsProvider = tradingClient
	} else {
		// Без провайдера: trade_profit события просто не обогащаются
		// критериями по торговой статистике.
		log.Info("trading integration disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. СБОРКА КОМАНД И ЗАПРОСОВ (CQRS)
	// ─────────────────────────────────────────────────────────────────────────
	evaluator := achievement.NewEvaluator(log)

	createProfile := command.NewCreateProfileHandler(profileRepo, userRepo)
	changeCharacter := command.NewChangeCharacterHandler(uow, leaderboardRepo, eventBus)
	grantXP := command.NewGrantXPHandler(uow, achievementRepo, evaluator, statsProvider, leaderboardRepo, eventBus)
	recordQuiz := command.NewRecordQuizAttemptHandler(uow, lessonRepo, grantXP, eventBus, command.RecordQuizAttemptConfig{
		QuizPassXP:       cfg.Progression.QuizPassXP,
		ModuleCompleteXP: cfg.Progression.ModuleCompleteXP,
	})

	getProfile := query.NewGetProfileHandler(profileRepo, leaderboardRepo)
	getLeaderboard := query.NewGetLeaderboardHandler(leaderboardRepo, leaderboardCache)
	getAchievements := query.NewGetAchievementsHandler(achievementRepo, achievementRepo)
	getRecommended := query.NewGetRecommendedLessonsHandler(lessonRepo, lessonRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("postgres", handlers.NewDatabaseCheck(dbConn))
	if redisCache != nil {
		healthChecker.AddCheck("redis", handlers.NewCacheCheck(redisCache))
	}
	if tradingClient != nil {
		healthChecker.AddCheck("trading_api", handlers.NewTradingCheck(tradingClient))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ЗАПУСК HTTP СЕРВЕРА
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverCfg.APIKeyHeader = cfg.HTTP.APIKeyHeader
	serverCfg.APIKeys = cfg.HTTP.APIKeys

	server := httpserver.NewServer(serverCfg, httpserver.Dependencies{
		CreateProfileHandler:         createProfile,
		ChangeCharacterHandler:       changeCharacter,
		GrantXPHandler:               grantXP,
		RecordQuizAttemptHandler:     recordQuiz,
		GetProfileHandler:            getProfile,
		GetLeaderboardHandler:        getLeaderboard,
		GetAchievementsHandler:       getAchievements,
		GetRecommendedLessonsHandler: getRecommended,
		Logger:                       httpLog,
		HealthChecker:                healthChecker,
	})

	log.Info("starting HTTP server", "address", server.Address())
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	if cfg.IsProduction() || cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// eventBusCloser объединяет шину доменных событий и её закрытие.
// Ему удовлетворяют и in-memory, и Redis-реализации.
type eventBusCloser interface {
	shared.EventBus
	Close() error
}
