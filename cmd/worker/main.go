// Package main - точка входа для фоновых процессов (Worker) TradeQuest Core.
//
// Worker отвечает за периодические задачи:
// - Пересчёт лидерборда и публикация снапшотов
// - Аудит консистентности ledger vs профили
// - Валидация каталога уроков (DAG пререквизитов)
//
// Worker не принимает HTTP-запросов: вся запись XP идёт через API
// процесс, здесь только чтение и публикация снапшотов.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tradequest/tradequest-core/config"
	"github.com/tradequest/tradequest-core/internal/application/eventhandler"
	"github.com/tradequest/tradequest-core/internal/domain/leaderboard"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
	"github.com/tradequest/tradequest-core/internal/infrastructure/messaging"
	"github.com/tradequest/tradequest-core/internal/infrastructure/persistence/postgres"
	"github.com/tradequest/tradequest-core/internal/infrastructure/persistence/redis"
	"github.com/tradequest/tradequest-core/internal/infrastructure/scheduler"
	"github.com/tradequest/tradequest-core/internal/infrastructure/scheduler/jobs"
	"github.com/tradequest/tradequest-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Создаём корневой контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запускаем приложение
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
	log.Info("starting TradeQuest Core Worker",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"version", cfg.App.Version,
	)

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

	// Проверяем соединение (с ретраями: база может подниматься
	// параллельно с воркером)
	if err := retry.DatabaseRetrier().Do(ctx, dbConn.Ping); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ (Worker также должен иметь актуальную схему)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.MigrateOnStart {
		log.Info("checking database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var leaderboardCache *redis.LeaderboardCache

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
			// Воркер живёт и без кеша: страницы лидерборда просто
			// будут читаться из Postgres.
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			leaderboardCache = redis.NewLeaderboardCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	profileRepo := postgres.NewProfileRepository(dbConn)
	ledgerRepo := postgres.NewLedgerRepository(dbConn)
	leaderboardRepo := postgres.NewLeaderboardRepository(dbConn)
	leaderboardRepo.SetSnapshotRetention(cfg.Progression.SnapshotRetention)
	achievementRepo := postgres.NewAchievementRepository(dbConn)
	lessonRepo := postgres.NewLessonRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBusConfig.AsyncMode = true

	var eventBus eventPublisher
	if redisCache != nil && cfg.Features.IsEnabled(config.FeatureExperimentalRedisEvents, nil) {
		// Кросс-инстансная доставка: API процесс увидит событие
		// о новом снапшоте и сбросит свои локальные кеши.
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

	// Подписчики: аудит консистентности публикует расхождения в шину,
	// здесь они попадают в лог для расследования.
	auditMismatch := eventhandler.NewOnAuditMismatchHandler(log)
	if err := eventBus.Subscribe(auditMismatch.EventType(), auditMismatch.Handle); err != nil {
		return fmt.Errorf("failed to subscribe audit mismatch handler: %w", err)
	}

	if cfg.App.Debug {
		auditLog := eventhandler.NewEventAuditLogger(log)
		if err := eventBus.SubscribeAll(auditLog.Handle); err != nil {
			return fmt.Errorf("failed to subscribe event audit logger: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ SCHEDULER И ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing scheduler...")
	sched := scheduler.NewScheduler(log)
	sched.SetJobTimeout(cfg.Scheduler.JobTimeout)

	// Типизированный nil в интерфейсе не равен nil, поэтому
	// присваиваем кеш только когда он реально создан.
	var cache leaderboard.CacheRepository
	if leaderboardCache != nil {
		cache = leaderboardCache
	}

	recomputeJob := jobs.NewRecomputeRanksJob(profileRepo, leaderboardRepo, achievementRepo, cache, eventBus, log)
	if err := sched.Register(recomputeJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RecomputeRanksInterval)); err != nil {
		return fmt.Errorf("failed to register recompute job: %w", err)
	}

	auditJob := jobs.NewAuditConsistencyJob(profileRepo, ledgerRepo, eventBus, log)
	if err := sched.Register(auditJob, scheduler.NewIntervalSchedule(cfg.Scheduler.AuditInterval)); err != nil {
		return fmt.Errorf("failed to register audit job: %w", err)
	}

	catalogJob := jobs.NewValidateCatalogJob(lessonRepo, eventBus, log)
	if err := sched.Register(catalogJob, scheduler.NewDailySchedule(cfg.Scheduler.CatalogCheckHour, cfg.Scheduler.CatalogCheckMinute)); err != nil {
		return fmt.Errorf("failed to register catalog job: %w", err)
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		log.Info("scheduler started",
			"recompute_interval", cfg.Scheduler.RecomputeRanksInterval.String(),
			"audit_interval", cfg.Scheduler.AuditInterval.String(),
		)
	} else {
		log.Warn("scheduler is disabled by configuration")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("TradeQuest Core Worker is running")

	// Ожидаем сигнал завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	// Начинаем graceful shutdown
	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	if cfg.Scheduler.Enabled {
		if err := sched.Stop(); err != nil {
			log.Warn("scheduler stop failed", "error", err)
		}
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
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// eventPublisher объединяет шину доменных событий и её закрытие.
// Ему удовлетворяют и in-memory, и Redis-реализации.
type eventPublisher interface {
	shared.EventBus
	Close() error
}
