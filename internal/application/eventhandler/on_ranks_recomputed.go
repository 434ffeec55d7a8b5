// Package eventhandler содержит обработчики доменных событий.
// Обработчики — "реактивная" часть системы: они подписываются на
// шину событий и запускают побочные эффекты (инвалидация кешей,
// журнал аудита), не участвуя в транзакции начисления XP.
package eventhandler

import (
	"context"
	"log/slog"

	"github.com/tradequest/tradequest-core/internal/domain/leaderboard"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON RANKS RECOMPUTED HANDLER
// Реагирует на публикацию нового снапшота лидерборда.
//
// Закэшированные страницы ссылаются на предыдущий снапшот, поэтому
// после публикации их нужно сбросить. Читатели переключаются на
// новую версию атомарно: до сброса кеша они видят старый снапшот
// целиком, после — новый.
// ═══════════════════════════════════════════════════════════════════════════

// OnRanksRecomputedHandler сбрасывает кеш страниц лидерборда после
// публикации нового снапшота.
type OnRanksRecomputedHandler struct {
	cache  leaderboard.CacheRepository
	logger *slog.Logger
}

// NewOnRanksRecomputedHandler создаёт обработчик. Кеш обязателен:
// без кеша подписываться не на что.
func NewOnRanksRecomputedHandler(cache leaderboard.CacheRepository, logger *slog.Logger) *OnRanksRecomputedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnRanksRecomputedHandler{
		cache:  cache,
		logger: logger.With("handler", "on_ranks_recomputed"),
	}
}

// Handle реализует интерфейс shared.EventHandler.
func (h *OnRanksRecomputedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	snapEvent, ok := event.(shared.RanksRecomputedEvent)
	if !ok {
		h.logger.Warn("received unexpected event",
			"event_type", event.EventType(),
		)
		return nil
	}

	if err := h.cache.InvalidateAll(ctx); err != nil {
		// Кеш со временем истечёт сам по TTL, поэтому ошибка
		// инвалидации не фатальна.
		h.logger.Warn("failed to invalidate leaderboard cache",
			"snapshot_id", snapEvent.SnapshotID,
			"error", err,
		)
		return nil
	}

	h.logger.Info("leaderboard cache invalidated",
		"snapshot_id", snapEvent.SnapshotID,
		"total_entries", snapEvent.TotalEntries,
	)

	return nil
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnRanksRecomputedHandler) EventType() shared.EventType {
	return shared.EventRanksRecomputed
}
