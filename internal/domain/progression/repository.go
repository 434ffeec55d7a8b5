package progression

import (
	"context"
	"time"

	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с журналом событий.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Ledger определяет операции над append-only журналом XP-событий.
type Ledger interface {
	// Append добавляет событие в журнал. События неизменяемы:
	// операций Update/Delete у журнала нет.
	Append(ctx context.Context, event *Event) error

	// GetByID возвращает событие по идентификатору.
	// Возвращает shared.ErrEventNotFound, если событие не найдено.
	GetByID(ctx context.Context, id EventID) (*Event, error)

	// ListByUser возвращает события пользователя в порядке записи
	// (от старых к новым).
	ListByUser(ctx context.Context, userID shared.UserID, page shared.Page) ([]*Event, error)

	// CountBySource возвращает количество событий пользователя по источникам.
	// Используется вычислителем достижений (критерии вида
	// "count(source=X) >= M").
	CountBySource(ctx context.Context, userID shared.UserID) (map[Source]int, error)

	// SumAmount возвращает суммарный XP пользователя по журналу.
	// Используется аудитом консистентности: сумма журнала обязана
	// совпадать с Profile.TotalXP.
	SumAmount(ctx context.Context, userID shared.UserID) (int64, error)

	// HasEventOnDay возвращает true, если у пользователя уже есть событие
	// указанного источника за календарные сутки UTC. Дедупликация daily_login.
	HasEventOnDay(ctx context.Context, userID shared.UserID, source Source, day time.Time) (bool, error)
}
