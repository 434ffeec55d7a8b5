package lesson

import (
	"context"

	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// Catalog - порт доступа к учебному каталогу.
type Catalog interface {
	// GetByOrdinal возвращает урок по номеру.
	GetByOrdinal(ctx context.Context, ordinal Ordinal) (*Lesson, error)

	// ListAll возвращает весь каталог по возрастанию номера.
	ListAll(ctx context.Context) ([]*Lesson, error)

	// ListByModule возвращает уроки модуля по возрастанию номера.
	ListByModule(ctx context.Context, module ModuleNumber) ([]*Lesson, error)
}

// ProgressRepository - порт доступа к прогрессу пользователей.
type ProgressRepository interface {
	// Get возвращает прогресс пары (user, lesson).
	Get(ctx context.Context, userID shared.UserID, ordinal Ordinal) (*Progress, error)

	// Upsert создаёт или обновляет прогресс.
	Upsert(ctx context.Context, progress *Progress) error

	// ListByUser возвращает весь прогресс пользователя.
	ListByUser(ctx context.Context, userID shared.UserID) ([]*Progress, error)

	// CompletedOrdinals возвращает множество завершённых уроков.
	CompletedOrdinals(ctx context.Context, userID shared.UserID) (map[Ordinal]bool, error)
}
