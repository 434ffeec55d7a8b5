package achievement

import (
	"context"

	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// Catalog - порт доступа к каталогу достижений.
type Catalog interface {
	// GetByID возвращает достижение по идентификатору.
	GetByID(ctx context.Context, id string) (*Achievement, error)

	// GetByCode возвращает достижение по коду.
	GetByCode(ctx context.Context, code string) (*Achievement, error)

	// ListAll возвращает весь каталог.
	ListAll(ctx context.Context) ([]*Achievement, error)

	// ListByCategory возвращает достижения категории.
	ListByCategory(ctx context.Context, category Category) ([]*Achievement, error)
}

// UserAchievementRepository - порт доступа к прогрессу пользователей.
type UserAchievementRepository interface {
	// Get возвращает запись прогресса пары (user, achievement).
	Get(ctx context.Context, userID shared.UserID, achievementID string) (*UserAchievement, error)

	// Upsert создаёт или обновляет запись прогресса.
	Upsert(ctx context.Context, ua *UserAchievement) error

	// ListByUser возвращает все записи прогресса пользователя.
	ListByUser(ctx context.Context, userID shared.UserID) ([]*UserAchievement, error)

	// CompletedIDs возвращает множество разблокированных достижений.
	CompletedIDs(ctx context.Context, userID shared.UserID) (map[string]bool, error)

	// CountCompleted возвращает число разблокированных достижений.
	CountCompleted(ctx context.Context, userID shared.UserID) (int, error)

	// CompletedCounts возвращает число разблокированных достижений
	// всех пользователей одним запросом (для пересчёта рейтинга).
	CompletedCounts(ctx context.Context) (map[shared.UserID]int, error)
}
