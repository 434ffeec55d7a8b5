package leaderboard

import (
	"context"

	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// Repository - порт хранения рейтинга.
// SaveSnapshot заменяет опубликованное состояние атомарно: читатели
// никогда не видят частично записанный пересчёт.
type Repository interface {
	// SaveSnapshot публикует новый снапшот, заменяя текущий.
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error

	// GetLatestSnapshot возвращает текущий опубликованный снапшот.
	GetLatestSnapshot(ctx context.Context) (*Snapshot, error)

	// GetPage возвращает страницу общего рейтинга текущей версии.
	GetPage(ctx context.Context, page shared.Page) ([]*Entry, int64, error)

	// GetCharacterPage возвращает страницу партиции персонажа.
	GetCharacterPage(ctx context.Context, ct profile.CharacterType, page shared.Page) ([]*Entry, int64, error)

	// GetUserEntry возвращает запись пользователя в текущей версии.
	GetUserEntry(ctx context.Context, userID shared.UserID) (*Entry, error)

	Refresher
}

// Refresher - порт синхронного обновления одной записи после мутации
// профиля. Дешёвая операция горячего пути: ранги записи остаются
// опубликованными до следующего полного пересчёта.
type Refresher interface {
	// RefreshEntry обновляет денормализованную запись пользователя в
	// текущем снапшоте. Новый пользователь добавляется в хвост обеих
	// партиций; до первой публикации снапшота вызов - no-op.
	RefreshEntry(ctx context.Context, entry *Entry) error
}

// CacheRepository - порт кэша страниц рейтинга (Redis).
// Кэш инвалидируется публикацией новой версии снапшота.
type CacheRepository interface {
	// GetPage возвращает закэшированную страницу или ErrNotFound.
	GetPage(ctx context.Context, partition Partition, page shared.Page) ([]*Entry, error)

	// SetPage кэширует страницу с TTL.
	SetPage(ctx context.Context, partition Partition, page shared.Page, entries []*Entry) error

	// InvalidateAll сбрасывает все закэшированные страницы.
	InvalidateAll(ctx context.Context) error
}
