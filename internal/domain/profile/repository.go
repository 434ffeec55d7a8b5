package profile

import (
	"context"

	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над профилями.
type Repository interface {
	// Create создаёт новый профиль.
	// Возвращает ErrDisplayNameTaken при конфликте отображаемого имени.
	Create(ctx context.Context, p *Profile) error

	// GetByUserID возвращает профиль по идентификатору пользователя.
	// Возвращает ErrProfileNotFound, если профиль не найден.
	GetByUserID(ctx context.Context, userID shared.UserID) (*Profile, error)

	// GetByUserIDForUpdate возвращает профиль, удерживая блокировку строки
	// до конца текущей транзакции. Сериализует конкурентные начисления XP
	// одному пользователю.
	GetByUserIDForUpdate(ctx context.Context, userID shared.UserID) (*Profile, error)

	// Update сохраняет изменения профиля.
	// Возвращает ErrProfileNotFound, если профиль не найден.
	Update(ctx context.Context, p *Profile) error

	// ListActive возвращает профили активных пользователей с пагинацией.
	// Используется пересчётом рангов и аудитом.
	ListActive(ctx context.Context, page shared.Page) ([]*Profile, error)

	// Count возвращает количество профилей активных пользователей.
	Count(ctx context.Context) (int, error)
}

// UserReader определяет read-only доступ к учётным записям.
// Пользователи создаются внешней подсистемой; ядру нужны только
// username и флаг активности.
type UserReader interface {
	// GetByID возвращает пользователя по идентификатору.
	// Возвращает shared.ErrUserNotFound, если пользователь не найден.
	GetByID(ctx context.Context, id shared.UserID) (*User, error)

	// IsActive возвращает флаг активности пользователя.
	IsActive(ctx context.Context, id shared.UserID) (bool, error)
}
