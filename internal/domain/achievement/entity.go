// Package achievement содержит каталог достижений TradeQuest и логику
// их разблокировки. Критерии хранятся как структурированные
// predicate-документы (JSONB) и вычисляются против агрегированного
// состояния пользователя.
package achievement

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Category определяет категорию достижения.
type Category string

const (
	// CategoryEducation - достижения за обучение.
	CategoryEducation Category = "education"
	// CategoryTrading - достижения за торговлю.
	CategoryTrading Category = "trading"
	// CategorySocial - социальные достижения.
	CategorySocial Category = "social"
	// CategoryMilestones - вехи прогрессии (уровни, суммарный XP).
	CategoryMilestones Category = "milestones"
	// CategorySpecial - особые события.
	CategorySpecial Category = "special"
)

// IsValid проверяет, что категория входит в перечисление.
func (c Category) IsValid() bool {
	switch c {
	case CategoryEducation, CategoryTrading, CategorySocial,
		CategoryMilestones, CategorySpecial:
		return true
	default:
		return false
	}
}

// Rarity определяет редкость достижения.
type Rarity string

const (
	// RarityCommon - обычное.
	RarityCommon Rarity = "common"
	// RarityRare - редкое.
	RarityRare Rarity = "rare"
	// RarityEpic - эпическое.
	RarityEpic Rarity = "epic"
	// RarityLegendary - легендарное.
	RarityLegendary Rarity = "legendary"
)

// IsValid проверяет, что редкость входит в перечисление.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT (Catalog Entry)
// ══════════════════════════════════════════════════════════════════════════════

// Achievement - запись каталога достижений. После первой разблокировки
// кем-либо запись считается неизменяемой (правит только внешний
// content-management процесс).
type Achievement struct {
	// ID - уникальный идентификатор.
	ID string

	// Code - уникальный машинный код (например, "first_quiz_pass").
	Code string

	// Name - отображаемое название.
	Name string

	// Description - описание для пользователя.
	Description string

	// Category - категория.
	Category Category

	// Rarity - редкость.
	Rarity Rarity

	// XPReward - награда XP за разблокировку (>= 0; ноль допустим
	// для чисто "коллекционных" достижений).
	XPReward int

	// Criteria - критерий разблокировки как JSON-документ.
	// Разбирается лениво: битый документ не валит каталог целиком.
	Criteria json.RawMessage

	// CreatedAt - время создания записи.
	CreatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidCode - невалидный код достижения.
	ErrInvalidCode = errors.New("invalid achievement code: must be 2-60 chars, snake_case")

	// ErrInvalidCategory - категория не входит в перечисление.
	ErrInvalidCategory = errors.New("invalid achievement category")

	// ErrInvalidRarity - редкость не входит в перечисление.
	ErrInvalidRarity = errors.New("invalid achievement rarity")

	// ErrNegativeReward - награда не может быть отрицательной.
	ErrNegativeReward = errors.New("xp reward cannot be negative")

	// ErrAchievementNotFound - достижение не найдено.
	ErrAchievementNotFound = errors.New("achievement not found")

	// ErrMalformedCriteria - критерий не разбирается или не проходит валидацию.
	ErrMalformedCriteria = errors.New("malformed criteria document")
)

// Validate проверяет корректность записи каталога.
// Критерий проверяется только синтаксически; семантика - на вычислителе.
func (a *Achievement) Validate() error {
	code := strings.TrimSpace(a.Code)
	if len(code) < 2 || len(code) > 60 || strings.ContainsAny(code, " \t\n\r") {
		return ErrInvalidCode
	}
	if !a.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, a.Category)
	}
	if !a.Rarity.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRarity, a.Rarity)
	}
	if a.XPReward < 0 {
		return ErrNegativeReward
	}
	return nil
}

// ParseCriteria разбирает критерий достижения.
// Возвращает ErrMalformedCriteria, если документ не разбирается.
func (a *Achievement) ParseCriteria() (Criterion, error) {
	c, err := ParseCriteria(a.Criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: achievement %s: %v", ErrMalformedCriteria, a.Code, err)
	}
	return c, nil
}

// String возвращает строковое представление для логирования.
func (a *Achievement) String() string {
	return fmt.Sprintf(
		"Achievement{Code: %s, Category: %s, Rarity: %s, Reward: %d}",
		a.Code, a.Category, a.Rarity, a.XPReward,
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// USER ACHIEVEMENT (Unlock Record)
// ══════════════════════════════════════════════════════════════════════════════

// UserAchievement - связь пользователя и достижения. Уникальна по паре
// (userID, achievementID); создаётся лениво при первом прогрессе.
// Completed переходит false -> true ровно один раз и никогда не откатывается.
type UserAchievement struct {
	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// AchievementID - идентификатор достижения.
	AchievementID string

	// Progress - счётчик прогресса к цели (для критериев-счётчиков).
	Progress int

	// Completed - достигнута ли цель.
	Completed bool

	// UnlockedAt - время разблокировки (nil, пока не завершено).
	UnlockedAt *time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ErrAlreadyCompleted - достижение уже разблокировано, откат невозможен.
var ErrAlreadyCompleted = errors.New("achievement already completed")

// NewUserAchievement создаёт новую запись прогресса.
func NewUserAchievement(userID shared.UserID, achievementID string) *UserAchievement {
	return &UserAchievement{
		UserID:        userID,
		AchievementID: achievementID,
		Progress:      0,
		Completed:     false,
		UpdatedAt:     time.Now().UTC(),
	}
}

// RecordProgress обновляет счётчик прогресса.
// Прогресс завершённого достижения заморожен.
func (ua *UserAchievement) RecordProgress(progress int) error {
	if ua.Completed {
		return ErrAlreadyCompleted
	}
	if progress < 0 {
		progress = 0
	}
	ua.Progress = progress
	ua.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete помечает достижение разблокированным.
// Повторный вызов - ошибка: переход false -> true одноразовый.
func (ua *UserAchievement) Complete() error {
	if ua.Completed {
		return ErrAlreadyCompleted
	}
	now := time.Now().UTC()
	ua.Completed = true
	ua.UnlockedAt = &now
	ua.UpdatedAt = now
	return nil
}
