// Package profile содержит доменную модель пользователя и его игрового
// профиля TradeQuest. Профиль - авторитетное состояние прогрессии:
// уровень, XP и архетип персонажа. Лидерборд лишь проекция этих данных.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tradequest/tradequest-core/internal/domain/progression"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// CharacterType определяет архетип персонажа - фиксированное перечисление.
type CharacterType string

const (
	// CharacterAnalyst - аналитик: методичный разбор рынка.
	CharacterAnalyst CharacterType = "analyst"
	// CharacterRiskTaker - рисковый трейдер.
	CharacterRiskTaker CharacterType = "risk_taker"
	// CharacterConservative - консервативный инвестор.
	CharacterConservative CharacterType = "conservative"
	// CharacterDayTrader - внутридневной трейдер.
	CharacterDayTrader CharacterType = "day_trader"
	// CharacterHodler - долгосрочный держатель.
	CharacterHodler CharacterType = "hodler"
)

// AllCharacterTypes возвращает полный список архетипов.
func AllCharacterTypes() []CharacterType {
	return []CharacterType{
		CharacterAnalyst,
		CharacterRiskTaker,
		CharacterConservative,
		CharacterDayTrader,
		CharacterHodler,
	}
}

// IsValid проверяет, что архетип входит в перечисление.
func (c CharacterType) IsValid() bool {
	switch c {
	case CharacterAnalyst, CharacterRiskTaker, CharacterConservative,
		CharacterDayTrader, CharacterHodler:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление архетипа.
func (c CharacterType) String() string {
	return string(c)
}

// ══════════════════════════════════════════════════════════════════════════════
// USER
// ══════════════════════════════════════════════════════════════════════════════

// User - учётная запись. Создаётся внешней подсистемой регистрации;
// это ядро никогда не мутирует пользователя, только читает флаг активности.
type User struct {
	// ID - внутренний уникальный идентификатор.
	ID shared.UserID

	// Username - уникальное имя учётной записи.
	Username string

	// Email - адрес электронной почты.
	Email string

	// Active - видимость пользователя для ядра. Неактивные пользователи
	// исключаются из лидерборда и рекомендаций.
	Active bool
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// CharacterChangeMaxLevel - до какого уровня (не включительно) разрешена
// смена архетипа. Выше персонаж считается "прижившимся".
const CharacterChangeMaxLevel = 10

// Profile - игровой профиль, один-к-одному с User.
// Инвариант: Level всегда выводим из TotalXP через progression.Calculate -
// после любой записи в журнал эти поля не могут расходиться.
type Profile struct {
	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// Character - архетип персонажа.
	Character CharacterType

	// DisplayName - глобально уникальное отображаемое имя.
	DisplayName string

	// Level - текущий уровень, диапазон [1, 100].
	Level progression.Level

	// CurrentXP - XP внутри текущего уровня.
	CurrentXP int64

	// TotalXP - суммарный XP за всё время. Монотонно неубывающий.
	TotalXP int64

	// CanChangeCharacter - разрешена ли смена архетипа.
	CanChangeCharacter bool

	// CreatedAt - время создания профиля.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidDisplayName - невалидное отображаемое имя.
	ErrInvalidDisplayName = errors.New("invalid display name: must be 2-50 chars without whitespace padding")

	// ErrUnknownCharacter - архетип не входит в перечисление.
	ErrUnknownCharacter = errors.New("unknown character type")

	// ErrXPDecreased - попытка уменьшить суммарный XP.
	ErrXPDecreased = errors.New("total xp is monotonically non-decreasing")

	// ErrCharacterChangeLocked - смена архетипа больше не разрешена.
	ErrCharacterChangeLocked = errors.New("character change is locked for this profile")

	// ErrProfileNotFound - профиль не найден.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrDisplayNameTaken - отображаемое имя уже занято.
	ErrDisplayNameTaken = errors.New("display name already taken")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewProfileParams содержит параметры для создания нового профиля.
type NewProfileParams struct {
	UserID      shared.UserID
	Character   CharacterType
	DisplayName string
}

// NewProfile создаёт новый профиль с валидацией всех полей.
// Новый профиль всегда начинается с уровня 1 и нулевого XP.
func NewProfile(params NewProfileParams) (*Profile, error) {
	if params.UserID.IsEmpty() {
		return nil, progression.ErrInvalidUserID
	}

	if !params.Character.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCharacter, params.Character)
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if len(displayName) < 2 || len(displayName) > 50 {
		return nil, ErrInvalidDisplayName
	}

	now := time.Now().UTC()

	return &Profile{
		UserID:             params.UserID,
		Character:          params.Character,
		DisplayName:        displayName,
		Level:              progression.MinLevel,
		CurrentXP:          0,
		TotalXP:            0,
		CanChangeCharacter: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// ApplyXP начисляет XP и пересчитывает уровень через калькулятор.
// Возвращает предыдущий уровень, чтобы вызывающий код мог определить level-up.
// Единственный способ изменить Level/CurrentXP - гарантия инварианта
// "уровень выводим из TotalXP".
func (p *Profile) ApplyXP(amount progression.XPAmount) (oldLevel progression.Level, err error) {
	if !amount.IsValid() {
		return p.Level, progression.ErrInvalidAmount
	}

	oldLevel = p.Level
	p.TotalXP += int64(amount)
	p.Level, p.CurrentXP = progression.Calculate(p.TotalXP)
	p.UpdatedAt = time.Now().UTC()

	// Достигнув уровня блокировки, профиль теряет право на смену архетипа.
	if p.Level.Int() >= CharacterChangeMaxLevel {
		p.CanChangeCharacter = false
	}

	return oldLevel, nil
}

// ChangeCharacter меняет архетип персонажа.
// Разрешено только пока CanChangeCharacter и уровень ниже порога.
// Смена одноразовая: успешный вызов гасит CanChangeCharacter.
func (p *Profile) ChangeCharacter(newCharacter CharacterType) error {
	if !newCharacter.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownCharacter, newCharacter)
	}

	if !p.CanChangeCharacter || p.Level.Int() >= CharacterChangeMaxLevel {
		return ErrCharacterChangeLocked
	}

	p.Character = newCharacter
	p.CanChangeCharacter = false
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// IsConsistent проверяет инвариант: уровень и остаток XP выводимы из TotalXP.
// Используется аудитом консистентности; рассинхронизация - дефект, который
// логируется, а не "чинится" молча.
func (p *Profile) IsConsistent() bool {
	level, within := progression.Calculate(p.TotalXP)
	return level == p.Level && within == p.CurrentXP
}

// String возвращает строковое представление профиля для логирования.
func (p *Profile) String() string {
	return fmt.Sprintf(
		"Profile{User: %s, Name: %s, Character: %s, Level: %d, TotalXP: %d}",
		p.UserID, p.DisplayName, p.Character, p.Level, p.TotalXP,
	)
}

// Clone создаёт копию профиля.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
