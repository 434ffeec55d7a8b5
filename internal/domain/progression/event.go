// Package progression содержит доменную модель прогрессии TradeQuest:
// журнал XP-событий (ledger) и калькулятор уровней.
// Журнал - единственный источник истины для всего производного состояния.
package progression

import (
	"errors"
	"fmt"
	"time"

	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// EventID - уникальный идентификатор события журнала.
type EventID string

// String возвращает строковое представление идентификатора.
func (e EventID) String() string {
	return string(e)
}

// IsEmpty возвращает true, если идентификатор пустой.
func (e EventID) IsEmpty() bool {
	return string(e) == ""
}

// XPAmount - количество начисленных очков опыта. Всегда строго положительное:
// журнал append-only, отрицательных корректировок не бывает.
type XPAmount int

// IsValid проверяет, что начисление строго положительное.
func (a XPAmount) IsValid() bool {
	return a > 0
}

// Int возвращает числовое значение.
func (a XPAmount) Int() int {
	return int(a)
}

// Source определяет источник XP-события - фиксированное перечисление.
type Source string

const (
	// SourceLessonComplete - завершение урока.
	SourceLessonComplete Source = "lesson_complete"
	// SourceQuizPass - пройденный квиз.
	SourceQuizPass Source = "quiz_pass"
	// SourceModuleComplete - завершение всех уроков модуля.
	SourceModuleComplete Source = "module_complete"
	// SourceFirstTrade - первая сделка пользователя.
	SourceFirstTrade Source = "first_trade"
	// SourceTradeExecuted - исполненная сделка.
	SourceTradeExecuted Source = "trade_executed"
	// SourceProfitableTrade - прибыльная сделка.
	SourceProfitableTrade Source = "profitable_trade"
	// SourceHoldPosition30d - удержание позиции 30 дней.
	SourceHoldPosition30d Source = "hold_position_30d"
	// SourceAchievementUnlocked - награда за разблокированное достижение.
	SourceAchievementUnlocked Source = "achievement_unlocked"
	// SourceDailyLogin - ежедневный вход.
	SourceDailyLogin Source = "daily_login"
	// SourceLoginStreak7d - серия входов 7 дней подряд.
	SourceLoginStreak7d Source = "login_streak_7d"
	// SourceManualAdjustment - ручная корректировка оператором.
	SourceManualAdjustment Source = "manual_adjustment"
)

// AllSources возвращает полный список источников.
func AllSources() []Source {
	return []Source{
		SourceLessonComplete,
		SourceQuizPass,
		SourceModuleComplete,
		SourceFirstTrade,
		SourceTradeExecuted,
		SourceProfitableTrade,
		SourceHoldPosition30d,
		SourceAchievementUnlocked,
		SourceDailyLogin,
		SourceLoginStreak7d,
		SourceManualAdjustment,
	}
}

// IsValid проверяет, что источник входит в перечисление.
func (s Source) IsValid() bool {
	switch s {
	case SourceLessonComplete, SourceQuizPass, SourceModuleComplete,
		SourceFirstTrade, SourceTradeExecuted, SourceProfitableTrade,
		SourceHoldPosition30d, SourceAchievementUnlocked,
		SourceDailyLogin, SourceLoginStreak7d, SourceManualAdjustment:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление источника.
func (s Source) String() string {
	return string(s)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION EVENT (Ledger Entry)
// ══════════════════════════════════════════════════════════════════════════════

// Event - неизменяемый факт начисления XP. Записи журнала никогда не
// обновляются и не удаляются.
type Event struct {
	// ID - уникальный идентификатор события.
	ID EventID

	// UserID - пользователь, которому начислен XP.
	UserID shared.UserID

	// Level - уровень пользователя на момент события.
	Level int

	// Amount - начисленный XP (строго > 0).
	Amount XPAmount

	// Source - источник события.
	Source Source

	// OccurredAt - время события (UTC).
	OccurredAt time.Time

	// Metadata - свободные структурированные данные
	// (например, lesson_ordinal или achievement_code).
	Metadata shared.Metadata
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidAmount - начисление должно быть строго положительным.
	ErrInvalidAmount = errors.New("invalid amount: must be positive")

	// ErrUnknownSource - источник не входит в перечисление.
	ErrUnknownSource = errors.New("unknown event source")

	// ErrInvalidUserID - невалидный идентификатор пользователя.
	ErrInvalidUserID = errors.New("invalid user id")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewEventParams содержит параметры для создания события журнала.
type NewEventParams struct {
	ID       EventID
	UserID   shared.UserID
	Level    int
	Amount   XPAmount
	Source   Source
	Metadata shared.Metadata
}

// NewEvent создаёт новое событие журнала с валидацией всех полей.
// Валидация выполняется до любой мутации хранилища.
func NewEvent(params NewEventParams) (*Event, error) {
	if params.ID.IsEmpty() {
		return nil, errors.New("event id is required")
	}

	if params.UserID.IsEmpty() {
		return nil, ErrInvalidUserID
	}

	if !params.Amount.IsValid() {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, params.Amount)
	}

	if !params.Source.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, params.Source)
	}

	return &Event{
		ID:         params.ID,
		UserID:     params.UserID,
		Level:      params.Level,
		Amount:     params.Amount,
		Source:     params.Source,
		OccurredAt: time.Now().UTC(),
		Metadata:   params.Metadata.Clone(),
	}, nil
}

// String возвращает строковое представление для логирования.
func (e *Event) String() string {
	return fmt.Sprintf(
		"Event{ID: %s, User: %s, Source: %s, Amount: %d}",
		e.ID, e.UserID, e.Source, e.Amount,
	)
}
