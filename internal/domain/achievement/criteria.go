package achievement

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradequest/tradequest-core/internal/domain/progression"
	"github.com/tradequest/tradequest-core/internal/domain/trading"
)

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA - predicate-документы разблокировки
// ══════════════════════════════════════════════════════════════════════════════
//
// Критерий - дерево предикатов с тегом kind. Листья сравнивают
// агрегированное состояние пользователя с порогом, узлы all_of/any_of
// комбинируют подкритерии. Неизвестный kind - ошибка разбора:
// вычислитель логирует и пропускает такое достижение, не падая.

// Kind - тег варианта критерия.
type Kind string

const (
	// KindLevelAtLeast - уровень пользователя >= value.
	KindLevelAtLeast Kind = "level_at_least"
	// KindTotalXPAtLeast - суммарный XP >= value.
	KindTotalXPAtLeast Kind = "total_xp_at_least"
	// KindEventCountAtLeast - число событий источника source >= value.
	KindEventCountAtLeast Kind = "event_count_at_least"
	// KindLessonsCompleted - все уроки из ordinals завершены.
	KindLessonsCompleted Kind = "lessons_completed"
	// KindAchievementCountAtLeast - число разблокированных достижений >= value.
	KindAchievementCountAtLeast Kind = "achievement_count_at_least"
	// KindTradeStatAtLeast - торговая метрика stat >= value.
	KindTradeStatAtLeast Kind = "trade_stat_at_least"
	// KindAllOf - конъюнкция подкритериев.
	KindAllOf Kind = "all_of"
	// KindAnyOf - дизъюнкция подкритериев.
	KindAnyOf Kind = "any_of"
)

var (
	// ErrUnknownKind - тег kind не входит в перечисление.
	ErrUnknownKind = errors.New("unknown criteria kind")

	// ErrEmptyCriteria - пустой документ или пустой список подкритериев.
	ErrEmptyCriteria = errors.New("empty criteria")
)

// UserState - агрегированное состояние пользователя, против которого
// вычисляются критерии. Собирается один раз на вычисление и мутируется
// по мере начисления наград (feedback-цикл разблокировок).
type UserState struct {
	// Level - текущий уровень.
	Level int

	// TotalXP - суммарный заработанный XP.
	TotalXP int64

	// EventCounts - счётчики событий прогрессии по источникам.
	EventCounts map[progression.Source]int

	// CompletedLessons - множество завершённых уроков (по ordinal).
	CompletedLessons map[int]bool

	// UnlockedCount - число уже разблокированных достижений.
	UnlockedCount int

	// Trade - торговые агрегаты из trading-модуля платформы.
	Trade trading.Stats
}

// Criterion - узел дерева предикатов.
type Criterion interface {
	// Kind возвращает тег варианта.
	Kind() Kind

	// Evaluate вычисляет предикат против состояния пользователя.
	Evaluate(state *UserState) bool

	// Progress возвращает (текущее, целевое) значение для
	// критериев-счётчиков. Для бинарных критериев target == 0.
	Progress(state *UserState) (current, target int)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEAF CRITERIA
// ══════════════════════════════════════════════════════════════════════════════

// LevelAtLeast - уровень >= порога.
type LevelAtLeast struct {
	Value int
}

func (c LevelAtLeast) Kind() Kind { return KindLevelAtLeast }

func (c LevelAtLeast) Evaluate(state *UserState) bool {
	return state.Level >= c.Value
}

func (c LevelAtLeast) Progress(state *UserState) (int, int) {
	return state.Level, c.Value
}

// TotalXPAtLeast - суммарный XP >= порога.
type TotalXPAtLeast struct {
	Value int64
}

func (c TotalXPAtLeast) Kind() Kind { return KindTotalXPAtLeast }

func (c TotalXPAtLeast) Evaluate(state *UserState) bool {
	return state.TotalXP >= c.Value
}

func (c TotalXPAtLeast) Progress(state *UserState) (int, int) {
	return int(state.TotalXP), int(c.Value)
}

// EventCountAtLeast - число событий заданного источника >= порога.
type EventCountAtLeast struct {
	Source progression.Source
	Value  int
}

func (c EventCountAtLeast) Kind() Kind { return KindEventCountAtLeast }

func (c EventCountAtLeast) Evaluate(state *UserState) bool {
	return state.EventCounts[c.Source] >= c.Value
}

func (c EventCountAtLeast) Progress(state *UserState) (int, int) {
	return state.EventCounts[c.Source], c.Value
}

// LessonsCompleted - все перечисленные уроки завершены.
type LessonsCompleted struct {
	Ordinals []int
}

func (c LessonsCompleted) Kind() Kind { return KindLessonsCompleted }

func (c LessonsCompleted) Evaluate(state *UserState) bool {
	for _, ord := range c.Ordinals {
		if !state.CompletedLessons[ord] {
			return false
		}
	}
	return true
}

func (c LessonsCompleted) Progress(state *UserState) (int, int) {
	done := 0
	for _, ord := range c.Ordinals {
		if state.CompletedLessons[ord] {
			done++
		}
	}
	return done, len(c.Ordinals)
}

// AchievementCountAtLeast - число разблокированных достижений >= порога.
type AchievementCountAtLeast struct {
	Value int
}

func (c AchievementCountAtLeast) Kind() Kind { return KindAchievementCountAtLeast }

func (c AchievementCountAtLeast) Evaluate(state *UserState) bool {
	return state.UnlockedCount >= c.Value
}

func (c AchievementCountAtLeast) Progress(state *UserState) (int, int) {
	return state.UnlockedCount, c.Value
}

// TradeStatAtLeast - торговая метрика >= порога.
// Пороги денежных метрик задаются десятичной строкой, чтобы не терять
// точность на float.
type TradeStatAtLeast struct {
	Stat  string
	Value decimal.Decimal
}

func (c TradeStatAtLeast) Kind() Kind { return KindTradeStatAtLeast }

func (c TradeStatAtLeast) Evaluate(state *UserState) bool {
	v, ok := state.Trade.Stat(c.Stat)
	if !ok {
		return false
	}
	return v.GreaterThanOrEqual(c.Value)
}

func (c TradeStatAtLeast) Progress(state *UserState) (int, int) {
	v, ok := state.Trade.Stat(c.Stat)
	if !ok {
		return 0, int(c.Value.IntPart())
	}
	return int(v.IntPart()), int(c.Value.IntPart())
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE CRITERIA
// ══════════════════════════════════════════════════════════════════════════════

// AllOf - конъюнкция: выполняются все подкритерии.
type AllOf struct {
	Criteria []Criterion
}

func (c AllOf) Kind() Kind { return KindAllOf }

func (c AllOf) Evaluate(state *UserState) bool {
	for _, sub := range c.Criteria {
		if !sub.Evaluate(state) {
			return false
		}
	}
	return true
}

func (c AllOf) Progress(state *UserState) (int, int) {
	done := 0
	for _, sub := range c.Criteria {
		if sub.Evaluate(state) {
			done++
		}
	}
	return done, len(c.Criteria)
}

// AnyOf - дизъюнкция: выполняется хотя бы один подкритерий.
type AnyOf struct {
	Criteria []Criterion
}

func (c AnyOf) Kind() Kind { return KindAnyOf }

func (c AnyOf) Evaluate(state *UserState) bool {
	for _, sub := range c.Criteria {
		if sub.Evaluate(state) {
			return true
		}
	}
	return false
}

func (c AnyOf) Progress(state *UserState) (int, int) {
	for _, sub := range c.Criteria {
		if sub.Evaluate(state) {
			return 1, 1
		}
	}
	return 0, 1
}

// ══════════════════════════════════════════════════════════════════════════════
// PARSING
// ══════════════════════════════════════════════════════════════════════════════

// criterionDoc - промежуточная JSON-форма узла критерия.
type criterionDoc struct {
	Kind     Kind              `json:"kind"`
	Value    json.Number       `json:"value,omitempty"`
	Source   string            `json:"source,omitempty"`
	Stat     string            `json:"stat,omitempty"`
	Ordinals []int             `json:"ordinals,omitempty"`
	Criteria []json.RawMessage `json:"criteria,omitempty"`
}

// ParseCriteria разбирает JSON-документ критерия в дерево предикатов.
// Любая структурная проблема (неизвестный kind, нечисловой порог,
// пустой список подкритериев) - ошибка: решение о пропуске принимает
// вычислитель.
func ParseCriteria(raw json.RawMessage) (Criterion, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyCriteria
	}

	var doc criterionDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode criteria: %w", err)
	}

	switch doc.Kind {
	case KindLevelAtLeast:
		v, err := intValue(doc.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.Kind, err)
		}
		return LevelAtLeast{Value: v}, nil

	case KindTotalXPAtLeast:
		v, err := doc.Value.Int64()
		if err != nil {
			return nil, fmt.Errorf("%s: value: %w", doc.Kind, err)
		}
		return TotalXPAtLeast{Value: v}, nil

	case KindEventCountAtLeast:
		src := progression.Source(doc.Source)
		if !src.IsValid() {
			return nil, fmt.Errorf("%s: unknown source %q", doc.Kind, doc.Source)
		}
		v, err := intValue(doc.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.Kind, err)
		}
		return EventCountAtLeast{Source: src, Value: v}, nil

	case KindLessonsCompleted:
		if len(doc.Ordinals) == 0 {
			return nil, fmt.Errorf("%s: %w", doc.Kind, ErrEmptyCriteria)
		}
		ords := make([]int, len(doc.Ordinals))
		copy(ords, doc.Ordinals)
		return LessonsCompleted{Ordinals: ords}, nil

	case KindAchievementCountAtLeast:
		v, err := intValue(doc.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.Kind, err)
		}
		return AchievementCountAtLeast{Value: v}, nil

	case KindTradeStatAtLeast:
		if doc.Stat == "" {
			return nil, fmt.Errorf("%s: missing stat name", doc.Kind)
		}
		v, err := decimal.NewFromString(doc.Value.String())
		if err != nil {
			return nil, fmt.Errorf("%s: value: %w", doc.Kind, err)
		}
		return TradeStatAtLeast{Stat: doc.Stat, Value: v}, nil

	case KindAllOf, KindAnyOf:
		if len(doc.Criteria) == 0 {
			return nil, fmt.Errorf("%s: %w", doc.Kind, ErrEmptyCriteria)
		}
		subs := make([]Criterion, 0, len(doc.Criteria))
		for i, rawSub := range doc.Criteria {
			sub, err := ParseCriteria(rawSub)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", doc.Kind, i, err)
			}
			subs = append(subs, sub)
		}
		if doc.Kind == KindAllOf {
			return AllOf{Criteria: subs}, nil
		}
		return AnyOf{Criteria: subs}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, doc.Kind)
	}
}

func intValue(n json.Number) (int, error) {
	v, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("value: %w", err)
	}
	return int(v), nil
}
