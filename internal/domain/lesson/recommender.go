package lesson

import (
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMENDER
// ══════════════════════════════════════════════════════════════════════════════

// Recommend возвращает уроки, доступные пользователю: не завершённые,
// с полностью закрытыми пререквизитами, по возрастанию номера.
// limit <= 0 означает без ограничения.
//
// Граф должен быть валиден (Validate): по каталогу с циклом или
// висячей ссылкой рекомендации не строятся.
func Recommend(g *Graph, completed map[Ordinal]bool, limit int) ([]*Lesson, error) {
	if g == nil {
		return nil, fmt.Errorf("recommend lessons: nil graph")
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("recommend lessons: %w", err)
	}

	out := make([]*Lesson, 0)
	for _, ordinal := range g.Ordinals() {
		if completed[ordinal] {
			continue
		}
		eligible, err := g.Eligible(ordinal, completed)
		if err != nil {
			return nil, err
		}
		if !eligible {
			continue
		}
		l, _ := g.Get(ordinal)
		out = append(out, l)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// NextInModule возвращает первый доступный урок указанного модуля
// или nil, если модуль пройден либо заблокирован пререквизитами.
func NextInModule(g *Graph, module ModuleNumber, completed map[Ordinal]bool) (*Lesson, error) {
	if !module.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidModule, module)
	}
	recommended, err := Recommend(g, completed, 0)
	if err != nil {
		return nil, err
	}
	for _, l := range recommended {
		if l.Module == module {
			return l, nil
		}
	}
	return nil, nil
}

// IsModuleCompleted возвращает true, если все уроки модуля завершены.
func IsModuleCompleted(g *Graph, module ModuleNumber, completed map[Ordinal]bool) bool {
	seen := false
	for _, ordinal := range g.Ordinals() {
		if ModuleOf(ordinal) != module {
			continue
		}
		seen = true
		if !completed[ordinal] {
			return false
		}
	}
	return seen
}
