package achievement

import (
	"fmt"
	"log/slog"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATOR - вычисление критериев до неподвижной точки
// ══════════════════════════════════════════════════════════════════════════════

// RewardApplier применяет награду за разблокировку: дописывает событие
// achievement_unlocked в журнал, обновляет профиль и мутирует state,
// чтобы цепные критерии (achievement_count_at_least, total_xp_at_least)
// видели эффект награды на следующей итерации.
type RewardApplier func(a *Achievement) error

// Evaluator вычисляет критерии каталога против состояния пользователя.
// Разблокировка может удовлетворить другие критерии (наградой XP или
// самим фактом разблокировки), поэтому проход повторяется, пока хоть
// одно достижение разблокируется. Каждая итерация разблокирует минимум
// одно достижение, значит цикл ограничен размером каталога.
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator создаёт вычислитель достижений.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger.With(slog.String("component", "achievement_evaluator"))}
}

// Evaluate выполняет вычисление до неподвижной точки.
//
// catalog - весь каталог достижений; completed - множество уже
// разблокированных (по ID); state - агрегированное состояние
// пользователя; apply - применение награды (может быть nil, тогда
// цепные эффекты наград не моделируются).
//
// Достижения с битым критерием логируются и пропускаются: ошибка
// контента не должна валить начисление XP. Возвращает вновь
// разблокированные достижения в порядке разблокировки.
func (e *Evaluator) Evaluate(
	catalog []*Achievement,
	completed map[string]bool,
	state *UserState,
	apply RewardApplier,
) ([]*Achievement, error) {
	if state == nil {
		return nil, fmt.Errorf("evaluate achievements: nil user state")
	}
	done := make(map[string]bool, len(completed))
	for id := range completed {
		done[id] = true
	}

	// Кэш разобранных критериев: битые помечаем nil и больше не трогаем.
	parsed := make(map[string]Criterion, len(catalog))

	var unlocked []*Achievement
	for pass := 0; pass < len(catalog)+1; pass++ {
		progressed := false
		for _, a := range catalog {
			if done[a.ID] {
				continue
			}

			crit, seen := parsed[a.ID]
			if !seen {
				var err error
				crit, err = a.ParseCriteria()
				if err != nil {
					e.logger.Warn("skipping achievement with malformed criteria",
						slog.String("achievement_code", a.Code),
						slog.String("error", err.Error()),
					)
					crit = nil
				}
				parsed[a.ID] = crit
			}
			if crit == nil {
				continue
			}

			if !crit.Evaluate(state) {
				continue
			}

			done[a.ID] = true
			state.UnlockedCount++
			unlocked = append(unlocked, a)
			progressed = true

			if apply != nil {
				if err := apply(a); err != nil {
					return unlocked, fmt.Errorf("apply reward for %s: %w", a.Code, err)
				}
			}
		}
		if !progressed {
			return unlocked, nil
		}
	}
	// Недостижимо: каждая итерация уменьшает число кандидатов.
	return unlocked, nil
}

// ProgressFor вычисляет прогресс пользователя к достижению.
// Для бинарных критериев target == 0.
func (e *Evaluator) ProgressFor(a *Achievement, state *UserState) (current, target int) {
	crit, err := a.ParseCriteria()
	if err != nil || state == nil {
		return 0, 0
	}
	return crit.Progress(state)
}
