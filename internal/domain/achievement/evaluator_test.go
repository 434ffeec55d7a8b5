package achievement

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradequest/tradequest-core/internal/domain/progression"
)

func catalogEntry(id, code string, reward int, criteria string) *Achievement {
	return &Achievement{
		ID:       id,
		Code:     code,
		Name:     code,
		Category: CategoryMilestones,
		Rarity:   RarityCommon,
		XPReward: reward,
		Criteria: json.RawMessage(criteria),
	}
}

// applyXPReward мутирует state так, как это делает обработчик начисления:
// награда дописывается в журнал и меняет суммарный XP пользователя.
func applyXPReward(state *UserState) RewardApplier {
	return func(a *Achievement) error {
		state.TotalXP += int64(a.XPReward)
		state.EventCounts[progression.SourceAchievementUnlocked]++
		level, _ := progression.Calculate(state.TotalXP)
		state.Level = level.Int()
		return nil
	}
}

func TestEvaluator_ChainedUnlocks(t *testing.T) {
	// Разблокировка first_quiz даёт XP и увеличивает счётчик
	// достижений, что по цепочке разблокирует ещё два достижения.
	catalog := []*Achievement{
		catalogEntry("a1", "first_quiz", 50,
			`{"kind":"event_count_at_least","source":"quiz_pass","value":1}`),
		catalogEntry("a2", "collector", 100,
			`{"kind":"achievement_count_at_least","value":1}`),
		catalogEntry("a3", "xp_500", 0,
			`{"kind":"total_xp_at_least","value":500}`),
	}

	state := &UserState{
		Level:   3,
		TotalXP: 400,
		EventCounts: map[progression.Source]int{
			progression.SourceQuizPass: 1,
		},
		CompletedLessons: map[int]bool{},
	}

	ev := NewEvaluator(nil)
	unlocked, err := ev.Evaluate(catalog, nil, state, applyXPReward(state))
	require.NoError(t, err)

	codes := make([]string, 0, len(unlocked))
	for _, a := range unlocked {
		codes = append(codes, a.Code)
	}
	assert.Equal(t, []string{"first_quiz", "collector", "xp_500"}, codes)
	assert.Equal(t, int64(550), state.TotalXP)
	assert.Equal(t, 3, state.UnlockedCount)
}

func TestEvaluator_Idempotent(t *testing.T) {
	catalog := []*Achievement{
		catalogEntry("a1", "first_quiz", 50,
			`{"kind":"event_count_at_least","source":"quiz_pass","value":1}`),
	}

	state := &UserState{
		Level:         1,
		TotalXP:       50,
		EventCounts:   map[progression.Source]int{progression.SourceQuizPass: 2},
		UnlockedCount: 1,
	}
	completed := map[string]bool{"a1": true}

	ev := NewEvaluator(nil)
	unlocked, err := ev.Evaluate(catalog, completed, state, applyXPReward(state))
	require.NoError(t, err)

	assert.Empty(t, unlocked, "completed achievement must not unlock twice")
	assert.Equal(t, int64(50), state.TotalXP, "no reward must be re-applied")
}

func TestEvaluator_SkipsMalformedCriteria(t *testing.T) {
	catalog := []*Achievement{
		catalogEntry("bad", "broken_entry", 500, `{"kind":"wat"}`),
		catalogEntry("ok", "level_two", 0, `{"kind":"level_at_least","value":2}`),
	}

	state := &UserState{Level: 2, TotalXP: 100}

	ev := NewEvaluator(nil)
	unlocked, err := ev.Evaluate(catalog, nil, state, nil)
	require.NoError(t, err)

	require.Len(t, unlocked, 1)
	assert.Equal(t, "level_two", unlocked[0].Code)
}

func TestEvaluator_NoMatchesTerminates(t *testing.T) {
	catalog := []*Achievement{
		catalogEntry("a1", "unreachable", 10, `{"kind":"level_at_least","value":99}`),
	}
	state := &UserState{Level: 1}

	ev := NewEvaluator(nil)
	unlocked, err := ev.Evaluate(catalog, nil, state, nil)
	require.NoError(t, err)
	assert.Empty(t, unlocked)
}

func TestUserAchievement_CompleteOnce(t *testing.T) {
	ua := NewUserAchievement("8c54e1a2-9f30-47f5-9e7d-5b3a2f1c0d44", "a1")

	require.NoError(t, ua.Complete())
	assert.True(t, ua.Completed)
	require.NotNil(t, ua.UnlockedAt)

	err := ua.Complete()
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	err = ua.RecordProgress(5)
	assert.ErrorIs(t, err, ErrAlreadyCompleted, "progress is frozen after completion")
}
