package achievement

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradequest/tradequest-core/internal/domain/progression"
	"github.com/tradequest/tradequest-core/internal/domain/trading"
)

func testState() *UserState {
	return &UserState{
		Level:   7,
		TotalXP: 2100,
		EventCounts: map[progression.Source]int{
			progression.SourceQuizPass:        3,
			progression.SourceLessonComplete:  5,
			progression.SourceProfitableTrade: 12,
		},
		CompletedLessons: map[int]bool{1: true, 2: true, 5: true},
		UnlockedCount:    2,
		Trade: trading.Stats{
			TotalTrades:      40,
			ProfitableTrades: 25,
			TotalProfit:      decimal.RequireFromString("1530.75"),
		},
	}
}

func TestParseCriteria_LeafKinds(t *testing.T) {
	state := testState()

	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"level met", `{"kind":"level_at_least","value":5}`, true},
		{"level not met", `{"kind":"level_at_least","value":8}`, false},
		{"level exact boundary", `{"kind":"level_at_least","value":7}`, true},
		{"total xp met", `{"kind":"total_xp_at_least","value":2000}`, true},
		{"total xp not met", `{"kind":"total_xp_at_least","value":2101}`, false},
		{"event count met", `{"kind":"event_count_at_least","source":"quiz_pass","value":3}`, true},
		{"event count not met", `{"kind":"event_count_at_least","source":"quiz_pass","value":4}`, false},
		{"event count unseen source", `{"kind":"event_count_at_least","source":"first_trade","value":1}`, false},
		{"lessons all completed", `{"kind":"lessons_completed","ordinals":[1,2]}`, true},
		{"lessons partially completed", `{"kind":"lessons_completed","ordinals":[1,3]}`, false},
		{"achievement count met", `{"kind":"achievement_count_at_least","value":2}`, true},
		{"achievement count not met", `{"kind":"achievement_count_at_least","value":3}`, false},
		{"trade stat integer", `{"kind":"trade_stat_at_least","stat":"total_trades","value":40}`, true},
		{"trade stat decimal profit", `{"kind":"trade_stat_at_least","stat":"total_profit","value":1530.75}`, true},
		{"trade stat profit above", `{"kind":"trade_stat_at_least","stat":"total_profit","value":1530.76}`, false},
		{"trade stat win rate", `{"kind":"trade_stat_at_least","stat":"win_rate","value":0.6}`, true},
		{"trade stat unknown name", `{"kind":"trade_stat_at_least","stat":"sharpe_ratio","value":1}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crit, err := ParseCriteria(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, crit.Evaluate(state))
		})
	}
}

func TestParseCriteria_Composite(t *testing.T) {
	state := testState()

	allOf := `{"kind":"all_of","criteria":[
		{"kind":"level_at_least","value":5},
		{"kind":"lessons_completed","ordinals":[1,2]}
	]}`
	crit, err := ParseCriteria(json.RawMessage(allOf))
	require.NoError(t, err)
	assert.True(t, crit.Evaluate(state))

	allOfFailing := `{"kind":"all_of","criteria":[
		{"kind":"level_at_least","value":5},
		{"kind":"total_xp_at_least","value":99999}
	]}`
	crit, err = ParseCriteria(json.RawMessage(allOfFailing))
	require.NoError(t, err)
	assert.False(t, crit.Evaluate(state))

	anyOf := `{"kind":"any_of","criteria":[
		{"kind":"total_xp_at_least","value":99999},
		{"kind":"event_count_at_least","source":"profitable_trade","value":10}
	]}`
	crit, err = ParseCriteria(json.RawMessage(anyOf))
	require.NoError(t, err)
	assert.True(t, crit.Evaluate(state))

	nested := `{"kind":"all_of","criteria":[
		{"kind":"level_at_least","value":1},
		{"kind":"any_of","criteria":[
			{"kind":"lessons_completed","ordinals":[99]},
			{"kind":"trade_stat_at_least","stat":"profitable_trades","value":20}
		]}
	]}`
	crit, err = ParseCriteria(json.RawMessage(nested))
	require.NoError(t, err)
	assert.True(t, crit.Evaluate(state))
}

func TestParseCriteria_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty document", ``},
		{"not json", `{{{`},
		{"unknown kind", `{"kind":"streak_at_least","value":5}`},
		{"missing kind", `{"value":5}`},
		{"non-numeric value", `{"kind":"level_at_least","value":"ten"}`},
		{"unknown event source", `{"kind":"event_count_at_least","source":"moon_landing","value":1}`},
		{"lessons without ordinals", `{"kind":"lessons_completed"}`},
		{"trade stat without name", `{"kind":"trade_stat_at_least","value":1}`},
		{"empty all_of", `{"kind":"all_of","criteria":[]}`},
		{"malformed nested child", `{"kind":"any_of","criteria":[{"kind":"nope"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCriteria(json.RawMessage(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestCriteria_Progress(t *testing.T) {
	state := testState()

	crit, err := ParseCriteria(json.RawMessage(`{"kind":"lessons_completed","ordinals":[1,2,3,4]}`))
	require.NoError(t, err)
	current, target := crit.Progress(state)
	assert.Equal(t, 2, current)
	assert.Equal(t, 4, target)

	crit, err = ParseCriteria(json.RawMessage(`{"kind":"event_count_at_least","source":"quiz_pass","value":10}`))
	require.NoError(t, err)
	current, target = crit.Progress(state)
	assert.Equal(t, 3, current)
	assert.Equal(t, 10, target)
}
