package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_Bounds(t *testing.T) {
	tests := []struct {
		name       string
		totalXP    int64
		wantLevel  Level
		wantWithin int64
	}{
		{"zero xp is level 1", 0, 1, 0},
		{"negative xp clamps to zero", -500, 1, 0},
		{"below first threshold", 99, 1, 99},
		{"exactly level 2", 100, 2, 0},
		{"inside level 2", 250, 2, 150},
		{"exactly level 3", 300, 3, 0},
		{"example from curriculum: 500 xp", 500, 3, 200},
		{"exactly level 4", 600, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, within := Calculate(tt.totalXP)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantWithin, within)
		})
	}
}

func TestCalculate_ThresholdRoundTrip(t *testing.T) {
	// На каждом пороге уровень равен ровно этому уровню, остаток нулевой.
	for l := Level(1); l <= MaxLevel; l++ {
		threshold := TotalXPForLevel(l)
		level, within := Calculate(threshold)
		require.Equal(t, l, level, "threshold for level %d", l)
		require.Zero(t, within)
	}
}

func TestCalculate_Monotonic(t *testing.T) {
	prevLevel := Level(0)
	for xp := int64(0); xp <= TotalXPForLevel(MaxLevel)+10_000; xp += 137 {
		level, within := Calculate(xp)
		require.GreaterOrEqual(t, level, prevLevel, "level must never decrease")
		require.GreaterOrEqual(t, within, int64(0))
		require.Equal(t, xp, TotalXPForLevel(level)+within, "xp must be conserved")
		prevLevel = level
	}
}

func TestCalculate_SaturatesAtMaxLevel(t *testing.T) {
	maxThreshold := TotalXPForLevel(MaxLevel)

	level, within := Calculate(maxThreshold)
	assert.Equal(t, Level(MaxLevel), level)
	assert.Zero(t, within)

	// Избыточный XP не теряется: уровень насыщен, остаток растёт.
	level, within = Calculate(maxThreshold + 123_456)
	assert.Equal(t, Level(MaxLevel), level)
	assert.Equal(t, int64(123_456), within)
}

func TestXPToNextLevel(t *testing.T) {
	assert.Equal(t, int64(100), XPToNextLevel(1))
	assert.Equal(t, int64(200), XPToNextLevel(2))
	assert.Equal(t, int64(9_900), XPToNextLevel(99))
	assert.Zero(t, XPToNextLevel(MaxLevel))
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0, ProgressPercent(0))
	assert.Equal(t, 50, ProgressPercent(50))
	assert.Equal(t, 0, ProgressPercent(100))
	assert.Equal(t, 100, ProgressPercent(TotalXPForLevel(MaxLevel)))
	assert.Equal(t, 100, ProgressPercent(TotalXPForLevel(MaxLevel)+1))
}

func TestNewEvent_Validation(t *testing.T) {
	valid := NewEventParams{
		ID:     "evt-1",
		UserID: "8c54e1a2-9f30-47f5-9e7d-5b3a2f1c0d44",
		Level:  1,
		Amount: 500,
		Source: SourceQuizPass,
	}

	t.Run("valid event", func(t *testing.T) {
		event, err := NewEvent(valid)
		require.NoError(t, err)
		assert.Equal(t, SourceQuizPass, event.Source)
		assert.False(t, event.OccurredAt.IsZero())
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		params := valid
		params.Amount = 0
		_, err := NewEvent(params)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		params := valid
		params.Amount = -10
		_, err := NewEvent(params)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("unknown source rejected", func(t *testing.T) {
		params := valid
		params.Source = "casino_jackpot"
		_, err := NewEvent(params)
		assert.ErrorIs(t, err, ErrUnknownSource)
	})

	t.Run("empty user rejected", func(t *testing.T) {
		params := valid
		params.UserID = ""
		_, err := NewEvent(params)
		assert.ErrorIs(t, err, ErrInvalidUserID)
	})
}

func TestSourceEnum(t *testing.T) {
	for _, s := range AllSources() {
		assert.True(t, s.IsValid(), "source %s", s)
	}
	assert.False(t, Source("unknown").IsValid())
	assert.False(t, Source("").IsValid())
}
