package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradequest/tradequest-core/internal/domain/progression"
)

const testUserID = "8c54e1a2-9f30-47f5-9e7d-5b3a2f1c0d44"

func newTestProfile(t *testing.T) *Profile {
	t.Helper()
	p, err := NewProfile(NewProfileParams{
		UserID:      testUserID,
		Character:   CharacterAnalyst,
		DisplayName: "chart_wizard",
	})
	require.NoError(t, err)
	return p
}

func TestNewProfile(t *testing.T) {
	p := newTestProfile(t)

	assert.Equal(t, progression.Level(1), p.Level)
	assert.Zero(t, p.TotalXP)
	assert.Zero(t, p.CurrentXP)
	assert.True(t, p.CanChangeCharacter)
	assert.True(t, p.IsConsistent())
}

func TestNewProfile_Validation(t *testing.T) {
	t.Run("unknown character", func(t *testing.T) {
		_, err := NewProfile(NewProfileParams{
			UserID:      testUserID,
			Character:   "gambler",
			DisplayName: "chart_wizard",
		})
		assert.ErrorIs(t, err, ErrUnknownCharacter)
	})

	t.Run("short display name", func(t *testing.T) {
		_, err := NewProfile(NewProfileParams{
			UserID:      testUserID,
			Character:   CharacterHodler,
			DisplayName: "x",
		})
		assert.ErrorIs(t, err, ErrInvalidDisplayName)
	})
}

func TestProfile_ApplyXP(t *testing.T) {
	p := newTestProfile(t)

	oldLevel, err := p.ApplyXP(500)
	require.NoError(t, err)

	assert.Equal(t, progression.Level(1), oldLevel)
	assert.Equal(t, int64(500), p.TotalXP)

	wantLevel, wantWithin := progression.Calculate(500)
	assert.Equal(t, wantLevel, p.Level)
	assert.Equal(t, wantWithin, p.CurrentXP)
	assert.True(t, p.IsConsistent())
}

func TestProfile_ApplyXP_Associativity(t *testing.T) {
	// Итоговое состояние зависит только от суммы начислений,
	// не от их порядка или разбиения на порции.
	batches := [][]progression.XPAmount{
		{1500},
		{500, 1000},
		{1000, 500},
		{300, 300, 300, 300, 300},
	}

	for _, batch := range batches {
		p := newTestProfile(t)
		for _, amount := range batch {
			_, err := p.ApplyXP(amount)
			require.NoError(t, err)
		}

		assert.Equal(t, int64(1500), p.TotalXP)
		wantLevel, wantWithin := progression.Calculate(1500)
		assert.Equal(t, wantLevel, p.Level)
		assert.Equal(t, wantWithin, p.CurrentXP)
	}
}

func TestProfile_ApplyXP_RejectsNonPositive(t *testing.T) {
	p := newTestProfile(t)

	_, err := p.ApplyXP(0)
	assert.ErrorIs(t, err, progression.ErrInvalidAmount)

	_, err = p.ApplyXP(-100)
	assert.ErrorIs(t, err, progression.ErrInvalidAmount)

	assert.Zero(t, p.TotalXP, "failed grant must not mutate the profile")
}

func TestProfile_ApplyXP_LocksCharacterChange(t *testing.T) {
	p := newTestProfile(t)

	// Уровень 10 требует 50*10*9 = 4500 суммарного XP.
	xpForLockLevel := progression.TotalXPForLevel(CharacterChangeMaxLevel)
	_, err := p.ApplyXP(progression.XPAmount(xpForLockLevel))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, p.Level.Int(), CharacterChangeMaxLevel)
	assert.False(t, p.CanChangeCharacter)
}

func TestProfile_ChangeCharacter(t *testing.T) {
	t.Run("allowed below lock level", func(t *testing.T) {
		p := newTestProfile(t)
		require.NoError(t, p.ChangeCharacter(CharacterDayTrader))
		assert.Equal(t, CharacterDayTrader, p.Character)
		assert.False(t, p.CanChangeCharacter, "a successful change is one-shot")
	})

	t.Run("second change rejected even below lock level", func(t *testing.T) {
		p := newTestProfile(t)
		require.NoError(t, p.ChangeCharacter(CharacterHodler))

		assert.ErrorIs(t, p.ChangeCharacter(CharacterDayTrader), ErrCharacterChangeLocked)
		assert.Equal(t, CharacterHodler, p.Character)
	})

	t.Run("unknown character rejected", func(t *testing.T) {
		p := newTestProfile(t)
		assert.ErrorIs(t, p.ChangeCharacter("gambler"), ErrUnknownCharacter)
	})

	t.Run("locked after reaching lock level", func(t *testing.T) {
		p := newTestProfile(t)
		_, err := p.ApplyXP(progression.XPAmount(progression.TotalXPForLevel(CharacterChangeMaxLevel)))
		require.NoError(t, err)

		assert.ErrorIs(t, p.ChangeCharacter(CharacterHodler), ErrCharacterChangeLocked)
		assert.Equal(t, CharacterAnalyst, p.Character)
	})
}

func TestProfile_IsConsistent(t *testing.T) {
	p := newTestProfile(t)
	_, err := p.ApplyXP(777)
	require.NoError(t, err)
	assert.True(t, p.IsConsistent())

	// Ручная порча производного поля должна детектироваться аудитом.
	p.Level = 50
	assert.False(t, p.IsConsistent())
}

func TestCharacterTypeEnum(t *testing.T) {
	for _, c := range AllCharacterTypes() {
		assert.True(t, c.IsValid(), "character %s", c)
	}
	assert.False(t, CharacterType("wizard").IsValid())
}
