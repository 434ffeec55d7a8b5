package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

func mustEntry(t *testing.T, id string, ct profile.CharacterType, xp int64) *Entry {
	t.Helper()
	e, err := NewEntry(shared.UserID(id), "user-"+id[:8], ct, xp, 1, 0)
	require.NoError(t, err)
	return e
}

func TestNewEntry_RejectsNegativeAchievements(t *testing.T) {
	_, err := NewEntry(shared.UserID(uidA), "user", profile.CharacterAnalyst, 100, 1, -1)
	assert.ErrorIs(t, err, ErrNegativeAchievements)
}

const (
	uidA = "11111111-1111-4111-8111-111111111111"
	uidB = "22222222-2222-4222-8222-222222222222"
	uidC = "33333333-3333-4333-8333-333333333333"
	uidD = "44444444-4444-4444-8444-444444444444"
	uidE = "55555555-5555-4555-8555-555555555555"
)

func TestRanking_AssignRanks(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add(mustEntry(t, uidC, profile.CharacterAnalyst, 300)))
	require.NoError(t, r.Add(mustEntry(t, uidA, profile.CharacterHodler, 900)))
	require.NoError(t, r.Add(mustEntry(t, uidB, profile.CharacterAnalyst, 500)))

	r.AssignRanks()

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, shared.UserID(uidA), all[0].UserID)
	assert.Equal(t, Rank(1), all[0].RankOverall)
	assert.Equal(t, Rank(2), all[1].RankOverall)
	assert.Equal(t, Rank(3), all[2].RankOverall)

	// Партиция персонажа нумеруется независимо.
	assert.Equal(t, Rank(1), all[0].RankByCharacter) // единственный hodler
	assert.Equal(t, Rank(1), all[1].RankByCharacter) // лучший analyst
	assert.Equal(t, Rank(2), all[2].RankByCharacter)
}

func TestRanking_TieBreaksByUserID(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add(mustEntry(t, uidB, profile.CharacterDayTrader, 700)))
	require.NoError(t, r.Add(mustEntry(t, uidA, profile.CharacterDayTrader, 700)))

	r.AssignRanks()

	all := r.All()
	require.Len(t, all, 2)
	// При равном XP порядок по возрастанию UserID: два пересчёта
	// одного состояния дают одинаковые ранги.
	assert.Equal(t, shared.UserID(uidA), all[0].UserID)
	assert.Equal(t, Rank(1), all[0].RankOverall)
	assert.Equal(t, shared.UserID(uidB), all[1].UserID)
	assert.Equal(t, Rank(2), all[1].RankOverall)
}

func TestRanking_NoDuplicateRanksWithinPartitions(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add(mustEntry(t, uidA, profile.CharacterAnalyst, 100)))
	require.NoError(t, r.Add(mustEntry(t, uidB, profile.CharacterAnalyst, 100)))
	require.NoError(t, r.Add(mustEntry(t, uidC, profile.CharacterRiskTaker, 100)))
	require.NoError(t, r.Add(mustEntry(t, uidD, profile.CharacterRiskTaker, 250)))
	require.NoError(t, r.Add(mustEntry(t, uidE, profile.CharacterHodler, 0)))

	r.AssignRanks()
	require.NoError(t, r.VerifyRanks())

	seen := make(map[Rank]bool)
	for _, e := range r.All() {
		assert.False(t, seen[e.RankOverall], "duplicate overall rank %s", e.RankOverall)
		seen[e.RankOverall] = true
	}

	analysts := r.ForCharacter(profile.CharacterAnalyst)
	require.Len(t, analysts, 2)
	assert.Equal(t, Rank(1), analysts[0].RankByCharacter)
	assert.Equal(t, Rank(2), analysts[1].RankByCharacter)
}

func TestRanking_VerifyRanksDetectsCorruption(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add(mustEntry(t, uidA, profile.CharacterAnalyst, 200)))
	require.NoError(t, r.Add(mustEntry(t, uidB, profile.CharacterAnalyst, 100)))
	r.AssignRanks()

	// Симуляция гонки пересчётов: обе записи получили первый ранг.
	r.All()[1].RankOverall = Rank(1)

	err := r.VerifyRanks()
	assert.ErrorIs(t, err, ErrDuplicateRank)
}

func TestRanking_RejectsDuplicateUser(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add(mustEntry(t, uidA, profile.CharacterAnalyst, 100)))
	err := r.Add(mustEntry(t, uidA, profile.CharacterHodler, 900))
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestSnapshot_BuildAndPage(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add(mustEntry(t, uidA, profile.CharacterAnalyst, 500)))
	require.NoError(t, r.Add(mustEntry(t, uidB, profile.CharacterHodler, 300)))
	require.NoError(t, r.Add(mustEntry(t, uidC, profile.CharacterHodler, 100)))
	r.AssignRanks()

	snap, err := NewSnapshot("snap-1", 7, r)
	require.NoError(t, err)

	assert.Equal(t, int64(7), snap.Version)
	assert.Equal(t, 3, snap.TotalUsers)
	assert.Equal(t, int64(900), snap.TotalXP)
	assert.Equal(t, Rank(2), snap.GetRank(uidB))
	assert.Equal(t, Rank(0), snap.GetRank(uidE), "unknown user has no rank")

	page := snap.Page(shared.Page{Offset: 1, Limit: 1})
	require.Len(t, page, 1)
	assert.Equal(t, shared.UserID(uidB), page[0].UserID)

	page = snap.Page(shared.Page{Offset: 10, Limit: 5})
	assert.Empty(t, page)
}

func TestSnapshot_RefusesCorruptRanking(t *testing.T) {
	r := NewRanking()
	require.NoError(t, r.Add(mustEntry(t, uidA, profile.CharacterAnalyst, 200)))
	require.NoError(t, r.Add(mustEntry(t, uidB, profile.CharacterAnalyst, 100)))
	r.AssignRanks()
	r.All()[1].RankOverall = Rank(1)

	_, err := NewSnapshot("snap-1", 1, r)
	assert.ErrorIs(t, err, ErrDuplicateRank)
}

func TestSnapshot_Staleness(t *testing.T) {
	snap := NewEmptySnapshot("snap-1", 1)
	now := snap.ComputedAt

	assert.False(t, snap.IsStale(time.Minute, now.Add(30*time.Second)))
	assert.True(t, snap.IsStale(time.Minute, now.Add(2*time.Minute)))
}
