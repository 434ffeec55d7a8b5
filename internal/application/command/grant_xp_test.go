package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradequest/tradequest-core/internal/domain/achievement"
	"github.com/tradequest/tradequest-core/internal/domain/leaderboard"
	"github.com/tradequest/tradequest-core/internal/domain/lesson"
	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/progression"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

const testUserID = "8c54e1a2-9f30-47f5-9e7d-5b3a2f1c0d44"

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type memStore struct {
	profiles map[shared.UserID]*profile.Profile
	events   []*progression.Event
	unlocks  map[string]*achievement.UserAchievement
	lessons  map[shared.UserID]map[lesson.Ordinal]*lesson.Progress

	// failAppendAt makes the N-th ledger append return an error,
	// counted across the store's lifetime. Zero disables it.
	failAppendAt int
	appends      int
}

func newMemStore() *memStore {
	return &memStore{
		profiles: make(map[shared.UserID]*profile.Profile),
		unlocks:  make(map[string]*achievement.UserAchievement),
		lessons:  make(map[shared.UserID]map[lesson.Ordinal]*lesson.Progress),
	}
}

// Within runs fn against the store and restores the pre-call state
// when fn fails, mirroring the rollback the pgx unit of work gives
// the handlers.
func (s *memStore) Within(ctx context.Context, fn func(ctx context.Context, tx TxRepos) error) error {
	snap := s.snapshot()
	if err := fn(ctx, s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) snapshot() *memStore {
	snap := newMemStore()
	for id, p := range s.profiles {
		snap.profiles[id] = p.Clone()
	}
	snap.events = append([]*progression.Event(nil), s.events...)
	for k, ua := range s.unlocks {
		cp := *ua
		snap.unlocks[k] = &cp
	}
	for id, m := range s.lessons {
		snap.lessons[id] = make(map[lesson.Ordinal]*lesson.Progress, len(m))
		for ord, p := range m {
			cp := *p
			snap.lessons[id][ord] = &cp
		}
	}
	return snap
}

func (s *memStore) restore(snap *memStore) {
	s.profiles = snap.profiles
	s.events = snap.events
	s.unlocks = snap.unlocks
	s.lessons = snap.lessons
}

func (s *memStore) Profiles() profile.Repository                   { return (*memProfiles)(s) }
func (s *memStore) Ledger() progression.Ledger                     { return (*memLedger)(s) }
func (s *memStore) Unlocks() achievement.UserAchievementRepository { return (*memUnlocks)(s) }
func (s *memStore) LessonProgress() lesson.ProgressRepository      { return (*memLessons)(s) }

type memProfiles memStore

func (r *memProfiles) Create(_ context.Context, p *profile.Profile) error {
	r.profiles[p.UserID] = p
	return nil
}

func (r *memProfiles) GetByUserID(_ context.Context, userID shared.UserID) (*profile.Profile, error) {
	p, ok := r.profiles[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return p, nil
}

func (r *memProfiles) GetByUserIDForUpdate(ctx context.Context, userID shared.UserID) (*profile.Profile, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *memProfiles) Update(_ context.Context, p *profile.Profile) error {
	if _, ok := r.profiles[p.UserID]; !ok {
		return shared.ErrProfileNotFound
	}
	r.profiles[p.UserID] = p
	return nil
}

func (r *memProfiles) ListActive(_ context.Context, _ shared.Page) ([]*profile.Profile, error) {
	out := make([]*profile.Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (r *memProfiles) Count(_ context.Context) (int, error) {
	return len(r.profiles), nil
}

type memLedger memStore

var errLedgerDown = errors.New("ledger unavailable")

func (r *memLedger) Append(_ context.Context, event *progression.Event) error {
	r.appends++
	if r.failAppendAt > 0 && r.appends == r.failAppendAt {
		return errLedgerDown
	}
	r.events = append(r.events, event)
	return nil
}

func (r *memLedger) GetByID(_ context.Context, id progression.EventID) (*progression.Event, error) {
	for _, e := range r.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, shared.ErrEventNotFound
}

func (r *memLedger) ListByUser(_ context.Context, userID shared.UserID, _ shared.Page) ([]*progression.Event, error) {
	out := make([]*progression.Event, 0)
	for _, e := range r.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memLedger) CountBySource(_ context.Context, userID shared.UserID) (map[progression.Source]int, error) {
	out := make(map[progression.Source]int)
	for _, e := range r.events {
		if e.UserID == userID {
			out[e.Source]++
		}
	}
	return out, nil
}

func (r *memLedger) SumAmount(_ context.Context, userID shared.UserID) (int64, error) {
	var sum int64
	for _, e := range r.events {
		if e.UserID == userID {
			sum += int64(e.Amount)
		}
	}
	return sum, nil
}

func (r *memLedger) HasEventOnDay(_ context.Context, userID shared.UserID, source progression.Source, day time.Time) (bool, error) {
	y, m, d := day.UTC().Date()
	for _, e := range r.events {
		ey, em, ed := e.OccurredAt.UTC().Date()
		if e.UserID == userID && e.Source == source && ey == y && em == m && ed == d {
			return true, nil
		}
	}
	return false, nil
}

type memUnlocks memStore

func unlockKey(userID shared.UserID, achievementID string) string {
	return userID.String() + "|" + achievementID
}

func (r *memUnlocks) Get(_ context.Context, userID shared.UserID, achievementID string) (*achievement.UserAchievement, error) {
	ua, ok := r.unlocks[unlockKey(userID, achievementID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return ua, nil
}

func (r *memUnlocks) Upsert(_ context.Context, ua *achievement.UserAchievement) error {
	r.unlocks[unlockKey(ua.UserID, ua.AchievementID)] = ua
	return nil
}

func (r *memUnlocks) ListByUser(_ context.Context, userID shared.UserID) ([]*achievement.UserAchievement, error) {
	out := make([]*achievement.UserAchievement, 0)
	for _, ua := range r.unlocks {
		if ua.UserID == userID {
			out = append(out, ua)
		}
	}
	return out, nil
}

func (r *memUnlocks) CompletedIDs(_ context.Context, userID shared.UserID) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, ua := range r.unlocks {
		if ua.UserID == userID && ua.Completed {
			out[ua.AchievementID] = true
		}
	}
	return out, nil
}

func (r *memUnlocks) CountCompleted(ctx context.Context, userID shared.UserID) (int, error) {
	ids, _ := r.CompletedIDs(ctx, userID)
	return len(ids), nil
}

func (r *memUnlocks) CompletedCounts(_ context.Context) (map[shared.UserID]int, error) {
	out := make(map[shared.UserID]int)
	for _, ua := range r.unlocks {
		if ua.Completed {
			out[ua.UserID]++
		}
	}
	return out, nil
}

type memLessons memStore

func (r *memLessons) Get(_ context.Context, userID shared.UserID, ordinal lesson.Ordinal) (*lesson.Progress, error) {
	p, ok := r.lessons[userID][ordinal]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (r *memLessons) Upsert(_ context.Context, p *lesson.Progress) error {
	if r.lessons[p.UserID] == nil {
		r.lessons[p.UserID] = make(map[lesson.Ordinal]*lesson.Progress)
	}
	r.lessons[p.UserID][p.LessonOrdinal] = p
	return nil
}

func (r *memLessons) ListByUser(_ context.Context, userID shared.UserID) ([]*lesson.Progress, error) {
	out := make([]*lesson.Progress, 0)
	for _, p := range r.lessons[userID] {
		out = append(out, p)
	}
	return out, nil
}

func (r *memLessons) CompletedOrdinals(_ context.Context, userID shared.UserID) (map[lesson.Ordinal]bool, error) {
	out := make(map[lesson.Ordinal]bool)
	for ord, p := range r.lessons[userID] {
		if p.IsCompleted() {
			out[ord] = true
		}
	}
	return out, nil
}

type memCatalog struct {
	items []*achievement.Achievement
}

func (c *memCatalog) GetByID(_ context.Context, id string) (*achievement.Achievement, error) {
	for _, a := range c.items {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (c *memCatalog) GetByCode(_ context.Context, code string) (*achievement.Achievement, error) {
	for _, a := range c.items {
		if a.Code == code {
			return a, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (c *memCatalog) ListAll(_ context.Context) ([]*achievement.Achievement, error) {
	return c.items, nil
}

func (c *memCatalog) ListByCategory(_ context.Context, category achievement.Category) ([]*achievement.Achievement, error) {
	out := make([]*achievement.Achievement, 0)
	for _, a := range c.items {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TEST SETUP
// ══════════════════════════════════════════════════════════════════════════════

func seedProfile(t *testing.T, store *memStore) *profile.Profile {
	t.Helper()
	p, err := profile.NewProfile(profile.NewProfileParams{
		UserID:      testUserID,
		Character:   profile.CharacterAnalyst,
		DisplayName: "chart_wizard",
	})
	require.NoError(t, err)
	store.profiles[p.UserID] = p
	return p
}

// memBoard records leaderboard refreshes.
type memBoard struct {
	refreshed []*leaderboard.Entry
}

func (b *memBoard) RefreshEntry(_ context.Context, entry *leaderboard.Entry) error {
	b.refreshed = append(b.refreshed, entry)
	return nil
}

func newGrantHandler(store *memStore, catalog *memCatalog) *GrantXPHandler {
	return NewGrantXPHandler(
		store,
		catalog,
		achievement.NewEvaluator(nil),
		nil,
		nil,
		nil,
	)
}

func newGrantHandlerWithBoard(store *memStore, catalog *memCatalog, board *memBoard) *GrantXPHandler {
	return NewGrantXPHandler(
		store,
		catalog,
		achievement.NewEvaluator(nil),
		nil,
		board,
		nil,
	)
}

func achievementWithCriteria(id, code string, reward int, criteria string) *achievement.Achievement {
	return &achievement.Achievement{
		ID:       id,
		Code:     code,
		Name:     code,
		Category: achievement.CategoryMilestones,
		Rarity:   achievement.RarityCommon,
		XPReward: reward,
		Criteria: json.RawMessage(criteria),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestGrantXP_AppendsLedgerAndRecomputesLevel(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	handler := newGrantHandler(store, &memCatalog{})

	result, err := handler.Handle(context.Background(), GrantXPCommand{
		UserID: testUserID,
		Amount: 150,
		Source: string(progression.SourceLessonComplete),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.OldLevel)
	assert.Equal(t, 2, result.NewLevel, "150 XP crosses the 100 XP threshold of level 1")
	assert.Equal(t, int64(150), result.TotalXP)
	assert.Equal(t, int64(50), result.XPWithinLevel)
	assert.True(t, result.LeveledUp)

	require.Len(t, store.events, 1)
	assert.Equal(t, progression.SourceLessonComplete, store.events[0].Source)
	assert.Equal(t, progression.XPAmount(150), store.events[0].Amount)

	prof := store.profiles[shared.UserID(testUserID)]
	assert.True(t, prof.IsConsistent(), "profile level must stay derivable from total XP")
}

func TestGrantXP_RejectsInvalidCommands(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	handler := newGrantHandler(store, &memCatalog{})

	tests := []struct {
		name string
		cmd  GrantXPCommand
	}{
		{"zero amount", GrantXPCommand{UserID: testUserID, Amount: 0, Source: "quiz_pass"}},
		{"negative amount", GrantXPCommand{UserID: testUserID, Amount: -10, Source: "quiz_pass"}},
		{"unknown source", GrantXPCommand{UserID: testUserID, Amount: 10, Source: "mystery_box"}},
		{"bad user id", GrantXPCommand{UserID: "nope", Amount: 10, Source: "quiz_pass"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Handle(context.Background(), tt.cmd)
			assert.Error(t, err)
			assert.Empty(t, store.events, "rejected command must not touch the ledger")
		})
	}
}

func TestGrantXP_UnlocksAchievementWithReward(t *testing.T) {
	// Matches the canonical flow: passing the first quiz unlocks
	// first_quiz_pass, whose reward lands in the same transaction.
	store := newMemStore()
	seedProfile(t, store)
	catalog := &memCatalog{items: []*achievement.Achievement{
		achievementWithCriteria("a1", "first_quiz_pass", 50,
			`{"kind":"event_count_at_least","source":"quiz_pass","value":1}`),
	}}
	handler := newGrantHandler(store, catalog)

	result, err := handler.Handle(context.Background(), GrantXPCommand{
		UserID: testUserID,
		Amount: 30,
		Source: string(progression.SourceQuizPass),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"first_quiz_pass"}, result.UnlockedAchievements)
	assert.Equal(t, int64(80), result.TotalXP, "30 quiz XP + 50 unlock reward")

	// The ledger holds both the trigger and the reward event.
	require.Len(t, store.events, 2)
	assert.Equal(t, progression.SourceQuizPass, store.events[0].Source)
	assert.Equal(t, progression.SourceAchievementUnlocked, store.events[1].Source)
	code, ok := store.events[1].Metadata.GetString("achievement_code")
	require.True(t, ok, "reward event must carry the achievement code")
	assert.Equal(t, "first_quiz_pass", code)

	ua := store.unlocks[unlockKey(testUserID, "a1")]
	require.NotNil(t, ua)
	assert.True(t, ua.Completed)
}

func TestGrantXP_UnlockIsIdempotent(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	catalog := &memCatalog{items: []*achievement.Achievement{
		achievementWithCriteria("a1", "first_quiz_pass", 50,
			`{"kind":"event_count_at_least","source":"quiz_pass","value":1}`),
	}}
	handler := newGrantHandler(store, catalog)

	_, err := handler.Handle(context.Background(), GrantXPCommand{
		UserID: testUserID, Amount: 30, Source: string(progression.SourceQuizPass),
	})
	require.NoError(t, err)

	result, err := handler.Handle(context.Background(), GrantXPCommand{
		UserID: testUserID, Amount: 30, Source: string(progression.SourceQuizPass),
	})
	require.NoError(t, err)

	assert.Empty(t, result.UnlockedAchievements, "second pass must not unlock again")

	rewards := 0
	for _, e := range store.events {
		if e.Source == progression.SourceAchievementUnlocked {
			rewards++
		}
	}
	assert.Equal(t, 1, rewards, "the unlock reward must be granted exactly once")
}

func TestGrantXP_ChainedUnlocksReachFixedPoint(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	catalog := &memCatalog{items: []*achievement.Achievement{
		achievementWithCriteria("a1", "first_quiz_pass", 80,
			`{"kind":"event_count_at_least","source":"quiz_pass","value":1}`),
		achievementWithCriteria("a2", "level_two", 0,
			`{"kind":"level_at_least","value":2}`),
	}}
	handler := newGrantHandler(store, catalog)

	result, err := handler.Handle(context.Background(), GrantXPCommand{
		UserID: testUserID,
		Amount: 30,
		Source: string(progression.SourceQuizPass),
	})
	require.NoError(t, err)

	// 30 + 80 reward = 110 total XP = level 2, which unlocks level_two.
	assert.Equal(t, []string{"first_quiz_pass", "level_two"}, result.UnlockedAchievements)
	assert.Equal(t, 2, result.NewLevel)
}

func TestGrantXP_DailyLoginDeduplicated(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	handler := newGrantHandler(store, &memCatalog{})

	day := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	first, err := handler.Handle(context.Background(), GrantXPCommand{
		UserID:     testUserID,
		Amount:     10,
		Source:     string(progression.SourceDailyLogin),
		OccurredAt: day,
	})
	require.NoError(t, err)
	assert.False(t, first.Deduplicated)

	second, err := handler.Handle(context.Background(), GrantXPCommand{
		UserID:     testUserID,
		Amount:     10,
		Source:     string(progression.SourceDailyLogin),
		OccurredAt: day.Add(8 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, second.Deduplicated)
	require.Len(t, store.events, 1, "same UTC day logs exactly one daily_login event")

	third, err := handler.Handle(context.Background(), GrantXPCommand{
		UserID:     testUserID,
		Amount:     10,
		Source:     string(progression.SourceDailyLogin),
		OccurredAt: day.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, third.Deduplicated, "next UTC day grants again")
}

func TestGrantXP_RefreshesLeaderboardEntry(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	catalog := &memCatalog{items: []*achievement.Achievement{
		achievementWithCriteria("a1", "first_quiz_pass", 50,
			`{"kind":"event_count_at_least","source":"quiz_pass","value":1}`),
	}}
	board := &memBoard{}
	handler := newGrantHandlerWithBoard(store, catalog, board)

	_, err := handler.Handle(context.Background(), GrantXPCommand{
		UserID: testUserID,
		Amount: 30,
		Source: string(progression.SourceQuizPass),
	})
	require.NoError(t, err)

	// The denormalized row carries the committed profile state,
	// unlock count included.
	require.Len(t, board.refreshed, 1)
	entry := board.refreshed[0]
	assert.Equal(t, shared.UserID(testUserID), entry.UserID)
	assert.Equal(t, "chart_wizard", entry.DisplayName)
	assert.Equal(t, profile.CharacterAnalyst, entry.Character)
	assert.Equal(t, int64(80), entry.TotalXP, "30 quiz XP + 50 unlock reward")
	assert.Equal(t, 1, entry.AchievementCount)
}

func TestGrantXP_DeduplicatedGrantSkipsRefresh(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	board := &memBoard{}
	handler := newGrantHandlerWithBoard(store, &memCatalog{}, board)

	day := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	_, err := handler.Handle(context.Background(), GrantXPCommand{
		UserID: testUserID, Amount: 10,
		Source: string(progression.SourceDailyLogin), OccurredAt: day,
	})
	require.NoError(t, err)

	second, err := handler.Handle(context.Background(), GrantXPCommand{
		UserID: testUserID, Amount: 10,
		Source: string(progression.SourceDailyLogin), OccurredAt: day.Add(time.Hour),
	})
	require.NoError(t, err)
	require.True(t, second.Deduplicated)

	assert.Len(t, board.refreshed, 1, "a suppressed duplicate changes nothing to refresh")
}

func TestGrantXP_FailedAppendLeavesNoTrace(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	store.failAppendAt = 1
	board := &memBoard{}
	handler := newGrantHandlerWithBoard(store, &memCatalog{}, board)

	_, err := handler.Handle(context.Background(), GrantXPCommand{
		UserID: testUserID,
		Amount: 150,
		Source: string(progression.SourceLessonComplete),
	})
	require.ErrorIs(t, err, errLedgerDown)

	assert.Empty(t, store.events)
	assert.Equal(t, int64(0), store.profiles[shared.UserID(testUserID)].TotalXP)
	assert.Empty(t, board.refreshed, "a rolled back grant must not touch the leaderboard")
}

func TestGrantXP_RecordsCounterProgress(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	catalog := &memCatalog{items: []*achievement.Achievement{
		achievementWithCriteria("a1", "quiz_veteran", 100,
			`{"kind":"event_count_at_least","source":"quiz_pass","value":3}`),
	}}
	handler := newGrantHandler(store, catalog)

	for i := 0; i < 2; i++ {
		_, err := handler.Handle(context.Background(), GrantXPCommand{
			UserID: testUserID,
			Amount: 30,
			Source: string(progression.SourceQuizPass),
		})
		require.NoError(t, err)
	}

	// Two of three quiz passes: the counter is persisted but the
	// achievement stays locked.
	ua := store.unlocks[unlockKey(testUserID, "a1")]
	require.NotNil(t, ua)
	assert.False(t, ua.Completed)
	assert.Equal(t, 2, ua.Progress)

	result, err := handler.Handle(context.Background(), GrantXPCommand{
		UserID: testUserID,
		Amount: 30,
		Source: string(progression.SourceQuizPass),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"quiz_veteran"}, result.UnlockedAchievements)
}

func TestGrantXP_UnknownProfileFails(t *testing.T) {
	store := newMemStore()
	handler := newGrantHandler(store, &memCatalog{})

	_, err := handler.Handle(context.Background(), GrantXPCommand{
		UserID: testUserID,
		Amount: 10,
		Source: string(progression.SourceTradeExecuted),
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
