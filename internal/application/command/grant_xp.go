package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tradequest/tradequest-core/internal/domain/achievement"
	"github.com/tradequest/tradequest-core/internal/domain/leaderboard"
	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/progression"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
	"github.com/tradequest/tradequest-core/internal/domain/trading"
	"github.com/tradequest/tradequest-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRANT XP COMMAND
// The single write path for experience points: appends a ledger event,
// recomputes the profile level and re-evaluates achievements, all in
// one transaction. Every other command that awards XP goes through this
// handler.
// ══════════════════════════════════════════════════════════════════════════════

// GrantXPCommand contains the data for one XP grant.
type GrantXPCommand struct {
	// UserID is the ID of the user receiving XP.
	UserID string

	// Amount is the XP amount. Must be strictly positive.
	Amount int

	// Source is the progression event source (e.g. "lesson_complete").
	Source string

	// OccurredAt is when the triggering action happened
	// (defaults to now if zero).
	OccurredAt time.Time

	// Metadata contains source-specific data (lesson ordinal, trade id...).
	Metadata shared.Metadata

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command before any storage mutation.
func (c GrantXPCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return fmt.Errorf("grant_xp: invalid user_id: %q", c.UserID)
	}
	if c.Amount <= 0 {
		return fmt.Errorf("grant_xp: %w: got %d", progression.ErrInvalidAmount, c.Amount)
	}
	if !progression.Source(c.Source).IsValid() {
		return fmt.Errorf("grant_xp: %w: %q", progression.ErrUnknownSource, c.Source)
	}
	return nil
}

// GrantXPResult contains the result of a grant.
type GrantXPResult struct {
	// EventID is the ID of the appended ledger event.
	EventID string

	// UserID is the user the XP was granted to.
	UserID string

	// Deduplicated is true when the grant was suppressed as a
	// duplicate (daily_login already recorded for the UTC day).
	Deduplicated bool

	// OldLevel is the level before the grant.
	OldLevel int

	// NewLevel is the level after the grant and any unlock rewards.
	NewLevel int

	// TotalXP is the lifetime XP after the grant.
	TotalXP int64

	// XPWithinLevel is the XP inside the current level.
	XPWithinLevel int64

	// LeveledUp is true when NewLevel > OldLevel.
	LeveledUp bool

	// UnlockedAchievements lists codes unlocked by this grant,
	// in unlock order.
	UnlockedAchievements []string

	// Events contains domain events generated by the grant.
	Events []shared.Event

	// GrantedAt is when the ledger event was recorded.
	GrantedAt time.Time

	// entry is the refreshed leaderboard row for the user, built from
	// the committed profile state. Nil for deduplicated grants.
	entry *leaderboard.Entry
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GrantXPHandler handles the GrantXPCommand.
type GrantXPHandler struct {
	uow       UnitOfWork
	catalog   achievement.Catalog
	evaluator *achievement.Evaluator
	stats     trading.StatsProvider
	board     leaderboard.Refresher
	publisher shared.EventPublisher
}

// NewGrantXPHandler creates a new GrantXPHandler.
// stats may be nil when the trading service is not wired; trade-based
// criteria then evaluate against zero stats. board may be nil when the
// leaderboard is not wired.
func NewGrantXPHandler(
	uow UnitOfWork,
	catalog achievement.Catalog,
	evaluator *achievement.Evaluator,
	stats trading.StatsProvider,
	board leaderboard.Refresher,
	publisher shared.EventPublisher,
) *GrantXPHandler {
	return &GrantXPHandler{
		uow:       uow,
		catalog:   catalog,
		evaluator: evaluator,
		stats:     stats,
		board:     board,
		publisher: publisher,
	}
}

// Handle executes the grant in its own transaction.
func (h *GrantXPHandler) Handle(ctx context.Context, cmd GrantXPCommand) (*GrantXPResult, error) {
	var result *GrantXPResult
	err := h.uow.Within(ctx, func(ctx context.Context, tx TxRepos) error {
		var txErr error
		result, txErr = h.HandleInTx(ctx, tx, cmd)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	// Events are published only after the transaction commits.
	if h.publisher != nil {
		for _, event := range result.Events {
			_ = h.publisher.Publish(event)
		}
	}
	refreshLeaderboardEntry(ctx, h.board, h.publisher, result.entry)
	return result, nil
}

// HandleInTx executes the grant inside an already-open unit of work.
// Commands that bundle several grants with other state transitions
// (quiz awards) call it directly so everything commits atomically.
// Domain events stay in the result: the caller publishes them after
// its transaction commits.
func (h *GrantXPHandler) HandleInTx(ctx context.Context, tx TxRepos, cmd GrantXPCommand) (*GrantXPResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	userID := shared.UserID(cmd.UserID)
	source := progression.Source(cmd.Source)
	occurredAt := cmd.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = timeutil.Now()
	}

	catalog, err := h.catalog.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("grant_xp: load achievement catalog: %w", err)
	}

	// Trading stats come from an external service. Unavailability must
	// not block XP grants: trade criteria see zero stats and will be
	// re-evaluated on the next grant.
	tradeStats := trading.ZeroStats(userID)
	if h.stats != nil {
		if ts, statsErr := h.stats.GetStats(ctx, userID); statsErr == nil {
			tradeStats = ts
		}
	}

	result := &GrantXPResult{
		UserID:               cmd.UserID,
		UnlockedAchievements: make([]string, 0),
		Events:               make([]shared.Event, 0),
		GrantedAt:            occurredAt,
	}

	if source == progression.SourceDailyLogin {
		seen, dupErr := tx.Ledger().HasEventOnDay(ctx, userID, source, occurredAt)
		if dupErr != nil {
			return nil, fmt.Errorf("grant_xp: daily login dedup: %w", dupErr)
		}
		if seen {
			result.Deduplicated = true
			return result, nil
		}
	}

	// Row lock serializes concurrent grants for the same user:
	// the ledger stays append-only and the level recompute never
	// observes a torn profile.
	prof, err := tx.Profiles().GetByUserIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("grant_xp: lock profile: %w", err)
	}

	event, err := progression.NewEvent(progression.NewEventParams{
		ID:       progression.EventID(uuid.New().String()),
		UserID:   userID,
		Level:    prof.Level.Int(),
		Amount:   progression.XPAmount(cmd.Amount),
		Source:   source,
		Metadata: cmd.Metadata,
	})
	if err != nil {
		return nil, err
	}
	event.OccurredAt = occurredAt
	if appendErr := tx.Ledger().Append(ctx, event); appendErr != nil {
		return nil, fmt.Errorf("grant_xp: append ledger event: %w", appendErr)
	}
	result.EventID = event.ID.String()

	oldLevel, err := prof.ApplyXP(progression.XPAmount(cmd.Amount))
	if err != nil {
		return nil, err
	}
	result.OldLevel = oldLevel.Int()

	result.Events = append(result.Events, shared.NewXPGainedEvent(
		cmd.UserID, result.EventID, cmd.Source, cmd.Amount, prof.TotalXP, prof.Level.Int(),
	))

	if unlockErr := h.evaluateUnlocks(ctx, tx, prof, catalog, tradeStats, result); unlockErr != nil {
		return nil, unlockErr
	}

	if updateErr := tx.Profiles().Update(ctx, prof); updateErr != nil {
		return nil, fmt.Errorf("grant_xp: update profile: %w", updateErr)
	}

	result.NewLevel = prof.Level.Int()
	result.TotalXP = prof.TotalXP
	result.XPWithinLevel = prof.CurrentXP
	result.LeveledUp = result.NewLevel > result.OldLevel
	if result.LeveledUp {
		result.Events = append(result.Events, shared.NewLevelUpEvent(
			cmd.UserID, result.OldLevel, result.NewLevel, prof.TotalXP,
		))
	}

	unlocked, err := tx.Unlocks().CountCompleted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("grant_xp: count unlocks: %w", err)
	}
	entry, err := leaderboard.NewEntry(
		prof.UserID, prof.DisplayName, prof.Character, prof.TotalXP, prof.Level.Int(), unlocked,
	)
	if err != nil {
		return nil, fmt.Errorf("grant_xp: build leaderboard entry: %w", err)
	}
	result.entry = entry
	return result, nil
}

// refreshLeaderboardEntry pushes the user's committed profile state
// into the published leaderboard snapshot. Refresh failures are not
// fatal: the snapshot is derived state and the next scheduled
// recompute repairs it.
func refreshLeaderboardEntry(
	ctx context.Context,
	board leaderboard.Refresher,
	publisher shared.EventPublisher,
	entry *leaderboard.Entry,
) {
	if board == nil || entry == nil {
		return
	}
	if err := board.RefreshEntry(ctx, entry); err != nil {
		return
	}
	if publisher != nil {
		_ = publisher.Publish(shared.NewEntryRefreshedEvent(
			entry.UserID.String(), entry.TotalXP, entry.Level, entry.AchievementCount,
		))
	}
}

// evaluateUnlocks runs the achievement evaluator inside the grant
// transaction. Unlock rewards append further ledger events and feed
// back into the evaluated state until a fixed point.
func (h *GrantXPHandler) evaluateUnlocks(
	ctx context.Context,
	tx TxRepos,
	prof *profile.Profile,
	catalog []*achievement.Achievement,
	tradeStats trading.Stats,
	result *GrantXPResult,
) error {
	counts, err := tx.Ledger().CountBySource(ctx, prof.UserID)
	if err != nil {
		return fmt.Errorf("grant_xp: count ledger sources: %w", err)
	}
	completedIDs, err := tx.Unlocks().CompletedIDs(ctx, prof.UserID)
	if err != nil {
		return fmt.Errorf("grant_xp: load unlocked achievements: %w", err)
	}
	completedLessons, err := tx.LessonProgress().CompletedOrdinals(ctx, prof.UserID)
	if err != nil {
		return fmt.Errorf("grant_xp: load completed lessons: %w", err)
	}
	lessonSet := make(map[int]bool, len(completedLessons))
	for ord := range completedLessons {
		lessonSet[ord.Int()] = true
	}

	state := &achievement.UserState{
		Level:            prof.Level.Int(),
		TotalXP:          prof.TotalXP,
		EventCounts:      counts,
		CompletedLessons: lessonSet,
		UnlockedCount:    len(completedIDs),
		Trade:            tradeStats,
	}

	newly, err := h.evaluator.Evaluate(catalog, completedIDs, state, func(a *achievement.Achievement) error {
		ua, getErr := tx.Unlocks().Get(ctx, prof.UserID, a.ID)
		if getErr != nil {
			if !shared.IsNotFound(getErr) {
				return fmt.Errorf("grant_xp: load unlock row: %w", getErr)
			}
			ua = achievement.NewUserAchievement(prof.UserID, a.ID)
		}
		if completeErr := ua.Complete(); completeErr != nil {
			// Already completed: another pass raced us inside the same
			// evaluation. Treat as settled.
			if errors.Is(completeErr, achievement.ErrAlreadyCompleted) {
				return nil
			}
			return completeErr
		}
		if upsertErr := tx.Unlocks().Upsert(ctx, ua); upsertErr != nil {
			return fmt.Errorf("grant_xp: persist unlock: %w", upsertErr)
		}

		if a.XPReward > 0 {
			reward, rewardErr := progression.NewEvent(progression.NewEventParams{
				ID:     progression.EventID(uuid.New().String()),
				UserID: prof.UserID,
				Level:  prof.Level.Int(),
				Amount: progression.XPAmount(a.XPReward),
				Source: progression.SourceAchievementUnlocked,
				Metadata: shared.Metadata{
					"achievement_code": a.Code,
				},
			})
			if rewardErr != nil {
				return rewardErr
			}
			if appendErr := tx.Ledger().Append(ctx, reward); appendErr != nil {
				return fmt.Errorf("grant_xp: append reward event: %w", appendErr)
			}
			if _, applyErr := prof.ApplyXP(progression.XPAmount(a.XPReward)); applyErr != nil {
				return applyErr
			}
		}

		// Feed the reward back into the evaluated state.
		state.Level = prof.Level.Int()
		state.TotalXP = prof.TotalXP
		state.EventCounts[progression.SourceAchievementUnlocked]++

		result.UnlockedAchievements = append(result.UnlockedAchievements, a.Code)
		result.Events = append(result.Events, shared.NewAchievementUnlockedEvent(
			prof.UserID.String(), a.ID, a.Code, string(a.Rarity), a.XPReward,
		))
		return nil
	})
	if err != nil {
		return err
	}

	unlockedNow := make(map[string]bool, len(newly))
	for _, a := range newly {
		unlockedNow[a.ID] = true
	}
	return h.recordCounterProgress(ctx, tx, prof, catalog, completedIDs, unlockedNow, state, result)
}

// recordCounterProgress persists intermediate progress toward
// counter-based achievements that are still locked after evaluation,
// so clients can render "7 of 10" without re-deriving the counters.
func (h *GrantXPHandler) recordCounterProgress(
	ctx context.Context,
	tx TxRepos,
	prof *profile.Profile,
	catalog []*achievement.Achievement,
	completedIDs map[string]bool,
	unlockedNow map[string]bool,
	state *achievement.UserState,
	result *GrantXPResult,
) error {
	for _, a := range catalog {
		if completedIDs[a.ID] || unlockedNow[a.ID] {
			continue
		}
		current, target := h.evaluator.ProgressFor(a, state)
		if target == 0 || current <= 0 {
			continue
		}

		ua, err := tx.Unlocks().Get(ctx, prof.UserID, a.ID)
		if err != nil {
			if !shared.IsNotFound(err) {
				return fmt.Errorf("grant_xp: load progress row: %w", err)
			}
			ua = achievement.NewUserAchievement(prof.UserID, a.ID)
		}
		if current <= ua.Progress {
			continue
		}
		if recordErr := ua.RecordProgress(current); recordErr != nil {
			return recordErr
		}
		if upsertErr := tx.Unlocks().Upsert(ctx, ua); upsertErr != nil {
			return fmt.Errorf("grant_xp: persist progress: %w", upsertErr)
		}
		result.Events = append(result.Events, shared.NewAchievementProgressEvent(
			prof.UserID.String(), a.ID, a.Code, current, target,
		))
	}
	return nil
}
