// Package jobs contains the scheduled background jobs of TradeQuest
// Core: rank recomputation, catalog validation and the ledger
// consistency audit.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tradequest/tradequest-core/internal/domain/achievement"
	"github.com/tradequest/tradequest-core/internal/domain/leaderboard"
	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// listPageSize is how many profiles are loaded per storage round-trip.
const listPageSize = 500

// RecomputeRanksJob rebuilds the leaderboard snapshot from active
// profiles. Ranks are assigned by total XP descending with user ID as
// a deterministic tie-break, then verified before publication: a
// snapshot with duplicate ranks is never saved.
type RecomputeRanksJob struct {
	profiles     profile.Repository
	leaderboard  leaderboard.Repository
	achievements achievement.UserAchievementRepository
	cache        leaderboard.CacheRepository
	publisher    shared.EventPublisher
	logger       *slog.Logger
}

// NewRecomputeRanksJob creates a new rank recomputation job.
// The cache and publisher are optional.
func NewRecomputeRanksJob(
	profiles profile.Repository,
	board leaderboard.Repository,
	achievements achievement.UserAchievementRepository,
	cache leaderboard.CacheRepository,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *RecomputeRanksJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &RecomputeRanksJob{
		profiles:     profiles,
		leaderboard:  board,
		achievements: achievements,
		cache:        cache,
		publisher:    publisher,
		logger:       logger.With("job", "recompute_ranks"),
	}
}

// Name implements scheduler.Job.
func (j *RecomputeRanksJob) Name() string {
	return "recompute_ranks"
}

// Description implements scheduler.Job.
func (j *RecomputeRanksJob) Description() string {
	return "Rebuilds the leaderboard snapshot from active profiles"
}

// Run implements scheduler.Job.
func (j *RecomputeRanksJob) Run(ctx context.Context) error {
	start := time.Now()

	ranking := leaderboard.NewRanking()

	unlockCounts, err := j.achievements.CompletedCounts(ctx)
	if err != nil {
		return fmt.Errorf("load unlock counts: %w", err)
	}

	var offset int
	for {
		page := shared.Page{Offset: offset, Limit: listPageSize}

		profiles, err := j.profiles.ListActive(ctx, page)
		if err != nil {
			return fmt.Errorf("list active profiles: %w", err)
		}
		if len(profiles) == 0 {
			break
		}

		for _, p := range profiles {
			entry, err := leaderboard.NewEntry(
				p.UserID,
				p.DisplayName,
				p.Character,
				p.TotalXP,
				int(p.Level),
				unlockCounts[p.UserID],
			)
			if err != nil {
				// A corrupt profile must not sink the whole recompute.
				j.logger.Warn("skipping profile",
					"user_id", p.UserID.String(),
					"error", err,
				)
				continue
			}

			if err := ranking.Add(entry); err != nil {
				return fmt.Errorf("add entry for %s: %w", p.UserID, err)
			}
		}

		if len(profiles) < listPageSize {
			break
		}
		offset += listPageSize
	}

	ranking.AssignRanks()

	if err := ranking.VerifyRanks(); err != nil {
		if j.publisher != nil {
			_ = j.publisher.Publish(shared.NewRankInconsistentEvent(err.Error()))
		}
		return shared.WrapError("leaderboard", "RecomputeRanks",
			shared.ErrConsistency, "rank verification failed", err)
	}

	version, err := j.nextVersion(ctx)
	if err != nil {
		return err
	}

	snapshot, err := leaderboard.NewSnapshot(uuid.NewString(), version, ranking)
	if err != nil {
		return shared.WrapError("leaderboard", "RecomputeRanks",
			shared.ErrConsistency, "snapshot rejected", err)
	}

	if err := j.leaderboard.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("save snapshot v%d: %w", version, err)
	}

	if j.cache != nil {
		if err := j.cache.InvalidateAll(ctx); err != nil {
			// Stale pages expire by TTL; the new snapshot is already live.
			j.logger.Warn("cache invalidation failed", "error", err)
		}
	}

	duration := time.Since(start)
	j.logger.Info("snapshot published",
		"version", version,
		"entries", snapshot.TotalUsers,
		"duration", duration.String(),
	)

	if j.publisher != nil {
		event := shared.NewRanksRecomputedEvent(snapshot.ID, snapshot.TotalUsers, duration)
		if err := j.publisher.Publish(event); err != nil {
			j.logger.Warn("failed to publish event", "error", err)
		}
	}

	return nil
}

// nextVersion returns the version for the next snapshot.
func (j *RecomputeRanksJob) nextVersion(ctx context.Context) (int64, error) {
	latest, err := j.leaderboard.GetLatestSnapshot(ctx)
	if err != nil {
		if shared.IsNotFound(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("get latest snapshot: %w", err)
	}

	return latest.Version + 1, nil
}
