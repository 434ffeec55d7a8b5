// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/tradequest/tradequest-core/internal/domain/leaderboard"
	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Returns a page of the current leaderboard snapshot, overall or
// partitioned by character type. Reads go through the page cache when
// one is wired; the snapshot itself is the read model.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery contains the query parameters.
type GetLeaderboardQuery struct {
	// Character filters the leaderboard to one character partition.
	// Empty means the overall leaderboard.
	Character string

	// Offset is the zero-based position of the first entry.
	Offset int

	// Limit is the page size.
	Limit int
}

// Validate validates the query.
func (q GetLeaderboardQuery) Validate() error {
	if q.Character != "" && !profile.CharacterType(q.Character).IsValid() {
		return fmt.Errorf("get_leaderboard: %w: %q", profile.ErrUnknownCharacter, q.Character)
	}
	return nil
}

// LeaderboardEntryDTO is one row of the response.
type LeaderboardEntryDTO struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Character   string `json:"character"`
	Level       int    `json:"level"`
	TotalXP     int64  `json:"total_xp"`
}

// GetLeaderboardResult contains the requested page.
type GetLeaderboardResult struct {
	Partition  string                 `json:"partition"`
	Entries    []*LeaderboardEntryDTO `json:"entries"`
	TotalUsers int64                  `json:"total_users"`
	Offset     int                    `json:"offset"`
	Limit      int                    `json:"limit"`
	ComputedAt time.Time              `json:"computed_at"`
}

// GetLeaderboardHandler handles the GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	repo  leaderboard.Repository
	cache leaderboard.CacheRepository
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler.
// cache may be nil; reads then always hit the repository.
func NewGetLeaderboardHandler(repo leaderboard.Repository, cache leaderboard.CacheRepository) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{repo: repo, cache: cache}
}

// Handle executes the query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, err.Error(), err)
	}

	page := shared.Page{Offset: q.Offset, Limit: q.Limit}.Normalize()
	partition := leaderboard.PartitionOverall
	if q.Character != "" {
		partition = leaderboard.PartitionForCharacter(profile.CharacterType(q.Character))
	}

	snapshot, err := h.repo.GetLatestSnapshot(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrNotFound, "no published snapshot", err)
	}

	entries, total, err := h.loadPage(ctx, snapshot, partition, page, q)
	if err != nil {
		return nil, err
	}

	result := &GetLeaderboardResult{
		Partition:  partition.String(),
		Entries:    make([]*LeaderboardEntryDTO, 0, len(entries)),
		TotalUsers: total,
		Offset:     page.Offset,
		Limit:      page.Limit,
		ComputedAt: snapshot.ComputedAt,
	}
	for _, e := range entries {
		rank := e.RankOverall
		if partition != leaderboard.PartitionOverall {
			rank = e.RankByCharacter
		}
		result.Entries = append(result.Entries, &LeaderboardEntryDTO{
			Rank:        int(rank),
			UserID:      e.UserID.String(),
			DisplayName: e.DisplayName,
			Character:   string(e.Character),
			Level:       e.Level,
			TotalXP:     e.TotalXP,
		})
	}
	return result, nil
}

func (h *GetLeaderboardHandler) loadPage(
	ctx context.Context,
	snapshot *leaderboard.Snapshot,
	partition leaderboard.Partition,
	page shared.Page,
	q GetLeaderboardQuery,
) ([]*leaderboard.Entry, int64, error) {
	// The cache serves only the overall partition: its total is known
	// from the snapshot without an extra count query.
	if h.cache != nil && partition == leaderboard.PartitionOverall {
		if cached, err := h.cache.GetPage(ctx, partition, page); err == nil {
			return cached, int64(snapshot.TotalUsers), nil
		}
	}

	var (
		entries []*leaderboard.Entry
		total   int64
		err     error
	)
	if partition == leaderboard.PartitionOverall {
		entries, total, err = h.repo.GetPage(ctx, page)
	} else {
		entries, total, err = h.repo.GetCharacterPage(ctx, profile.CharacterType(q.Character), page)
	}
	if err != nil {
		return nil, 0, shared.WrapError("query", "GetLeaderboard", shared.ErrTransientStorage, "load leaderboard page", err)
	}

	if h.cache != nil && partition == leaderboard.PartitionOverall {
		// Cache write failure is not worth surfacing; the next reader
		// will repopulate.
		_ = h.cache.SetPage(ctx, partition, page, entries)
	}
	return entries, total, nil
}
