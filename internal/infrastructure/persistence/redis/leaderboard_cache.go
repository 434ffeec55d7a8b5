package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tradequest/tradequest-core/internal/domain/leaderboard"
	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// LeaderboardCache implements leaderboard.CacheRepository.
// Pages are keyed by partition, offset and limit; the whole namespace
// is flushed when a new snapshot version is published.
type LeaderboardCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewLeaderboardCache creates a new leaderboard page cache.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{
		cache: cache,
		ttl:   TTLLeaderboardPage,
	}
}

// cachedEntry is the wire form of a leaderboard entry.
type cachedEntry struct {
	UserID          string    `json:"user_id"`
	DisplayName     string    `json:"display_name"`
	Character       string    `json:"character"`
	TotalXP         int64     `json:"total_xp"`
	Level           int       `json:"level"`
	Achievements    int       `json:"achievements"`
	RankOverall     int       `json:"rank_overall"`
	RankByCharacter int       `json:"rank_by_character"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func pageKey(partition leaderboard.Partition, page shared.Page) string {
	return fmt.Sprintf("%spage:%s:%d:%d", PrefixLeaderboard, partition, page.Offset, page.Limit)
}

// GetPage returns a cached page or shared.ErrNotFound on a miss.
func (c *LeaderboardCache) GetPage(ctx context.Context, partition leaderboard.Partition, page shared.Page) ([]*leaderboard.Entry, error) {
	page = page.Normalize()

	var cached []cachedEntry
	if err := c.cache.Get(ctx, pageKey(partition, page), &cached); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	entries := make([]*leaderboard.Entry, len(cached))
	for i, ce := range cached {
		entries[i] = &leaderboard.Entry{
			UserID:           shared.UserID(ce.UserID),
			DisplayName:      ce.DisplayName,
			Character:        profile.CharacterType(ce.Character),
			TotalXP:          ce.TotalXP,
			Level:            ce.Level,
			AchievementCount: ce.Achievements,
			RankOverall:      leaderboard.Rank(ce.RankOverall),
			RankByCharacter:  leaderboard.Rank(ce.RankByCharacter),
			UpdatedAt:        ce.UpdatedAt,
		}
	}

	return entries, nil
}

// SetPage caches a page with the configured TTL.
func (c *LeaderboardCache) SetPage(ctx context.Context, partition leaderboard.Partition, page shared.Page, entries []*leaderboard.Entry) error {
	page = page.Normalize()

	cached := make([]cachedEntry, len(entries))
	for i, entry := range entries {
		cached[i] = cachedEntry{
			UserID:          entry.UserID.String(),
			DisplayName:     entry.DisplayName,
			Character:       string(entry.Character),
			TotalXP:         entry.TotalXP,
			Level:           entry.Level,
			Achievements:    entry.AchievementCount,
			RankOverall:     int(entry.RankOverall),
			RankByCharacter: int(entry.RankByCharacter),
			UpdatedAt:       entry.UpdatedAt,
		}
	}

	return c.cache.Set(ctx, pageKey(partition, page), cached, c.ttl)
}

// InvalidateAll drops every cached leaderboard page.
func (c *LeaderboardCache) InvalidateAll(ctx context.Context) error {
	return c.cache.DeleteByPattern(ctx, PrefixLeaderboard+"page:*")
}
