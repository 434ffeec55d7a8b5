package query

import (
	"context"
	"fmt"
	"time"

	"github.com/tradequest/tradequest-core/internal/domain/achievement"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACHIEVEMENTS QUERY
// Returns the achievement catalog annotated with the user's unlock
// state and progress counters.
// ══════════════════════════════════════════════════════════════════════════════

// GetAchievementsQuery contains the query parameters.
type GetAchievementsQuery struct {
	// UserID is the ID of the user.
	UserID string

	// Category filters by achievement category (empty = all).
	Category string
}

// Validate validates the query.
func (q GetAchievementsQuery) Validate() error {
	if !shared.UserID(q.UserID).IsValid() {
		return fmt.Errorf("get_achievements: invalid user_id: %q", q.UserID)
	}
	if q.Category != "" && !achievement.Category(q.Category).IsValid() {
		return fmt.Errorf("get_achievements: invalid category: %q", q.Category)
	}
	return nil
}

// AchievementDTO is one catalog entry with user state.
type AchievementDTO struct {
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Rarity      string     `json:"rarity"`
	XPReward    int        `json:"xp_reward"`
	Completed   bool       `json:"completed"`
	Progress    int        `json:"progress"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
}

// GetAchievementsResult contains the annotated catalog.
type GetAchievementsResult struct {
	UserID        string            `json:"user_id"`
	Achievements  []*AchievementDTO `json:"achievements"`
	UnlockedCount int               `json:"unlocked_count"`
	CatalogSize   int               `json:"catalog_size"`
}

// GetAchievementsHandler handles the GetAchievementsQuery.
type GetAchievementsHandler struct {
	catalog achievement.Catalog
	unlocks achievement.UserAchievementRepository
}

// NewGetAchievementsHandler creates a new GetAchievementsHandler.
func NewGetAchievementsHandler(catalog achievement.Catalog, unlocks achievement.UserAchievementRepository) *GetAchievementsHandler {
	return &GetAchievementsHandler{catalog: catalog, unlocks: unlocks}
}

// Handle executes the query.
func (h *GetAchievementsHandler) Handle(ctx context.Context, q GetAchievementsQuery) (*GetAchievementsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetAchievements", shared.ErrValidation, err.Error(), err)
	}

	var (
		catalog []*achievement.Achievement
		err     error
	)
	if q.Category != "" {
		catalog, err = h.catalog.ListByCategory(ctx, achievement.Category(q.Category))
	} else {
		catalog, err = h.catalog.ListAll(ctx)
	}
	if err != nil {
		return nil, shared.WrapError("query", "GetAchievements", shared.ErrTransientStorage, "load achievement catalog", err)
	}

	userID := shared.UserID(q.UserID)
	rows, err := h.unlocks.ListByUser(ctx, userID)
	if err != nil {
		return nil, shared.WrapError("query", "GetAchievements", shared.ErrTransientStorage, "load user achievements", err)
	}
	byID := make(map[string]*achievement.UserAchievement, len(rows))
	for _, ua := range rows {
		byID[ua.AchievementID] = ua
	}

	result := &GetAchievementsResult{
		UserID:       q.UserID,
		Achievements: make([]*AchievementDTO, 0, len(catalog)),
		CatalogSize:  len(catalog),
	}
	for _, a := range catalog {
		dto := &AchievementDTO{
			Code:        a.Code,
			Name:        a.Name,
			Description: a.Description,
			Category:    string(a.Category),
			Rarity:      string(a.Rarity),
			XPReward:    a.XPReward,
		}
		if ua, ok := byID[a.ID]; ok {
			dto.Completed = ua.Completed
			dto.Progress = ua.Progress
			dto.UnlockedAt = ua.UnlockedAt
			if ua.Completed {
				result.UnlockedCount++
			}
		}
		result.Achievements = append(result.Achievements, dto)
	}
	return result, nil
}
