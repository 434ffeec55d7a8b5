package query

import (
	"context"
	"fmt"
	"time"

	"github.com/tradequest/tradequest-core/internal/domain/leaderboard"
	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/progression"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROFILE QUERY
// Returns the progression profile together with the level curve context
// (XP within the level, XP to the next one) and the current ranks.
// ══════════════════════════════════════════════════════════════════════════════

// GetProfileQuery contains the query parameters.
type GetProfileQuery struct {
	// UserID is the ID of the user.
	UserID string
}

// Validate validates the query.
func (q GetProfileQuery) Validate() error {
	if !shared.UserID(q.UserID).IsValid() {
		return fmt.Errorf("get_profile: invalid user_id: %q", q.UserID)
	}
	return nil
}

// GetProfileResult contains the profile read model.
type GetProfileResult struct {
	UserID             string    `json:"user_id"`
	DisplayName        string    `json:"display_name"`
	Character          string    `json:"character"`
	Level              int       `json:"level"`
	TotalXP            int64     `json:"total_xp"`
	XPWithinLevel      int64     `json:"xp_within_level"`
	XPToNextLevel      int64     `json:"xp_to_next_level"`
	ProgressPercent    int       `json:"progress_percent"`
	IsMaxLevel         bool      `json:"is_max_level"`
	CanChangeCharacter bool      `json:"can_change_character"`
	RankOverall        int       `json:"rank_overall,omitempty"`
	RankByCharacter    int       `json:"rank_by_character,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// GetProfileHandler handles the GetProfileQuery.
type GetProfileHandler struct {
	profiles    profile.Repository
	leaderboard leaderboard.Repository
}

// NewGetProfileHandler creates a new GetProfileHandler.
// leaderboard may be nil; ranks are then omitted from the result.
func NewGetProfileHandler(profiles profile.Repository, board leaderboard.Repository) *GetProfileHandler {
	return &GetProfileHandler{profiles: profiles, leaderboard: board}
}

// Handle executes the query.
func (h *GetProfileHandler) Handle(ctx context.Context, q GetProfileQuery) (*GetProfileResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetProfile", shared.ErrValidation, err.Error(), err)
	}

	userID := shared.UserID(q.UserID)
	prof, err := h.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.WrapError("query", "GetProfile", shared.ErrNotFound, "profile not found", err)
		}
		return nil, shared.WrapError("query", "GetProfile", shared.ErrTransientStorage, "load profile", err)
	}

	var xpToNext int64
	if !prof.Level.IsMax() {
		xpToNext = progression.XPToNextLevel(prof.Level) - prof.CurrentXP
	}

	result := &GetProfileResult{
		UserID:             q.UserID,
		DisplayName:        prof.DisplayName,
		Character:          string(prof.Character),
		Level:              prof.Level.Int(),
		TotalXP:            prof.TotalXP,
		XPWithinLevel:      prof.CurrentXP,
		XPToNextLevel:      xpToNext,
		ProgressPercent:    progression.ProgressPercent(prof.TotalXP),
		IsMaxLevel:         prof.Level.IsMax(),
		CanChangeCharacter: prof.CanChangeCharacter,
		CreatedAt:          prof.CreatedAt,
	}

	// Ranks come from the latest snapshot; a user absent from the
	// snapshot (created after the last recompute) simply has none yet.
	if h.leaderboard != nil {
		if entry, rankErr := h.leaderboard.GetUserEntry(ctx, userID); rankErr == nil && entry != nil {
			result.RankOverall = int(entry.RankOverall)
			result.RankByCharacter = int(entry.RankByCharacter)
		}
	}
	return result, nil
}
