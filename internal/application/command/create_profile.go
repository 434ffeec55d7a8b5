package command

import (
	"context"
	"fmt"

	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE PROFILE COMMAND
// Creates the progression profile for a platform user. The profile
// starts at level 1 with an empty ledger.
// ══════════════════════════════════════════════════════════════════════════════

// CreateProfileCommand contains the data for profile creation.
type CreateProfileCommand struct {
	// UserID is the platform user ID.
	UserID string

	// Character is the chosen trading archetype.
	Character string

	// DisplayName is the leaderboard display name.
	DisplayName string
}

// CreateProfileResult contains the result of profile creation.
type CreateProfileResult struct {
	// UserID is the owner of the created profile.
	UserID string

	// Character is the chosen archetype.
	Character string

	// Level is the starting level.
	Level int
}

// CreateProfileHandler handles the CreateProfileCommand.
type CreateProfileHandler struct {
	profiles profile.Repository
	users    profile.UserReader
}

// NewCreateProfileHandler creates a new CreateProfileHandler.
// users may be nil when profiles are provisioned by a trusted upstream.
func NewCreateProfileHandler(profiles profile.Repository, users profile.UserReader) *CreateProfileHandler {
	return &CreateProfileHandler{profiles: profiles, users: users}
}

// Handle executes the profile creation.
func (h *CreateProfileHandler) Handle(ctx context.Context, cmd CreateProfileCommand) (*CreateProfileResult, error) {
	if h.users != nil {
		active, err := h.users.IsActive(ctx, shared.UserID(cmd.UserID))
		if err != nil {
			return nil, fmt.Errorf("create_profile: check user: %w", err)
		}
		if !active {
			return nil, fmt.Errorf("create_profile: %w", shared.ErrUserNotActive)
		}
	}

	prof, err := profile.NewProfile(profile.NewProfileParams{
		UserID:      shared.UserID(cmd.UserID),
		Character:   profile.CharacterType(cmd.Character),
		DisplayName: cmd.DisplayName,
	})
	if err != nil {
		return nil, fmt.Errorf("create_profile: %w", err)
	}

	if err := h.profiles.Create(ctx, prof); err != nil {
		return nil, fmt.Errorf("create_profile: save: %w", err)
	}

	return &CreateProfileResult{
		UserID:    cmd.UserID,
		Character: string(prof.Character),
		Level:     prof.Level.Int(),
	}, nil
}
