package command

import (
	"context"
	"fmt"

	"github.com/tradequest/tradequest-core/internal/domain/leaderboard"
	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHANGE CHARACTER COMMAND
// Switches the profile to another trading archetype. Allowed only while
// the profile is below the lock level; afterwards the choice is final.
// ══════════════════════════════════════════════════════════════════════════════

// ChangeCharacterCommand contains the data for a character change.
type ChangeCharacterCommand struct {
	// UserID is the ID of the user changing character.
	UserID string

	// Character is the new character type.
	Character string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ChangeCharacterCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return fmt.Errorf("change_character: invalid user_id: %q", c.UserID)
	}
	if !profile.CharacterType(c.Character).IsValid() {
		return fmt.Errorf("change_character: %w: %q", profile.ErrUnknownCharacter, c.Character)
	}
	return nil
}

// ChangeCharacterResult contains the result of a character change.
type ChangeCharacterResult struct {
	// UserID is the user whose character changed.
	UserID string

	// OldCharacter is the character before the change.
	OldCharacter string

	// NewCharacter is the character after the change.
	NewCharacter string

	// Changed is false when the new character equals the old one.
	Changed bool
}

// ChangeCharacterHandler handles the ChangeCharacterCommand.
type ChangeCharacterHandler struct {
	uow       UnitOfWork
	board     leaderboard.Refresher
	publisher shared.EventPublisher
}

// NewChangeCharacterHandler creates a new ChangeCharacterHandler.
// board may be nil when the leaderboard is not wired.
func NewChangeCharacterHandler(uow UnitOfWork, board leaderboard.Refresher, publisher shared.EventPublisher) *ChangeCharacterHandler {
	return &ChangeCharacterHandler{uow: uow, board: board, publisher: publisher}
}

// Handle executes the character change.
func (h *ChangeCharacterHandler) Handle(ctx context.Context, cmd ChangeCharacterCommand) (*ChangeCharacterResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	userID := shared.UserID(cmd.UserID)
	newCharacter := profile.CharacterType(cmd.Character)
	result := &ChangeCharacterResult{
		UserID:       cmd.UserID,
		NewCharacter: cmd.Character,
	}

	var entry *leaderboard.Entry
	err := h.uow.Within(ctx, func(ctx context.Context, tx TxRepos) error {
		// The lock level depends on the profile level: take the same
		// row lock as XP grants so a concurrent grant cannot slip the
		// profile past the lock mid-change.
		prof, err := tx.Profiles().GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("change_character: lock profile: %w", err)
		}

		result.OldCharacter = string(prof.Character)
		if prof.Character == newCharacter {
			return nil
		}

		if err := prof.ChangeCharacter(newCharacter); err != nil {
			return fmt.Errorf("change_character: %w", err)
		}
		if err := tx.Profiles().Update(ctx, prof); err != nil {
			return fmt.Errorf("change_character: update profile: %w", err)
		}
		result.Changed = true

		// The published leaderboard partitions by character: move the
		// user's row to the new partition right away instead of
		// waiting for the next scheduled recompute.
		unlocked, err := tx.Unlocks().CountCompleted(ctx, userID)
		if err != nil {
			return fmt.Errorf("change_character: count unlocks: %w", err)
		}
		entry, err = leaderboard.NewEntry(
			prof.UserID, prof.DisplayName, prof.Character, prof.TotalXP, prof.Level.Int(), unlocked,
		)
		if err != nil {
			return fmt.Errorf("change_character: build leaderboard entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Changed {
		if h.publisher != nil {
			_ = h.publisher.Publish(shared.NewCharacterChangedEvent(
				cmd.UserID, result.OldCharacter, result.NewCharacter,
			))
		}
		refreshLeaderboardEntry(ctx, h.board, h.publisher, entry)
	}
	return result, nil
}
