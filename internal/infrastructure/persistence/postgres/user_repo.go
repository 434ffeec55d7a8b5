package postgres

import (
	"context"
	"fmt"

	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// UserRepository implements profile.UserReader using PostgreSQL.
// Accounts are owned by an external subsystem; the core only reads
// the username and the activity flag.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new user repository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{q: conn}
}

// GetByID returns a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id shared.UserID) (*profile.User, error) {
	query := `SELECT id, username, email, is_active FROM users WHERE id = $1`

	var (
		u      profile.User
		userID string
	)

	err := r.q.QueryRow(ctx, query, id.String()).Scan(&userID, &u.Username, &u.Email, &u.Active)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.ID = shared.UserID(userID)
	return &u, nil
}

// IsActive returns the user's activity flag.
func (r *UserRepository) IsActive(ctx context.Context, id shared.UserID) (bool, error) {
	query := `SELECT is_active FROM users WHERE id = $1`

	var active bool
	if err := r.q.QueryRow(ctx, query, id.String()).Scan(&active); err != nil {
		if IsNoRows(err) {
			return false, shared.ErrUserNotFound
		}
		return false, fmt.Errorf("failed to check user activity: %w", err)
	}

	return active, nil
}
