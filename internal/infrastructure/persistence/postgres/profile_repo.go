package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/progression"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ProfileRepository implements profile.Repository using PostgreSQL.
type ProfileRepository struct {
	q Querier
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{q: conn}
}

const profileColumns = `
	user_id, character_type, display_name, level, current_xp, total_xp,
	can_change_character, created_at, updated_at
`

// Create inserts a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	query := `
		INSERT INTO profiles (
			user_id, character_type, display_name, level, current_xp, total_xp,
			can_change_character, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.Exec(ctx, query,
		p.UserID.String(),
		string(p.Character),
		p.DisplayName,
		int(p.Level),
		p.CurrentXP,
		p.TotalXP,
		p.CanChangeCharacter,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateName
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// GetByUserID returns a profile by user ID.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID shared.UserID) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`

	row := r.q.QueryRow(ctx, query, userID.String())
	return scanProfile(row)
}

// GetByUserIDForUpdate returns a profile holding a row lock until the
// surrounding transaction ends. Serializes concurrent XP grants for
// the same user.
func (r *ProfileRepository) GetByUserIDForUpdate(ctx context.Context, userID shared.UserID) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1 FOR UPDATE`

	row := r.q.QueryRow(ctx, query, userID.String())
	return scanProfile(row)
}

// Update persists profile changes.
func (r *ProfileRepository) Update(ctx context.Context, p *profile.Profile) error {
	query := `
		UPDATE profiles SET
			character_type = $2,
			display_name = $3,
			level = $4,
			current_xp = $5,
			total_xp = $6,
			can_change_character = $7,
			updated_at = $8
		WHERE user_id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		p.UserID.String(),
		string(p.Character),
		p.DisplayName,
		int(p.Level),
		p.CurrentXP,
		p.TotalXP,
		p.CanChangeCharacter,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateName
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return shared.ErrProfileNotFound
	}

	return nil
}

// ListActive returns profiles of active users ordered by total XP
// descending with user ID as a deterministic tie-break.
func (r *ProfileRepository) ListActive(ctx context.Context, page shared.Page) ([]*profile.Profile, error) {
	page = page.Normalize()

	query := `
		SELECT ` + profileColumns + `
		FROM profiles p
		JOIN users u ON u.id = p.user_id
		WHERE u.is_active = TRUE
		ORDER BY p.total_xp DESC, p.user_id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.q.Query(ctx, query, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list active profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}

// Count returns the number of active user profiles.
func (r *ProfileRepository) Count(ctx context.Context) (int, error) {
	query := `
		SELECT count(*)
		FROM profiles p
		JOIN users u ON u.id = p.user_id
		WHERE u.is_active = TRUE
	`

	var count int
	if err := r.q.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}

	return count, nil
}

// scanProfile scans a profile from a row.
func scanProfile(row pgx.Row) (*profile.Profile, error) {
	var (
		p         profile.Profile
		userID    string
		character string
		level     int
	)

	err := row.Scan(
		&userID,
		&character,
		&p.DisplayName,
		&level,
		&p.CurrentXP,
		&p.TotalXP,
		&p.CanChangeCharacter,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	p.UserID = shared.UserID(userID)
	p.Character = profile.CharacterType(character)
	p.Level = progression.Level(level)

	return &p, nil
}
