package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tradequest/tradequest-core/internal/domain/achievement"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// AchievementRepository implements achievement.Catalog and
// achievement.UserAchievementRepository using PostgreSQL.
type AchievementRepository struct {
	q Querier
}

// NewAchievementRepository creates a new achievement repository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{q: conn}
}

const achievementColumns = `
	id, code, name, description, category, rarity, xp_reward, criteria, created_at
`

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// GetByID returns an achievement by its identifier.
func (r *AchievementRepository) GetByID(ctx context.Context, id string) (*achievement.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE id = $1`

	row := r.q.QueryRow(ctx, query, id)
	return scanAchievement(row)
}

// GetByCode returns an achievement by its code.
func (r *AchievementRepository) GetByCode(ctx context.Context, code string) (*achievement.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE code = $1`

	row := r.q.QueryRow(ctx, query, code)
	return scanAchievement(row)
}

// ListAll returns the full achievement catalog.
func (r *AchievementRepository) ListAll(ctx context.Context) ([]*achievement.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements ORDER BY category, code`

	return r.queryAchievements(ctx, query)
}

// ListByCategory returns achievements of a category.
func (r *AchievementRepository) ListByCategory(ctx context.Context, category achievement.Category) ([]*achievement.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE category = $1 ORDER BY code`

	return r.queryAchievements(ctx, query, string(category))
}

func (r *AchievementRepository) queryAchievements(ctx context.Context, query string, args ...interface{}) ([]*achievement.Achievement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var achievements []*achievement.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		achievements = append(achievements, a)
	}

	return achievements, rows.Err()
}

// scanAchievement scans an achievement from a row.
func scanAchievement(row pgx.Row) (*achievement.Achievement, error) {
	var (
		a        achievement.Achievement
		category string
		rarity   string
		criteria []byte
	)

	err := row.Scan(
		&a.ID,
		&a.Code,
		&a.Name,
		&a.Description,
		&category,
		&rarity,
		&a.XPReward,
		&criteria,
		&a.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAchievementNotFound
		}
		return nil, fmt.Errorf("failed to scan achievement: %w", err)
	}

	a.Category = achievement.Category(category)
	a.Rarity = achievement.Rarity(rarity)
	a.Criteria = json.RawMessage(criteria)

	return &a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USER PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Get returns the progress record for a (user, achievement) pair.
func (r *AchievementRepository) Get(ctx context.Context, userID shared.UserID, achievementID string) (*achievement.UserAchievement, error) {
	query := `
		SELECT user_id, achievement_id, progress, completed, unlocked_at, updated_at
		FROM user_achievements
		WHERE user_id = $1 AND achievement_id = $2
	`

	row := r.q.QueryRow(ctx, query, userID.String(), achievementID)
	return scanUserAchievement(row)
}

// Upsert creates or updates a progress record.
func (r *AchievementRepository) Upsert(ctx context.Context, ua *achievement.UserAchievement) error {
	query := `
		INSERT INTO user_achievements (user_id, achievement_id, progress, completed, unlocked_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, achievement_id) DO UPDATE SET
			progress = EXCLUDED.progress,
			completed = EXCLUDED.completed,
			unlocked_at = EXCLUDED.unlocked_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.Exec(ctx, query,
		ua.UserID.String(),
		ua.AchievementID,
		ua.Progress,
		ua.Completed,
		ua.UnlockedAt,
		ua.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user achievement: %w", err)
	}

	return nil
}

// ListByUser returns all progress records of a user.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*achievement.UserAchievement, error) {
	query := `
		SELECT user_id, achievement_id, progress, completed, unlocked_at, updated_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`

	rows, err := r.q.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list user achievements: %w", err)
	}
	defer rows.Close()

	var records []*achievement.UserAchievement
	for rows.Next() {
		ua, err := scanUserAchievement(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, ua)
	}

	return records, rows.Err()
}

// CompletedIDs returns the set of achievement IDs the user has unlocked.
func (r *AchievementRepository) CompletedIDs(ctx context.Context, userID shared.UserID) (map[string]bool, error) {
	query := `
		SELECT achievement_id
		FROM user_achievements
		WHERE user_id = $1 AND completed = TRUE
	`

	rows, err := r.q.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query completed achievements: %w", err)
	}
	defer rows.Close()

	completed := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan achievement id: %w", err)
		}
		completed[id] = true
	}

	return completed, rows.Err()
}

// CountCompleted returns the number of achievements the user has unlocked.
func (r *AchievementRepository) CountCompleted(ctx context.Context, userID shared.UserID) (int, error) {
	query := `
		SELECT count(*)
		FROM user_achievements
		WHERE user_id = $1 AND completed = TRUE
	`

	var count int
	if err := r.q.QueryRow(ctx, query, userID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count completed achievements: %w", err)
	}

	return count, nil
}

// CompletedCounts returns unlock counts for every user in one query.
// Used by the rank recompute to avoid a per-profile round-trip.
func (r *AchievementRepository) CompletedCounts(ctx context.Context) (map[shared.UserID]int, error) {
	query := `
		SELECT user_id, count(*)
		FROM user_achievements
		WHERE completed = TRUE
		GROUP BY user_id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlock counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[shared.UserID]int)
	for rows.Next() {
		var (
			userID string
			count  int
		)
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan unlock count: %w", err)
		}
		counts[shared.UserID(userID)] = count
	}

	return counts, rows.Err()
}

// scanUserAchievement scans a user progress record from a row.
func scanUserAchievement(row pgx.Row) (*achievement.UserAchievement, error) {
	var (
		ua     achievement.UserAchievement
		userID string
	)

	err := row.Scan(
		&userID,
		&ua.AchievementID,
		&ua.Progress,
		&ua.Completed,
		&ua.UnlockedAt,
		&ua.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUnlockNotFound
		}
		return nil, fmt.Errorf("failed to scan user achievement: %w", err)
	}

	ua.UserID = shared.UserID(userID)

	return &ua, nil
}
