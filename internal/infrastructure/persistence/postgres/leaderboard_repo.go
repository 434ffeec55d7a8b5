package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tradequest/tradequest-core/internal/domain/leaderboard"
	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// defaultSnapshotRetention is how many published snapshot versions to
// keep. Older versions are pruned on publish.
const defaultSnapshotRetention = 5

// LeaderboardRepository implements leaderboard.Repository using PostgreSQL.
// Snapshots are published in a single transaction: readers see either
// the previous version in full or the new one in full.
type LeaderboardRepository struct {
	conn      *Connection
	retention int
}

// NewLeaderboardRepository creates a new leaderboard repository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn, retention: defaultSnapshotRetention}
}

// SetSnapshotRetention overrides how many snapshot versions survive
// pruning. Values below 1 are ignored.
func (r *LeaderboardRepository) SetSnapshotRetention(n int) {
	if n >= 1 {
		r.retention = n
	}
}

// SaveSnapshot publishes a new snapshot, replacing the current one.
func (r *LeaderboardRepository) SaveSnapshot(ctx context.Context, snapshot *leaderboard.Snapshot) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO leaderboard_snapshots (id, version, computed_at, total_users, total_xp)
			VALUES ($1, $2, $3, $4, $5)
		`,
			snapshot.ID,
			snapshot.Version,
			snapshot.ComputedAt,
			snapshot.TotalUsers,
			snapshot.TotalXP,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("%w: snapshot version %d already published",
					shared.ErrConflict, snapshot.Version)
			}
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}

		batch := &pgx.Batch{}
		for _, entry := range snapshot.Entries {
			batch.Queue(`
				INSERT INTO leaderboard_entries (
					snapshot_id, user_id, display_name, character_type,
					total_xp, level, achievement_count, rank_overall, rank_by_character, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`,
				snapshot.ID,
				entry.UserID.String(),
				entry.DisplayName,
				string(entry.Character),
				entry.TotalXP,
				entry.Level,
				entry.AchievementCount,
				int(entry.RankOverall),
				int(entry.RankByCharacter),
				entry.UpdatedAt,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for range snapshot.Entries {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				if IsUniqueViolation(err) {
					return fmt.Errorf("%w: duplicate rank in snapshot v%d",
						shared.ErrConsistency, snapshot.Version)
				}
				return fmt.Errorf("failed to insert snapshot entry: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to close snapshot batch: %w", err)
		}

		// Prune old versions, keeping a short history.
		_, err = tx.Exec(ctx, `
			DELETE FROM leaderboard_snapshots
			WHERE version <= $1 - $2
		`, snapshot.Version, r.retention)
		if err != nil {
			return fmt.Errorf("failed to prune old snapshots: %w", err)
		}

		return nil
	})
}

// RefreshEntry upserts one user's denormalized row in the current
// snapshot after a profile mutation. Published ranks stay as they are
// until the next recompute; a user absent from the snapshot is appended
// to the tail of both partitions. Before the first snapshot is
// published there is nothing to refresh.
func (r *LeaderboardRepository) RefreshEntry(ctx context.Context, entry *leaderboard.Entry) error {
	if entry == nil {
		return leaderboard.ErrNilEntry
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var snapshotID string

		// The snapshot row lock serializes concurrent refreshes so two
		// new users cannot claim the same tail rank.
		err := tx.QueryRow(ctx, `
			SELECT id
			FROM leaderboard_snapshots
			ORDER BY version DESC
			LIMIT 1
			FOR UPDATE
		`).Scan(&snapshotID)
		if err != nil {
			if IsNoRows(err) {
				return nil
			}
			return fmt.Errorf("failed to query latest snapshot: %w", err)
		}

		var (
			oldCharacter    string
			rankByCharacter int
		)
		err = tx.QueryRow(ctx, `
			SELECT character_type, rank_by_character
			FROM leaderboard_entries
			WHERE snapshot_id = $1 AND user_id = $2
		`, snapshotID, entry.UserID.String()).Scan(&oldCharacter, &rankByCharacter)

		switch {
		case err == nil:
			// A character change moves the row to the tail of the new
			// partition: its published rank there is not known yet.
			if oldCharacter != string(entry.Character) {
				rankByCharacter, err = r.nextPartitionRank(ctx, tx, snapshotID, string(entry.Character))
				if err != nil {
					return err
				}
			}
			_, err = tx.Exec(ctx, `
				UPDATE leaderboard_entries
				SET display_name = $3, character_type = $4, total_xp = $5,
				    level = $6, achievement_count = $7, rank_by_character = $8,
				    updated_at = $9
				WHERE snapshot_id = $1 AND user_id = $2
			`,
				snapshotID,
				entry.UserID.String(),
				entry.DisplayName,
				string(entry.Character),
				entry.TotalXP,
				entry.Level,
				entry.AchievementCount,
				rankByCharacter,
				entry.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to refresh leaderboard entry: %w", err)
			}
			return nil

		case IsNoRows(err):
			var rankOverall int
			err = tx.QueryRow(ctx, `
				SELECT COALESCE(MAX(rank_overall), 0) + 1
				FROM leaderboard_entries
				WHERE snapshot_id = $1
			`, snapshotID).Scan(&rankOverall)
			if err != nil {
				return fmt.Errorf("failed to compute tail rank: %w", err)
			}
			rankByCharacter, err = r.nextPartitionRank(ctx, tx, snapshotID, string(entry.Character))
			if err != nil {
				return err
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO leaderboard_entries (
					snapshot_id, user_id, display_name, character_type,
					total_xp, level, achievement_count, rank_overall, rank_by_character, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`,
				snapshotID,
				entry.UserID.String(),
				entry.DisplayName,
				string(entry.Character),
				entry.TotalXP,
				entry.Level,
				entry.AchievementCount,
				rankOverall,
				rankByCharacter,
				entry.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert leaderboard entry: %w", err)
			}
			return nil

		default:
			return fmt.Errorf("failed to query leaderboard entry: %w", err)
		}
	})
}

// nextPartitionRank returns the first free tail rank of a character
// partition within a snapshot.
func (r *LeaderboardRepository) nextPartitionRank(ctx context.Context, tx pgx.Tx, snapshotID, character string) (int, error) {
	var rank int
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(rank_by_character), 0) + 1
		FROM leaderboard_entries
		WHERE snapshot_id = $1 AND character_type = $2
	`, snapshotID, character).Scan(&rank)
	if err != nil {
		return 0, fmt.Errorf("failed to compute partition tail rank: %w", err)
	}
	return rank, nil
}

// GetLatestSnapshot returns the current published snapshot with all
// its entries in overall rank order.
func (r *LeaderboardRepository) GetLatestSnapshot(ctx context.Context) (*leaderboard.Snapshot, error) {
	var (
		id         string
		version    int64
		computedAt time.Time
	)

	err := r.conn.QueryRow(ctx, `
		SELECT id, version, computed_at
		FROM leaderboard_snapshots
		ORDER BY version DESC
		LIMIT 1
	`).Scan(&id, &version, &computedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	rows, err := r.conn.Query(ctx, `
		SELECT user_id, display_name, character_type, total_xp, level,
		       achievement_count, rank_overall, rank_by_character, updated_at
		FROM leaderboard_entries
		WHERE snapshot_id = $1
		ORDER BY rank_overall ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot entries: %w", err)
	}
	defer rows.Close()

	var entries []*leaderboard.Entry
	for rows.Next() {
		entry, err := scanLeaderboardEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot entries: %w", err)
	}

	return leaderboard.RestoreSnapshot(id, version, computedAt, entries), nil
}

// GetPage returns a page of the overall leaderboard for the current
// version, plus the total entry count.
func (r *LeaderboardRepository) GetPage(ctx context.Context, page shared.Page) ([]*leaderboard.Entry, int64, error) {
	page = page.Normalize()

	id, total, err := r.latestSnapshotMeta(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.conn.Query(ctx, `
		SELECT user_id, display_name, character_type, total_xp, level,
		       achievement_count, rank_overall, rank_by_character, updated_at
		FROM leaderboard_entries
		WHERE snapshot_id = $1
		ORDER BY rank_overall ASC
		LIMIT $2 OFFSET $3
	`, id, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query leaderboard page: %w", err)
	}
	defer rows.Close()

	entries, err := collectLeaderboardEntries(rows)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// GetCharacterPage returns a page of a character partition for the
// current version, plus that partition's total entry count.
func (r *LeaderboardRepository) GetCharacterPage(ctx context.Context, ct profile.CharacterType, page shared.Page) ([]*leaderboard.Entry, int64, error) {
	page = page.Normalize()

	id, _, err := r.latestSnapshotMeta(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = r.conn.QueryRow(ctx, `
		SELECT count(*)
		FROM leaderboard_entries
		WHERE snapshot_id = $1 AND character_type = $2
	`, id, string(ct)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count character partition: %w", err)
	}

	rows, err := r.conn.Query(ctx, `
		SELECT user_id, display_name, character_type, total_xp, level,
		       achievement_count, rank_overall, rank_by_character, updated_at
		FROM leaderboard_entries
		WHERE snapshot_id = $1 AND character_type = $2
		ORDER BY rank_by_character ASC
		LIMIT $3 OFFSET $4
	`, id, string(ct), page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query character page: %w", err)
	}
	defer rows.Close()

	entries, err := collectLeaderboardEntries(rows)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// GetUserEntry returns the user's entry in the current version.
func (r *LeaderboardRepository) GetUserEntry(ctx context.Context, userID shared.UserID) (*leaderboard.Entry, error) {
	id, _, err := r.latestSnapshotMeta(ctx)
	if err != nil {
		return nil, err
	}

	row := r.conn.QueryRow(ctx, `
		SELECT user_id, display_name, character_type, total_xp, level,
		       achievement_count, rank_overall, rank_by_character, updated_at
		FROM leaderboard_entries
		WHERE snapshot_id = $1 AND user_id = $2
	`, id, userID.String())

	entry, err := scanLeaderboardEntry(row)
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// latestSnapshotMeta returns the ID and entry count of the current snapshot.
func (r *LeaderboardRepository) latestSnapshotMeta(ctx context.Context) (string, int64, error) {
	var (
		id    string
		total int64
	)

	err := r.conn.QueryRow(ctx, `
		SELECT id, total_users
		FROM leaderboard_snapshots
		ORDER BY version DESC
		LIMIT 1
	`).Scan(&id, &total)
	if err != nil {
		if IsNoRows(err) {
			return "", 0, shared.ErrSnapshotNotFound
		}
		return "", 0, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	return id, total, nil
}

func collectLeaderboardEntries(rows pgx.Rows) ([]*leaderboard.Entry, error) {
	var entries []*leaderboard.Entry
	for rows.Next() {
		entry, err := scanLeaderboardEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// scanLeaderboardEntry scans an entry from a row.
func scanLeaderboardEntry(row pgx.Row) (*leaderboard.Entry, error) {
	var (
		entry           leaderboard.Entry
		userID          string
		character       string
		rankOverall     int
		rankByCharacter int
	)

	err := row.Scan(
		&userID,
		&entry.DisplayName,
		&character,
		&entry.TotalXP,
		&entry.Level,
		&entry.AchievementCount,
		&rankOverall,
		&rankByCharacter,
		&entry.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
	}

	entry.UserID = shared.UserID(userID)
	entry.Character = profile.CharacterType(character)
	entry.RankOverall = leaderboard.Rank(rankOverall)
	entry.RankByCharacter = leaderboard.Rank(rankByCharacter)

	return &entry, nil
}
