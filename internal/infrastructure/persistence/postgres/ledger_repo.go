package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tradequest/tradequest-core/internal/domain/progression"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// LedgerRepository implements progression.Ledger using PostgreSQL.
// The progression_events table is append-only: no UPDATE or DELETE
// statements exist here.
type LedgerRepository struct {
	q Querier
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{q: conn}
}

// Append inserts an XP event into the ledger.
func (r *LedgerRepository) Append(ctx context.Context, event *progression.Event) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	query := `
		INSERT INTO progression_events (id, user_id, source, amount, level_at, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.q.Exec(ctx, query,
		string(event.ID),
		event.UserID.String(),
		string(event.Source),
		int(event.Amount),
		event.Level,
		metadata,
		event.OccurredAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to append event: %w", err)
	}

	return nil
}

// GetByID returns an event by its identifier.
func (r *LedgerRepository) GetByID(ctx context.Context, id progression.EventID) (*progression.Event, error) {
	query := `
		SELECT id, user_id, source, amount, level_at, metadata, occurred_at
		FROM progression_events
		WHERE id = $1
	`

	row := r.q.QueryRow(ctx, query, string(id))
	return scanEvent(row)
}

// ListByUser returns a user's events in ledger order, oldest first.
func (r *LedgerRepository) ListByUser(ctx context.Context, userID shared.UserID, page shared.Page) ([]*progression.Event, error) {
	page = page.Normalize()

	query := `
		SELECT id, user_id, source, amount, level_at, metadata, occurred_at
		FROM progression_events
		WHERE user_id = $1
		ORDER BY occurred_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.q.Query(ctx, query, userID.String(), page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*progression.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// CountBySource returns the user's event counts grouped by source.
func (r *LedgerRepository) CountBySource(ctx context.Context, userID shared.UserID) (map[progression.Source]int, error) {
	query := `
		SELECT source, count(*)
		FROM progression_events
		WHERE user_id = $1
		GROUP BY source
	`

	rows, err := r.q.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to count events by source: %w", err)
	}
	defer rows.Close()

	counts := make(map[progression.Source]int)
	for rows.Next() {
		var source string
		var count int

		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}

		counts[progression.Source(source)] = count
	}

	return counts, rows.Err()
}

// SumAmount returns the user's total XP according to the ledger.
// The consistency audit compares this against Profile.TotalXP.
func (r *LedgerRepository) SumAmount(ctx context.Context, userID shared.UserID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM progression_events
		WHERE user_id = $1
	`

	var total int64
	if err := r.q.QueryRow(ctx, query, userID.String()).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum event amounts: %w", err)
	}

	return total, nil
}

// HasEventOnDay reports whether the user already has an event of the
// given source within the UTC calendar day containing the given time.
func (r *LedgerRepository) HasEventOnDay(ctx context.Context, userID shared.UserID, source progression.Source, day time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM progression_events
			WHERE user_id = $1
			  AND source = $2
			  AND (occurred_at AT TIME ZONE 'UTC')::date = $3::date
		)
	`

	var exists bool
	err := r.q.QueryRow(ctx, query,
		userID.String(),
		string(source),
		day.UTC().Format("2006-01-02"),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check daily event: %w", err)
	}

	return exists, nil
}

// scanEvent scans a ledger event from a row.
func scanEvent(row pgx.Row) (*progression.Event, error) {
	var (
		event       progression.Event
		id          string
		userID      string
		source      string
		amount      int
		metadataRaw []byte
	)

	err := row.Scan(&id, &userID, &source, &amount, &event.Level, &metadataRaw, &event.OccurredAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	event.ID = progression.EventID(id)
	event.UserID = shared.UserID(userID)
	event.Source = progression.Source(source)
	event.Amount = progression.XPAmount(amount)

	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
		}
	}

	return &event, nil
}
