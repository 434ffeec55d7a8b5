package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tradequest/tradequest-core/internal/domain/lesson"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// LessonRepository implements lesson.Catalog and
// lesson.ProgressRepository using PostgreSQL.
type LessonRepository struct {
	q Querier
}

// NewLessonRepository creates a new lesson repository.
func NewLessonRepository(conn *Connection) *LessonRepository {
	return &LessonRepository{q: conn}
}

const lessonColumns = `
	id, ordinal, module, title, difficulty, xp_reward, prerequisites, created_at
`

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// GetByOrdinal returns a lesson by its ordinal.
func (r *LessonRepository) GetByOrdinal(ctx context.Context, ordinal lesson.Ordinal) (*lesson.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE ordinal = $1`

	row := r.q.QueryRow(ctx, query, int(ordinal))
	return scanLesson(row)
}

// ListAll returns the full catalog in ascending ordinal order.
func (r *LessonRepository) ListAll(ctx context.Context) ([]*lesson.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons ORDER BY ordinal ASC`

	return r.queryLessons(ctx, query)
}

// ListByModule returns the lessons of a module in ascending ordinal order.
func (r *LessonRepository) ListByModule(ctx context.Context, module lesson.ModuleNumber) ([]*lesson.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE module = $1 ORDER BY ordinal ASC`

	return r.queryLessons(ctx, query, int(module))
}

func (r *LessonRepository) queryLessons(ctx context.Context, query string, args ...interface{}) ([]*lesson.Lesson, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*lesson.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}

	return lessons, rows.Err()
}

// scanLesson scans a lesson from a row.
func scanLesson(row pgx.Row) (*lesson.Lesson, error) {
	var (
		l          lesson.Lesson
		ordinal    int
		module     int
		difficulty string
		prereqs    []int32
	)

	err := row.Scan(
		&l.ID,
		&ordinal,
		&module,
		&l.Title,
		&difficulty,
		&l.XPReward,
		&prereqs,
		&l.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to scan lesson: %w", err)
	}

	l.Ordinal = lesson.Ordinal(ordinal)
	l.Module = lesson.ModuleNumber(module)
	l.Difficulty = lesson.Difficulty(difficulty)
	l.Prerequisites = make([]lesson.Ordinal, len(prereqs))
	for i, p := range prereqs {
		l.Prerequisites[i] = lesson.Ordinal(p)
	}

	return &l, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USER PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Get returns the progress record for a (user, lesson) pair.
func (r *LessonRepository) Get(ctx context.Context, userID shared.UserID, ordinal lesson.Ordinal) (*lesson.Progress, error) {
	query := `
		SELECT user_id, lesson_ordinal, status, attempts, best_score, progress_percent, time_spent_seconds, started_at, completed_at, updated_at
		FROM user_lesson_progress
		WHERE user_id = $1 AND lesson_ordinal = $2
	`

	row := r.q.QueryRow(ctx, query, userID.String(), int(ordinal))
	return scanLessonProgress(row)
}

// Upsert creates or updates a progress record.
func (r *LessonRepository) Upsert(ctx context.Context, progress *lesson.Progress) error {
	query := `
		INSERT INTO user_lesson_progress (
			user_id, lesson_ordinal, status, attempts, best_score, progress_percent, time_spent_seconds, started_at, completed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, lesson_ordinal) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			best_score = EXCLUDED.best_score,
			progress_percent = EXCLUDED.progress_percent,
			time_spent_seconds = EXCLUDED.time_spent_seconds,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.Exec(ctx, query,
		progress.UserID.String(),
		int(progress.LessonOrdinal),
		string(progress.Status),
		progress.Attempts,
		int(progress.BestScore),
		progress.ProgressPercent,
		progress.TimeSpentSeconds,
		progress.StartedAt,
		progress.CompletedAt,
		progress.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert lesson progress: %w", err)
	}

	return nil
}

// ListByUser returns all progress records of a user.
func (r *LessonRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*lesson.Progress, error) {
	query := `
		SELECT user_id, lesson_ordinal, status, attempts, best_score, progress_percent, time_spent_seconds, started_at, completed_at, updated_at
		FROM user_lesson_progress
		WHERE user_id = $1
		ORDER BY lesson_ordinal ASC
	`

	rows, err := r.q.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson progress: %w", err)
	}
	defer rows.Close()

	var records []*lesson.Progress
	for rows.Next() {
		p, err := scanLessonProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}

	return records, rows.Err()
}

// CompletedOrdinals returns the set of lesson ordinals the user has completed.
func (r *LessonRepository) CompletedOrdinals(ctx context.Context, userID shared.UserID) (map[lesson.Ordinal]bool, error) {
	query := `
		SELECT lesson_ordinal
		FROM user_lesson_progress
		WHERE user_id = $1 AND status = 'completed'
	`

	rows, err := r.q.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query completed lessons: %w", err)
	}
	defer rows.Close()

	completed := make(map[lesson.Ordinal]bool)
	for rows.Next() {
		var ordinal int
		if err := rows.Scan(&ordinal); err != nil {
			return nil, fmt.Errorf("failed to scan lesson ordinal: %w", err)
		}
		completed[lesson.Ordinal(ordinal)] = true
	}

	return completed, rows.Err()
}

// scanLessonProgress scans a progress record from a row.
func scanLessonProgress(row pgx.Row) (*lesson.Progress, error) {
	var (
		p       lesson.Progress
		userID  string
		ordinal int
		status  string
		score   int
	)

	err := row.Scan(
		&userID,
		&ordinal,
		&status,
		&p.Attempts,
		&score,
		&p.ProgressPercent,
		&p.TimeSpentSeconds,
		&p.StartedAt,
		&p.CompletedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLessonProgressNotFound
		}
		return nil, fmt.Errorf("failed to scan lesson progress: %w", err)
	}

	p.UserID = shared.UserID(userID)
	p.LessonOrdinal = lesson.Ordinal(ordinal)
	p.Status = lesson.Status(status)
	p.BestScore = lesson.QuizScore(score)

	return &p, nil
}
