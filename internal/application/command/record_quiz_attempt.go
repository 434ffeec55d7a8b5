package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tradequest/tradequest-core/internal/domain/leaderboard"
	"github.com/tradequest/tradequest-core/internal/domain/lesson"
	"github.com/tradequest/tradequest-core/internal/domain/progression"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
	"github.com/tradequest/tradequest-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD QUIZ ATTEMPT COMMAND
// Records a quiz attempt for a lesson. A passing attempt completes the
// lesson and awards XP: the lesson reward, the quiz pass bonus, and the
// module completion bonus when this was the last lesson of its module.
// ══════════════════════════════════════════════════════════════════════════════

// ErrPrerequisitesNotMet - the lesson is gated behind prerequisites the
// user has not completed yet.
var ErrPrerequisitesNotMet = errors.New("lesson prerequisites not met")

// RecordQuizAttemptCommand contains the data for one quiz attempt.
type RecordQuizAttemptCommand struct {
	// UserID is the ID of the user taking the quiz.
	UserID string

	// LessonOrdinal is the catalog ordinal of the lesson.
	LessonOrdinal int

	// Score is the quiz result in percent [0, 100].
	Score int

	// AttemptedAt is when the attempt happened (defaults to now if zero).
	AttemptedAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordQuizAttemptCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return fmt.Errorf("record_quiz_attempt: invalid user_id: %q", c.UserID)
	}
	if !lesson.Ordinal(c.LessonOrdinal).IsValid() {
		return fmt.Errorf("record_quiz_attempt: %w: %d", lesson.ErrInvalidOrdinal, c.LessonOrdinal)
	}
	if !lesson.QuizScore(c.Score).IsValid() {
		return fmt.Errorf("record_quiz_attempt: %w: %d", lesson.ErrInvalidQuizScore, c.Score)
	}
	return nil
}

// RecordQuizAttemptResult contains the result of an attempt.
type RecordQuizAttemptResult struct {
	// UserID is the user who attempted the quiz.
	UserID string

	// LessonOrdinal is the lesson attempted.
	LessonOrdinal int

	// Passed is true when the score met the passing threshold.
	Passed bool

	// LessonCompleted is true when this attempt completed the lesson.
	LessonCompleted bool

	// ModuleCompleted is true when this attempt finished the module.
	ModuleCompleted bool

	// Attempts is the total attempt count after this one.
	Attempts int

	// BestScore is the best score across attempts.
	BestScore int

	// XPGranted is the total XP awarded by this attempt.
	XPGranted int

	// UnlockedAchievements lists achievement codes unlocked by the
	// awards, in unlock order.
	UnlockedAchievements []string

	// Events contains domain events generated by the attempt.
	Events []shared.Event
}

// RecordQuizAttemptConfig contains XP bonuses for quiz outcomes.
type RecordQuizAttemptConfig struct {
	QuizPassXP       int
	ModuleCompleteXP int
}

// DefaultRecordQuizAttemptConfig returns default configuration.
func DefaultRecordQuizAttemptConfig() RecordQuizAttemptConfig {
	return RecordQuizAttemptConfig{
		QuizPassXP:       50,
		ModuleCompleteXP: 500,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordQuizAttemptHandler handles the RecordQuizAttemptCommand.
type RecordQuizAttemptHandler struct {
	uow       UnitOfWork
	catalog   lesson.Catalog
	grantXP   *GrantXPHandler
	publisher shared.EventPublisher
	config    RecordQuizAttemptConfig
}

// NewRecordQuizAttemptHandler creates a new RecordQuizAttemptHandler.
func NewRecordQuizAttemptHandler(
	uow UnitOfWork,
	catalog lesson.Catalog,
	grantXP *GrantXPHandler,
	publisher shared.EventPublisher,
	config RecordQuizAttemptConfig,
) *RecordQuizAttemptHandler {
	if config.QuizPassXP == 0 {
		config = DefaultRecordQuizAttemptConfig()
	}
	return &RecordQuizAttemptHandler{
		uow:       uow,
		catalog:   catalog,
		grantXP:   grantXP,
		publisher: publisher,
		config:    config,
	}
}

// Handle executes the attempt. The state transition and every XP award
// it triggers commit in one transaction: a failed award rolls the
// completion back, so the lesson can be retried and the reward is
// never lost.
func (h *RecordQuizAttemptHandler) Handle(ctx context.Context, cmd RecordQuizAttemptCommand) (*RecordQuizAttemptResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	userID := shared.UserID(cmd.UserID)
	ordinal := lesson.Ordinal(cmd.LessonOrdinal)
	attemptedAt := cmd.AttemptedAt
	if attemptedAt.IsZero() {
		attemptedAt = timeutil.Now()
	}

	// The lesson catalog is static content: read outside the
	// transaction to keep the lock window small.
	lessons, err := h.catalog.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("record_quiz_attempt: load lesson catalog: %w", err)
	}
	graph, err := lesson.BuildGraph(lessons)
	if err != nil {
		return nil, fmt.Errorf("record_quiz_attempt: %w", err)
	}
	target, ok := graph.Get(ordinal)
	if !ok {
		return nil, fmt.Errorf("record_quiz_attempt: %w: %d", lesson.ErrLessonNotFound, ordinal)
	}

	result := &RecordQuizAttemptResult{
		UserID:               cmd.UserID,
		LessonOrdinal:        cmd.LessonOrdinal,
		Passed:               lesson.QuizScore(cmd.Score).IsPassing(),
		UnlockedAchievements: make([]string, 0),
		Events:               make([]shared.Event, 0),
	}

	var entry *leaderboard.Entry
	err = h.uow.Within(ctx, func(ctx context.Context, tx TxRepos) error {
		// The same row lock XP grants take: concurrent attempts for
		// one user serialize here, so a lesson cannot complete (and
		// award) twice.
		if _, lockErr := tx.Profiles().GetByUserIDForUpdate(ctx, userID); lockErr != nil {
			return fmt.Errorf("record_quiz_attempt: lock profile: %w", lockErr)
		}

		completed, err := tx.LessonProgress().CompletedOrdinals(ctx, userID)
		if err != nil {
			return fmt.Errorf("record_quiz_attempt: load completed lessons: %w", err)
		}

		eligible, err := graph.Eligible(ordinal, completed)
		if err != nil {
			return fmt.Errorf("record_quiz_attempt: %w", err)
		}
		if !eligible {
			missing, _ := graph.MissingPrerequisites(ordinal, completed)
			return fmt.Errorf("record_quiz_attempt: %w: lesson %d requires %v",
				ErrPrerequisitesNotMet, ordinal, missing)
		}

		started := false
		prog, err := tx.LessonProgress().Get(ctx, userID, ordinal)
		if err != nil {
			if !shared.IsNotFound(err) {
				return fmt.Errorf("record_quiz_attempt: load progress: %w", err)
			}
			prog, err = lesson.StartProgress(userID, ordinal)
			if err != nil {
				return err
			}
			started = true
		}

		wasCompleted := prog.IsCompleted()
		if err := prog.RecordAttempt(lesson.QuizScore(cmd.Score)); err != nil {
			return fmt.Errorf("record_quiz_attempt: %w", err)
		}
		if err := tx.LessonProgress().Upsert(ctx, prog); err != nil {
			return fmt.Errorf("record_quiz_attempt: save progress: %w", err)
		}

		result.LessonCompleted = !wasCompleted && prog.IsCompleted()
		result.Attempts = prog.Attempts
		result.BestScore = int(prog.BestScore)

		if started {
			result.Events = append(result.Events, shared.NewLessonStartedEvent(
				cmd.UserID, cmd.LessonOrdinal,
			))
		}
		if !result.Passed {
			result.Events = append(result.Events, shared.NewLessonFailedEvent(
				cmd.UserID, cmd.LessonOrdinal, cmd.Score, prog.Attempts,
			))
		}
		if !result.LessonCompleted {
			return nil
		}

		completed[ordinal] = true
		result.ModuleCompleted = lesson.IsModuleCompleted(graph, target.Module, completed)

		grants := make([]GrantXPCommand, 0, 3)
		if target.XPReward > 0 {
			grants = append(grants, GrantXPCommand{
				UserID:     cmd.UserID,
				Amount:     target.XPReward,
				Source:     string(progression.SourceLessonComplete),
				OccurredAt: attemptedAt,
				Metadata: shared.Metadata{
					"lesson_ordinal": cmd.LessonOrdinal,
				},
				CorrelationID: cmd.CorrelationID,
			})
		}
		grants = append(grants,
			GrantXPCommand{
				UserID:     cmd.UserID,
				Amount:     h.config.QuizPassXP,
				Source:     string(progression.SourceQuizPass),
				OccurredAt: attemptedAt,
				Metadata: shared.Metadata{
					"lesson_ordinal": cmd.LessonOrdinal,
					"score":          cmd.Score,
				},
				CorrelationID: cmd.CorrelationID,
			},
		)
		if result.ModuleCompleted {
			grants = append(grants, GrantXPCommand{
				UserID:     cmd.UserID,
				Amount:     h.config.ModuleCompleteXP,
				Source:     string(progression.SourceModuleComplete),
				OccurredAt: attemptedAt,
				Metadata: shared.Metadata{
					"module": int(target.Module),
				},
				CorrelationID: cmd.CorrelationID,
			})
		}

		for _, grant := range grants {
			grantResult, grantErr := h.grantXP.HandleInTx(ctx, tx, grant)
			if grantErr != nil {
				return fmt.Errorf("record_quiz_attempt: award %s: %w", grant.Source, grantErr)
			}
			result.XPGranted += grant.Amount
			result.UnlockedAchievements = append(result.UnlockedAchievements, grantResult.UnlockedAchievements...)
			result.Events = append(result.Events, grantResult.Events...)
			entry = grantResult.entry
		}

		result.Events = append(result.Events, shared.NewLessonCompletedEvent(
			cmd.UserID, cmd.LessonOrdinal, cmd.Score, prog.Attempts, target.XPReward,
		))
		if result.ModuleCompleted {
			result.Events = append(result.Events, shared.NewModuleCompletedEvent(
				cmd.UserID, int(target.Module),
			))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if h.publisher != nil {
		for _, event := range result.Events {
			_ = h.publisher.Publish(event)
		}
	}
	refreshLeaderboardEntry(ctx, h.grantXP.board, h.publisher, entry)
	return result, nil
}
