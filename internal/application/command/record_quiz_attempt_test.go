package command

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradequest/tradequest-core/internal/domain/lesson"
	"github.com/tradequest/tradequest-core/internal/domain/progression"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKE LESSON CATALOG
// ══════════════════════════════════════════════════════════════════════════════

type memLessonCatalog struct {
	items []*lesson.Lesson
}

func (c *memLessonCatalog) GetByOrdinal(_ context.Context, ordinal lesson.Ordinal) (*lesson.Lesson, error) {
	for _, l := range c.items {
		if l.Ordinal == ordinal {
			return l, nil
		}
	}
	return nil, lesson.ErrLessonNotFound
}

func (c *memLessonCatalog) ListAll(_ context.Context) ([]*lesson.Lesson, error) {
	return c.items, nil
}

func (c *memLessonCatalog) ListByModule(_ context.Context, module lesson.ModuleNumber) ([]*lesson.Lesson, error) {
	out := make([]*lesson.Lesson, 0)
	for _, l := range c.items {
		if l.Module == module {
			out = append(out, l)
		}
	}
	return out, nil
}

func catalogLesson(ordinal, reward int, prereqs ...int) *lesson.Lesson {
	ords := make([]lesson.Ordinal, 0, len(prereqs))
	for _, p := range prereqs {
		ords = append(ords, lesson.Ordinal(p))
	}
	return &lesson.Lesson{
		ID:            fmt.Sprintf("lesson-%d", ordinal),
		Ordinal:       lesson.Ordinal(ordinal),
		Module:        lesson.ModuleOf(lesson.Ordinal(ordinal)),
		Title:         "Lesson",
		Difficulty:    lesson.DifficultyBeginner,
		XPReward:      reward,
		Prerequisites: ords,
	}
}

func newQuizHandler(store *memStore, catalog *memLessonCatalog) *RecordQuizAttemptHandler {
	grant := newGrantHandler(store, &memCatalog{})
	return NewRecordQuizAttemptHandler(store, catalog, grant, nil, RecordQuizAttemptConfig{
		QuizPassXP:       50,
		ModuleCompleteXP: 500,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordQuizAttempt_PassCompletesLessonAndAwardsXP(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	catalog := &memLessonCatalog{items: []*lesson.Lesson{
		catalogLesson(1, 100),
		catalogLesson(2, 100, 1),
	}}
	handler := newQuizHandler(store, catalog)

	result, err := handler.Handle(context.Background(), RecordQuizAttemptCommand{
		UserID:        testUserID,
		LessonOrdinal: 1,
		Score:         85,
	})
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.True(t, result.LessonCompleted)
	assert.False(t, result.ModuleCompleted)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 150, result.XPGranted, "lesson reward 100 + quiz pass bonus 50")

	// The ledger holds one event per source.
	sources := make(map[progression.Source]int)
	for _, e := range store.events {
		sources[e.Source]++
	}
	assert.Equal(t, 1, sources[progression.SourceLessonComplete])
	assert.Equal(t, 1, sources[progression.SourceQuizPass])
}

func TestRecordQuizAttempt_FailIsRetryable(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	catalog := &memLessonCatalog{items: []*lesson.Lesson{catalogLesson(1, 100)}}
	handler := newQuizHandler(store, catalog)

	failed, err := handler.Handle(context.Background(), RecordQuizAttemptCommand{
		UserID:        testUserID,
		LessonOrdinal: 1,
		Score:         40,
	})
	require.NoError(t, err)
	assert.False(t, failed.Passed)
	assert.False(t, failed.LessonCompleted)
	assert.Zero(t, failed.XPGranted, "failed attempts never touch the ledger")
	assert.Empty(t, store.events)

	retried, err := handler.Handle(context.Background(), RecordQuizAttemptCommand{
		UserID:        testUserID,
		LessonOrdinal: 1,
		Score:         90,
	})
	require.NoError(t, err)
	assert.True(t, retried.LessonCompleted)
	assert.Equal(t, 2, retried.Attempts)
	assert.Equal(t, 90, retried.BestScore)
}

func TestRecordQuizAttempt_PrerequisitesGateTheLesson(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	catalog := &memLessonCatalog{items: []*lesson.Lesson{
		catalogLesson(1, 100),
		catalogLesson(2, 100, 1),
	}}
	handler := newQuizHandler(store, catalog)

	_, err := handler.Handle(context.Background(), RecordQuizAttemptCommand{
		UserID:        testUserID,
		LessonOrdinal: 2,
		Score:         100,
	})
	assert.ErrorIs(t, err, ErrPrerequisitesNotMet)
	assert.Empty(t, store.events)

	// Completing lesson 1 opens lesson 2.
	_, err = handler.Handle(context.Background(), RecordQuizAttemptCommand{
		UserID:        testUserID,
		LessonOrdinal: 1,
		Score:         100,
	})
	require.NoError(t, err)

	result, err := handler.Handle(context.Background(), RecordQuizAttemptCommand{
		UserID:        testUserID,
		LessonOrdinal: 2,
		Score:         100,
	})
	require.NoError(t, err)
	assert.True(t, result.LessonCompleted)
}

func TestRecordQuizAttempt_CompletedLessonIsTerminal(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	catalog := &memLessonCatalog{items: []*lesson.Lesson{catalogLesson(1, 100)}}
	handler := newQuizHandler(store, catalog)

	_, err := handler.Handle(context.Background(), RecordQuizAttemptCommand{
		UserID: testUserID, LessonOrdinal: 1, Score: 80,
	})
	require.NoError(t, err)
	eventsAfterFirst := len(store.events)

	_, err = handler.Handle(context.Background(), RecordQuizAttemptCommand{
		UserID: testUserID, LessonOrdinal: 1, Score: 95,
	})
	assert.ErrorIs(t, err, lesson.ErrProgressCompleted)
	assert.Len(t, store.events, eventsAfterFirst, "a rejected repeat must not grant XP again")
}

func TestRecordQuizAttempt_FailedAwardRollsBackCompletion(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	catalog := &memLessonCatalog{items: []*lesson.Lesson{catalogLesson(1, 100)}}
	handler := newQuizHandler(store, catalog)

	// The second ledger append (the quiz pass bonus) fails: the
	// completion and the first award must roll back with it.
	store.failAppendAt = 2
	_, err := handler.Handle(context.Background(), RecordQuizAttemptCommand{
		UserID:        testUserID,
		LessonOrdinal: 1,
		Score:         85,
	})
	require.ErrorIs(t, err, errLedgerDown)

	assert.Empty(t, store.events, "partial awards must not survive the rollback")
	assert.Equal(t, int64(0), store.profiles[shared.UserID(testUserID)].TotalXP)
	_, err = (*memLessons)(store).Get(context.Background(), testUserID, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound, "the lesson must not stay completed without its XP")

	// The attempt can be replayed once the ledger recovers.
	result, err := handler.Handle(context.Background(), RecordQuizAttemptCommand{
		UserID:        testUserID,
		LessonOrdinal: 1,
		Score:         85,
	})
	require.NoError(t, err)
	assert.True(t, result.LessonCompleted)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 150, result.XPGranted, "lesson reward 100 + quiz pass bonus 50")
}

func TestRecordQuizAttempt_ModuleCompletionBonus(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)

	// A catalog covering only the first module keeps the fixture small:
	// completing every lesson in it marks the module done.
	items := make([]*lesson.Lesson, 0, lesson.LessonsPerModule)
	for i := 1; i <= lesson.LessonsPerModule; i++ {
		if i == 1 {
			items = append(items, catalogLesson(i, 10))
		} else {
			items = append(items, catalogLesson(i, 10, i-1))
		}
	}
	catalog := &memLessonCatalog{items: items}
	handler := newQuizHandler(store, catalog)

	var last *RecordQuizAttemptResult
	for i := 1; i <= lesson.LessonsPerModule; i++ {
		result, err := handler.Handle(context.Background(), RecordQuizAttemptCommand{
			UserID:        testUserID,
			LessonOrdinal: i,
			Score:         75,
		})
		require.NoError(t, err)
		if i < lesson.LessonsPerModule {
			assert.False(t, result.ModuleCompleted, "module must not complete early")
		}
		last = result
	}

	assert.True(t, last.ModuleCompleted)
	assert.Equal(t, 10+50+500, last.XPGranted, "lesson reward + quiz bonus + module bonus")

	moduleEvents := 0
	for _, e := range store.events {
		if e.Source == progression.SourceModuleComplete {
			moduleEvents++
		}
	}
	assert.Equal(t, 1, moduleEvents)
}

func TestRecordQuizAttempt_ValidationRejectsBadInput(t *testing.T) {
	store := newMemStore()
	seedProfile(t, store)
	catalog := &memLessonCatalog{items: []*lesson.Lesson{catalogLesson(1, 100)}}
	handler := newQuizHandler(store, catalog)

	tests := []struct {
		name string
		cmd  RecordQuizAttemptCommand
	}{
		{"score above 100", RecordQuizAttemptCommand{UserID: testUserID, LessonOrdinal: 1, Score: 101}},
		{"negative score", RecordQuizAttemptCommand{UserID: testUserID, LessonOrdinal: 1, Score: -1}},
		{"ordinal out of range", RecordQuizAttemptCommand{UserID: testUserID, LessonOrdinal: 0, Score: 80}},
		{"bad user id", RecordQuizAttemptCommand{UserID: "nope", LessonOrdinal: 1, Score: 80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Handle(context.Background(), tt.cmd)
			assert.Error(t, err)
			assert.Empty(t, store.events)
		})
	}
}
