package lesson

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLesson(t *testing.T, ordinal Ordinal, prereqs ...Ordinal) *Lesson {
	t.Helper()
	l, err := NewLesson(
		fmt.Sprintf("l-%d", ordinal),
		ordinal,
		fmt.Sprintf("Lesson %d", ordinal),
		DifficultyBeginner,
		100,
		prereqs,
	)
	require.NoError(t, err)
	return l
}

func TestBuildGraph_RejectsDuplicateOrdinal(t *testing.T) {
	_, err := BuildGraph([]*Lesson{
		mustLesson(t, 1),
		mustLesson(t, 1),
	})
	assert.ErrorIs(t, err, ErrDuplicateOrdinal)
}

func TestGraph_ValidateAcceptsDAG(t *testing.T) {
	g, err := BuildGraph([]*Lesson{
		mustLesson(t, 1),
		mustLesson(t, 2, 1),
		mustLesson(t, 3, 1, 2),
		mustLesson(t, 4, 2),
	})
	require.NoError(t, err)
	assert.NoError(t, g.Validate())
}

func TestGraph_ValidateDetectsCycle(t *testing.T) {
	g, err := BuildGraph([]*Lesson{
		mustLesson(t, 1, 3),
		mustLesson(t, 2, 1),
		mustLesson(t, 3, 2),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, g.Validate(), ErrPrerequisiteCycle)
}

func TestGraph_ValidateDetectsDanglingReference(t *testing.T) {
	g, err := BuildGraph([]*Lesson{
		mustLesson(t, 1),
		mustLesson(t, 2, 99),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, g.Validate(), ErrDanglingPrerequisite)
}

func TestGraph_Eligible(t *testing.T) {
	// Урок 3 требует [1, 2]: частично закрытых пререквизитов мало.
	g, err := BuildGraph([]*Lesson{
		mustLesson(t, 1),
		mustLesson(t, 2),
		mustLesson(t, 3, 1, 2),
	})
	require.NoError(t, err)

	eligible, err := g.Eligible(3, map[Ordinal]bool{1: true})
	require.NoError(t, err)
	assert.False(t, eligible, "one of two prerequisites is not enough")

	eligible, err = g.Eligible(3, map[Ordinal]bool{1: true, 2: true})
	require.NoError(t, err)
	assert.True(t, eligible)

	eligible, err = g.Eligible(1, nil)
	require.NoError(t, err)
	assert.True(t, eligible, "lesson without prerequisites is always eligible")

	_, err = g.Eligible(42, nil)
	assert.ErrorIs(t, err, ErrLessonNotFound)
}

func TestGraph_MissingPrerequisites(t *testing.T) {
	g, err := BuildGraph([]*Lesson{
		mustLesson(t, 1),
		mustLesson(t, 2),
		mustLesson(t, 5, 2, 1),
	})
	require.NoError(t, err)

	missing, err := g.MissingPrerequisites(5, map[Ordinal]bool{2: true})
	require.NoError(t, err)
	assert.Equal(t, []Ordinal{1}, missing)
}

func TestRecommend_FreshUserGetsEntryLessons(t *testing.T) {
	g, err := BuildGraph([]*Lesson{
		mustLesson(t, 1),
		mustLesson(t, 2, 1),
		mustLesson(t, 3, 2),
	})
	require.NoError(t, err)

	recommended, err := Recommend(g, nil, 0)
	require.NoError(t, err)

	require.Len(t, recommended, 1)
	assert.Equal(t, Ordinal(1), recommended[0].Ordinal)
}

func TestRecommend_AscendingOrderAndLimit(t *testing.T) {
	g, err := BuildGraph([]*Lesson{
		mustLesson(t, 4, 1),
		mustLesson(t, 1),
		mustLesson(t, 7),
		mustLesson(t, 2, 1),
		mustLesson(t, 9, 7, 4),
	})
	require.NoError(t, err)

	completed := map[Ordinal]bool{1: true}
	recommended, err := Recommend(g, completed, 0)
	require.NoError(t, err)

	ords := make([]Ordinal, 0, len(recommended))
	for _, l := range recommended {
		ords = append(ords, l.Ordinal)
	}
	assert.Equal(t, []Ordinal{2, 4, 7}, ords)

	limited, err := Recommend(g, completed, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, Ordinal(2), limited[0].Ordinal)
	assert.Equal(t, Ordinal(4), limited[1].Ordinal)
}

func TestRecommend_RefusesInvalidCatalog(t *testing.T) {
	g, err := BuildGraph([]*Lesson{
		mustLesson(t, 1, 2),
		mustLesson(t, 2, 1),
	})
	require.NoError(t, err)

	_, err = Recommend(g, nil, 0)
	assert.ErrorIs(t, err, ErrPrerequisiteCycle)
}

func TestModuleHelpers(t *testing.T) {
	assert.Equal(t, ModuleNumber(1), ModuleOf(1))
	assert.Equal(t, ModuleNumber(1), ModuleOf(25))
	assert.Equal(t, ModuleNumber(2), ModuleOf(26))
	assert.Equal(t, ModuleNumber(4), ModuleOf(100))

	g, err := BuildGraph([]*Lesson{
		mustLesson(t, 1),
		mustLesson(t, 2),
		mustLesson(t, 26),
	})
	require.NoError(t, err)

	assert.False(t, IsModuleCompleted(g, 1, map[Ordinal]bool{1: true}))
	assert.True(t, IsModuleCompleted(g, 1, map[Ordinal]bool{1: true, 2: true}))

	next, err := NextInModule(g, 2, map[Ordinal]bool{1: true, 2: true})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, Ordinal(26), next.Ordinal)
}
