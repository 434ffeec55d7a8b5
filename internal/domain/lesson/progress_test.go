package lesson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "8c54e1a2-9f30-47f5-9e7d-5b3a2f1c0d44"

func TestStartProgress(t *testing.T) {
	p, err := StartProgress(testUserID, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, p.Status)
	assert.Equal(t, 0, p.Attempts)
	assert.Nil(t, p.CompletedAt)

	_, err = StartProgress("not-a-uuid", 3)
	assert.Error(t, err)

	_, err = StartProgress(testUserID, 101)
	assert.ErrorIs(t, err, ErrInvalidOrdinal)
}

func TestProgress_PassingAttemptCompletes(t *testing.T) {
	p, err := StartProgress(testUserID, 3)
	require.NoError(t, err)

	require.NoError(t, p.RecordAttempt(85))
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, 1, p.Attempts)
	assert.Equal(t, QuizScore(85), p.BestScore)
	require.NotNil(t, p.CompletedAt)
}

func TestProgress_FailThenRetry(t *testing.T) {
	p, err := StartProgress(testUserID, 3)
	require.NoError(t, err)

	require.NoError(t, p.RecordAttempt(40))
	assert.Equal(t, StatusFailed, p.Status)

	require.NoError(t, p.Retry())
	assert.Equal(t, StatusInProgress, p.Status)

	// Лучший результат сохраняется между попытками.
	require.NoError(t, p.RecordAttempt(69))
	assert.Equal(t, StatusFailed, p.Status, "69 is below the passing score")
	assert.Equal(t, QuizScore(69), p.BestScore)

	require.NoError(t, p.RecordAttempt(70))
	assert.Equal(t, StatusCompleted, p.Status, "70 is the passing boundary")
	assert.Equal(t, 3, p.Attempts)
}

func TestProgress_CompletedIsTerminal(t *testing.T) {
	p, err := StartProgress(testUserID, 3)
	require.NoError(t, err)
	require.NoError(t, p.RecordAttempt(100))

	assert.ErrorIs(t, p.RecordAttempt(100), ErrProgressCompleted)
	assert.ErrorIs(t, p.Retry(), ErrProgressCompleted)
	assert.Equal(t, 1, p.Attempts, "attempts after completion are not counted")
}

func TestProgress_RecordStudy(t *testing.T) {
	p, err := StartProgress(testUserID, 3)
	require.NoError(t, err)

	require.NoError(t, p.RecordStudy(40, 300))
	assert.Equal(t, 40, p.ProgressPercent)
	assert.Equal(t, 300, p.TimeSpentSeconds)

	// Процент монотонный: меньшее значение не откатывает прогресс,
	// но время всё равно накапливается.
	require.NoError(t, p.RecordStudy(25, 120))
	assert.Equal(t, 40, p.ProgressPercent)
	assert.Equal(t, 420, p.TimeSpentSeconds)

	require.NoError(t, p.RecordStudy(90, 60))
	assert.Equal(t, 90, p.ProgressPercent)

	assert.ErrorIs(t, p.RecordStudy(101, 10), ErrInvalidStudyInput)
	assert.ErrorIs(t, p.RecordStudy(50, -1), ErrInvalidStudyInput)
	assert.Equal(t, 480, p.TimeSpentSeconds, "invalid input must not mutate state")
}

func TestProgress_CompletionFixesPercent(t *testing.T) {
	p, err := StartProgress(testUserID, 3)
	require.NoError(t, err)
	require.NoError(t, p.RecordStudy(55, 200))

	require.NoError(t, p.RecordAttempt(85))
	assert.Equal(t, 100, p.ProgressPercent, "passing the quiz completes the material")

	assert.ErrorIs(t, p.RecordStudy(60, 30), ErrProgressCompleted)
	assert.Equal(t, 200, p.TimeSpentSeconds)
}

func TestProgress_RejectsOutOfRangeScore(t *testing.T) {
	p, err := StartProgress(testUserID, 3)
	require.NoError(t, err)

	assert.ErrorIs(t, p.RecordAttempt(-1), ErrInvalidQuizScore)
	assert.ErrorIs(t, p.RecordAttempt(101), ErrInvalidQuizScore)
	assert.Equal(t, 0, p.Attempts, "invalid attempts must not mutate state")
}
