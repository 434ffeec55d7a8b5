package lesson

import (
	"errors"
	"fmt"
	"time"

	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет состояние прохождения урока.
type Status string

const (
	// StatusInProgress - урок начат.
	StatusInProgress Status = "in_progress"
	// StatusCompleted - урок завершён. Терминальное состояние:
	// завершение не откатывается.
	StatusCompleted Status = "completed"
	// StatusFailed - последняя попытка неудачна, возможен ретрай.
	StatusFailed Status = "failed"
)

// IsValid проверяет, что статус входит в перечисление.
func (s Status) IsValid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// QuizScore - результат квиза в процентах, [0, 100].
type QuizScore int

// PassingScore - минимальный проходной балл квиза.
const PassingScore QuizScore = 70

// IsValid проверяет диапазон результата.
func (q QuizScore) IsValid() bool {
	return q >= 0 && q <= 100
}

// IsPassing возвращает true для проходного результата.
func (q QuizScore) IsPassing() bool {
	return q >= PassingScore
}

var (
	// ErrInvalidQuizScore - результат квиза вне диапазона [0, 100].
	ErrInvalidQuizScore = errors.New("quiz score out of range [0, 100]")

	// ErrInvalidStudyInput - некорректные данные учебной сессии.
	ErrInvalidStudyInput = errors.New("invalid lesson study input")

	// ErrProgressCompleted - урок уже завершён, переходы запрещены.
	ErrProgressCompleted = errors.New("lesson already completed")

	// ErrProgressNotFound - прогресс по уроку не найден.
	ErrProgressNotFound = errors.New("lesson progress not found")
)

// Progress - прохождение урока пользователем. Уникален по паре
// (userID, lessonOrdinal). Завершение одноразовое: повторные попытки
// после completed не принимаются, награда не дублируется.
type Progress struct {
	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// LessonOrdinal - номер урока.
	LessonOrdinal Ordinal

	// Status - текущее состояние.
	Status Status

	// Attempts - число попыток квиза.
	Attempts int

	// BestScore - лучший результат квиза.
	BestScore QuizScore

	// ProgressPercent - доля изученного материала, [0, 100].
	// Не убывает; завершение урока фиксирует 100.
	ProgressPercent int

	// TimeSpentSeconds - суммарное время в уроке.
	TimeSpentSeconds int

	// StartedAt - время начала урока.
	StartedAt time.Time

	// CompletedAt - время завершения (nil, пока не завершён).
	CompletedAt *time.Time

	// UpdatedAt - время последнего перехода.
	UpdatedAt time.Time
}

// StartProgress создаёт прогресс в состоянии in_progress.
func StartProgress(userID shared.UserID, ordinal Ordinal) (*Progress, error) {
	if !userID.IsValid() {
		return nil, fmt.Errorf("start lesson %d: invalid user id", ordinal)
	}
	if !ordinal.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOrdinal, ordinal)
	}
	now := time.Now().UTC()
	return &Progress{
		UserID:        userID,
		LessonOrdinal: ordinal,
		Status:        StatusInProgress,
		StartedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// RecordAttempt фиксирует попытку квиза и выполняет переход состояния:
// проходной балл - completed, непроходной - failed. Из failed разрешён
// ретрай, из completed переходов нет.
func (p *Progress) RecordAttempt(score QuizScore) error {
	if !score.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidQuizScore, score)
	}
	if p.Status == StatusCompleted {
		return ErrProgressCompleted
	}

	now := time.Now().UTC()
	p.Attempts++
	if score > p.BestScore {
		p.BestScore = score
	}

	if score.IsPassing() {
		p.Status = StatusCompleted
		p.CompletedAt = &now
		p.ProgressPercent = 100
	} else {
		p.Status = StatusFailed
	}
	p.UpdatedAt = now
	return nil
}

// RecordStudy фиксирует учебную сессию: продвижение по материалу и
// потраченное время. Процент не убывает; для завершённого урока
// изменения запрещены.
func (p *Progress) RecordStudy(percent, seconds int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: percent %d", ErrInvalidStudyInput, percent)
	}
	if seconds < 0 {
		return fmt.Errorf("%w: seconds %d", ErrInvalidStudyInput, seconds)
	}
	if p.Status == StatusCompleted {
		return ErrProgressCompleted
	}

	if percent > p.ProgressPercent {
		p.ProgressPercent = percent
	}
	p.TimeSpentSeconds += seconds
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Retry возвращает урок из failed в in_progress для новой попытки.
func (p *Progress) Retry() error {
	if p.Status == StatusCompleted {
		return ErrProgressCompleted
	}
	p.Status = StatusInProgress
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// IsCompleted возвращает true для завершённого урока.
func (p *Progress) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// String возвращает строковое представление для логирования.
func (p *Progress) String() string {
	return fmt.Sprintf(
		"Progress{User: %s, Lesson: %d, Status: %s, Attempts: %d, Best: %d}",
		p.UserID, p.LessonOrdinal, p.Status, p.Attempts, p.BestScore,
	)
}
