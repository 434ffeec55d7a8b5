// Package lesson содержит доменную модель учебного каталога TradeQuest:
// уроки, граф пререквизитов, прогресс пользователя и рекомендации.
package lesson

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Ordinal - сквозной порядковый номер урока в каталоге.
// Диапазон фиксирован: [1, 100].
type Ordinal int

const (
	// MinOrdinal - первый урок каталога.
	MinOrdinal Ordinal = 1
	// MaxOrdinal - последний урок каталога.
	MaxOrdinal Ordinal = 100
)

// IsValid проверяет, что номер входит в диапазон каталога.
func (o Ordinal) IsValid() bool {
	return o >= MinOrdinal && o <= MaxOrdinal
}

// Int возвращает номер как int.
func (o Ordinal) Int() int {
	return int(o)
}

// String возвращает строковое представление.
func (o Ordinal) String() string {
	return fmt.Sprintf("lesson-%d", int(o))
}

// ModuleNumber - номер учебного модуля, 1..4 по 25 уроков.
type ModuleNumber int

const (
	// MinModule - первый учебный модуль.
	MinModule ModuleNumber = 1
	// MaxModule - последний учебный модуль.
	MaxModule ModuleNumber = 4
	// LessonsPerModule - уроков в одном модуле.
	LessonsPerModule = 25
)

// IsValid проверяет диапазон номера модуля.
func (m ModuleNumber) IsValid() bool {
	return m >= MinModule && m <= MaxModule
}

// ModuleOf возвращает модуль, которому принадлежит урок.
func ModuleOf(o Ordinal) ModuleNumber {
	return ModuleNumber((o.Int()-1)/LessonsPerModule + 1)
}

// Difficulty определяет сложность урока.
type Difficulty string

const (
	// DifficultyBeginner - начальный уровень.
	DifficultyBeginner Difficulty = "beginner"
	// DifficultyIntermediate - средний уровень.
	DifficultyIntermediate Difficulty = "intermediate"
	// DifficultyAdvanced - продвинутый уровень.
	DifficultyAdvanced Difficulty = "advanced"
)

// IsValid проверяет, что сложность входит в перечисление.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidOrdinal - номер урока вне диапазона каталога.
	ErrInvalidOrdinal = errors.New("lesson ordinal out of range [1, 100]")

	// ErrInvalidModule - номер модуля вне диапазона [1, 4].
	ErrInvalidModule = errors.New("module number out of range [1, 4]")

	// ErrInvalidTitle - пустое или слишком длинное название.
	ErrInvalidTitle = errors.New("invalid lesson title: must be 2-200 chars")

	// ErrInvalidDifficulty - сложность не входит в перечисление.
	ErrInvalidDifficulty = errors.New("invalid lesson difficulty")

	// ErrSelfPrerequisite - урок не может требовать сам себя.
	ErrSelfPrerequisite = errors.New("lesson cannot be its own prerequisite")

	// ErrLessonNotFound - урок не найден в каталоге.
	ErrLessonNotFound = errors.New("lesson not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON (Catalog Entry)
// ══════════════════════════════════════════════════════════════════════════════

// Lesson - запись учебного каталога. Пререквизиты ссылаются на другие
// уроки по порядковому номеру; валидность графа (ацикличность, отсутствие
// висячих ссылок) проверяется на уровне каталога, не отдельной записи.
type Lesson struct {
	// ID - уникальный идентификатор.
	ID string

	// Ordinal - сквозной порядковый номер.
	Ordinal Ordinal

	// Module - учебный модуль.
	Module ModuleNumber

	// Title - название урока.
	Title string

	// Difficulty - сложность.
	Difficulty Difficulty

	// XPReward - награда за первое завершение.
	XPReward int

	// Prerequisites - номера уроков, которые должны быть завершены
	// до начала этого.
	Prerequisites []Ordinal

	// CreatedAt - время создания записи.
	CreatedAt time.Time
}

// NewLesson создаёт запись каталога с валидацией.
func NewLesson(
	id string,
	ordinal Ordinal,
	title string,
	difficulty Difficulty,
	xpReward int,
	prerequisites []Ordinal,
) (*Lesson, error) {
	if !ordinal.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOrdinal, ordinal)
	}
	title = strings.TrimSpace(title)
	if len(title) < 2 || len(title) > 200 {
		return nil, ErrInvalidTitle
	}
	if !difficulty.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDifficulty, difficulty)
	}
	if xpReward < 0 {
		xpReward = 0
	}

	prereqs := make([]Ordinal, 0, len(prerequisites))
	for _, p := range prerequisites {
		if !p.IsValid() {
			return nil, fmt.Errorf("%w: prerequisite %d", ErrInvalidOrdinal, p)
		}
		if p == ordinal {
			return nil, fmt.Errorf("%w: %s", ErrSelfPrerequisite, ordinal)
		}
		prereqs = append(prereqs, p)
	}

	return &Lesson{
		ID:            id,
		Ordinal:       ordinal,
		Module:        ModuleOf(ordinal),
		Title:         title,
		Difficulty:    difficulty,
		XPReward:      xpReward,
		Prerequisites: prereqs,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// HasPrerequisites возвращает true, если у урока есть пререквизиты.
func (l *Lesson) HasPrerequisites() bool {
	return len(l.Prerequisites) > 0
}

// IsModuleFinal возвращает true для последнего урока модуля.
func (l *Lesson) IsModuleFinal() bool {
	return l.Ordinal.Int()%LessonsPerModule == 0
}

// String возвращает строковое представление для логирования.
func (l *Lesson) String() string {
	return fmt.Sprintf(
		"Lesson{Ordinal: %d, Module: %d, Title: %s, Prereqs: %d}",
		l.Ordinal, l.Module, l.Title, len(l.Prerequisites),
	)
}
