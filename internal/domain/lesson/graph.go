package lesson

import (
	"errors"
	"fmt"
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREREQUISITE GRAPH
// ══════════════════════════════════════════════════════════════════════════════
//
// Пререквизиты образуют ориентированный граф над номерами уроков.
// Каталог валиден, только если граф ацикличен и не содержит висячих
// ссылок. Валидация - свойство каталога целиком: битый каталог не
// блокирует начисление XP, но рекомендации по нему не строятся.

var (
	// ErrPrerequisiteCycle - в графе пререквизитов найден цикл.
	ErrPrerequisiteCycle = errors.New("prerequisite graph contains a cycle")

	// ErrDanglingPrerequisite - пререквизит ссылается на отсутствующий урок.
	ErrDanglingPrerequisite = errors.New("prerequisite references missing lesson")

	// ErrDuplicateOrdinal - два урока каталога с одним номером.
	ErrDuplicateOrdinal = errors.New("duplicate lesson ordinal in catalog")
)

// Graph - граф пререквизитов, построенный из каталога.
type Graph struct {
	lessons map[Ordinal]*Lesson
}

// BuildGraph строит граф из списка уроков.
// Дубликат номера - ошибка: номер однозначно идентифицирует урок.
func BuildGraph(lessons []*Lesson) (*Graph, error) {
	byOrdinal := make(map[Ordinal]*Lesson, len(lessons))
	for _, l := range lessons {
		if _, exists := byOrdinal[l.Ordinal]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateOrdinal, l.Ordinal)
		}
		byOrdinal[l.Ordinal] = l
	}
	return &Graph{lessons: byOrdinal}, nil
}

// Get возвращает урок по номеру.
func (g *Graph) Get(ordinal Ordinal) (*Lesson, bool) {
	l, ok := g.lessons[ordinal]
	return l, ok
}

// Size возвращает количество уроков в графе.
func (g *Graph) Size() int {
	return len(g.lessons)
}

// Ordinals возвращает номера уроков по возрастанию.
func (g *Graph) Ordinals() []Ordinal {
	out := make([]Ordinal, 0, len(g.lessons))
	for o := range g.lessons {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// dfs-раскраска для поиска циклов.
type color int

const (
	colorWhite color = iota // не посещён
	colorGray               // в текущем пути обхода
	colorBlack              // обработан
)

// Validate проверяет граф: все ссылки разрешаются, циклов нет.
// Возвращает первую найденную проблему.
func (g *Graph) Validate() error {
	// Сначала висячие ссылки: обход циклов предполагает, что каждая
	// ссылка разрешается.
	for _, l := range g.lessons {
		for _, p := range l.Prerequisites {
			if _, ok := g.lessons[p]; !ok {
				return fmt.Errorf("%w: lesson %d requires %d",
					ErrDanglingPrerequisite, l.Ordinal, p)
			}
		}
	}

	colors := make(map[Ordinal]color, len(g.lessons))
	for _, start := range g.Ordinals() {
		if colors[start] != colorWhite {
			continue
		}
		if cycle := g.findCycle(start, colors, nil); cycle != nil {
			return fmt.Errorf("%w: %v", ErrPrerequisiteCycle, cycle)
		}
	}
	return nil
}

// findCycle выполняет DFS из урока, возвращая путь цикла, если он есть.
func (g *Graph) findCycle(o Ordinal, colors map[Ordinal]color, path []Ordinal) []Ordinal {
	colors[o] = colorGray
	path = append(path, o)

	for _, p := range g.lessons[o].Prerequisites {
		switch colors[p] {
		case colorGray:
			return append(path, p)
		case colorWhite:
			if cycle := g.findCycle(p, colors, path); cycle != nil {
				return cycle
			}
		}
	}

	colors[o] = colorBlack
	return nil
}

// Eligible возвращает true, если все пререквизиты урока завершены.
// Урок без пререквизитов доступен всегда.
func (g *Graph) Eligible(ordinal Ordinal, completed map[Ordinal]bool) (bool, error) {
	l, ok := g.lessons[ordinal]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrLessonNotFound, ordinal)
	}
	for _, p := range l.Prerequisites {
		if !completed[p] {
			return false, nil
		}
	}
	return true, nil
}

// MissingPrerequisites возвращает незавершённые пререквизиты урока
// по возрастанию номера.
func (g *Graph) MissingPrerequisites(ordinal Ordinal, completed map[Ordinal]bool) ([]Ordinal, error) {
	l, ok := g.lessons[ordinal]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrLessonNotFound, ordinal)
	}
	missing := make([]Ordinal, 0)
	for _, p := range l.Prerequisites {
		if !completed[p] {
			missing = append(missing, p)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing, nil
}
