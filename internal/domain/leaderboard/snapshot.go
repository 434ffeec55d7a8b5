// Package leaderboard содержит доменную модель рейтингов TradeQuest.
package leaderboard

import (
	"fmt"
	"time"

	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot представляет опубликованное состояние рейтинга.
// Версия монотонно растёт: читатели видят либо предыдущую версию
// целиком, либо новую целиком, никогда - смесь. Снапшоты используются
// для:
// 1. Быстрого чтения (CQRS Read Model)
// 2. Трекинга свежести пересчёта (ComputedAt против журнала)
// 3. Аналитики и истории версий
type Snapshot struct {
	// ID - уникальный идентификатор снапшота.
	ID string

	// Version - монотонная версия пересчёта.
	Version int64

	// ComputedAt - время пересчёта.
	ComputedAt time.Time

	// TotalUsers - количество пользователей в снапшоте.
	TotalUsers int

	// TotalXP - суммарный XP всех пользователей.
	TotalXP int64

	// Entries - записи в порядке общего рейтинга.
	Entries []*Entry

	// byID - индекс для быстрого поиска по ID.
	byID map[shared.UserID]*Entry
}

// NewSnapshot создаёт снапшот из пересчитанного рейтинга.
// Ranking должен быть отсортирован (AssignRanks) и проверен
// (VerifyRanks) до публикации; здесь инвариант проверяется ещё раз,
// чтобы битый снапшот не мог попасть к читателям.
func NewSnapshot(id string, version int64, ranking *Ranking) (*Snapshot, error) {
	if ranking == nil {
		return NewEmptySnapshot(id, version), nil
	}
	if err := ranking.VerifyRanks(); err != nil {
		return nil, fmt.Errorf("build snapshot v%d: %w", version, err)
	}

	entries := ranking.All()
	byID := make(map[shared.UserID]*Entry, len(entries))

	var totalXP int64
	for _, entry := range entries {
		byID[entry.UserID] = entry
		totalXP += entry.TotalXP
	}

	return &Snapshot{
		ID:         id,
		Version:    version,
		ComputedAt: time.Now().UTC(),
		TotalUsers: len(entries),
		TotalXP:    totalXP,
		Entries:    entries,
		byID:       byID,
	}, nil
}

// RestoreSnapshot восстанавливает снапшот из хранилища.
// Записи должны идти в порядке общего рейтинга; инварианты рангов
// проверены при публикации и повторно не проверяются.
func RestoreSnapshot(id string, version int64, computedAt time.Time, entries []*Entry) *Snapshot {
	byID := make(map[shared.UserID]*Entry, len(entries))
	var totalXP int64
	for _, entry := range entries {
		byID[entry.UserID] = entry
		totalXP += entry.TotalXP
	}

	return &Snapshot{
		ID:         id,
		Version:    version,
		ComputedAt: computedAt,
		TotalUsers: len(entries),
		TotalXP:    totalXP,
		Entries:    entries,
		byID:       byID,
	}
}

// NewEmptySnapshot создаёт пустой снапшот.
func NewEmptySnapshot(id string, version int64) *Snapshot {
	return &Snapshot{
		ID:         id,
		Version:    version,
		ComputedAt: time.Now().UTC(),
		Entries:    make([]*Entry, 0),
		byID:       make(map[shared.UserID]*Entry),
	}
}

// GetByUserID возвращает запись пользователя.
func (s *Snapshot) GetByUserID(userID shared.UserID) *Entry {
	if s.byID == nil {
		return nil
	}
	return s.byID[userID]
}

// GetRank возвращает общий ранг пользователя.
// Возвращает 0, если пользователь не найден.
func (s *Snapshot) GetRank(userID shared.UserID) Rank {
	entry := s.GetByUserID(userID)
	if entry == nil {
		return 0
	}
	return entry.RankOverall
}

// Page возвращает страницу записей общего рейтинга.
func (s *Snapshot) Page(page shared.Page) []*Entry {
	page = page.Normalize()
	if page.Offset >= len(s.Entries) {
		return []*Entry{}
	}
	end := page.Offset + page.Limit
	if end > len(s.Entries) {
		end = len(s.Entries)
	}
	return s.Entries[page.Offset:end]
}

// IsStale возвращает true, если снапшот старше допустимого интервала.
func (s *Snapshot) IsStale(maxAge time.Duration, now time.Time) bool {
	return now.Sub(s.ComputedAt) > maxAge
}

// IsEmpty возвращает true для снапшота без записей.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Entries) == 0
}

// String возвращает строковое представление для логирования.
func (s *Snapshot) String() string {
	return fmt.Sprintf(
		"Snapshot{Version: %d, Users: %d, ComputedAt: %s}",
		s.Version, s.TotalUsers, s.ComputedAt.Format(time.RFC3339),
	)
}
