// Package leaderboard содержит доменную модель рейтингов TradeQuest.
// Рейтинг - производная проекция журнала прогрессии: истина всегда в
// журнале, рейтинг пересчитывается целиком и заменяется атомарно.
package leaderboard

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank представляет позицию пользователя в рейтинге.
// Rank начинается с 1 (первое место).
type Rank int

// IsValid проверяет, что ранг положительный.
func (r Rank) IsValid() bool {
	return r > 0
}

// IsTop10 возвращает true, если пользователь в топ-10.
func (r Rank) IsTop10() bool {
	return r >= 1 && r <= 10
}

// IsTop100 возвращает true, если пользователь в топ-100.
func (r Rank) IsTop100() bool {
	return r >= 1 && r <= 100
}

// String возвращает строковое представление ранга.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// Partition определяет срез рейтинга: общий или по типу персонажа.
type Partition string

// PartitionOverall представляет общий рейтинг без фильтра по персонажу.
const PartitionOverall Partition = "overall"

// PartitionForCharacter возвращает партицию для типа персонажа.
func PartitionForCharacter(ct profile.CharacterType) Partition {
	return Partition("character:" + string(ct))
}

// IsValid проверяет корректность партиции.
func (p Partition) IsValid() bool {
	if p == PartitionOverall {
		return true
	}
	for _, ct := range profile.AllCharacterTypes() {
		if p == PartitionForCharacter(ct) {
			return true
		}
	}
	return false
}

// String возвращает строковое представление партиции.
func (p Partition) String() string {
	return string(p)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNilEntry - nil-запись недопустима.
	ErrNilEntry = errors.New("leaderboard entry cannot be nil")

	// ErrInvalidUserID - невалидный идентификатор пользователя.
	ErrInvalidUserID = errors.New("invalid user id in leaderboard entry")

	// ErrNegativeXP - отрицательный XP в записи рейтинга.
	ErrNegativeXP = errors.New("leaderboard entry xp cannot be negative")

	// ErrNegativeAchievements - отрицательное число достижений.
	ErrNegativeAchievements = errors.New("leaderboard entry achievement count cannot be negative")

	// ErrDuplicateUser - пользователь уже добавлен в рейтинг.
	ErrDuplicateUser = errors.New("user already present in ranking")

	// ErrDuplicateRank - в партиции обнаружены повторяющиеся ранги.
	// Это ошибка консистентности: снапшот публиковать нельзя.
	ErrDuplicateRank = errors.New("duplicate rank within partition")

	// ErrSnapshotNotFound - снапшот рейтинга не найден.
	ErrSnapshotNotFound = errors.New("leaderboard snapshot not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry представляет одну запись рейтинга.
// Одна запись несёт ранги обеих партиций: общей и своего персонажа.
type Entry struct {
	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// DisplayName - отображаемое имя.
	DisplayName string

	// Character - тип персонажа пользователя.
	Character profile.CharacterType

	// TotalXP - суммарный XP на момент пересчёта.
	TotalXP int64

	// Level - уровень на момент пересчёта.
	Level int

	// AchievementCount - число разблокированных достижений.
	AchievementCount int

	// RankOverall - позиция в общем рейтинге.
	RankOverall Rank

	// RankByCharacter - позиция в рейтинге своего персонажа.
	RankByCharacter Rank

	// UpdatedAt - время последнего обновления записи.
	UpdatedAt time.Time
}

// NewEntry создаёт запись рейтинга с валидацией. Ранги присваивает
// Ranking при сортировке.
func NewEntry(
	userID shared.UserID,
	displayName string,
	character profile.CharacterType,
	totalXP int64,
	level int,
	achievementCount int,
) (*Entry, error) {
	if !userID.IsValid() {
		return nil, ErrInvalidUserID
	}
	if totalXP < 0 {
		return nil, ErrNegativeXP
	}
	if achievementCount < 0 {
		return nil, ErrNegativeAchievements
	}
	if !character.IsValid() {
		return nil, fmt.Errorf("%w: %q", profile.ErrUnknownCharacter, character)
	}

	return &Entry{
		UserID:           userID,
		DisplayName:      displayName,
		Character:        character,
		TotalXP:          totalXP,
		Level:            level,
		AchievementCount: achievementCount,
		UpdatedAt:        time.Now().UTC(),
	}, nil
}

// Clone создаёт копию записи.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// String возвращает строковое представление для логирования.
func (e *Entry) String() string {
	return fmt.Sprintf(
		"Entry{User: %s, XP: %d, Overall: %s, %s: %s}",
		e.UserID, e.TotalXP, e.RankOverall, e.Character, e.RankByCharacter,
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING (Ranked List)
// ══════════════════════════════════════════════════════════════════════════════

// Ranking представляет полный пересчитанный рейтинг: общий порядок
// плюс партиции по персонажам. Строится в памяти из активных профилей
// и целиком заменяет предыдущий снапшот.
type Ranking struct {
	entries []*Entry
	byID    map[shared.UserID]*Entry
}

// NewRanking создаёт пустой Ranking.
func NewRanking() *Ranking {
	return &Ranking{
		entries: make([]*Entry, 0),
		byID:    make(map[shared.UserID]*Entry),
	}
}

// Add добавляет запись в рейтинг (без автоматической сортировки).
func (r *Ranking) Add(entry *Entry) error {
	if entry == nil {
		return ErrNilEntry
	}
	if _, exists := r.byID[entry.UserID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateUser, entry.UserID)
	}

	r.entries = append(r.entries, entry)
	r.byID[entry.UserID] = entry
	return nil
}

// AssignRanks сортирует записи и присваивает ранги обеих партиций.
//
// Порядок полный и детерминированный: по убыванию TotalXP, при
// равенстве - по возрастанию UserID. Поэтому два пересчёта одного
// состояния журнала дают идентичные ранги, и ранги внутри каждой
// партиции строго последовательны: 1, 2, 3, ... без дыр и дублей.
func (r *Ranking) AssignRanks() {
	sort.Slice(r.entries, func(i, j int) bool {
		if r.entries[i].TotalXP != r.entries[j].TotalXP {
			return r.entries[i].TotalXP > r.entries[j].TotalXP
		}
		return r.entries[i].UserID < r.entries[j].UserID
	})

	perCharacter := make(map[profile.CharacterType]Rank)
	for i, entry := range r.entries {
		entry.RankOverall = Rank(i + 1)
		perCharacter[entry.Character]++
		entry.RankByCharacter = perCharacter[entry.Character]
	}
}

// VerifyRanks проверяет инвариант уникальности рангов в каждой партиции.
// Вызывается после AssignRanks перед публикацией снапшота.
func (r *Ranking) VerifyRanks() error {
	seenOverall := make(map[Rank]bool, len(r.entries))
	seenByCharacter := make(map[profile.CharacterType]map[Rank]bool)

	for _, entry := range r.entries {
		if seenOverall[entry.RankOverall] {
			return fmt.Errorf("%w: overall rank %s", ErrDuplicateRank, entry.RankOverall)
		}
		seenOverall[entry.RankOverall] = true

		byChar := seenByCharacter[entry.Character]
		if byChar == nil {
			byChar = make(map[Rank]bool)
			seenByCharacter[entry.Character] = byChar
		}
		if byChar[entry.RankByCharacter] {
			return fmt.Errorf("%w: %s rank %s",
				ErrDuplicateRank, entry.Character, entry.RankByCharacter)
		}
		byChar[entry.RankByCharacter] = true
	}
	return nil
}

// All возвращает записи в порядке общего рейтинга.
func (r *Ranking) All() []*Entry {
	return r.entries
}

// Size возвращает количество записей.
func (r *Ranking) Size() int {
	return len(r.entries)
}

// GetByUserID возвращает запись пользователя.
func (r *Ranking) GetByUserID(userID shared.UserID) *Entry {
	return r.byID[userID]
}

// ForCharacter возвращает записи партиции персонажа в порядке её рангов.
func (r *Ranking) ForCharacter(ct profile.CharacterType) []*Entry {
	out := make([]*Entry, 0)
	for _, entry := range r.entries {
		if entry.Character == ct {
			out = append(out, entry)
		}
	}
	return out
}
