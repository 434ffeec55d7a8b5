// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strings"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// UserID
// ═══════════════════════════════════════════════════════════════════════════

// UserID - внутренний идентификатор пользователя (UUID в строковом формате).
type UserID string

// IsValid проверяет, что идентификатор является корректным UUID.
func (u UserID) IsValid() bool {
	_, err := uuid.Parse(string(u))
	return err == nil
}

// String возвращает строковое представление идентификатора.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty возвращает true, если идентификатор пустой.
func (u UserID) IsEmpty() bool {
	return string(u) == ""
}

// NewUserID валидирует и создаёт UserID.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", WrapError("shared", "NewUserID", ErrInvalidID, "user id must be a UUID", nil)
	}
	return uid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination
// ═══════════════════════════════════════════════════════════════════════════

// Page описывает параметры пагинации для запросов чтения.
type Page struct {
	// Offset - смещение от начала выборки.
	Offset int

	// Limit - максимальное количество записей.
	Limit int
}

// DefaultPageLimit - лимит по умолчанию для страничных запросов.
const DefaultPageLimit = 50

// MaxPageLimit - верхняя граница лимита, защищает от FULL SCAN запросов.
const MaxPageLimit = 500

// Normalize приводит параметры пагинации к допустимым границам.
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// ═══════════════════════════════════════════════════════════════════════════
// Metadata
// ═══════════════════════════════════════════════════════════════════════════

// Metadata - свободная структура дополнительных данных события.
// Хранится как JSONB; ключи - snake_case строки.
type Metadata map[string]interface{}

// Clone создаёт неглубокую копию метаданных.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	clone := make(Metadata, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

// GetString возвращает строковое значение по ключу.
func (m Metadata) GetString(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt возвращает целочисленное значение по ключу.
// JSON-декодер отдаёт числа как float64, это учитывается.
func (m Metadata) GetInt(key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
