// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Progression events
	EventXPGained           EventType = "progression.xp_gained"
	EventLevelUp            EventType = "progression.level_up"
	EventLevelAuditMismatch EventType = "progression.audit_mismatch"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"
	EventAchievementProgress EventType = "achievement.progress"

	// Leaderboard events
	EventEntryRefreshed   EventType = "leaderboard.entry_refreshed"
	EventRanksRecomputed  EventType = "leaderboard.ranks_recomputed"
	EventRankInconsistent EventType = "leaderboard.rank_inconsistent"

	// Lesson events
	EventLessonStarted   EventType = "lesson.started"
	EventLessonCompleted EventType = "lesson.completed"
	EventLessonFailed    EventType = "lesson.failed"
	EventModuleCompleted EventType = "lesson.module_completed"
	EventCatalogInvalid  EventType = "lesson.catalog_invalid"

	// Profile events
	EventCharacterChanged EventType = "profile.character_changed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progression Events
// ═══════════════════════════════════════════════════════════════════════════

// XPGainedEvent is emitted when a ledger append grants XP to a user.
type XPGainedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	EventID  string `json:"event_id"`
	Source   string `json:"source"`
	Amount   int    `json:"amount"`
	TotalXP  int64  `json:"total_xp"`
	NewLevel int    `json:"new_level"`
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"event_id":  e.EventID,
		"source":    e.Source,
		"amount":    e.Amount,
		"total_xp":  e.TotalXP,
		"new_level": e.NewLevel,
	}
}

// NewXPGainedEvent creates a new XPGainedEvent.
func NewXPGainedEvent(userID, eventID, source string, amount int, totalXP int64, newLevel int) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent: NewBaseEvent(EventXPGained, userID),
		UserID:    userID,
		EventID:   eventID,
		Source:    source,
		Amount:    amount,
		TotalXP:   totalXP,
		NewLevel:  newLevel,
	}
}

// LevelUpEvent is emitted when a user's level increases.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	TotalXP  int64  `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"total_xp":  e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int, totalXP int64) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// LevelAuditMismatchEvent is emitted when the consistency audit finds
// a profile whose total XP disagrees with the ledger sum.
type LevelAuditMismatchEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	LedgerSum    int64  `json:"ledger_sum"`
	ProfileTotal int64  `json:"profile_total"`
}

// Payload implements Event interface.
func (e LevelAuditMismatchEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"ledger_sum":    e.LedgerSum,
		"profile_total": e.ProfileTotal,
	}
}

// NewLevelAuditMismatchEvent creates a new LevelAuditMismatchEvent.
func NewLevelAuditMismatchEvent(userID string, ledgerSum, profileTotal int64) LevelAuditMismatchEvent {
	return LevelAuditMismatchEvent{
		BaseEvent:    NewBaseEvent(EventLevelAuditMismatch, userID),
		UserID:       userID,
		LedgerSum:    ledgerSum,
		ProfileTotal: profileTotal,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted when an achievement completes.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID          string `json:"user_id"`
	AchievementID   string `json:"achievement_id"`
	AchievementCode string `json:"achievement_code"`
	Rarity          string `json:"rarity"`
	XPReward        int    `json:"xp_reward"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.UserID,
		"achievement_id":   e.AchievementID,
		"achievement_code": e.AchievementCode,
		"rarity":           e.Rarity,
		"xp_reward":        e.XPReward,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID, code, rarity string, xpReward int) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:       NewBaseEvent(EventAchievementUnlocked, userID),
		UserID:          userID,
		AchievementID:   achievementID,
		AchievementCode: code,
		Rarity:          rarity,
		XPReward:        xpReward,
	}
}

// AchievementProgressEvent is emitted when a counter criterion advances
// without reaching its target yet.
type AchievementProgressEvent struct {
	BaseEvent
	UserID          string `json:"user_id"`
	AchievementID   string `json:"achievement_id"`
	AchievementCode string `json:"achievement_code"`
	Current         int    `json:"current"`
	Target          int    `json:"target"`
}

// Payload implements Event interface.
func (e AchievementProgressEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.UserID,
		"achievement_id":   e.AchievementID,
		"achievement_code": e.AchievementCode,
		"current":          e.Current,
		"target":           e.Target,
	}
}

// NewAchievementProgressEvent creates a new AchievementProgressEvent.
func NewAchievementProgressEvent(userID, achievementID, code string, current, target int) AchievementProgressEvent {
	return AchievementProgressEvent{
		BaseEvent:       NewBaseEvent(EventAchievementProgress, userID),
		UserID:          userID,
		AchievementID:   achievementID,
		AchievementCode: code,
		Current:         current,
		Target:          target,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// EntryRefreshedEvent is emitted when a profile mutation upserts the
// user's denormalized leaderboard row. Ranks are not recomputed here.
type EntryRefreshedEvent struct {
	BaseEvent
	UserID           string `json:"user_id"`
	TotalXP          int64  `json:"total_xp"`
	Level            int    `json:"level"`
	AchievementCount int    `json:"achievement_count"`
}

// Payload implements Event interface.
func (e EntryRefreshedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":           e.UserID,
		"total_xp":          e.TotalXP,
		"level":             e.Level,
		"achievement_count": e.AchievementCount,
	}
}

// NewEntryRefreshedEvent creates a new EntryRefreshedEvent.
func NewEntryRefreshedEvent(userID string, totalXP int64, level, achievementCount int) EntryRefreshedEvent {
	return EntryRefreshedEvent{
		BaseEvent:        NewBaseEvent(EventEntryRefreshed, userID),
		UserID:           userID,
		TotalXP:          totalXP,
		Level:            level,
		AchievementCount: achievementCount,
	}
}

// RankInconsistentEvent is emitted when rank verification rejects a
// recomputed ranking. The previous snapshot stays published.
type RankInconsistentEvent struct {
	BaseEvent
	Detail string `json:"detail"`
}

// Payload implements Event interface.
func (e RankInconsistentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"detail": e.Detail,
	}
}

// NewRankInconsistentEvent creates a new RankInconsistentEvent.
func NewRankInconsistentEvent(detail string) RankInconsistentEvent {
	return RankInconsistentEvent{
		BaseEvent: NewBaseEvent(EventRankInconsistent, "leaderboard"),
		Detail:    detail,
	}
}

// RanksRecomputedEvent is emitted when a full rank recomputation completes.
type RanksRecomputedEvent struct {
	BaseEvent
	SnapshotID   string        `json:"snapshot_id"`
	TotalEntries int           `json:"total_entries"`
	Duration     time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e RanksRecomputedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"snapshot_id":   e.SnapshotID,
		"total_entries": e.TotalEntries,
		"duration_ms":   e.Duration.Milliseconds(),
	}
}

// NewRanksRecomputedEvent creates a new RanksRecomputedEvent.
func NewRanksRecomputedEvent(snapshotID string, totalEntries int, duration time.Duration) RanksRecomputedEvent {
	return RanksRecomputedEvent{
		BaseEvent:    NewBaseEvent(EventRanksRecomputed, snapshotID),
		SnapshotID:   snapshotID,
		TotalEntries: totalEntries,
		Duration:     duration,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Lesson Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonStartedEvent is emitted when a user's first quiz attempt
// creates the progress record for a lesson.
type LessonStartedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	LessonOrdinal int    `json:"lesson_ordinal"`
}

// Payload implements Event interface.
func (e LessonStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"lesson_ordinal": e.LessonOrdinal,
	}
}

// NewLessonStartedEvent creates a new LessonStartedEvent.
func NewLessonStartedEvent(userID string, ordinal int) LessonStartedEvent {
	return LessonStartedEvent{
		BaseEvent:     NewBaseEvent(EventLessonStarted, userID),
		UserID:        userID,
		LessonOrdinal: ordinal,
	}
}

// LessonFailedEvent is emitted when a quiz attempt scores below the
// passing threshold. The lesson stays retryable.
type LessonFailedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	LessonOrdinal int    `json:"lesson_ordinal"`
	QuizScore     int    `json:"quiz_score"`
	Attempts      int    `json:"attempts"`
}

// Payload implements Event interface.
func (e LessonFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"lesson_ordinal": e.LessonOrdinal,
		"quiz_score":     e.QuizScore,
		"attempts":       e.Attempts,
	}
}

// NewLessonFailedEvent creates a new LessonFailedEvent.
func NewLessonFailedEvent(userID string, ordinal, score, attempts int) LessonFailedEvent {
	return LessonFailedEvent{
		BaseEvent:     NewBaseEvent(EventLessonFailed, userID),
		UserID:        userID,
		LessonOrdinal: ordinal,
		QuizScore:     score,
		Attempts:      attempts,
	}
}

// LessonCompletedEvent is emitted when a quiz attempt passes a lesson.
type LessonCompletedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	LessonOrdinal int    `json:"lesson_ordinal"`
	QuizScore     int    `json:"quiz_score"`
	Attempts      int    `json:"attempts"`
	XPReward      int    `json:"xp_reward"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"lesson_ordinal": e.LessonOrdinal,
		"quiz_score":     e.QuizScore,
		"attempts":       e.Attempts,
		"xp_reward":      e.XPReward,
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(userID string, ordinal, score, attempts, xpReward int) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent:     NewBaseEvent(EventLessonCompleted, userID),
		UserID:        userID,
		LessonOrdinal: ordinal,
		QuizScore:     score,
		Attempts:      attempts,
		XPReward:      xpReward,
	}
}

// ModuleCompletedEvent is emitted when every lesson of a module is completed.
type ModuleCompletedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	ModuleNumber int    `json:"module_number"`
}

// Payload implements Event interface.
func (e ModuleCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"module_number": e.ModuleNumber,
	}
}

// NewModuleCompletedEvent creates a new ModuleCompletedEvent.
func NewModuleCompletedEvent(userID string, moduleNumber int) ModuleCompletedEvent {
	return ModuleCompletedEvent{
		BaseEvent:    NewBaseEvent(EventModuleCompleted, userID),
		UserID:       userID,
		ModuleNumber: moduleNumber,
	}
}

// CatalogInvalidEvent is emitted when catalog validation detects a broken
// prerequisite graph. The affected lessons are excluded from recommendations.
type CatalogInvalidEvent struct {
	BaseEvent
	CycleMembers []int    `json:"cycle_members,omitempty"`
	Dangling     []string `json:"dangling,omitempty"`
}

// Payload implements Event interface.
func (e CatalogInvalidEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"cycle_members": e.CycleMembers,
		"dangling":      e.Dangling,
	}
}

// NewCatalogInvalidEvent creates a new CatalogInvalidEvent.
func NewCatalogInvalidEvent(cycleMembers []int, dangling []string) CatalogInvalidEvent {
	return CatalogInvalidEvent{
		BaseEvent:    NewBaseEvent(EventCatalogInvalid, "lesson-catalog"),
		CycleMembers: cycleMembers,
		Dangling:     dangling,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Profile Events
// ═══════════════════════════════════════════════════════════════════════════

// CharacterChangedEvent is emitted when a user switches character archetype.
type CharacterChangedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	OldCharacter string `json:"old_character"`
	NewCharacter string `json:"new_character"`
}

// Payload implements Event interface.
func (e CharacterChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"old_character": e.OldCharacter,
		"new_character": e.NewCharacter,
	}
}

// NewCharacterChangedEvent creates a new CharacterChangedEvent.
func NewCharacterChangedEvent(userID, oldCharacter, newCharacter string) CharacterChangedEvent {
	return CharacterChangedEvent{
		BaseEvent:    NewBaseEvent(EventCharacterChanged, userID),
		UserID:       userID,
		OldCharacter: oldCharacter,
		NewCharacter: newCharacter,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
