package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts.
// Supports percentage rollout, character targeting, and per-user overrides.
//
// The progression ledger itself is never behind a flag: XP that was
// granted must stay granted. Flags gate the surfaces around it -
// recommendations, caches, bonus sources.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Character targeting (e.g., "scalper", "hodler")
	// Empty means all characters
	TargetCharacters []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variant (for experiments)
	Variants []string
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID    string // platform user ID
	Character string // trading archetype (e.g., "scalper")
	IsAdmin   bool   // Is admin user
}

// Predefined feature flag names.
const (
	// === Leaderboard Features ===
	FeatureLeaderboardCharacterBoards = "leaderboard.character_boards" // per-character partitions
	FeatureLeaderboardPageCache       = "leaderboard.page_cache"       // Redis page cache
	FeatureLeaderboardRankEvents      = "leaderboard.rank_events"      // publish recompute events

	// === Progression Features ===
	FeatureProgressionDailyLogin  = "progression.daily_login"  // daily login XP source
	FeatureProgressionStreakBonus = "progression.streak_bonus" // streak bonus XP source
	FeatureProgressionTradeXP     = "progression.trade_xp"     // XP from trading activity

	// === Achievement Features ===
	FeatureAchievementsUnlockRewards   = "achievements.unlock_rewards"   // XP rewards on unlock
	FeatureAchievementsTradingCriteria = "achievements.trading_criteria" // trade-stat criteria

	// === Lesson Features ===
	FeatureLessonsRecommendations = "lessons.recommendations" // next-lesson recommendations
	FeatureLessonsModuleBonus     = "lessons.module_bonus"    // module completion bonus

	// === Trading Integration ===
	FeatureTradingStatsSync = "trading.stats_sync" // pull stats from the platform

	// === Experimental Features ===
	FeatureExperimentalRedisEvents = "experimental.redis_events" // cross-instance event bus
	FeatureExperimentalAnalytics   = "experimental.analytics"    // advanced analytics
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Leaderboard features - enabled by default
	ff.features[FeatureLeaderboardCharacterBoards] = &Feature{
		Name:           FeatureLeaderboardCharacterBoards,
		Description:    "Per-character leaderboard partitions",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardPageCache] = &Feature{
		Name:           FeatureLeaderboardPageCache,
		Description:    "Cache leaderboard pages in Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLeaderboardRankEvents] = &Feature{
		Name:           FeatureLeaderboardRankEvents,
		Description:    "Publish events after rank recompute",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Progression features - core loop, enabled by default
	ff.features[FeatureProgressionDailyLogin] = &Feature{
		Name:           FeatureProgressionDailyLogin,
		Description:    "Daily login XP grants",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureProgressionStreakBonus] = &Feature{
		Name:           FeatureProgressionStreakBonus,
		Description:    "Streak bonus XP grants",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureProgressionTradeXP] = &Feature{
		Name:           FeatureProgressionTradeXP,
		Description:    "XP for trading activity",
		Enabled:        true,
		RolloutPercent: 50, // Gradual rollout
	}

	// Achievement features
	ff.features[FeatureAchievementsUnlockRewards] = &Feature{
		Name:           FeatureAchievementsUnlockRewards,
		Description:    "Grant XP rewards when achievements unlock",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAchievementsTradingCriteria] = &Feature{
		Name:           FeatureAchievementsTradingCriteria,
		Description:    "Achievements driven by trading stats",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Lesson features
	ff.features[FeatureLessonsRecommendations] = &Feature{
		Name:           FeatureLessonsRecommendations,
		Description:    "Recommend next unlockable lessons",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLessonsModuleBonus] = &Feature{
		Name:           FeatureLessonsModuleBonus,
		Description:    "Bonus XP for completing a module",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Trading integration
	ff.features[FeatureTradingStatsSync] = &Feature{
		Name:           FeatureTradingStatsSync,
		Description:    "Pull trading stats from the platform",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalRedisEvents] = &Feature{
		Name:           FeatureExperimentalRedisEvents,
		Description:    "Cross-instance event delivery over Redis",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureExperimentalAnalytics] = &Feature{
		Name:           FeatureExperimentalAnalytics,
		Description:    "Advanced analytics dashboard",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_PROGRESSION_TRADE_XP=true
// Example: FEATURE_PROGRESSION_TRADE_XP=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "progression.trade_xp" -> "FEATURE_PROGRESSION_TRADE_XP"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check user overrides first
	if ctx != nil && ctx.UserID != "" {
		if userOverrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check character targeting
	if len(feature.TargetCharacters) > 0 && ctx != nil && ctx.Character != "" {
		characterMatch := false
		for _, c := range feature.TargetCharacters {
			if c == ctx.Character {
				characterMatch = true
				break
			}
		}
		if !characterMatch {
			return false
		}
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func (ff *FeatureFlags) isInRollout(userID string, featureName string, percent int) bool {
	// Create a consistent hash for this user+feature combination
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// GetVariant returns the A/B test variant for a user.
// Returns empty string if no variants defined or feature disabled.
func (ff *FeatureFlags) GetVariant(featureName string, ctx *FeatureContext) string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok || !ff.IsEnabled(featureName, ctx) {
		return ""
	}

	if len(feature.Variants) == 0 {
		return ""
	}

	// Use consistent hashing to assign variant
	h := fnv.New32a()
	h.Write([]byte(featureName + "_variant"))
	h.Write([]byte(ctx.UserID))
	hash := h.Sum32()

	variantIndex := int(hash % uint32(len(feature.Variants)))
	return feature.Variants[variantIndex]
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(userID string, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Convenience methods for common checks ---

// DailyGrantsEnabled checks if any of the daily XP sources are enabled.
func (ff *FeatureFlags) DailyGrantsEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureProgressionDailyLogin, ctx) ||
		ff.IsEnabled(FeatureProgressionStreakBonus, ctx)
}

// TradingIntegrationEnabled checks if trading-driven features are enabled.
func (ff *FeatureFlags) TradingIntegrationEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureTradingStatsSync, ctx) ||
		ff.IsEnabled(FeatureProgressionTradeXP, ctx) ||
		ff.IsEnabled(FeatureAchievementsTradingCriteria, ctx)
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
