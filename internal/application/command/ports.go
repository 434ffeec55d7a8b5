// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"

	"github.com/tradequest/tradequest-core/internal/domain/achievement"
	"github.com/tradequest/tradequest-core/internal/domain/lesson"
	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/progression"
)

// TxRepos exposes the repositories participating in one atomic unit:
// ledger append, profile recompute and achievement unlocks must commit
// or roll back together.
type TxRepos interface {
	// Profiles returns the profile repository bound to the transaction.
	Profiles() profile.Repository

	// Ledger returns the progression ledger bound to the transaction.
	Ledger() progression.Ledger

	// Unlocks returns the user-achievement repository bound to the transaction.
	Unlocks() achievement.UserAchievementRepository

	// LessonProgress returns the lesson progress repository bound to
	// the transaction.
	LessonProgress() lesson.ProgressRepository
}

// UnitOfWork runs a function inside a single storage transaction.
// If fn returns an error the transaction is rolled back and no partial
// state is visible to readers.
type UnitOfWork interface {
	Within(ctx context.Context, fn func(ctx context.Context, tx TxRepos) error) error
}
