package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/tradequest/tradequest-core/internal/application/command"
	"github.com/tradequest/tradequest-core/internal/domain/achievement"
	"github.com/tradequest/tradequest-core/internal/domain/lesson"
	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/progression"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// UnitOfWork implements command.UnitOfWork over a pgx transaction.
// All repositories handed to fn share the same transaction, so the
// ledger append, the profile recompute and the achievement unlocks
// commit or roll back together.
type UnitOfWork struct {
	conn *Connection
}

// NewUnitOfWork creates a new unit of work.
func NewUnitOfWork(conn *Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn}
}

// Within executes fn inside a single transaction.
func (u *UnitOfWork) Within(ctx context.Context, fn func(ctx context.Context, tx command.TxRepos) error) error {
	err := u.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, &txRepos{tx: tx})
	})
	if err != nil {
		if errors.Is(err, ErrConnectionClosed) || errors.Is(err, ErrTransactionFailed) {
			return shared.WrapError("storage", "Within", shared.ErrTransientStorage, "transaction failed", err)
		}
		return err
	}

	return nil
}

// txRepos binds the persistence repositories to one transaction.
type txRepos struct {
	tx pgx.Tx
}

func (t *txRepos) Profiles() profile.Repository {
	return &ProfileRepository{q: t.tx}
}

func (t *txRepos) Ledger() progression.Ledger {
	return &LedgerRepository{q: t.tx}
}

func (t *txRepos) Unlocks() achievement.UserAchievementRepository {
	return &AchievementRepository{q: t.tx}
}

func (t *txRepos) LessonProgress() lesson.ProgressRepository {
	return &LessonRepository{q: t.tx}
}
