package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/progression"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// AuditConsistencyJob cross-checks every active profile against the
// ledger: the sum of ledger amounts must equal Profile.TotalXP, and
// the stored level must match the level derived from that total.
// Mismatches are reported, never auto-repaired: the ledger is the
// source of truth and a divergent profile needs operator attention.
type AuditConsistencyJob struct {
	profiles  profile.Repository
	ledger    progression.Ledger
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewAuditConsistencyJob creates a new consistency audit job.
// The publisher is optional.
func NewAuditConsistencyJob(
	profiles profile.Repository,
	ledger progression.Ledger,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *AuditConsistencyJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuditConsistencyJob{
		profiles:  profiles,
		ledger:    ledger,
		publisher: publisher,
		logger:    logger.With("job", "audit_consistency"),
	}
}

// Name implements scheduler.Job.
func (j *AuditConsistencyJob) Name() string {
	return "audit_consistency"
}

// Description implements scheduler.Job.
func (j *AuditConsistencyJob) Description() string {
	return "Cross-checks profile XP totals against the ledger"
}

// Run implements scheduler.Job.
func (j *AuditConsistencyJob) Run(ctx context.Context) error {
	var audited, mismatches int

	var offset int
	for {
		page := shared.Page{Offset: offset, Limit: listPageSize}

		profiles, err := j.profiles.ListActive(ctx, page)
		if err != nil {
			return fmt.Errorf("list active profiles: %w", err)
		}
		if len(profiles) == 0 {
			break
		}

		for _, p := range profiles {
			if err := ctx.Err(); err != nil {
				return err
			}

			ok, err := j.auditProfile(ctx, p)
			if err != nil {
				return err
			}

			audited++
			if !ok {
				mismatches++
			}
		}

		if len(profiles) < listPageSize {
			break
		}
		offset += listPageSize
	}

	j.logger.Info("audit finished", "audited", audited, "mismatches", mismatches)

	if mismatches > 0 {
		return shared.WrapError("progression", "AuditConsistency",
			shared.ErrConsistency, "profiles diverge from ledger",
			fmt.Errorf("%d of %d profiles mismatched", mismatches, audited))
	}

	return nil
}

// auditProfile checks one profile. Returns false on a mismatch.
func (j *AuditConsistencyJob) auditProfile(ctx context.Context, p *profile.Profile) (bool, error) {
	ledgerSum, err := j.ledger.SumAmount(ctx, p.UserID)
	if err != nil {
		return false, fmt.Errorf("sum ledger for %s: %w", p.UserID, err)
	}

	expectedLevel, expectedWithin := progression.Calculate(p.TotalXP)

	consistent := ledgerSum == p.TotalXP &&
		expectedLevel == p.Level &&
		expectedWithin == p.CurrentXP

	if consistent {
		return true, nil
	}

	j.logger.Error("profile diverges from ledger",
		"user_id", p.UserID.String(),
		"ledger_sum", ledgerSum,
		"profile_total", p.TotalXP,
		"profile_level", int(p.Level),
		"expected_level", int(expectedLevel),
	)

	if j.publisher != nil {
		event := shared.NewLevelAuditMismatchEvent(p.UserID.String(), ledgerSum, p.TotalXP)
		if err := j.publisher.Publish(event); err != nil {
			j.logger.Warn("failed to publish event", "error", err)
		}
	}

	return false, nil
}
