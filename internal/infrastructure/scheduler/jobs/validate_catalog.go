package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tradequest/tradequest-core/internal/domain/lesson"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ValidateCatalogJob checks the lesson prerequisite graph for cycles
// and dangling references. A broken catalog is an operator error:
// recommendations refuse to run on it, so the defect must surface as
// soon as the catalog changes, not when a student asks for lessons.
type ValidateCatalogJob struct {
	catalog   lesson.Catalog
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewValidateCatalogJob creates a new catalog validation job.
// The publisher is optional.
func NewValidateCatalogJob(catalog lesson.Catalog, publisher shared.EventPublisher, logger *slog.Logger) *ValidateCatalogJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &ValidateCatalogJob{
		catalog:   catalog,
		publisher: publisher,
		logger:    logger.With("job", "validate_catalog"),
	}
}

// Name implements scheduler.Job.
func (j *ValidateCatalogJob) Name() string {
	return "validate_catalog"
}

// Description implements scheduler.Job.
func (j *ValidateCatalogJob) Description() string {
	return "Validates the lesson prerequisite graph"
}

// Run implements scheduler.Job.
func (j *ValidateCatalogJob) Run(ctx context.Context) error {
	lessons, err := j.catalog.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list lessons: %w", err)
	}

	graph, err := lesson.BuildGraph(lessons)
	if err != nil {
		j.report(err)
		return shared.WrapError("lesson", "ValidateCatalog",
			shared.ErrConsistency, "catalog rejected", err)
	}

	if err := graph.Validate(); err != nil {
		j.report(err)
		return shared.WrapError("lesson", "ValidateCatalog",
			shared.ErrConsistency, "prerequisite graph invalid", err)
	}

	j.logger.Info("catalog valid", "lessons", graph.Size())
	return nil
}

// report logs the defect and publishes a CatalogInvalidEvent.
func (j *ValidateCatalogJob) report(err error) {
	j.logger.Error("catalog invalid", "error", err)

	if j.publisher == nil {
		return
	}

	var dangling []string
	if errors.Is(err, lesson.ErrDanglingPrerequisite) {
		dangling = []string{err.Error()}
	}

	event := shared.NewCatalogInvalidEvent(nil, dangling)
	if pubErr := j.publisher.Publish(event); pubErr != nil {
		j.logger.Warn("failed to publish event", "error", pubErr)
	}
}
