package query

import (
	"context"
	"fmt"

	"github.com/tradequest/tradequest-core/internal/domain/lesson"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RECOMMENDED LESSONS QUERY
// Returns the lessons the user can start right now: not completed, all
// prerequisites met, ordered by ascending catalog ordinal.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRecommendationLimit bounds the recommendation list when the
// caller does not specify one.
const DefaultRecommendationLimit = 10

// GetRecommendedLessonsQuery contains the query parameters.
type GetRecommendedLessonsQuery struct {
	// UserID is the ID of the user.
	UserID string

	// Limit bounds the number of recommendations (default 10).
	Limit int
}

// Validate validates the query.
func (q GetRecommendedLessonsQuery) Validate() error {
	if !shared.UserID(q.UserID).IsValid() {
		return fmt.Errorf("get_recommended_lessons: invalid user_id: %q", q.UserID)
	}
	return nil
}

// RecommendedLessonDTO is one recommended lesson.
type RecommendedLessonDTO struct {
	Ordinal    int    `json:"ordinal"`
	Module     int    `json:"module"`
	Title      string `json:"title"`
	Difficulty string `json:"difficulty"`
	XPReward   int    `json:"xp_reward"`
}

// GetRecommendedLessonsResult contains the recommendations.
type GetRecommendedLessonsResult struct {
	UserID         string                  `json:"user_id"`
	Lessons        []*RecommendedLessonDTO `json:"lessons"`
	CompletedCount int                     `json:"completed_count"`
	CatalogSize    int                     `json:"catalog_size"`
}

// GetRecommendedLessonsHandler handles the GetRecommendedLessonsQuery.
type GetRecommendedLessonsHandler struct {
	catalog  lesson.Catalog
	progress lesson.ProgressRepository
}

// NewGetRecommendedLessonsHandler creates a new handler.
func NewGetRecommendedLessonsHandler(catalog lesson.Catalog, progress lesson.ProgressRepository) *GetRecommendedLessonsHandler {
	return &GetRecommendedLessonsHandler{catalog: catalog, progress: progress}
}

// Handle executes the query.
func (h *GetRecommendedLessonsHandler) Handle(ctx context.Context, q GetRecommendedLessonsQuery) (*GetRecommendedLessonsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetRecommendedLessons", shared.ErrValidation, err.Error(), err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}

	lessons, err := h.catalog.ListAll(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetRecommendedLessons", shared.ErrTransientStorage, "load lesson catalog", err)
	}
	graph, err := lesson.BuildGraph(lessons)
	if err != nil {
		return nil, shared.WrapError("query", "GetRecommendedLessons", shared.ErrConsistency, "lesson catalog is invalid", err)
	}

	completed, err := h.progress.CompletedOrdinals(ctx, shared.UserID(q.UserID))
	if err != nil {
		return nil, shared.WrapError("query", "GetRecommendedLessons", shared.ErrTransientStorage, "load lesson progress", err)
	}

	recommended, err := lesson.Recommend(graph, completed, limit)
	if err != nil {
		// A cycle or dangling reference is a content defect, not a
		// user error: surfaced as a consistency failure.
		return nil, shared.WrapError("query", "GetRecommendedLessons", shared.ErrConsistency, "lesson catalog is invalid", err)
	}

	result := &GetRecommendedLessonsResult{
		UserID:         q.UserID,
		Lessons:        make([]*RecommendedLessonDTO, 0, len(recommended)),
		CompletedCount: len(completed),
		CatalogSize:    graph.Size(),
	}
	for _, l := range recommended {
		result.Lessons = append(result.Lessons, &RecommendedLessonDTO{
			Ordinal:    l.Ordinal.Int(),
			Module:     int(l.Module),
			Title:      l.Title,
			Difficulty: string(l.Difficulty),
			XPReward:   l.XPReward,
		})
	}
	return result, nil
}
