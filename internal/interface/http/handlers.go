package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/tradequest/tradequest-core/internal/application/command"
	"github.com/tradequest/tradequest-core/internal/application/query"
	"github.com/tradequest/tradequest-core/internal/domain/lesson"
	"github.com/tradequest/tradequest-core/internal/domain/profile"
	"github.com/tradequest/tradequest-core/internal/domain/progression"
	"github.com/tradequest/tradequest-core/internal/domain/shared"
	"github.com/tradequest/tradequest-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot returns basic service information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Endpoint not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "tradequest-core",
		"status":  "running",
		"uptime":  s.Uptime().Round(time.Second).String(),
	})
}

// handleHealth returns the full health status of the service.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// handleReady returns readiness status (for Kubernetes readiness probes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", status.Message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive returns liveness status (for Kubernetes liveness probes).
// Liveness never checks dependencies: a dead database must not restart
// the service.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard returns a page of the overall leaderboard, or a
// character partition when ?character= is given.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	s.serveLeaderboard(w, r, getQueryParam(r, "character", ""))
}

// handleGetLeaderboardByCharacter returns a page of one character partition.
func (s *Server) handleGetLeaderboardByCharacter(w http.ResponseWriter, r *http.Request) {
	s.serveLeaderboard(w, r, r.PathValue("character"))
}

func (s *Server) serveLeaderboard(w http.ResponseWriter, r *http.Request, character string) {
	if s.deps.GetLeaderboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_available", "Leaderboard queries are not configured")
		return
	}

	q := query.GetLeaderboardQuery{
		Character: character,
		Offset:    getQueryParamInt(r, "offset", 0),
		Limit:     getQueryParamInt(r, "limit", 0),
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{
		TotalCount: result.TotalUsers,
		Offset:     result.Offset,
		Limit:      result.Limit,
		HasMore:    int64(result.Offset+len(result.Entries)) < result.TotalUsers,
	})
}

// handleGetProfile returns the progression profile for one user.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetProfileHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_available", "Profile queries are not configured")
		return
	}

	result, err := s.deps.GetProfileHandler.Handle(r.Context(), query.GetProfileQuery{
		UserID: r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetAchievements returns the achievement catalog annotated with
// the user's unlock state.
func (s *Server) handleGetAchievements(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetAchievementsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_available", "Achievement queries are not configured")
		return
	}

	result, err := s.deps.GetAchievementsHandler.Handle(r.Context(), query.GetAchievementsQuery{
		UserID:   r.PathValue("id"),
		Category: getQueryParam(r, "category", ""),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetRecommendedLessons returns the next unlockable lessons for
// one user, in catalog order.
func (s *Server) handleGetRecommendedLessons(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetRecommendedLessonsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_available", "Lesson queries are not configured")
		return
	}

	result, err := s.deps.GetRecommendedLessonsHandler.Handle(r.Context(), query.GetRecommendedLessonsQuery{
		UserID: r.PathValue("id"),
		Limit:  getQueryParamInt(r, "limit", 0),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// createProfileRequest is the request body for profile creation.
type createProfileRequest struct {
	UserID      string `json:"user_id"`
	Character   string `json:"character"`
	DisplayName string `json:"display_name"`
}

// handleCreateProfile creates a progression profile for a platform user.
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateProfileHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_available", "Profile commands are not configured")
		return
	}

	var req createProfileRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.CreateProfileHandler.Handle(r.Context(), command.CreateProfileCommand{
		UserID:      req.UserID,
		Character:   req.Character,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// changeCharacterRequest is the request body for a character change.
type changeCharacterRequest struct {
	Character string `json:"character"`
}

// handleChangeCharacter switches the user's trading archetype.
func (s *Server) handleChangeCharacter(w http.ResponseWriter, r *http.Request) {
	if s.deps.ChangeCharacterHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_available", "Profile commands are not configured")
		return
	}

	var req changeCharacterRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.ChangeCharacterHandler.Handle(r.Context(), command.ChangeCharacterCommand{
		UserID:        r.PathValue("id"),
		Character:     req.Character,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// grantXPRequest is the request body for an XP grant.
type grantXPRequest struct {
	Amount     int                    `json:"amount"`
	Source     string                 `json:"source"`
	OccurredAt time.Time              `json:"occurred_at,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// handleGrantXP appends one progression event for the user.
func (s *Server) handleGrantXP(w http.ResponseWriter, r *http.Request) {
	if s.deps.GrantXPHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_available", "XP commands are not configured")
		return
	}

	var req grantXPRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.GrantXPHandler.Handle(r.Context(), command.GrantXPCommand{
		UserID:        r.PathValue("id"),
		Amount:        req.Amount,
		Source:        req.Source,
		OccurredAt:    req.OccurredAt,
		Metadata:      req.Metadata,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Deduplicated {
		// Duplicate daily grants are acknowledged, not re-applied.
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// quizAttemptRequest is the request body for a quiz attempt.
type quizAttemptRequest struct {
	LessonOrdinal int       `json:"lesson_ordinal"`
	Score         int       `json:"score"`
	AttemptedAt   time.Time `json:"attempted_at,omitempty"`
}

// handleRecordQuizAttempt records a quiz attempt for a lesson.
func (s *Server) handleRecordQuizAttempt(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordQuizAttemptHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_available", "Lesson commands are not configured")
		return
	}

	var req quizAttemptRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.RecordQuizAttemptHandler.Handle(r.Context(), command.RecordQuizAttemptCommand{
		UserID:        r.PathValue("id"),
		LessonOrdinal: req.LessonOrdinal,
		Score:         req.Score,
		AttemptedAt:   req.AttemptedAt,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / ERROR PLUMBING
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON request body. Returns false after writing
// an error response when decoding fails.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON: "+err.Error())
		return false
	}
	return true
}

// writeError maps application errors onto HTTP status codes. The error
// taxonomy is deliberate: validation failures are the caller's fault,
// conflicts mean the state moved underneath them, consistency errors
// are our bug, transient storage errors invite a retry.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsValidation(err) || isDomainValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())

	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())

	case shared.IsConflict(err) || errors.Is(err, command.ErrPrerequisitesNotMet) ||
		errors.Is(err, shared.ErrInvalidState):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())

	case shared.IsConsistency(err):
		s.logger.Error("consistency violation surfaced to API",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Any("error", err),
		)
		writeJSONError(w, http.StatusInternalServerError, "consistency_violation", "Stored progression state is inconsistent")

	case shared.IsRetryable(err):
		w.Header().Set("Retry-After", "5")
		writeJSONError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "Storage is temporarily unavailable, retry the request")

	default:
		s.logger.Error("unhandled error in HTTP handler",
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
			logger.Any("error", err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// isDomainValidation recognizes the plain domain sentinels that command
// Validate methods wrap without going through the shared taxonomy.
func isDomainValidation(err error) bool {
	return errors.Is(err, progression.ErrInvalidAmount) ||
		errors.Is(err, progression.ErrUnknownSource) ||
		errors.Is(err, profile.ErrUnknownCharacter) ||
		errors.Is(err, lesson.ErrInvalidOrdinal) ||
		errors.Is(err, lesson.ErrInvalidQuizScore)
}
