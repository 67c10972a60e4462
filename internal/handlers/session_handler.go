package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/TechFest-2026/exam-session-service/internal/services"
	"github.com/TechFest-2026/exam-session-service/internal/utils"
)

// SessionHandler exposes the candidate-facing session endpoints.
type SessionHandler struct {
	BaseHandler
	sessionService   services.SessionService
	violationService services.ViolationService
}

func NewSessionHandler(
	sessionService services.SessionService,
	violationService services.ViolationService,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:      NewBaseHandler(logger),
		sessionService:   sessionService,
		violationService: violationService,
	}
}

// StartSession starts a new session or resumes the candidate's active one
// @Summary Start exam session
// @Tags sessions
// @Accept json
// @Produce json
// @Param identity body services.StartSessionRequest true "Candidate identity"
// @Success 200 {object} services.StartSessionResponse "Existing active session resumed"
// @Success 201 {object} services.StartSessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Already submitted"
// @Router /sessions/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.sessionService.Start(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// GetStatus returns the session's current state and remaining time
// @Summary Get session status
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionStatusResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/status [get]
func (h *SessionHandler) GetStatus(c *gin.Context) {
	id := ParseSessionIDParam(c, "id")
	if id == uuid.Nil {
		return
	}

	status, err := h.sessionService.GetStatus(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// RecordAnswer upserts one answer on an active session
// @Summary Record answer
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param answer body services.RecordAnswerRequest true "Answer"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Session no longer active"
// @Router /sessions/{id}/answer [post]
func (h *SessionHandler) RecordAnswer(c *gin.Context) {
	id := ParseSessionIDParam(c, "id")
	if id == uuid.Nil {
		return
	}

	var req services.RecordAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.sessionService.RecordAnswer(c.Request.Context(), id, &req); err != nil {
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SyncAnswers merges a batch of answers onto an active session
// @Summary Sync answers
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param answers body services.SyncAnswersRequest true "Answers"
// @Success 204
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/answers/sync [post]
func (h *SessionHandler) SyncAnswers(c *gin.Context) {
	id := ParseSessionIDParam(c, "id")
	if id == uuid.Nil {
		return
	}

	var req services.SyncAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.sessionService.SyncAnswers(c.Request.Context(), id, &req); err != nil {
		handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Finalize submits the session with reason manual or timeout
// @Summary Finalize session
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body services.FinalizeRequest true "Finalize request"
// @Success 200 {object} services.SessionResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Timeout claimed before deadline"
// @Router /sessions/{id}/finalize [post]
func (h *SessionHandler) Finalize(c *gin.Context) {
	id := ParseSessionIDParam(c, "id")
	if id == uuid.Nil {
		return
	}

	var req services.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Finalizing session", "session_id", id, "reason", req.Reason)

	result, err := h.sessionService.Finalize(c.Request.Context(), id, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReportViolationRequest carries one client-detected violation.
type ReportViolationRequest struct {
	Kind string `json:"kind" validate:"required,violation_kind"`
}

// ReportViolation records a proctoring violation
// @Summary Report violation
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param violation body ReportViolationRequest true "Violation"
// @Success 200 {object} services.ViolationResult
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/violations [post]
func (h *SessionHandler) ReportViolation(c *gin.Context) {
	id := ParseSessionIDParam(c, "id")
	if id == uuid.Nil {
		return
	}

	var req ReportViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	result, err := h.violationService.RegisterViolation(c.Request.Context(), id, req.Kind)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if result.AutoSubmitted {
		h.LogWarn(c, "Session auto-submitted after violation threshold",
			"session_id", id, "count", result.ViolationCount)
	}
	c.JSON(http.StatusOK, result)
}
