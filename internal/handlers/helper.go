package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/TechFest-2026/exam-session-service/internal/services"
)

// ParseSessionIDParam parses a session UUID from the route. The zero UUID
// signals a handled error.
func ParseSessionIDParam(c *gin.Context, param string) uuid.UUID {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "must be a valid UUID",
		})
		return uuid.Nil
	}
	return id
}

// ParseUintParam parses a numeric ID from the route. Zero signals a handled
// error.
func ParseUintParam(c *gin.Context, param string) uint {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "must be a positive integer",
		})
		return 0
	}
	return uint(id)
}

// handleServiceError maps service-layer errors onto HTTP responses. All
// handlers share one mapping so the error taxonomy stays consistent across
// endpoints.
func handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}
	var validationError *services.ValidationError
	if errors.As(err, &validationError) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationError,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Session not found",
			Code:    "SESSION_NOT_FOUND",
		})
	case errors.Is(err, services.ErrAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Exam already submitted for this roll number",
			Code:    "ALREADY_SUBMITTED",
		})
	case errors.Is(err, services.ErrSessionNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Session is no longer active",
			Code:    "SESSION_NOT_ACTIVE",
		})
	case errors.Is(err, services.ErrNotYetExpired):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Session time has not expired yet",
			Code:    "NOT_YET_EXPIRED",
		})
	case errors.Is(err, services.ErrInvalidExtension):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Extension minutes must be positive",
			Code:    "INVALID_EXTENSION",
		})
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question not found",
		})
	case errors.Is(err, services.ErrNoActiveQuestions):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "No active questions in the bank",
		})
	case errors.Is(err, services.ErrAmbiguousAnswerKey),
		errors.Is(err, services.ErrInvalidAnswerKey):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid answer key",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrGenerationFailed):
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Question generation failed",
		})
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "Unauthorized access",
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
