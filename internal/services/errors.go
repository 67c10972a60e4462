package services

import (
	"errors"
	"fmt"

	apperrors "github.com/TechFest-2026/exam-session-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")

	// Session lifecycle errors
	ErrSessionNotFound = errors.New("session not found")
	// ErrAlreadySubmitted is returned by Start when a terminal session
	// already exists for the roll number.
	ErrAlreadySubmitted = errors.New("exam already submitted for this roll number")
	// ErrSessionNotActive covers every mutating call that arrives after the
	// session reached a terminal state.
	ErrSessionNotActive = errors.New("session is not active")
	// ErrNotYetExpired rejects a timeout finalize that arrives before the
	// server-computed deadline.
	ErrNotYetExpired = errors.New("session time has not yet expired")

	// Timer errors
	ErrInvalidExtension = errors.New("extension minutes must be positive")

	// Question bank errors
	ErrQuestionNotFound   = errors.New("question not found")
	ErrNoActiveQuestions  = errors.New("no active questions in the bank")
	ErrAmbiguousAnswerKey = errors.New("answer key matches multiple choices")
	ErrInvalidAnswerKey   = errors.New("answer key does not match any choice")

	// Question source errors
	ErrGenerationFailed = errors.New("question generation failed")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type PermissionError struct {
	Actor    string `json:"actor"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Reason   string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s cannot %s %s - %s",
		pe.Actor, pe.Action, pe.Resource, pe.Reason)
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewPermissionError(actor, resource, action, reason string) *PermissionError {
	return &PermissionError{
		Actor:    actor,
		Resource: resource,
		Action:   action,
		Reason:   reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrQuestionNotFound)
}

// IsConflict checks if error represents a state conflict the caller can act on
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrSessionNotActive) ||
		errors.Is(err, ErrNotYetExpired)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrInvalidExtension) ||
		errors.Is(err, ErrAmbiguousAnswerKey) ||
		errors.Is(err, ErrInvalidAnswerKey) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var single *apperrors.ValidationError
	return errors.As(err, &single)
}
