package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TechFest-2026/exam-session-service/internal/events"
	"github.com/TechFest-2026/exam-session-service/internal/models"
	"github.com/TechFest-2026/exam-session-service/internal/repositories"
)

// ViolationService records client-reported integrity breaches and enforces
// the auto-submit threshold.
type ViolationService interface {
	// RegisterViolation appends the violation and, when the post-increment
	// count reaches the threshold, finalizes the session in the same call.
	RegisterViolation(ctx context.Context, sessionID uuid.UUID, kind string) (*ViolationResult, error)
}

// ViolationResult tells the client where it stands after a report.
type ViolationResult struct {
	ViolationCount int  `json:"violation_count"`
	Threshold      int  `json:"threshold"`
	AutoSubmitted  bool `json:"auto_submitted"`

	// Result is set when this report tripped the threshold.
	Result *SessionResult `json:"result,omitempty"`
}

type violationService struct {
	repo      repositories.Repository
	sessions  SessionService
	publisher events.EventPublisher
	logger    *slog.Logger
	threshold int

	now func() time.Time
}

func NewViolationService(repo repositories.Repository, sessions SessionService,
	publisher events.EventPublisher, logger *slog.Logger, threshold int) ViolationService {
	return &violationService{
		repo:      repo,
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
		threshold: threshold,
		now:       time.Now,
	}
}

func (s *violationService) RegisterViolation(ctx context.Context, sessionID uuid.UUID, kind string) (*ViolationResult, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return nil, NewValidationError("kind", "violation kind is required", kind)
	}

	count, active, err := s.repo.Session().AppendViolation(ctx, sessionID, models.ViolationEvent{
		Kind: kind,
		At:   s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record violation: %w", err)
	}
	if !active {
		return nil, s.classifyInactive(ctx, sessionID)
	}

	result := &ViolationResult{
		ViolationCount: count,
		Threshold:      s.threshold,
	}

	s.logger.Warn("Violation recorded",
		"session_id", sessionID,
		"kind", kind,
		"count", count,
		"threshold", s.threshold)

	// The atomic increment guarantees exactly one report observes the
	// threshold value, so only one caller reaches the finalize below for
	// that cause.
	if count >= s.threshold {
		finalized, err := s.sessions.AutoFinalize(ctx, sessionID, models.FinishViolationThreshold)
		if err != nil {
			return nil, fmt.Errorf("failed to auto-submit after violation threshold: %w", err)
		}
		result.AutoSubmitted = true
		result.Result = finalized
	}

	s.publishViolation(ctx, sessionID, kind, count, result.AutoSubmitted)
	return result, nil
}

func (s *violationService) classifyInactive(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to load session: %w", err)
	}
	return ErrSessionNotActive
}

func (s *violationService) publishViolation(ctx context.Context, sessionID uuid.UUID, kind string, count int, autoSubmitted bool) {
	if s.publisher == nil {
		return
	}
	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		s.logger.Error("Failed to load session for violation event", "session_id", sessionID, "error", err)
		return
	}
	event := events.NewSessionViolationEvent(session, kind, count, autoSubmitted)
	if err := s.publisher.PublishSessionEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish violation event", "session_id", sessionID, "error", err)
	}
}
