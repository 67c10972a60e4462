package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/TechFest-2026/exam-session-service/internal/events"
	"github.com/TechFest-2026/exam-session-service/internal/models"
	"github.com/TechFest-2026/exam-session-service/internal/repositories"
	"github.com/TechFest-2026/exam-session-service/internal/utils"
)

// SessionService drives the exam session lifecycle: one attempt per roll
// number, from Start through answer capture to a single terminal transition.
type SessionService interface {
	Start(ctx context.Context, req *StartSessionRequest) (*StartSessionResponse, error)

	RecordAnswer(ctx context.Context, sessionID uuid.UUID, req *RecordAnswerRequest) error
	SyncAnswers(ctx context.Context, sessionID uuid.UUID, req *SyncAnswersRequest) error

	// Finalize is the candidate-facing transition: reason is manual or
	// timeout. Calling it on an already-terminal session returns the
	// persisted result unchanged.
	Finalize(ctx context.Context, sessionID uuid.UUID, req *FinalizeRequest) (*SessionResult, error)
	// AutoFinalize is the server-side transition used by the violation
	// monitor and admin force-submit. No deadline check applies.
	AutoFinalize(ctx context.Context, sessionID uuid.UUID, reason models.FinishReason) (*SessionResult, error)
	ForceFinalize(ctx context.Context, sessionID uuid.UUID, adminActor string) (*SessionResult, error)

	GetStatus(ctx context.Context, sessionID uuid.UUID) (*SessionStatusResponse, error)
	ListActiveSessions(ctx context.Context, filters repositories.SessionFilters) ([]*ActiveSessionSummary, int64, error)
	ListFinalizedRanked(ctx context.Context) ([]*RankedResult, error)
	GetStats(ctx context.Context) (*repositories.SessionStats, error)

	GrantExtension(ctx context.Context, sessionID uuid.UUID, minutes int, adminActor string) error
	GrantExtensionAll(ctx context.Context, minutes int, adminActor string) (int64, error)
	PostAdminMessage(ctx context.Context, sessionID uuid.UUID, message, adminActor string) error
}

// ===== REQUEST / RESPONSE TYPES =====

type StartSessionRequest struct {
	models.CandidateIdentity
}

type StartSessionResponse struct {
	SessionID        uuid.UUID                   `json:"session_id"`
	Questions        []models.SnapshotQuestion   `json:"questions"`
	Answers          map[uint]models.AnswerValue `json:"answers,omitempty"`
	StartedAt        time.Time                   `json:"started_at"`
	RemainingSeconds int                         `json:"remaining_seconds"`
	BudgetMinutes    int                         `json:"budget_minutes"`
	Resumed          bool                        `json:"resumed"`
	AdminMessages    []models.AdminMessage       `json:"admin_messages,omitempty"`
}

type RecordAnswerRequest struct {
	QuestionID uint               `json:"question_id" validate:"required"`
	Value      models.AnswerValue `json:"value" validate:"required"`
}

type SyncAnswersRequest struct {
	Answers map[uint]models.AnswerValue `json:"answers" validate:"required"`
}

type FinalizeRequest struct {
	Reason models.FinishReason `json:"reason" validate:"required,finish_reason"`
	// Answers optionally carries the client's latest unsynced answers; they
	// are merged over the stored set before grading.
	Answers map[uint]models.AnswerValue `json:"answers,omitempty"`
}

// SessionResult is the terminal outcome of a session. Repeated finalize
// calls for the same session all return the same result.
type SessionResult struct {
	SessionID   uuid.UUID            `json:"session_id"`
	RollNo      string               `json:"roll_no"`
	Status      models.SessionStatus `json:"status"`
	Reason      models.FinishReason  `json:"reason"`
	Score       int                  `json:"score"`
	Total       int                  `json:"total"`
	SubmittedAt time.Time            `json:"submitted_at"`
}

type SessionStatusResponse struct {
	SessionID        uuid.UUID             `json:"session_id"`
	Status           models.SessionStatus  `json:"status"`
	Reason           *models.FinishReason  `json:"reason,omitempty"`
	RemainingSeconds int                   `json:"remaining_seconds"`
	ViolationCount   int                   `json:"violation_count"`
	AdminMessages    []models.AdminMessage `json:"admin_messages,omitempty"`
	Score            *int                  `json:"score,omitempty"`
	Total            int                   `json:"total"`
}

type ActiveSessionSummary struct {
	SessionID        uuid.UUID `json:"session_id"`
	Name             string    `json:"name"`
	RollNo           string    `json:"roll_no"`
	StartedAt        time.Time `json:"started_at"`
	RemainingSeconds int       `json:"remaining_seconds"`
	ViolationCount   int       `json:"violation_count"`
	AnsweredCount    int       `json:"answered_count"`
}

type RankedResult struct {
	Rank        int                 `json:"rank"`
	Name        string              `json:"name"`
	RollNo      string              `json:"roll_no"`
	Email       string              `json:"email"`
	Score       int                 `json:"score"`
	Total       int                 `json:"total"`
	SubmittedAt time.Time           `json:"submitted_at"`
	Reason      models.FinishReason `json:"reason"`
}

// SessionConfig carries the tunable exam parameters.
type SessionConfig struct {
	QuestionCount int
	BudgetMinutes int
}

type sessionService struct {
	repo      repositories.Repository
	bank      QuestionBankService
	grader    Grader
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *utils.Validator
	cfg       SessionConfig

	now func() time.Time
}

func NewSessionService(repo repositories.Repository, bank QuestionBankService, grader Grader,
	publisher events.EventPublisher, logger *slog.Logger, validator *utils.Validator,
	cfg SessionConfig) SessionService {
	return &sessionService{
		repo:      repo,
		bank:      bank,
		grader:    grader,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ===== LIFECYCLE =====

// Start creates a session for a new roll number, resumes the existing active
// session for a returning one, and rejects roll numbers that already
// finished.
func (s *sessionService) Start(ctx context.Context, req *StartSessionRequest) (*StartSessionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	rollNo := strings.TrimSpace(req.RollNo)

	existing, err := s.repo.Session().GetByRollNo(ctx, rollNo)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if existing != nil {
		return s.resume(existing)
	}

	snapshot, err := s.bank.Sample(ctx, s.cfg.QuestionCount)
	if err != nil {
		return nil, err
	}
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	session := &models.ExamSession{
		ID:                uuid.New(),
		Name:              strings.TrimSpace(req.Name),
		Email:             strings.TrimSpace(req.Email),
		RollNo:            rollNo,
		Snapshot:          snapshotJSON,
		Answers:           datatypes.JSON([]byte("{}")),
		Status:            models.SessionActive,
		StartedAt:         s.now(),
		BaseBudgetMinutes: s.cfg.BudgetMinutes,
		TotalQuestions:    len(snapshot),
	}

	if err := s.repo.Session().Create(ctx, session); err != nil {
		// Two first requests for the same roll number can race on the unique
		// index; the loser adopts whatever the winner created.
		raced, lookupErr := s.repo.Session().GetByRollNo(ctx, rollNo)
		if lookupErr == nil && raced != nil {
			return s.resume(raced)
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("Session started",
		"session_id", session.ID,
		"roll_no", session.RollNo,
		"questions", session.TotalQuestions)
	s.publish(ctx, events.NewSessionStartedEvent(session, session.TotalQuestions))

	return &StartSessionResponse{
		SessionID:        session.ID,
		Questions:        snapshot,
		StartedAt:        session.StartedAt,
		RemainingSeconds: session.RemainingSeconds(s.now()),
		BudgetMinutes:    session.BaseBudgetMinutes,
	}, nil
}

func (s *sessionService) resume(session *models.ExamSession) (*StartSessionResponse, error) {
	if session.Status.IsTerminal() {
		return nil, ErrAlreadySubmitted
	}

	snapshot, err := decodeSnapshot(session.Snapshot)
	if err != nil {
		return nil, err
	}
	answers, err := decodeAnswers(session.Answers)
	if err != nil {
		return nil, err
	}
	messages, err := decodeAdminMessages(session.AdminMessages)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session resumed", "session_id", session.ID, "roll_no", session.RollNo)

	return &StartSessionResponse{
		SessionID:        session.ID,
		Questions:        snapshot,
		Answers:          answers,
		StartedAt:        session.StartedAt,
		RemainingSeconds: session.RemainingSeconds(s.now()),
		BudgetMinutes:    session.BaseBudgetMinutes + session.ExtensionMinutes,
		Resumed:          true,
		AdminMessages:    messages,
	}, nil
}

// ===== ANSWER CAPTURE =====

func (s *sessionService) RecordAnswer(ctx context.Context, sessionID uuid.UUID, req *RecordAnswerRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if err := validateAnswerValue(req.Value); err != nil {
		return err
	}

	active, err := s.repo.Session().UpsertAnswer(ctx, sessionID, req.QuestionID, req.Value)
	if err != nil {
		return fmt.Errorf("failed to record answer: %w", err)
	}
	if !active {
		return s.classifyInactive(ctx, sessionID)
	}
	return nil
}

func (s *sessionService) SyncAnswers(ctx context.Context, sessionID uuid.UUID, req *SyncAnswersRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	for _, value := range req.Answers {
		if err := validateAnswerValue(value); err != nil {
			return err
		}
	}
	if len(req.Answers) == 0 {
		return nil
	}

	active, err := s.repo.Session().MergeAnswers(ctx, sessionID, req.Answers)
	if err != nil {
		return fmt.Errorf("failed to sync answers: %w", err)
	}
	if !active {
		return s.classifyInactive(ctx, sessionID)
	}
	return nil
}

// classifyInactive turns a failed status-guarded update into the precise
// error: the session either does not exist or already reached a terminal
// state.
func (s *sessionService) classifyInactive(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to load session: %w", err)
	}
	return ErrSessionNotActive
}

func validateAnswerValue(value models.AnswerValue) error {
	switch value.Type {
	case models.QuestionChoice:
		if value.Choice == nil || value.Text != nil {
			return NewValidationError("value", "choice answers must set choice and only choice", value)
		}
		if *value.Choice < 0 {
			return NewValidationError("value", "choice index must not be negative", *value.Choice)
		}
	case models.QuestionFreeText:
		if value.Text == nil || value.Choice != nil {
			return NewValidationError("value", "free text answers must set text and only text", value)
		}
	default:
		return NewValidationError("value", "unknown answer type", value.Type)
	}
	return nil
}

// ===== FINALIZATION =====

func (s *sessionService) Finalize(ctx context.Context, sessionID uuid.UUID, req *FinalizeRequest) (*SessionResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	for _, value := range req.Answers {
		if err := validateAnswerValue(value); err != nil {
			return nil, err
		}
	}
	return s.finalize(ctx, sessionID, req.Reason, req.Answers)
}

func (s *sessionService) AutoFinalize(ctx context.Context, sessionID uuid.UUID, reason models.FinishReason) (*SessionResult, error) {
	return s.finalize(ctx, sessionID, reason, nil)
}

func (s *sessionService) ForceFinalize(ctx context.Context, sessionID uuid.UUID, adminActor string) (*SessionResult, error) {
	result, err := s.finalize(ctx, sessionID, models.FinishAdminForced, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Session force-submitted",
		"session_id", sessionID,
		"admin", adminActor,
		"score", result.Score)
	return result, nil
}

// finalize performs the single active -> terminal transition. The
// compare-and-set update decides the winner; losers return the persisted
// result so every caller observes the same outcome.
func (s *sessionService) finalize(ctx context.Context, sessionID uuid.UUID, reason models.FinishReason,
	extra map[uint]models.AnswerValue) (*SessionResult, error) {

	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.Status.IsTerminal() {
		return resultFromSession(session)
	}

	// Timeout is claimed by the client but validated by the server clock.
	if reason == models.FinishTimeout && session.RemainingSeconds(s.now()) > 0 {
		return nil, ErrNotYetExpired
	}

	answers, err := decodeAnswers(session.Answers)
	if err != nil {
		return nil, err
	}
	for questionID, value := range extra {
		answers[questionID] = value
	}
	answersJSON, err := encodeAnswers(answers)
	if err != nil {
		return nil, err
	}

	submittedAt := s.now()
	status := models.SessionSubmitted
	if reason != models.FinishManual {
		status = models.SessionAutoSubmitted
	}

	won, err := s.repo.Session().FinalizeCAS(ctx, sessionID, status, reason, answersJSON, submittedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize session: %w", err)
	}
	if !won {
		// Another finalize got there first; its result is the result.
		persisted, err := s.repo.Session().GetByID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload session: %w", err)
		}
		return resultFromSession(persisted)
	}

	// Winning the compare-and-set grants exclusive ownership of grading: the
	// session is already terminal, so no other caller can reach this point.
	snapshot, err := decodeSnapshot(session.Snapshot)
	if err != nil {
		return nil, err
	}
	grade, err := s.grader.Grade(ctx, snapshot, answers)
	if err != nil {
		return nil, fmt.Errorf("grading failed: %w", err)
	}
	if err := s.repo.Session().SetFinalScore(ctx, sessionID, grade.Score); err != nil {
		return nil, fmt.Errorf("failed to persist score: %w", err)
	}

	session.Status = status
	session.FinishReason = &reason
	session.Score = &grade.Score
	session.SubmittedAt = &submittedAt

	s.logger.Info("Session finalized",
		"session_id", sessionID,
		"roll_no", session.RollNo,
		"reason", reason,
		"score", grade.Score,
		"total", grade.Total)
	s.publish(ctx, events.NewSessionFinalizedEvent(session))

	return &SessionResult{
		SessionID:   sessionID,
		RollNo:      session.RollNo,
		Status:      status,
		Reason:      reason,
		Score:       grade.Score,
		Total:       grade.Total,
		SubmittedAt: submittedAt,
	}, nil
}

func resultFromSession(session *models.ExamSession) (*SessionResult, error) {
	if !session.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: session %s is still active after lost finalize", ErrInternalError, session.ID)
	}
	result := &SessionResult{
		SessionID: session.ID,
		RollNo:    session.RollNo,
		Status:    session.Status,
		Total:     session.TotalQuestions,
	}
	if session.FinishReason != nil {
		result.Reason = *session.FinishReason
	}
	if session.Score != nil {
		result.Score = *session.Score
	}
	if session.SubmittedAt != nil {
		result.SubmittedAt = *session.SubmittedAt
	}
	return result, nil
}

// ===== STATUS AND LISTINGS =====

func (s *sessionService) GetStatus(ctx context.Context, sessionID uuid.UUID) (*SessionStatusResponse, error) {
	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	messages, err := decodeAdminMessages(session.AdminMessages)
	if err != nil {
		return nil, err
	}

	resp := &SessionStatusResponse{
		SessionID:      session.ID,
		Status:         session.Status,
		Reason:         session.FinishReason,
		ViolationCount: session.ViolationCount,
		AdminMessages:  messages,
		Total:          session.TotalQuestions,
	}
	if session.Status.IsTerminal() {
		resp.Score = session.Score
	} else {
		resp.RemainingSeconds = session.RemainingSeconds(s.now())
	}
	return resp, nil
}

func (s *sessionService) ListActiveSessions(ctx context.Context, filters repositories.SessionFilters) ([]*ActiveSessionSummary, int64, error) {
	sessions, total, err := s.repo.Session().ListActive(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list active sessions: %w", err)
	}

	now := s.now()
	summaries := make([]*ActiveSessionSummary, 0, len(sessions))
	for _, session := range sessions {
		answers, err := decodeAnswers(session.Answers)
		if err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, &ActiveSessionSummary{
			SessionID:        session.ID,
			Name:             session.Name,
			RollNo:           session.RollNo,
			StartedAt:        session.StartedAt,
			RemainingSeconds: session.RemainingSeconds(now),
			ViolationCount:   session.ViolationCount,
			AnsweredCount:    len(answers),
		})
	}
	return summaries, total, nil
}

func (s *sessionService) ListFinalizedRanked(ctx context.Context) ([]*RankedResult, error) {
	sessions, err := s.repo.Session().ListFinalizedRanked(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list finalized sessions: %w", err)
	}

	results := make([]*RankedResult, 0, len(sessions))
	for i, session := range sessions {
		result := &RankedResult{
			Rank:   i + 1,
			Name:   session.Name,
			RollNo: session.RollNo,
			Email:  session.Email,
			Total:  session.TotalQuestions,
		}
		if session.Score != nil {
			result.Score = *session.Score
		}
		if session.SubmittedAt != nil {
			result.SubmittedAt = *session.SubmittedAt
		}
		if session.FinishReason != nil {
			result.Reason = *session.FinishReason
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *sessionService) GetStats(ctx context.Context) (*repositories.SessionStats, error) {
	return s.repo.Session().GetStats(ctx)
}

// ===== ADMIN CONTROLS =====

func (s *sessionService) GrantExtension(ctx context.Context, sessionID uuid.UUID, minutes int, adminActor string) error {
	if minutes <= 0 {
		return ErrInvalidExtension
	}

	active, err := s.repo.Session().AddExtension(ctx, sessionID, minutes)
	if err != nil {
		return fmt.Errorf("failed to grant extension: %w", err)
	}
	if !active {
		return s.classifyInactive(ctx, sessionID)
	}

	s.logger.Info("Extension granted",
		"session_id", sessionID,
		"minutes", minutes,
		"admin", adminActor)
	s.publish(ctx, events.NewExtensionGrantedEvent(&sessionID, minutes, 1, adminActor))
	return nil
}

func (s *sessionService) GrantExtensionAll(ctx context.Context, minutes int, adminActor string) (int64, error) {
	if minutes <= 0 {
		return 0, ErrInvalidExtension
	}

	count, err := s.repo.Session().AddExtensionAllActive(ctx, minutes)
	if err != nil {
		return 0, fmt.Errorf("failed to grant extension to active sessions: %w", err)
	}

	s.logger.Info("Extension granted to all active sessions",
		"minutes", minutes,
		"sessions", count,
		"admin", adminActor)
	s.publish(ctx, events.NewExtensionGrantedEvent(nil, minutes, int(count), adminActor))
	return count, nil
}

func (s *sessionService) PostAdminMessage(ctx context.Context, sessionID uuid.UUID, message, adminActor string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return NewValidationError("message", "message is required", message)
	}

	active, err := s.repo.Session().AppendAdminMessage(ctx, sessionID, models.AdminMessage{
		Message: message,
		At:      s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to post admin message: %w", err)
	}
	if !active {
		return s.classifyInactive(ctx, sessionID)
	}

	s.publish(ctx, events.NewAdminMessageEvent(sessionID, message, adminActor))
	return nil
}

// ===== HELPERS =====

// publish sends an event best-effort: delivery failures are logged, never
// surfaced to the caller.
func (s *sessionService) publish(ctx context.Context, event *events.SessionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSessionEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "event_type", event.Type, "error", err)
	}
}

func decodeSnapshot(raw datatypes.JSON) ([]models.SnapshotQuestion, error) {
	var snapshot []models.SnapshotQuestion
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}

func decodeAnswers(raw datatypes.JSON) (map[uint]models.AnswerValue, error) {
	answers := make(map[uint]models.AnswerValue)
	if len(raw) == 0 {
		return answers, nil
	}
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}
	return answers, nil
}

func encodeAnswers(answers map[uint]models.AnswerValue) (datatypes.JSON, error) {
	raw, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}
	return raw, nil
}

func decodeAdminMessages(raw datatypes.JSON) ([]models.AdminMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var messages []models.AdminMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode admin messages: %w", err)
	}
	return messages, nil
}
