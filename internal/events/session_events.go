package events

import (
	"time"

	"github.com/TechFest-2026/exam-session-service/internal/models"
	"github.com/google/uuid"
)

// EventType represents different types of session lifecycle events
type EventType string

const (
	// Session events
	EventSessionStarted   EventType = "session.started"
	EventSessionFinalized EventType = "session.finalized"
	EventSessionViolation EventType = "session.violation"

	// Admin events
	EventExtensionGranted EventType = "session.extension_granted"
	EventAdminMessage     EventType = "session.admin_message"

	// Scheduling events (consumed by the external mail dispatcher)
	EventExamReminderDue EventType = "exam.reminder_due"
)

// SessionEvent is the base event structure published to the notification topic
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

const eventSource = "exam-session-service"
const eventVersion = "1.0"

func newSessionEvent(eventType EventType, data interface{}) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

// Event payloads

type SessionStartedEvent struct {
	SessionID     uuid.UUID `json:"session_id"`
	RollNo        string    `json:"roll_no"`
	CandidateName string    `json:"candidate_name"`
	Email         string    `json:"email"`
	StartedAt     time.Time `json:"started_at"`
	BudgetMinutes int       `json:"budget_minutes"`
	QuestionCount int       `json:"question_count"`
}

type SessionFinalizedEvent struct {
	SessionID   uuid.UUID            `json:"session_id"`
	RollNo      string               `json:"roll_no"`
	Status      models.SessionStatus `json:"status"`
	Reason      models.FinishReason  `json:"reason"`
	Score       int                  `json:"score"`
	Total       int                  `json:"total"`
	SubmittedAt time.Time            `json:"submitted_at"`
}

type SessionViolationEvent struct {
	SessionID      uuid.UUID `json:"session_id"`
	RollNo         string    `json:"roll_no"`
	Kind           string    `json:"kind"`
	ViolationCount int       `json:"violation_count"`
	AutoSubmitted  bool      `json:"auto_submitted"`
}

type ExtensionGrantedEvent struct {
	SessionID *uuid.UUID `json:"session_id,omitempty"` // nil for all-active grants
	Minutes   int        `json:"minutes"`
	Sessions  int        `json:"sessions"`
	GrantedBy string     `json:"granted_by"`
}

type AdminMessageEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	Message   string    `json:"message"`
	SentBy    string    `json:"sent_by"`
}

type ExamReminderDueEvent struct {
	ExamLabel string    `json:"exam_label"`
	StartsAt  time.Time `json:"starts_at"`
}

// Constructors

func NewSessionStartedEvent(session *models.ExamSession, questionCount int) *SessionEvent {
	return newSessionEvent(EventSessionStarted, SessionStartedEvent{
		SessionID:     session.ID,
		RollNo:        session.RollNo,
		CandidateName: session.Name,
		Email:         session.Email,
		StartedAt:     session.StartedAt,
		BudgetMinutes: session.BaseBudgetMinutes,
		QuestionCount: questionCount,
	})
}

func NewSessionFinalizedEvent(session *models.ExamSession) *SessionEvent {
	data := SessionFinalizedEvent{
		SessionID: session.ID,
		RollNo:    session.RollNo,
		Status:    session.Status,
		Total:     session.TotalQuestions,
	}
	if session.FinishReason != nil {
		data.Reason = *session.FinishReason
	}
	if session.Score != nil {
		data.Score = *session.Score
	}
	if session.SubmittedAt != nil {
		data.SubmittedAt = *session.SubmittedAt
	}
	return newSessionEvent(EventSessionFinalized, data)
}

func NewSessionViolationEvent(session *models.ExamSession, kind string, count int, autoSubmitted bool) *SessionEvent {
	return newSessionEvent(EventSessionViolation, SessionViolationEvent{
		SessionID:      session.ID,
		RollNo:         session.RollNo,
		Kind:           kind,
		ViolationCount: count,
		AutoSubmitted:  autoSubmitted,
	})
}

func NewExtensionGrantedEvent(sessionID *uuid.UUID, minutes, sessions int, grantedBy string) *SessionEvent {
	return newSessionEvent(EventExtensionGranted, ExtensionGrantedEvent{
		SessionID: sessionID,
		Minutes:   minutes,
		Sessions:  sessions,
		GrantedBy: grantedBy,
	})
}

func NewAdminMessageEvent(sessionID uuid.UUID, message, sentBy string) *SessionEvent {
	return newSessionEvent(EventAdminMessage, AdminMessageEvent{
		SessionID: sessionID,
		Message:   message,
		SentBy:    sentBy,
	})
}

func NewExamReminderDueEvent(examLabel string, startsAt time.Time) *SessionEvent {
	return newSessionEvent(EventExamReminderDue, ExamReminderDueEvent{
		ExamLabel: examLabel,
		StartsAt:  startsAt,
	})
}
