package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionActive        SessionStatus = "active"
	SessionSubmitted     SessionStatus = "submitted"
	SessionAutoSubmitted SessionStatus = "auto_submitted"
)

// IsTerminal reports whether the status is one a session can never leave.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionSubmitted || s == SessionAutoSubmitted
}

// FinishReason records why a session left the active state.
type FinishReason string

const (
	FinishManual             FinishReason = "manual"
	FinishTimeout            FinishReason = "timeout"
	FinishViolationThreshold FinishReason = "violation_threshold"
	FinishAdminForced        FinishReason = "admin_forced"
)

// ExamSession is one candidate's single attempt at the exam, from Start to a
// terminal state. It is the only shared mutable record in the engine: every
// mutation goes through a single conditional UPDATE guarded by status.
type ExamSession struct {
	ID uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`

	// Candidate identity. RollNo is the natural key: at most one session per
	// roll number may ever exist.
	Name   string `json:"name" gorm:"not null;size:100"`
	Email  string `json:"email" gorm:"not null;size:255"`
	RollNo string `json:"roll_no" gorm:"uniqueIndex;not null;size:50"`

	// Snapshot is the frozen, ordered question set handed out at Start.
	// Answer keys are never stored here; they live in the questions table.
	Snapshot datatypes.JSON `json:"snapshot" gorm:"type:jsonb;not null"`

	// Answers maps question ID -> AnswerValue. Mutable iff Status is active.
	Answers datatypes.JSON `json:"answers" gorm:"type:jsonb;default:'{}'"`

	Status       SessionStatus `json:"status" gorm:"default:active;index"`
	FinishReason *FinishReason `json:"finish_reason,omitempty" gorm:"size:30"`

	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`

	// Time budget. The effective deadline is always recomputed as
	// StartedAt + BaseBudgetMinutes + ExtensionMinutes, never cached.
	BaseBudgetMinutes int `json:"base_budget_minutes" gorm:"not null"`
	ExtensionMinutes  int `json:"extension_minutes" gorm:"default:0"`

	// Integrity tracking. ViolationCount only ever increases.
	ViolationCount int            `json:"violation_count" gorm:"default:0"`
	ViolationLog   datatypes.JSON `json:"violation_log" gorm:"type:jsonb;default:'[]'"`

	// One-way notices from the proctor, surfaced on status polls.
	AdminMessages datatypes.JSON `json:"admin_messages" gorm:"type:jsonb;default:'[]'"`

	// Computed exactly once, by the winning Finalize.
	Score          *int `json:"score,omitempty"`
	TotalQuestions int  `json:"total_questions" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ExamSession) TableName() string {
	return "exam_sessions"
}

// Deadline returns the effective deadline for the session.
func (s *ExamSession) Deadline() time.Time {
	return s.StartedAt.Add(time.Duration(s.BaseBudgetMinutes+s.ExtensionMinutes) * time.Minute)
}

// RemainingSeconds returns the wall-clock seconds left at the given instant,
// clamped to zero.
func (s *ExamSession) RemainingSeconds(now time.Time) int {
	remaining := s.Deadline().Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining.Seconds())
}

// CandidateIdentity is the tuple a candidate presents at Start.
type CandidateIdentity struct {
	Name   string `json:"name" validate:"required,min=1,max=100"`
	Email  string `json:"email" validate:"required,email"`
	RollNo string `json:"roll_no" validate:"required,min=1,max=50"`
}

// SnapshotQuestion is one entry of the frozen question set shipped to the
// candidate. It deliberately has no answer key field.
type SnapshotQuestion struct {
	QuestionID uint         `json:"question_id"`
	Prompt     string       `json:"prompt"`
	Type       QuestionType `json:"type"`
	Choices    []string     `json:"choices,omitempty"`
}

// AnswerValue is a tagged union keyed off the question's declared type:
// exactly one of Choice or Text is set.
type AnswerValue struct {
	Type   QuestionType `json:"type"`
	Choice *int         `json:"choice,omitempty"`
	Text   *string      `json:"text,omitempty"`
}

// ViolationEvent is one recorded integrity breach. Kind is an open string so
// new client-side detections need no schema change.
type ViolationEvent struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
}

const (
	ViolationTabSwitch      = "tab_switch"
	ViolationFullscreenExit = "fullscreen_exit"
	ViolationCopyPaste      = "copy_paste"
)

// AdminMessage is a one-way proctor notice shown in the candidate UI.
type AdminMessage struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
