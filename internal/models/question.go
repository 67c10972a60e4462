package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionChoice   QuestionType = "choice"
	QuestionFreeText QuestionType = "free_text"
)

type QuestionSource string

const (
	SourceManual    QuestionSource = "manual"
	SourceGenerated QuestionSource = "generated"
)

// Question is a bank item. AnswerKey never leaves the server: the JSON tag
// keeps it out of every candidate-facing payload, and snapshots are built
// from SnapshotQuestion which has no key field at all.
type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	Prompt string       `json:"prompt" gorm:"type:text;not null" validate:"required,min=1,max=2000"`
	Type   QuestionType `json:"type" gorm:"not null;index" validate:"required,oneof=choice free_text"`

	// Choices is null for free-text questions.
	Choices datatypes.JSON `json:"choices,omitempty" gorm:"type:jsonb"`

	// AnswerKey holds the zero-based choice index (as a string) for choice
	// questions, or the expected text for free-text questions.
	AnswerKey string `json:"-" gorm:"not null;size:2000"`

	Active bool           `json:"active" gorm:"default:true;index"`
	Source QuestionSource `json:"source" gorm:"default:manual;size:20"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Question) TableName() string {
	return "questions"
}

// RawQuestionItem is an unvalidated question as received from an authoring
// form or an external generation service. The bank normalizes it before
// anything is persisted (see QuestionBankService.Normalize).
type RawQuestionItem struct {
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
	// Answer may arrive as a zero-based index, a 1-based index, a letter
	// ("A".."Z"), or the literal answer text. Free-text items carry the
	// expected answer verbatim.
	Answer string `json:"answer"`
}
