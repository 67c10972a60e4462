package questionsource

import (
	"context"

	"github.com/TechFest-2026/exam-session-service/internal/models"
)

// Source produces raw question items for the bank to normalize. The bank
// never trusts a source: everything returned here still goes through
// normalization and validation before it is persisted.
type Source interface {
	GenerateQuestions(ctx context.Context, topic string, count int) ([]models.RawQuestionItem, error)
	Close() error
}
