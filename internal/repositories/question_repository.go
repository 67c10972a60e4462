package repositories

import (
	"context"

	"github.com/TechFest-2026/exam-session-service/internal/models"
)

// QuestionRepository interface for question bank operations. The bank is
// read-mostly; sampling is a plain read with no locking.
type QuestionRepository interface {
	Create(ctx context.Context, question *models.Question) error
	CreateBatch(ctx context.Context, questions []*models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error)
	Update(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, id uint) error

	List(ctx context.Context, filters QuestionFilters) ([]*models.Question, int64, error)
	GetActive(ctx context.Context) ([]*models.Question, error)
	CountActive(ctx context.Context) (int64, error)
}
