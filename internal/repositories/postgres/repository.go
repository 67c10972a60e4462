package postgres

import (
	"github.com/TechFest-2026/exam-session-service/internal/repositories"
	"gorm.io/gorm"
)

type postgresRepository struct {
	session  repositories.SessionRepository
	question repositories.QuestionRepository
}

// NewRepository builds the aggregate repository on a single gorm handle.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &postgresRepository{
		session:  NewSessionPostgreSQL(db),
		question: NewQuestionPostgreSQL(db),
	}
}

func (r *postgresRepository) Session() repositories.SessionRepository {
	return r.session
}

func (r *postgresRepository) Question() repositories.QuestionRepository {
	return r.question
}
