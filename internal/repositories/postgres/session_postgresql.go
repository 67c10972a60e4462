package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/TechFest-2026/exam-session-service/internal/models"
	"github.com/TechFest-2026/exam-session-service/internal/repositories"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, session *models.ExamSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, id uuid.UUID) (*models.ExamSession, error) {
	var session models.ExamSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetByRollNo(ctx context.Context, rollNo string) (*models.ExamSession, error) {
	var session models.ExamSession
	if err := s.db.WithContext(ctx).First(&session, "roll_no = ?", rollNo).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) ListActive(ctx context.Context, filters repositories.SessionFilters) ([]*models.ExamSession, int64, error) {
	var sessions []*models.ExamSession
	var total int64

	query := s.db.WithContext(ctx).Model(&models.ExamSession{}).Where("status = ?", models.SessionActive)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applySessionPagination(query, filters)
	if err := query.Order("started_at ASC").Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func (s *SessionPostgreSQL) ListFinalizedRanked(ctx context.Context) ([]*models.ExamSession, error) {
	var sessions []*models.ExamSession
	err := s.db.WithContext(ctx).
		Where("status <> ?", models.SessionActive).
		Order("score DESC, submitted_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *SessionPostgreSQL) GetStats(ctx context.Context) (*repositories.SessionStats, error) {
	stats := &repositories.SessionStats{}

	row := s.db.WithContext(ctx).Model(&models.ExamSession{}).
		Select(`COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status <> 'active'),
			COALESCE(AVG(score) FILTER (WHERE status <> 'active'), 0)`).
		Row()
	if err := row.Scan(&stats.TotalSessions, &stats.ActiveSessions, &stats.FinalizedSessions, &stats.AverageScore); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *SessionPostgreSQL) UpsertAnswer(ctx context.Context, id uuid.UUID, questionID uint, value models.AnswerValue) (bool, error) {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("marshal answer value: %w", err)
	}

	result := s.db.WithContext(ctx).Model(&models.ExamSession{}).
		Where("id = ? AND status = ?", id, models.SessionActive).
		Update("answers", gorm.Expr(
			`jsonb_set(COALESCE(answers, '{}'::jsonb), ARRAY[?::text], ?::jsonb, true)`,
			strconv.FormatUint(uint64(questionID), 10), string(valueJSON)))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *SessionPostgreSQL) MergeAnswers(ctx context.Context, id uuid.UUID, answers map[uint]models.AnswerValue) (bool, error) {
	if len(answers) == 0 {
		return s.isActive(ctx, id)
	}

	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}

	result := s.db.WithContext(ctx).Model(&models.ExamSession{}).
		Where("id = ? AND status = ?", id, models.SessionActive).
		Update("answers", gorm.Expr(`COALESCE(answers, '{}'::jsonb) || ?::jsonb`, string(answersJSON)))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AppendViolation is a single read-modify-write statement: two concurrent
// violations can never both observe the same pre-increment count.
func (s *SessionPostgreSQL) AppendViolation(ctx context.Context, id uuid.UUID, event models.ViolationEvent) (int, bool, error) {
	eventJSON, err := json.Marshal([]models.ViolationEvent{event})
	if err != nil {
		return 0, false, fmt.Errorf("marshal violation event: %w", err)
	}

	var count int
	result := s.db.WithContext(ctx).Raw(
		`UPDATE exam_sessions
		 SET violation_count = violation_count + 1,
		     violation_log = COALESCE(violation_log, '[]'::jsonb) || ?::jsonb,
		     updated_at = NOW()
		 WHERE id = ? AND status = ?
		 RETURNING violation_count`,
		string(eventJSON), id, models.SessionActive).Scan(&count)
	if result.Error != nil {
		return 0, false, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}
	return count, true, nil
}

func (s *SessionPostgreSQL) AddExtension(ctx context.Context, id uuid.UUID, minutes int) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.ExamSession{}).
		Where("id = ? AND status = ?", id, models.SessionActive).
		Update("extension_minutes", gorm.Expr("extension_minutes + ?", minutes))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *SessionPostgreSQL) AddExtensionAllActive(ctx context.Context, minutes int) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.ExamSession{}).
		Where("status = ?", models.SessionActive).
		Update("extension_minutes", gorm.Expr("extension_minutes + ?", minutes))
	return result.RowsAffected, result.Error
}

func (s *SessionPostgreSQL) AppendAdminMessage(ctx context.Context, id uuid.UUID, message models.AdminMessage) (bool, error) {
	messageJSON, err := json.Marshal([]models.AdminMessage{message})
	if err != nil {
		return false, fmt.Errorf("marshal admin message: %w", err)
	}

	result := s.db.WithContext(ctx).Model(&models.ExamSession{}).
		Where("id = ? AND status = ?", id, models.SessionActive).
		Update("admin_messages", gorm.Expr(`COALESCE(admin_messages, '[]'::jsonb) || ?::jsonb`, string(messageJSON)))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *SessionPostgreSQL) FinalizeCAS(ctx context.Context, id uuid.UUID, status models.SessionStatus, reason models.FinishReason,
	answers datatypes.JSON, submittedAt time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.ExamSession{}).
		Where("id = ? AND status = ?", id, models.SessionActive).
		Updates(map[string]interface{}{
			"status":        status,
			"finish_reason": reason,
			"answers":       answers,
			"submitted_at":  submittedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *SessionPostgreSQL) SetFinalScore(ctx context.Context, id uuid.UUID, score int) error {
	return s.db.WithContext(ctx).Model(&models.ExamSession{}).
		Where("id = ?", id).
		Update("score", score).Error
}

func (s *SessionPostgreSQL) isActive(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ExamSession{}).
		Where("id = ? AND status = ?", id, models.SessionActive).
		Count(&count).Error
	return count == 1, err
}

func applySessionPagination(query *gorm.DB, filters repositories.SessionFilters) *gorm.DB {
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}
