package repositories

import (
	"context"
	"time"

	"github.com/TechFest-2026/exam-session-service/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SessionRepository is the session store. Every mutating operation is a
// single conditional UPDATE guarded by status = active, so concurrent
// candidate and admin calls on the same session serialize through the
// database row with no read-then-write window.
type SessionRepository interface {
	Create(ctx context.Context, session *models.ExamSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ExamSession, error)
	GetByRollNo(ctx context.Context, rollNo string) (*models.ExamSession, error)

	ListActive(ctx context.Context, filters SessionFilters) ([]*models.ExamSession, int64, error)
	// ListFinalizedRanked orders terminal sessions by score desc, then
	// submittedAt asc (earlier submission wins the tie).
	ListFinalizedRanked(ctx context.Context) ([]*models.ExamSession, error)
	GetStats(ctx context.Context) (*SessionStats, error)

	// Answer mutation; fails with no effect when the session is not active.
	UpsertAnswer(ctx context.Context, id uuid.UUID, questionID uint, value models.AnswerValue) (bool, error)
	MergeAnswers(ctx context.Context, id uuid.UUID, answers map[uint]models.AnswerValue) (bool, error)

	// AppendViolation atomically increments the counter, appends the event
	// and returns the post-increment count. active == false means the
	// session was not in the active state and nothing was recorded.
	AppendViolation(ctx context.Context, id uuid.UUID, event models.ViolationEvent) (count int, active bool, err error)

	// AddExtension adds minutes to the granted extension. The value only
	// ever grows; concurrent grants both apply.
	AddExtension(ctx context.Context, id uuid.UUID, minutes int) (bool, error)
	AddExtensionAllActive(ctx context.Context, minutes int) (int64, error)

	AppendAdminMessage(ctx context.Context, id uuid.UUID, message models.AdminMessage) (bool, error)

	// FinalizeCAS performs the compare-and-set transition active -> terminal.
	// Exactly one caller observes won == true and owns the grading follow-up;
	// everyone else must read the already-persisted result.
	FinalizeCAS(ctx context.Context, id uuid.UUID, status models.SessionStatus, reason models.FinishReason,
		answers datatypes.JSON, submittedAt time.Time) (won bool, err error)

	// SetFinalScore records the grade computed by the finalize winner. The
	// session is already terminal, so no status guard applies.
	SetFinalScore(ctx context.Context, id uuid.UUID, score int) error
}
