package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"

	"github.com/TechFest-2026/exam-session-service/internal/models"
	"github.com/TechFest-2026/exam-session-service/internal/repositories"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.ExamSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ExamSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExamSession), args.Error(1)
}

func (m *MockSessionRepository) GetByRollNo(ctx context.Context, rollNo string) (*models.ExamSession, error) {
	args := m.Called(ctx, rollNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExamSession), args.Error(1)
}

func (m *MockSessionRepository) ListActive(ctx context.Context, filters repositories.SessionFilters) ([]*models.ExamSession, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.ExamSession), args.Get(1).(int64), args.Error(2)
}

func (m *MockSessionRepository) ListFinalizedRanked(ctx context.Context) ([]*models.ExamSession, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.ExamSession), args.Error(1)
}

func (m *MockSessionRepository) GetStats(ctx context.Context) (*repositories.SessionStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(*repositories.SessionStats), args.Error(1)
}

func (m *MockSessionRepository) UpsertAnswer(ctx context.Context, id uuid.UUID, questionID uint, value models.AnswerValue) (bool, error) {
	args := m.Called(ctx, id, questionID, value)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepository) MergeAnswers(ctx context.Context, id uuid.UUID, answers map[uint]models.AnswerValue) (bool, error) {
	args := m.Called(ctx, id, answers)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepository) AppendViolation(ctx context.Context, id uuid.UUID, event models.ViolationEvent) (int, bool, error) {
	args := m.Called(ctx, id, event)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *MockSessionRepository) AddExtension(ctx context.Context, id uuid.UUID, minutes int) (bool, error) {
	args := m.Called(ctx, id, minutes)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepository) AddExtensionAllActive(ctx context.Context, minutes int) (int64, error) {
	args := m.Called(ctx, minutes)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSessionRepository) AppendAdminMessage(ctx context.Context, id uuid.UUID, message models.AdminMessage) (bool, error) {
	args := m.Called(ctx, id, message)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepository) FinalizeCAS(ctx context.Context, id uuid.UUID, status models.SessionStatus, reason models.FinishReason,
	answers datatypes.JSON, submittedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, status, reason, answers, submittedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepository) SetFinalScore(ctx context.Context, id uuid.UUID, score int) error {
	args := m.Called(ctx, id, score)
	return args.Error(0)
}

// MockQuestionRepository is a mock implementation of QuestionRepository
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) Create(ctx context.Context, question *models.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

func (m *MockQuestionRepository) CreateBatch(ctx context.Context, questions []*models.Question) error {
	args := m.Called(ctx, questions)
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *MockQuestionRepository) GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]*models.Question), args.Error(1)
}

func (m *MockQuestionRepository) Update(ctx context.Context, question *models.Question) error {
	args := m.Called(ctx, question)
	return args.Error(0)
}

func (m *MockQuestionRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQuestionRepository) List(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.Question), args.Get(1).(int64), args.Error(2)
}

func (m *MockQuestionRepository) GetActive(ctx context.Context) ([]*models.Question, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.Question), args.Error(1)
}

func (m *MockQuestionRepository) CountActive(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// mockRepository bundles the entity mocks behind the aggregate interface.
type mockRepository struct {
	session  *MockSessionRepository
	question *MockQuestionRepository
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		session:  &MockSessionRepository{},
		question: &MockQuestionRepository{},
	}
}

func (r *mockRepository) Session() repositories.SessionRepository   { return r.session }
func (r *mockRepository) Question() repositories.QuestionRepository { return r.question }

// countingGrader records how many times grading ran and returns a fixed
// score.
type countingGrader struct {
	calls int
	score int
}

func (g *countingGrader) Grade(ctx context.Context, snapshot []models.SnapshotQuestion, answers map[uint]models.AnswerValue) (*GradingResult, error) {
	g.calls++
	return &GradingResult{Score: g.score, Total: len(snapshot)}, nil
}
