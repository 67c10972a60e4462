package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/TechFest-2026/exam-session-service/internal/models"
	"github.com/TechFest-2026/exam-session-service/internal/repositories"
)

// GradingResult is the outcome of scoring one finalized answer set.
type GradingResult struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

// Grader scores a session's answer set against its frozen question snapshot.
// It runs exactly once per session, inside the winning Finalize call; the
// result is persisted and never recomputed on read.
type Grader interface {
	Grade(ctx context.Context, snapshot []models.SnapshotQuestion, answers map[uint]models.AnswerValue) (*GradingResult, error)
}

type gradingService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewGradingService(repo repositories.Repository, logger *slog.Logger) Grader {
	return &gradingService{
		repo:   repo,
		logger: logger,
	}
}

// Grade compares each snapshot question's stored answer key with the
// candidate's answer: exact index equality for choice questions,
// case-insensitive trimmed equality for free text. Unanswered questions
// score zero; total is always the snapshot length.
func (s *gradingService) Grade(ctx context.Context, snapshot []models.SnapshotQuestion, answers map[uint]models.AnswerValue) (*GradingResult, error) {
	result := &GradingResult{Total: len(snapshot)}
	if len(snapshot) == 0 {
		return result, nil
	}

	ids := make([]uint, 0, len(snapshot))
	for _, q := range snapshot {
		ids = append(ids, q.QuestionID)
	}

	questions, err := s.repo.Question().GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load answer keys: %w", err)
	}

	keys := make(map[uint]string, len(questions))
	for _, q := range questions {
		keys[q.ID] = q.AnswerKey
	}

	for _, q := range snapshot {
		answer, answered := answers[q.QuestionID]
		if !answered {
			continue
		}
		key, hasKey := keys[q.QuestionID]
		if !hasKey {
			// Question deleted from the bank after the snapshot was frozen;
			// the candidate cannot earn the point.
			s.logger.Warn("Snapshot question missing from bank during grading",
				"question_id", q.QuestionID)
			continue
		}
		if answerMatchesKey(q.Type, answer, key) {
			result.Score++
		}
	}

	return result, nil
}

func answerMatchesKey(questionType models.QuestionType, answer models.AnswerValue, key string) bool {
	switch questionType {
	case models.QuestionChoice:
		if answer.Choice == nil {
			return false
		}
		keyIndex, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return false
		}
		return *answer.Choice == keyIndex
	case models.QuestionFreeText:
		if answer.Text == nil {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(*answer.Text), strings.TrimSpace(key))
	}
	return false
}
