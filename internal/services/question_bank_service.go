package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"

	"github.com/TechFest-2026/exam-session-service/internal/models"
	"github.com/TechFest-2026/exam-session-service/internal/questionsource"
	"github.com/TechFest-2026/exam-session-service/internal/repositories"
	"github.com/TechFest-2026/exam-session-service/internal/utils"
)

// QuestionBankService owns the question bank: authoring, import,
// generation, and the per-session sampling that feeds Start.
type QuestionBankService interface {
	// Sample draws up to desired active questions in randomized order,
	// stripped of answer keys. Fewer than desired active questions is not an
	// error; an empty bank is.
	Sample(ctx context.Context, desired int) ([]models.SnapshotQuestion, error)

	CreateQuestion(ctx context.Context, item models.RawQuestionItem, source models.QuestionSource) (*models.Question, error)
	ImportQuestions(ctx context.Context, items []models.RawQuestionItem, source models.QuestionSource) (*QuestionImportResult, error)
	GenerateQuestions(ctx context.Context, topic string, count int) (*QuestionImportResult, error)

	GetQuestion(ctx context.Context, id uint) (*models.Question, error)
	ListQuestions(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error)
	SetQuestionActive(ctx context.Context, id uint, active bool) error
	DeleteQuestion(ctx context.Context, id uint) error
}

// QuestionImportResult reports a batch import: bad items are skipped with a
// per-item error, good items are persisted.
type QuestionImportResult struct {
	Total        int      `json:"total"`
	SuccessCount int      `json:"success_count"`
	ErrorCount   int      `json:"error_count"`
	Errors       []string `json:"errors,omitempty"`

	Questions []*models.Question `json:"questions"`
}

type questionBankService struct {
	repo      repositories.Repository
	source    questionsource.Source
	logger    *slog.Logger
	validator *utils.Validator
}

func NewQuestionBankService(repo repositories.Repository, source questionsource.Source,
	logger *slog.Logger, validator *utils.Validator) QuestionBankService {
	return &questionBankService{
		repo:      repo,
		source:    source,
		logger:    logger,
		validator: validator,
	}
}

func (s *questionBankService) Sample(ctx context.Context, desired int) ([]models.SnapshotQuestion, error) {
	questions, err := s.repo.Question().GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoActiveQuestions
	}

	rand.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	if desired > 0 && desired < len(questions) {
		questions = questions[:desired]
	}

	snapshot := make([]models.SnapshotQuestion, 0, len(questions))
	for _, q := range questions {
		sq := models.SnapshotQuestion{
			QuestionID: q.ID,
			Prompt:     q.Prompt,
			Type:       q.Type,
		}
		if q.Type == models.QuestionChoice && len(q.Choices) > 0 {
			if err := json.Unmarshal(q.Choices, &sq.Choices); err != nil {
				return nil, fmt.Errorf("failed to decode choices for question %d: %w", q.ID, err)
			}
		}
		snapshot = append(snapshot, sq)
	}

	return snapshot, nil
}

func (s *questionBankService) CreateQuestion(ctx context.Context, item models.RawQuestionItem,
	source models.QuestionSource) (*models.Question, error) {
	question, err := s.normalize(item)
	if err != nil {
		return nil, err
	}
	question.Source = source

	if err := s.validator.Validate(question); err != nil {
		return nil, err
	}
	if err := s.repo.Question().Create(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.logger.Info("Question created",
		"question_id", question.ID,
		"type", question.Type,
		"source", question.Source)
	return question, nil
}

func (s *questionBankService) ImportQuestions(ctx context.Context, items []models.RawQuestionItem,
	source models.QuestionSource) (*QuestionImportResult, error) {
	result := &QuestionImportResult{Total: len(items)}

	accepted := make([]*models.Question, 0, len(items))
	for i, item := range items {
		question, err := s.normalize(item)
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: %v", i+1, err))
			continue
		}
		question.Source = source
		if err := s.validator.Validate(question); err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: %v", i+1, err))
			continue
		}
		accepted = append(accepted, question)
	}

	if len(accepted) > 0 {
		if err := s.repo.Question().CreateBatch(ctx, accepted); err != nil {
			return nil, fmt.Errorf("failed to import questions: %w", err)
		}
	}
	result.SuccessCount = len(accepted)
	result.Questions = accepted

	s.logger.Info("Question import finished",
		"total", result.Total,
		"imported", result.SuccessCount,
		"rejected", result.ErrorCount,
		"source", source)
	return result, nil
}

func (s *questionBankService) GenerateQuestions(ctx context.Context, topic string, count int) (*QuestionImportResult, error) {
	if s.source == nil {
		return nil, fmt.Errorf("%w: no question source configured", ErrGenerationFailed)
	}
	if count <= 0 {
		return nil, NewValidationError("count", "count must be positive", count)
	}

	items, err := s.source.GenerateQuestions(ctx, topic, count)
	if err != nil {
		s.logger.Error("Question generation failed", "topic", topic, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	return s.ImportQuestions(ctx, items, models.SourceGenerated)
}

func (s *questionBankService) GetQuestion(ctx context.Context, id uint) (*models.Question, error) {
	question, err := s.repo.Question().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return question, nil
}

func (s *questionBankService) ListQuestions(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	return s.repo.Question().List(ctx, filters)
}

func (s *questionBankService) SetQuestionActive(ctx context.Context, id uint, active bool) error {
	question, err := s.GetQuestion(ctx, id)
	if err != nil {
		return err
	}
	if question.Active == active {
		return nil
	}
	question.Active = active
	if err := s.repo.Question().Update(ctx, question); err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	return nil
}

func (s *questionBankService) DeleteQuestion(ctx context.Context, id uint) error {
	if _, err := s.GetQuestion(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Question().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	s.logger.Info("Question deleted", "question_id", id)
	return nil
}

// normalize turns a raw authored item into a persistable Question. Items
// with choices become choice questions whose answer key is resolved to a
// zero-based index; items without choices become free-text questions keyed
// on the literal answer.
func (s *questionBankService) normalize(item models.RawQuestionItem) (*models.Question, error) {
	prompt := strings.TrimSpace(item.Prompt)
	if prompt == "" {
		return nil, NewValidationError("prompt", "prompt is required", item.Prompt)
	}
	answer := strings.TrimSpace(item.Answer)
	if answer == "" {
		return nil, NewValidationError("answer", "answer is required", item.Answer)
	}

	if len(item.Choices) == 0 {
		return &models.Question{
			Prompt:    prompt,
			Type:      models.QuestionFreeText,
			AnswerKey: answer,
			Active:    true,
		}, nil
	}

	choices := make([]string, len(item.Choices))
	for i, c := range item.Choices {
		choices[i] = strings.TrimSpace(c)
		if choices[i] == "" {
			return nil, NewValidationError("choices", fmt.Sprintf("choice %d is empty", i+1), item.Choices)
		}
	}

	keyIndex, err := resolveAnswerIndex(choices, answer)
	if err != nil {
		return nil, err
	}

	choicesJSON, err := json.Marshal(choices)
	if err != nil {
		return nil, fmt.Errorf("failed to encode choices: %w", err)
	}

	return &models.Question{
		Prompt:    prompt,
		Type:      models.QuestionChoice,
		Choices:   choicesJSON,
		AnswerKey: strconv.Itoa(keyIndex),
		Active:    true,
	}, nil
}

// resolveAnswerIndex maps an authored answer key onto a choice index. Keys
// may be a zero-based index, a 1-based index, a letter, or the answer text
// itself. A zero-based reading wins when both index interpretations fit.
// Out-of-range indices and letters fall through to literal-text matching:
// "4" among choices ["3", "4"] names the answer text, not an index.
func resolveAnswerIndex(choices []string, answer string) (int, error) {
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 0 && n < len(choices) {
			return n, nil
		}
		if n >= 1 && n <= len(choices) {
			return n - 1, nil
		}
	} else if len(answer) == 1 {
		c := answer[0]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c >= 'A' && c <= 'Z' {
			if idx := int(c - 'A'); idx < len(choices) {
				return idx, nil
			}
		}
	}

	match := -1
	for i, choice := range choices {
		if strings.EqualFold(choice, answer) {
			if match >= 0 {
				return 0, fmt.Errorf("%w: %q", ErrAmbiguousAnswerKey, answer)
			}
			match = i
		}
	}
	if match >= 0 {
		return match, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAnswerKey, answer)
}
