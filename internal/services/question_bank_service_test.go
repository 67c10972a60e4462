package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TechFest-2026/exam-session-service/internal/models"
	"github.com/TechFest-2026/exam-session-service/internal/utils"
)

func newTestBank(repo *mockRepository) QuestionBankService {
	return NewQuestionBankService(repo, nil, newTestLogger(), utils.NewValidator())
}

func TestResolveAnswerIndex(t *testing.T) {
	choices := []string{"Mercury", "Venus", "Earth", "Mars"}

	cases := []struct {
		name    string
		answer  string
		want    int
		wantErr error
	}{
		{name: "zero-based index", answer: "0", want: 0},
		{name: "zero-based wins when both readings fit", answer: "2", want: 2},
		{name: "one-based index beyond zero-based range", answer: "4", want: 3},
		{name: "uppercase letter", answer: "C", want: 2},
		{name: "lowercase letter", answer: "b", want: 1},
		{name: "literal answer text", answer: "Mars", want: 3},
		{name: "text match ignores case", answer: "earth", want: 2},
		{name: "index out of range with no matching text", answer: "9", wantErr: ErrInvalidAnswerKey},
		{name: "letter out of range with no matching text", answer: "Z", wantErr: ErrInvalidAnswerKey},
		{name: "unmatched text", answer: "Pluto", wantErr: ErrInvalidAnswerKey},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveAnswerIndex(choices, tc.answer)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("duplicate choice text is ambiguous", func(t *testing.T) {
		_, err := resolveAnswerIndex([]string{"yes", "no", "Yes"}, "yes")
		assert.ErrorIs(t, err, ErrAmbiguousAnswerKey)
	})

	t.Run("out-of-range index falls back to the answer text", func(t *testing.T) {
		got, err := resolveAnswerIndex([]string{"3", "4"}, "4")
		require.NoError(t, err)
		assert.Equal(t, 1, got)
	})

	t.Run("out-of-range letter falls back to the answer text", func(t *testing.T) {
		got, err := resolveAnswerIndex([]string{"K", "X"}, "x")
		require.NoError(t, err)
		assert.Equal(t, 1, got)
	})
}

func TestQuestionBankService_CreateQuestion(t *testing.T) {
	ctx := context.Background()

	t.Run("choice question stores a resolved index key", func(t *testing.T) {
		repo := newMockRepository()
		bank := newTestBank(repo)

		var created *models.Question
		repo.question.On("Create", ctx, mock.AnythingOfType("*models.Question")).
			Run(func(args mock.Arguments) { created = args.Get(1).(*models.Question) }).
			Return(nil)

		_, err := bank.CreateQuestion(ctx, models.RawQuestionItem{
			Prompt:  "Largest planet?",
			Choices: []string{"Mars", "Jupiter", "Venus"},
			Answer:  "Jupiter",
		}, models.SourceManual)
		require.NoError(t, err)

		assert.Equal(t, models.QuestionChoice, created.Type)
		assert.Equal(t, "1", created.AnswerKey)
		assert.True(t, created.Active)

		var choices []string
		require.NoError(t, json.Unmarshal(created.Choices, &choices))
		assert.Equal(t, []string{"Mars", "Jupiter", "Venus"}, choices)
	})

	t.Run("item without choices becomes free text", func(t *testing.T) {
		repo := newMockRepository()
		bank := newTestBank(repo)

		var created *models.Question
		repo.question.On("Create", ctx, mock.AnythingOfType("*models.Question")).
			Run(func(args mock.Arguments) { created = args.Get(1).(*models.Question) }).
			Return(nil)

		_, err := bank.CreateQuestion(ctx, models.RawQuestionItem{
			Prompt: "Capital of France?",
			Answer: "Paris",
		}, models.SourceGenerated)
		require.NoError(t, err)

		assert.Equal(t, models.QuestionFreeText, created.Type)
		assert.Equal(t, "Paris", created.AnswerKey)
		assert.Equal(t, models.SourceGenerated, created.Source)
	})

	t.Run("missing prompt or answer is rejected", func(t *testing.T) {
		repo := newMockRepository()
		bank := newTestBank(repo)

		_, err := bank.CreateQuestion(ctx, models.RawQuestionItem{Answer: "x"}, models.SourceManual)
		assert.True(t, IsValidation(err))

		_, err = bank.CreateQuestion(ctx, models.RawQuestionItem{Prompt: "y?"}, models.SourceManual)
		assert.True(t, IsValidation(err))
	})
}

func TestQuestionBankService_ImportQuestions(t *testing.T) {
	ctx := context.Background()

	repo := newMockRepository()
	bank := newTestBank(repo)

	repo.question.On("CreateBatch", ctx, mock.AnythingOfType("[]*models.Question")).Return(nil)

	result, err := bank.ImportQuestions(ctx, []models.RawQuestionItem{
		{Prompt: "2+2?", Choices: []string{"3", "4"}, Answer: "4"},
		{Prompt: "bad item", Choices: []string{"a", "b"}, Answer: "z"}, // unmatched key
		{Prompt: "Capital of France?", Answer: "Paris"},
	}, models.SourceManual)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "item 2")
}

func TestQuestionBankService_Sample(t *testing.T) {
	ctx := context.Background()

	activeQuestions := []*models.Question{
		{ID: 1, Prompt: "q1", Type: models.QuestionChoice, Choices: []byte(`["a","b"]`), AnswerKey: "0", Active: true},
		{ID: 2, Prompt: "q2", Type: models.QuestionFreeText, AnswerKey: "secret", Active: true},
		{ID: 3, Prompt: "q3", Type: models.QuestionChoice, Choices: []byte(`["c","d"]`), AnswerKey: "1", Active: true},
	}

	t.Run("caps at the desired count", func(t *testing.T) {
		repo := newMockRepository()
		repo.question.On("GetActive", ctx).Return(activeQuestions, nil)
		bank := newTestBank(repo)

		snapshot, err := bank.Sample(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, snapshot, 2)
	})

	t.Run("returns all when fewer than desired", func(t *testing.T) {
		repo := newMockRepository()
		repo.question.On("GetActive", ctx).Return(activeQuestions, nil)
		bank := newTestBank(repo)

		snapshot, err := bank.Sample(ctx, 50)
		require.NoError(t, err)
		assert.Len(t, snapshot, 3)
	})

	t.Run("snapshot carries no answer keys", func(t *testing.T) {
		repo := newMockRepository()
		repo.question.On("GetActive", ctx).Return(activeQuestions, nil)
		bank := newTestBank(repo)

		snapshot, err := bank.Sample(ctx, 0)
		require.NoError(t, err)

		raw, err := json.Marshal(snapshot)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "secret")
		assert.NotContains(t, string(raw), "answer")
	})

	t.Run("empty bank is an error", func(t *testing.T) {
		repo := newMockRepository()
		repo.question.On("GetActive", ctx).Return([]*models.Question{}, nil)
		bank := newTestBank(repo)

		_, err := bank.Sample(ctx, 10)
		assert.ErrorIs(t, err, ErrNoActiveQuestions)
	})
}

func TestQuestionBankService_GenerateQuestions(t *testing.T) {
	ctx := context.Background()

	t.Run("without a configured source", func(t *testing.T) {
		repo := newMockRepository()
		bank := newTestBank(repo)

		_, err := bank.GenerateQuestions(ctx, "go routines", 5)
		assert.ErrorIs(t, err, ErrGenerationFailed)
	})

	t.Run("source failure is wrapped", func(t *testing.T) {
		repo := newMockRepository()
		bank := NewQuestionBankService(repo, failingSource{}, newTestLogger(), utils.NewValidator())

		_, err := bank.GenerateQuestions(ctx, "go routines", 5)
		assert.ErrorIs(t, err, ErrGenerationFailed)
	})

	t.Run("generated items are normalized and persisted", func(t *testing.T) {
		repo := newMockRepository()
		bank := NewQuestionBankService(repo, staticSource{items: []models.RawQuestionItem{
			{Prompt: "2+2?", Choices: []string{"3", "4"}, Answer: "B"},
		}}, newTestLogger(), utils.NewValidator())

		repo.question.On("CreateBatch", ctx, mock.AnythingOfType("[]*models.Question")).Return(nil)

		result, err := bank.GenerateQuestions(ctx, "arithmetic", 1)
		require.NoError(t, err)
		require.Equal(t, 1, result.SuccessCount)
		assert.Equal(t, models.SourceGenerated, result.Questions[0].Source)
		assert.Equal(t, "1", result.Questions[0].AnswerKey)
	})
}

type failingSource struct{}

func (failingSource) GenerateQuestions(ctx context.Context, topic string, count int) ([]models.RawQuestionItem, error) {
	return nil, errors.New("quota exceeded")
}

func (failingSource) Close() error { return nil }

type staticSource struct {
	items []models.RawQuestionItem
}

func (s staticSource) GenerateQuestions(ctx context.Context, topic string, count int) ([]models.RawQuestionItem, error) {
	return s.items, nil
}

func (s staticSource) Close() error { return nil }
