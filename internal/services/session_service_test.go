package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/TechFest-2026/exam-session-service/internal/events"
	"github.com/TechFest-2026/exam-session-service/internal/models"
	"github.com/TechFest-2026/exam-session-service/internal/utils"
)

var testClock = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestSessionService(t *testing.T, repo *mockRepository, grader Grader) (*sessionService, *events.MockEventPublisher) {
	t.Helper()
	logger := newTestLogger()
	publisher := events.NewMockEventPublisher(logger)
	bank := NewQuestionBankService(repo, nil, logger, utils.NewValidator())
	svc := NewSessionService(repo, bank, grader, publisher, logger, utils.NewValidator(),
		SessionConfig{QuestionCount: 10, BudgetMinutes: 30}).(*sessionService)
	svc.now = func() time.Time { return testClock }
	return svc, publisher
}

func activeSession(t *testing.T) *models.ExamSession {
	t.Helper()
	snapshot, err := json.Marshal([]models.SnapshotQuestion{
		{QuestionID: 1, Prompt: "2+2?", Type: models.QuestionChoice, Choices: []string{"3", "4"}},
		{QuestionID: 2, Prompt: "Capital of France?", Type: models.QuestionFreeText},
	})
	require.NoError(t, err)
	answers, err := json.Marshal(map[uint]models.AnswerValue{
		1: {Type: models.QuestionChoice, Choice: intPtr(1)},
	})
	require.NoError(t, err)

	return &models.ExamSession{
		ID:                uuid.New(),
		Name:              "Ada Lovelace",
		Email:             "ada@example.com",
		RollNo:            "R-001",
		Snapshot:          snapshot,
		Answers:           answers,
		Status:            models.SessionActive,
		StartedAt:         testClock.Add(-10 * time.Minute),
		BaseBudgetMinutes: 30,
		TotalQuestions:    2,
	}
}

func finalizedSession(t *testing.T) *models.ExamSession {
	session := activeSession(t)
	session.Status = models.SessionSubmitted
	reason := models.FinishManual
	session.FinishReason = &reason
	session.Score = intPtr(1)
	submittedAt := testClock.Add(-5 * time.Minute)
	session.SubmittedAt = &submittedAt
	return session
}

func intPtr(n int) *int { return &n }

func TestSessionService_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a session for a new roll number", func(t *testing.T) {
		repo := newMockRepository()
		svc, publisher := newTestSessionService(t, repo, &countingGrader{})

		repo.session.On("GetByRollNo", ctx, "R-001").Return(nil, gorm.ErrRecordNotFound)
		repo.question.On("GetActive", ctx).Return([]*models.Question{
			{ID: 1, Prompt: "2+2?", Type: models.QuestionChoice, Choices: mustJSON(t, []string{"3", "4"}), AnswerKey: "1", Active: true},
			{ID: 2, Prompt: "Capital of France?", Type: models.QuestionFreeText, AnswerKey: "Paris", Active: true},
		}, nil)
		repo.session.On("Create", ctx, mock.AnythingOfType("*models.ExamSession")).Return(nil)

		resp, err := svc.Start(ctx, &StartSessionRequest{CandidateIdentity: models.CandidateIdentity{
			Name: "Ada Lovelace", Email: "ada@example.com", RollNo: "R-001",
		}})
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, resp.SessionID)
		assert.False(t, resp.Resumed)
		assert.Len(t, resp.Questions, 2)
		assert.Equal(t, 30*60, resp.RemainingSeconds)

		published := publisher.GetPublishedEvents()
		require.Len(t, published, 1)
		assert.Equal(t, events.EventSessionStarted, published[0].Type)
	})

	t.Run("resumes an existing active session", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestSessionService(t, repo, &countingGrader{})

		session := activeSession(t)
		repo.session.On("GetByRollNo", ctx, "R-001").Return(session, nil)

		resp, err := svc.Start(ctx, &StartSessionRequest{CandidateIdentity: models.CandidateIdentity{
			Name: "Ada Lovelace", Email: "ada@example.com", RollNo: "R-001",
		}})
		require.NoError(t, err)

		assert.True(t, resp.Resumed)
		assert.Equal(t, session.ID, resp.SessionID)
		assert.Len(t, resp.Questions, 2)
		assert.Contains(t, resp.Answers, uint(1))
		assert.Equal(t, 20*60, resp.RemainingSeconds)
	})

	t.Run("rejects a roll number that already finished", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestSessionService(t, repo, &countingGrader{})

		repo.session.On("GetByRollNo", ctx, "R-001").Return(finalizedSession(t), nil)

		_, err := svc.Start(ctx, &StartSessionRequest{CandidateIdentity: models.CandidateIdentity{
			Name: "Ada Lovelace", Email: "ada@example.com", RollNo: "R-001",
		}})
		assert.ErrorIs(t, err, ErrAlreadySubmitted)
	})

	t.Run("adopts the winning session when two first requests race", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestSessionService(t, repo, &countingGrader{})

		winner := activeSession(t)
		repo.session.On("GetByRollNo", ctx, "R-001").Return(nil, gorm.ErrRecordNotFound).Once()
		repo.question.On("GetActive", ctx).Return([]*models.Question{
			{ID: 1, Prompt: "2+2?", Type: models.QuestionChoice, Choices: mustJSON(t, []string{"3", "4"}), AnswerKey: "1", Active: true},
		}, nil)
		repo.session.On("Create", ctx, mock.AnythingOfType("*models.ExamSession")).Return(gorm.ErrDuplicatedKey)
		repo.session.On("GetByRollNo", ctx, "R-001").Return(winner, nil).Once()

		resp, err := svc.Start(ctx, &StartSessionRequest{CandidateIdentity: models.CandidateIdentity{
			Name: "Ada Lovelace", Email: "ada@example.com", RollNo: "R-001",
		}})
		require.NoError(t, err)
		assert.True(t, resp.Resumed)
		assert.Equal(t, winner.ID, resp.SessionID)
	})
}

func TestSessionService_Finalize(t *testing.T) {
	ctx := context.Background()

	t.Run("manual submit grades once and transitions to submitted", func(t *testing.T) {
		repo := newMockRepository()
		grader := &countingGrader{score: 2}
		svc, publisher := newTestSessionService(t, repo, grader)

		session := activeSession(t)
		repo.session.On("GetByID", ctx, session.ID).Return(session, nil)
		repo.session.On("FinalizeCAS", ctx, session.ID, models.SessionSubmitted, models.FinishManual,
			mock.Anything, testClock).Return(true, nil)
		repo.session.On("SetFinalScore", ctx, session.ID, 2).Return(nil)

		result, err := svc.Finalize(ctx, session.ID, &FinalizeRequest{Reason: models.FinishManual})
		require.NoError(t, err)

		assert.Equal(t, models.SessionSubmitted, result.Status)
		assert.Equal(t, models.FinishManual, result.Reason)
		assert.Equal(t, 2, result.Score)
		assert.Equal(t, 2, result.Total)
		assert.Equal(t, 1, grader.calls)

		published := publisher.GetPublishedEvents()
		require.Len(t, published, 1)
		assert.Equal(t, events.EventSessionFinalized, published[0].Type)
	})

	t.Run("repeated finalize returns the persisted result without regrading", func(t *testing.T) {
		repo := newMockRepository()
		grader := &countingGrader{score: 99}
		svc, publisher := newTestSessionService(t, repo, grader)

		session := finalizedSession(t)
		repo.session.On("GetByID", ctx, session.ID).Return(session, nil)

		result, err := svc.Finalize(ctx, session.ID, &FinalizeRequest{Reason: models.FinishManual})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Score)
		assert.Equal(t, models.FinishManual, result.Reason)
		assert.Equal(t, 0, grader.calls)
		assert.Empty(t, publisher.GetPublishedEvents())
		repo.session.AssertNotCalled(t, "FinalizeCAS", mock.Anything, mock.Anything, mock.Anything,
			mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("timeout before the deadline is rejected", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestSessionService(t, repo, &countingGrader{})

		session := activeSession(t) // 20 minutes remain
		repo.session.On("GetByID", ctx, session.ID).Return(session, nil)

		_, err := svc.Finalize(ctx, session.ID, &FinalizeRequest{Reason: models.FinishTimeout})
		assert.ErrorIs(t, err, ErrNotYetExpired)
	})

	t.Run("timeout after the deadline auto-submits", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestSessionService(t, repo, &countingGrader{score: 1})

		session := activeSession(t)
		session.StartedAt = testClock.Add(-31 * time.Minute)
		repo.session.On("GetByID", ctx, session.ID).Return(session, nil)
		repo.session.On("FinalizeCAS", ctx, session.ID, models.SessionAutoSubmitted, models.FinishTimeout,
			mock.Anything, testClock).Return(true, nil)
		repo.session.On("SetFinalScore", ctx, session.ID, 1).Return(nil)

		result, err := svc.Finalize(ctx, session.ID, &FinalizeRequest{Reason: models.FinishTimeout})
		require.NoError(t, err)
		assert.Equal(t, models.SessionAutoSubmitted, result.Status)
		assert.Equal(t, models.FinishTimeout, result.Reason)
	})

	t.Run("extension pushes the deadline so timeout stays rejected", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestSessionService(t, repo, &countingGrader{})

		session := activeSession(t)
		session.StartedAt = testClock.Add(-35 * time.Minute)
		session.ExtensionMinutes = 10 // deadline is now +45 minutes
		repo.session.On("GetByID", ctx, session.ID).Return(session, nil)

		_, err := svc.Finalize(ctx, session.ID, &FinalizeRequest{Reason: models.FinishTimeout})
		assert.ErrorIs(t, err, ErrNotYetExpired)
	})

	t.Run("losing the compare-and-set returns the winner's result without grading", func(t *testing.T) {
		repo := newMockRepository()
		grader := &countingGrader{score: 2}
		svc, _ := newTestSessionService(t, repo, grader)

		session := activeSession(t)
		winner := finalizedSession(t)
		winner.ID = session.ID
		reason := models.FinishViolationThreshold
		winner.FinishReason = &reason
		winner.Status = models.SessionAutoSubmitted

		repo.session.On("GetByID", ctx, session.ID).Return(session, nil).Once()
		repo.session.On("FinalizeCAS", ctx, session.ID, models.SessionSubmitted, models.FinishManual,
			mock.Anything, testClock).Return(false, nil)
		repo.session.On("GetByID", ctx, session.ID).Return(winner, nil).Once()

		result, err := svc.Finalize(ctx, session.ID, &FinalizeRequest{Reason: models.FinishManual})
		require.NoError(t, err)
		assert.Equal(t, models.SessionAutoSubmitted, result.Status)
		assert.Equal(t, models.FinishViolationThreshold, result.Reason)
		assert.Equal(t, 1, result.Score)

		// Grading belongs to the winner alone.
		assert.Equal(t, 0, grader.calls)
		repo.session.AssertNotCalled(t, "SetFinalScore", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown session", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestSessionService(t, repo, &countingGrader{})

		id := uuid.New()
		repo.session.On("GetByID", ctx, id).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.Finalize(ctx, id, &FinalizeRequest{Reason: models.FinishManual})
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("unsynced answers are merged before grading", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestSessionService(t, repo, &countingGrader{score: 2})

		session := activeSession(t)
		repo.session.On("GetByID", ctx, session.ID).Return(session, nil)

		var persisted map[uint]models.AnswerValue
		repo.session.On("FinalizeCAS", ctx, session.ID, models.SessionSubmitted, models.FinishManual,
			mock.Anything, testClock).
			Run(func(args mock.Arguments) {
				raw := args.Get(4).(datatypes.JSON)
				require.NoError(t, json.Unmarshal(raw, &persisted))
			}).
			Return(true, nil)
		repo.session.On("SetFinalScore", ctx, session.ID, 2).Return(nil)

		text := "Paris"
		_, err := svc.Finalize(ctx, session.ID, &FinalizeRequest{
			Reason: models.FinishManual,
			Answers: map[uint]models.AnswerValue{
				2: {Type: models.QuestionFreeText, Text: &text},
			},
		})
		require.NoError(t, err)
		assert.Len(t, persisted, 2)
		require.NotNil(t, persisted[2].Text)
		assert.Equal(t, "Paris", *persisted[2].Text)
	})
}

func TestSessionService_RecordAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("writes through on an active session", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestSessionService(t, repo, &countingGrader{})

		id := uuid.New()
		value := models.AnswerValue{Type: models.QuestionChoice, Choice: intPtr(1)}
		repo.session.On("UpsertAnswer", ctx, id, uint(1), value).Return(true, nil)

		err := svc.RecordAnswer(ctx, id, &RecordAnswerRequest{QuestionID: 1, Value: value})
		assert.NoError(t, err)
	})

	t.Run("terminal session yields not active", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestSessionService(t, repo, &countingGrader{})

		session := finalizedSession(t)
		value := models.AnswerValue{Type: models.QuestionChoice, Choice: intPtr(0)}
		repo.session.On("UpsertAnswer", ctx, session.ID, uint(1), value).Return(false, nil)
		repo.session.On("GetByID", ctx, session.ID).Return(session, nil)

		err := svc.RecordAnswer(ctx, session.ID, &RecordAnswerRequest{QuestionID: 1, Value: value})
		assert.ErrorIs(t, err, ErrSessionNotActive)
	})

	t.Run("rejects a value that sets both fields", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestSessionService(t, repo, &countingGrader{})

		text := "4"
		err := svc.RecordAnswer(ctx, uuid.New(), &RecordAnswerRequest{
			QuestionID: 1,
			Value:      models.AnswerValue{Type: models.QuestionChoice, Choice: intPtr(1), Text: &text},
		})
		assert.True(t, IsValidation(err))
	})
}

func TestSessionService_Extensions(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-positive minutes", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestSessionService(t, repo, &countingGrader{})

		assert.ErrorIs(t, svc.GrantExtension(ctx, uuid.New(), 0, "proctor"), ErrInvalidExtension)
		assert.ErrorIs(t, svc.GrantExtension(ctx, uuid.New(), -5, "proctor"), ErrInvalidExtension)
		_, err := svc.GrantExtensionAll(ctx, 0, "proctor")
		assert.ErrorIs(t, err, ErrInvalidExtension)
	})

	t.Run("grants to one active session and publishes", func(t *testing.T) {
		repo := newMockRepository()
		svc, publisher := newTestSessionService(t, repo, &countingGrader{})

		id := uuid.New()
		repo.session.On("AddExtension", ctx, id, 15).Return(true, nil)

		require.NoError(t, svc.GrantExtension(ctx, id, 15, "proctor"))

		published := publisher.GetPublishedEvents()
		require.Len(t, published, 1)
		assert.Equal(t, events.EventExtensionGranted, published[0].Type)
	})

	t.Run("grants to all active sessions", func(t *testing.T) {
		repo := newMockRepository()
		svc, _ := newTestSessionService(t, repo, &countingGrader{})

		repo.session.On("AddExtensionAllActive", ctx, 10).Return(int64(4), nil)

		count, err := svc.GrantExtensionAll(ctx, 10, "proctor")
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
	})
}

func TestSessionService_Ranking(t *testing.T) {
	ctx := context.Background()

	repo := newMockRepository()
	svc, _ := newTestSessionService(t, repo, &countingGrader{})

	first := finalizedSession(t)
	first.Score = intPtr(5)
	second := finalizedSession(t)
	second.Score = intPtr(3)
	repo.session.On("ListFinalizedRanked", ctx).Return([]*models.ExamSession{first, second}, nil)

	results, err := svc.ListFinalizedRanked(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 5, results[0].Score)
	assert.Equal(t, 2, results[1].Rank)
	assert.Equal(t, 3, results[1].Score)
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
