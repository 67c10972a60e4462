package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TechFest-2026/exam-session-service/internal/cache"
	"github.com/TechFest-2026/exam-session-service/internal/events"
)

// ReminderService emits a single exam.reminder_due event shortly before the
// scheduled exam start. The mail dispatcher downstream consumes the event;
// this service only guarantees at-most-once emission across all replicas,
// using a Redis SETNX flag as the one-shot latch.
type ReminderService interface {
	// Sweep is called periodically; it reports whether this call emitted
	// the reminder.
	Sweep(ctx context.Context, now time.Time) (bool, error)
}

// ReminderConfig describes the scheduled exam the reminder announces.
type ReminderConfig struct {
	ExamLabel string
	StartsAt  time.Time
	Lead      time.Duration
}

type reminderService struct {
	cache     cache.CacheService
	publisher events.EventPublisher
	logger    *slog.Logger
	cfg       ReminderConfig
}

func NewReminderService(cacheService cache.CacheService, publisher events.EventPublisher,
	logger *slog.Logger, cfg ReminderConfig) ReminderService {
	return &reminderService{
		cache:     cacheService,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
	}
}

func (s *reminderService) Sweep(ctx context.Context, now time.Time) (bool, error) {
	if s.cfg.StartsAt.IsZero() {
		return false, nil
	}
	windowStart := s.cfg.StartsAt.Add(-s.cfg.Lead)
	if now.Before(windowStart) || !now.Before(s.cfg.StartsAt) {
		return false, nil
	}

	key := fmt.Sprintf("reminder:%s:%d", s.cfg.ExamLabel, s.cfg.StartsAt.Unix())
	ttl := s.cfg.StartsAt.Sub(now) + time.Hour
	won, err := s.cache.SetNX(ctx, key, "sent", ttl)
	if err != nil {
		return false, fmt.Errorf("failed to acquire reminder latch: %w", err)
	}
	if !won {
		return false, nil
	}

	event := events.NewExamReminderDueEvent(s.cfg.ExamLabel, s.cfg.StartsAt)
	if err := s.publisher.PublishSessionEvent(ctx, event); err != nil {
		// Release the latch so a later sweep can retry.
		if delErr := s.cache.Delete(ctx, key); delErr != nil {
			s.logger.Error("Failed to release reminder latch", "key", key, "error", delErr)
		}
		return false, fmt.Errorf("failed to publish reminder event: %w", err)
	}

	s.logger.Info("Exam reminder emitted",
		"exam", s.cfg.ExamLabel,
		"starts_at", s.cfg.StartsAt)
	return true, nil
}
