package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TechFest-2026/exam-session-service/internal/cache"
	"github.com/TechFest-2026/exam-session-service/internal/events"
)

func TestReminderService_Sweep(t *testing.T) {
	ctx := context.Background()
	startsAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	cfg := ReminderConfig{
		ExamLabel: "techfest-final",
		StartsAt:  startsAt,
		Lead:      time.Hour,
	}

	newSvc := func() (ReminderService, *events.MockEventPublisher) {
		publisher := events.NewMockEventPublisher(newTestLogger())
		return NewReminderService(cache.NewMockCacheService(), publisher, newTestLogger(), cfg), publisher
	}

	t.Run("before the window does nothing", func(t *testing.T) {
		svc, publisher := newSvc()

		sent, err := svc.Sweep(ctx, startsAt.Add(-2*time.Hour))
		require.NoError(t, err)
		assert.False(t, sent)
		assert.Empty(t, publisher.GetPublishedEvents())
	})

	t.Run("after the start does nothing", func(t *testing.T) {
		svc, publisher := newSvc()

		sent, err := svc.Sweep(ctx, startsAt.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, sent)
		assert.Empty(t, publisher.GetPublishedEvents())
	})

	t.Run("inside the window emits exactly once", func(t *testing.T) {
		svc, publisher := newSvc()
		inWindow := startsAt.Add(-30 * time.Minute)

		sent, err := svc.Sweep(ctx, inWindow)
		require.NoError(t, err)
		assert.True(t, sent)

		// The latch holds across repeated sweeps.
		for i := 0; i < 3; i++ {
			sent, err = svc.Sweep(ctx, inWindow.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
			assert.False(t, sent)
		}

		published := publisher.GetPublishedEvents()
		require.Len(t, published, 1)
		assert.Equal(t, events.EventExamReminderDue, published[0].Type)

		data, ok := published[0].Data.(events.ExamReminderDueEvent)
		require.True(t, ok)
		assert.Equal(t, "techfest-final", data.ExamLabel)
		assert.True(t, data.StartsAt.Equal(startsAt))
	})

	t.Run("unscheduled exam never emits", func(t *testing.T) {
		publisher := events.NewMockEventPublisher(newTestLogger())
		svc := NewReminderService(cache.NewMockCacheService(), publisher, newTestLogger(), ReminderConfig{})

		sent, err := svc.Sweep(ctx, time.Now())
		require.NoError(t, err)
		assert.False(t, sent)
	})
}
