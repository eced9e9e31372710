package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
)

func TestEffectiveStartTime(t *testing.T) {
	direct := time.Date(2024, time.June, 14, 13, 0, 0, 0, time.UTC)
	nested := time.Date(2024, time.June, 15, 13, 0, 0, 0, time.UTC)

	assert.Nil(t, EffectiveStartTime(nil))
	assert.Nil(t, EffectiveStartTime(&models.Quiz{}))

	quiz := &models.Quiz{StartTimeUTC: &direct, TimeConfiguration: &models.TimeConfiguration{StartTime: &nested}}
	assert.Equal(t, &direct, EffectiveStartTime(quiz))

	legacy := &models.Quiz{TimeConfiguration: &models.TimeConfiguration{StartTime: &nested}}
	assert.Equal(t, &nested, EffectiveStartTime(legacy))
}

func TestComputeAvailabilityWindowBoundaries(t *testing.T) {
	start := time.Date(2024, time.June, 14, 13, 0, 0, 0, time.UTC)
	duration := 30

	tests := []struct {
		name      string
		now       time.Time
		available bool
		state     models.AvailabilityState
	}{
		{"before start", start.Add(-time.Second), false, models.AvailabilityUpcoming},
		{"exactly at start", start, true, models.AvailabilityActive},
		{"mid window", start.Add(15 * time.Minute), true, models.AvailabilityActive},
		{"last instant", start.Add(30*time.Minute - time.Second), true, models.AvailabilityActive},
		{"exactly at end", start.Add(30 * time.Minute), false, models.AvailabilityEnded},
		{"after end", start.Add(time.Hour), false, models.AvailabilityEnded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeAvailability(&start, duration, tc.now, false, false)
			assert.Equal(t, tc.available, got.Available)
			assert.Equal(t, tc.state, got.State)
		})
	}
}

func TestComputeAvailabilityNotScheduled(t *testing.T) {
	got := ComputeAvailability(nil, 30, time.Now(), false, false)
	assert.False(t, got.Available)
	assert.Equal(t, models.AvailabilityNotScheduled, got.State)
}

func TestComputeAvailabilityReassignmentGrace(t *testing.T) {
	start := time.Date(2024, time.June, 14, 13, 0, 0, 0, time.UTC)
	afterWindow := start.Add(2 * time.Hour)

	// Unattempted reassignment is available even after the window.
	got := ComputeAvailability(&start, 30, afterWindow, true, false)
	assert.True(t, got.Available)
	assert.Equal(t, models.AvailabilityReassigned, got.State)

	// Once attempted, the reassignment follows the window again.
	got = ComputeAvailability(&start, 30, afterWindow, true, true)
	assert.False(t, got.Available)
	assert.Equal(t, models.AvailabilityEnded, got.State)

	// Grace also applies when no start time is set yet.
	got = ComputeAvailability(nil, 30, afterWindow, true, false)
	assert.True(t, got.Available)
	assert.Equal(t, models.AvailabilityReassigned, got.State)
}

func TestComputeAvailabilityMessages(t *testing.T) {
	start := time.Date(2024, time.June, 14, 13, 0, 0, 0, time.UTC)

	upcoming := ComputeAvailability(&start, 30, start.Add(-45*time.Minute), false, false)
	assert.Equal(t, "Quiz starts in 45 minutes.", upcoming.Message)

	farOff := ComputeAvailability(&start, 30, start.Add(-90*time.Minute), false, false)
	assert.Equal(t, "Quiz starts in 1 hour 30 minutes.", farOff.Message)

	active := ComputeAvailability(&start, 30, start.Add(10*time.Minute), false, false)
	assert.Equal(t, "Quiz is active, 20 minutes remaining.", active.Message)
}
