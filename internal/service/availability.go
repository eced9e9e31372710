package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
)

// EffectiveStartTime resolves the authoritative UTC start of a quiz. It
// returns the direct column when present and falls back to the structured
// time configuration for legacy records that predate the column. Every
// component must resolve start times through this function; nothing else
// reads the raw fields for comparison logic.
func EffectiveStartTime(quiz *models.Quiz) *time.Time {
	if quiz == nil {
		return nil
	}
	if quiz.StartTimeUTC != nil {
		return quiz.StartTimeUTC
	}
	if tc := quiz.TimeConfiguration; tc != nil && tc.StartTime != nil {
		return tc.StartTime
	}
	return nil
}

// ComputeAvailability maps a quiz's effective window and the current instant
// to an availability verdict. The window is closed at the start and open at
// the end: now == start is active, now == end is ended.
//
// A reassignment that has not been attempted yet is available regardless of
// the window. This grace is deliberate policy so a student granted a fresh
// attempt can take it after the original window.
func ComputeAvailability(effectiveStart *time.Time, durationMinutes int, now time.Time, isReassignment, alreadyAttempted bool) models.Availability {
	if isReassignment && !alreadyAttempted {
		return models.Availability{
			Available: true,
			State:     models.AvailabilityReassigned,
			Message:   "This quiz was reassigned to you and is available now.",
		}
	}

	if effectiveStart == nil {
		return models.Availability{
			Available: false,
			State:     models.AvailabilityNotScheduled,
			Message:   "This quiz has not been scheduled yet.",
		}
	}

	start := *effectiveStart
	end := start.Add(time.Duration(durationMinutes) * time.Minute)

	if now.Before(start) {
		return models.Availability{
			Available: false,
			State:     models.AvailabilityUpcoming,
			Message:   fmt.Sprintf("Quiz starts in %s.", humanizeCountdown(start.Sub(now))),
		}
	}

	if !now.Before(end) {
		return models.Availability{
			Available: false,
			State:     models.AvailabilityEnded,
			Message:   "The quiz window has ended.",
		}
	}

	return models.Availability{
		Available: true,
		State:     models.AvailabilityActive,
		Message:   fmt.Sprintf("Quiz is active, %s remaining.", humanizeCountdown(end.Sub(now))),
	}
}

// humanizeCountdown renders a duration rounded to whole minutes: minutes
// when under an hour, hours plus minutes otherwise.
func humanizeCountdown(d time.Duration) string {
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	if minutes < 60 {
		return fmt.Sprintf("%d %s", minutes, plural("minute", minutes))
	}
	hours := minutes / 60
	rest := minutes % 60
	if rest == 0 {
		return fmt.Sprintf("%d %s", hours, plural("hour", hours))
	}
	return fmt.Sprintf("%d %s %d %s", hours, plural("hour", hours), rest, plural("minute", rest))
}

func plural(unit string, n int) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
