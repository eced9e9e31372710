package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// QuizStatus represents the lifecycle of a quiz.
type QuizStatus string

// Possible quiz statuses.
const (
	QuizStatusDraft     QuizStatus = "draft"
	QuizStatusPublished QuizStatus = "published"
	QuizStatusCompleted QuizStatus = "completed"
	QuizStatusArchived  QuizStatus = "archived"
)

// SchedulingMode describes how a quiz received its start time.
type SchedulingMode string

// Possible scheduling modes. Legacy quizzes carry a time fixed at creation
// and are immutable; deferred quizzes may be published before a time is
// chosen; scheduled quizzes got their time through the scheduling flow.
const (
	SchedulingModeLegacy    SchedulingMode = "legacy"
	SchedulingModeDeferred  SchedulingMode = "deferred"
	SchedulingModeScheduled SchedulingMode = "scheduled"
)

// TimeConfiguration records scheduling provenance for audit and for
// resolving legacy records that lack the direct start time column.
type TimeConfiguration struct {
	StartTime         *time.Time `json:"start_time,omitempty"`
	Timezone          string     `json:"timezone,omitempty"`
	DurationMinutes   int        `json:"duration_minutes,omitempty"`
	ConfiguredAt      *time.Time `json:"configured_at,omitempty"`
	ConfiguredBy      string     `json:"configured_by,omitempty"`
	IsLegacy          bool       `json:"is_legacy,omitempty"`
	PreviousStartTime *time.Time `json:"previous_start_time,omitempty"`
	PreviousTimezone  string     `json:"previous_timezone,omitempty"`
	RescheduledAt     *time.Time `json:"rescheduled_at,omitempty"`
}

// Value implements driver.Valuer so the struct persists as JSONB.
func (tc TimeConfiguration) Value() (driver.Value, error) {
	return json.Marshal(tc)
}

// Scan implements sql.Scanner.
func (tc *TimeConfiguration) Scan(src interface{}) error {
	if src == nil {
		*tc = TimeConfiguration{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, tc)
	case string:
		return json.Unmarshal([]byte(v), tc)
	default:
		return fmt.Errorf("unsupported time configuration type %T", src)
	}
}

// Quiz represents a persisted quiz row. StartTimeUTC is authoritative for
// comparisons; AuthoringTimezone exists only for display round-trips.
type Quiz struct {
	ID                string             `db:"id" json:"id"`
	EducatorID        string             `db:"educator_id" json:"educator_id"`
	Title             string             `db:"title" json:"title"`
	Status            QuizStatus         `db:"status" json:"status"`
	SchedulingMode    SchedulingMode     `db:"scheduling_mode" json:"scheduling_mode"`
	StartTimeUTC      *time.Time         `db:"start_time_utc" json:"start_time_utc,omitempty"`
	AuthoringTimezone string             `db:"authoring_timezone" json:"authoring_timezone"`
	DurationMinutes   int                `db:"duration_minutes" json:"duration_minutes"`
	TimeConfiguration *TimeConfiguration `db:"time_configuration" json:"time_configuration,omitempty"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at" json:"updated_at"`
}

// Duration returns the quiz window length.
func (q *Quiz) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}

// QuizFilter provides filters for listing quizzes.
type QuizFilter struct {
	EducatorID string
	Status     QuizStatus
	Page       int
	PageSize   int
}
