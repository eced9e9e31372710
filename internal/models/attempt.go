package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AttemptStatus represents the lifecycle of a quiz attempt.
type AttemptStatus string

// Possible attempt statuses.
const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusCompleted  AttemptStatus = "completed"
	AttemptStatusAbandoned  AttemptStatus = "abandoned"
)

// AttemptAnswer is one recorded answer within an attempt.
type AttemptAnswer struct {
	QuestionID string `json:"question_id"`
	Selected   string `json:"selected"`
	Correct    bool   `json:"correct"`
}

// AnswerList persists the ordered answers as JSONB.
type AnswerList []AttemptAnswer

// Value implements driver.Valuer.
func (a AnswerList) Value() (driver.Value, error) {
	if a == nil {
		return json.Marshal([]AttemptAnswer{})
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *AnswerList) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported answer list type %T", src)
	}
}

// QuizAttempt is a student's pass over a quiz. At most one attempt per
// (student, quiz) may be in_progress; the storage layer backs this with a
// partial unique index and the validator resumes on conflict.
type QuizAttempt struct {
	ID           string        `db:"id" json:"id"`
	QuizID       string        `db:"quiz_id" json:"quiz_id"`
	StudentID    string        `db:"student_id" json:"student_id"`
	EnrollmentID string        `db:"enrollment_id" json:"enrollment_id"`
	Status       AttemptStatus `db:"status" json:"status"`
	StartTimeUTC time.Time     `db:"start_time_utc" json:"start_time_utc"`
	EndTimeUTC   *time.Time    `db:"end_time_utc" json:"end_time_utc,omitempty"`
	Answers      AnswerList    `db:"answers" json:"answers"`
	Score        *float64      `db:"score" json:"score,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}
