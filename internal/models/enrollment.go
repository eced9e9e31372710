package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusEnrolled   EnrollmentStatus = "enrolled"
	EnrollmentStatusInProgress EnrollmentStatus = "in_progress"
	EnrollmentStatusCompleted  EnrollmentStatus = "completed"
	EnrollmentStatusAbandoned  EnrollmentStatus = "abandoned"
)

// Enrollment grants a student access to a quiz. Records are never hard
// deleted; the lifecycle is driven by attempt transitions and the reaper.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	QuizID         string           `db:"quiz_id" json:"quiz_id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	IsReassignment bool             `db:"is_reassignment" json:"is_reassignment"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	QuizID    string
	StudentID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
