package models

import (
	"strings"
	"time"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive              EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted           EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled           EnrollmentStatus = "CANCELLED"
	EnrollmentStatusTerminatedViolation EnrollmentStatus = "TERMINATED_VIOLATION"
)

// ParseEnrollmentStatus normalises raw input, accepting ENROLLED and DROPPED
// as aliases of ACTIVE and CANCELLED.
func ParseEnrollmentStatus(raw string) (EnrollmentStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ACTIVE", "ENROLLED":
		return EnrollmentStatusActive, true
	case "COMPLETED":
		return EnrollmentStatusCompleted, true
	case "CANCELLED", "DROPPED":
		return EnrollmentStatusCancelled, true
	case "TERMINATED_VIOLATION":
		return EnrollmentStatusTerminatedViolation, true
	}
	return "", false
}

// Terminal reports whether the status closes the enrollment.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusCompleted || s == EnrollmentStatusCancelled || s == EnrollmentStatusTerminatedViolation
}

// Enrollment captures a student's registration to one batch of a course.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	CourseID       string           `db:"course_id" json:"course_id"`
	BatchNumber    int              `db:"batch_number" json:"batch_number"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	EnrollmentDate time.Time        `db:"enrollment_date" json:"enrollment_date"`
	EndDate        *time.Time       `db:"end_date" json:"end_date,omitempty"`
	Progress       int              `db:"progress" json:"progress"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseTitle string `db:"course_title" json:"course_title"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
