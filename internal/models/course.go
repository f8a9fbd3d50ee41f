package models

import (
	"strings"
	"time"
)

// CourseStatus represents whether a course is open for enrollment.
type CourseStatus string

// Possible course statuses.
const (
	CourseStatusActive   CourseStatus = "ACTIVE"
	CourseStatusInactive CourseStatus = "INACTIVE"
	CourseStatusUpcoming CourseStatus = "UPCOMING"
)

// ParseCourseStatus normalises raw input into a known CourseStatus.
func ParseCourseStatus(raw string) (CourseStatus, bool) {
	switch s := CourseStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case CourseStatusActive, CourseStatusInactive, CourseStatusUpcoming:
		return s, true
	}
	return "", false
}

// CourseBatch is the numbered cohort currently offered for a course.
type CourseBatch struct {
	Number    int        `db:"number" json:"batch_number"`
	Capacity  int        `db:"capacity" json:"capacity"`
	Active    bool       `db:"active" json:"active"`
	StartDate *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate   *time.Time `db:"end_date" json:"end_date,omitempty"`
}

// Course represents a training course offered by the academy.
type Course struct {
	ID           string       `db:"id" json:"id"`
	Title        string       `db:"title" json:"title"`
	Slug         string       `db:"slug" json:"slug"`
	Status       CourseStatus `db:"status" json:"status"`
	CurrentBatch CourseBatch  `db:"batch" json:"current_batch"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	Search   string
	Status   CourseStatus
	Page     int
	PageSize int
}
