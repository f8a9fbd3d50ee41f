package models

import (
	"strings"
	"time"
)

// StudentStatus represents the standing of a student with the academy.
type StudentStatus string

// Possible student statuses.
const (
	StudentStatusActive             StudentStatus = "ACTIVE"
	StudentStatusInactive           StudentStatus = "INACTIVE"
	StudentStatusGraduated          StudentStatus = "GRADUATED"
	StudentStatusSuspendedViolation StudentStatus = "SUSPENDED_VIOLATION"
)

// ParseStudentStatus normalises raw input into a known StudentStatus.
func ParseStudentStatus(raw string) (StudentStatus, bool) {
	switch s := StudentStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StudentStatusActive, StudentStatusInactive, StudentStatusGraduated, StudentStatusSuspendedViolation:
		return s, true
	}
	return "", false
}

// Student represents a learner admitted to the academy.
type Student struct {
	ID        string        `db:"id" json:"id"`
	FullName  string        `db:"full_name" json:"full_name"`
	Email     string        `db:"email" json:"email"`
	Phone     string        `db:"phone" json:"phone"`
	Status    StudentStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Status    StudentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
