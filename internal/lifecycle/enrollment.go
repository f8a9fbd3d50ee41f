package lifecycle

import (
	"fmt"
	"time"

	"github.com/noah-isme/academy-admin-api/internal/models"
	appErrors "github.com/noah-isme/academy-admin-api/pkg/errors"
)

// ChangeEnrollmentStatus applies an admin-requested status change. existing
// holds the student's enrollments and guards reopening against a second
// ACTIVE enrollment in the same course.
// TERMINATED_VIOLATION is reachable only through certificate revocation, and
// a terminated enrollment cannot be reopened from here.
func ChangeEnrollmentStatus(enrollment models.Enrollment, requested string, existing []models.Enrollment, now time.Time) (models.Enrollment, error) {
	status, ok := models.ParseEnrollmentStatus(requested)
	if !ok {
		return enrollment, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown enrollment status %q", requested))
	}
	if status == models.EnrollmentStatusTerminatedViolation {
		return enrollment, appErrors.Clone(appErrors.ErrForbiddenTransition, "TERMINATED_VIOLATION can only be set by certificate revocation")
	}
	if status == enrollment.Status {
		return enrollment, nil
	}
	if enrollment.Status == models.EnrollmentStatusTerminatedViolation {
		return enrollment, appErrors.Clone(appErrors.ErrForbiddenTransition, "enrollment terminated for violation")
	}
	if status == models.EnrollmentStatusActive && hasOtherActive(enrollment, existing) {
		return enrollment, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "student already has an active enrollment in this course")
	}

	now = now.UTC()
	updated := enrollment
	updated.Status = status
	if status.Terminal() {
		endDate := now
		updated.EndDate = &endDate
	} else {
		updated.EndDate = nil
	}
	updated.UpdatedAt = now
	return updated, nil
}

// NewEnrollment validates an enrollment request against the course's current
// batch and the student's existing enrollments and returns the record to create.
func NewEnrollment(student models.Student, course models.Course, batchNumber int, existing []models.Enrollment, now time.Time) (models.Enrollment, error) {
	if batchNumber < 1 || batchNumber > course.CurrentBatch.Number {
		return models.Enrollment{}, appErrors.Clone(appErrors.ErrInvalidBatch, fmt.Sprintf("batch %d is not available, current batch is %d", batchNumber, course.CurrentBatch.Number))
	}
	if student.Status == models.StudentStatusSuspendedViolation {
		return models.Enrollment{}, appErrors.Clone(appErrors.ErrStudentSuspended, "student is barred from new enrollments")
	}
	if hasOtherActive(models.Enrollment{StudentID: student.ID, CourseID: course.ID}, existing) {
		return models.Enrollment{}, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "student already has an active enrollment in this course")
	}

	now = now.UTC()
	return models.Enrollment{
		StudentID:      student.ID,
		CourseID:       course.ID,
		BatchNumber:    batchNumber,
		Status:         models.EnrollmentStatusActive,
		EnrollmentDate: now,
		Progress:       0,
		UpdatedAt:      now,
	}, nil
}

// UpdateProgress records course progress. Progress only moves forward and
// only while the enrollment is active.
func UpdateProgress(enrollment models.Enrollment, progress int, now time.Time) (models.Enrollment, error) {
	if progress < 0 || progress > 100 {
		return enrollment, appErrors.Clone(appErrors.ErrValidation, "progress must be between 0 and 100")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return enrollment, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment not active")
	}
	if progress < enrollment.Progress {
		return enrollment, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("progress cannot decrease below %d", enrollment.Progress))
	}
	if progress == enrollment.Progress {
		return enrollment, nil
	}
	updated := enrollment
	updated.Progress = progress
	updated.UpdatedAt = now.UTC()
	return updated, nil
}

// HasActiveEnrollment reports whether any enrollment is still active.
func HasActiveEnrollment(enrollments []models.Enrollment) bool {
	for _, e := range enrollments {
		if e.Status == models.EnrollmentStatusActive {
			return true
		}
	}
	return false
}

// hasOtherActive reports whether existing holds an ACTIVE enrollment, other
// than enrollment itself, for the same student and course.
func hasOtherActive(enrollment models.Enrollment, existing []models.Enrollment) bool {
	for _, e := range existing {
		if e.ID == enrollment.ID && enrollment.ID != "" {
			continue
		}
		if e.StudentID == enrollment.StudentID && e.CourseID == enrollment.CourseID && e.Status == models.EnrollmentStatusActive {
			return true
		}
	}
	return false
}
