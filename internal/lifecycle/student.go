package lifecycle

import (
	"fmt"
	"time"

	"github.com/noah-isme/academy-admin-api/internal/models"
	appErrors "github.com/noah-isme/academy-admin-api/pkg/errors"
)

// ChangeStudentStatus applies an admin-requested student status change.
// SUSPENDED_VIOLATION is neither settable nor clearable here.
func ChangeStudentStatus(student models.Student, requested string, now time.Time) (models.Student, error) {
	status, ok := models.ParseStudentStatus(requested)
	if !ok {
		return student, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown student status %q", requested))
	}
	if status == models.StudentStatusSuspendedViolation {
		return student, appErrors.Clone(appErrors.ErrForbiddenTransition, "SUSPENDED_VIOLATION can only be set by certificate revocation")
	}
	if status == student.Status {
		return student, nil
	}
	if student.Status == models.StudentStatusSuspendedViolation {
		return student, appErrors.Clone(appErrors.ErrForbiddenTransition, "student suspended for violation")
	}
	updated := student
	updated.Status = status
	updated.UpdatedAt = now.UTC()
	return updated, nil
}

// CanDeleteStudent rejects hard deletes while the student has active enrollments.
func CanDeleteStudent(enrollments []models.Enrollment) error {
	if HasActiveEnrollment(enrollments) {
		return appErrors.Clone(appErrors.ErrConflict, "student has active enrollments")
	}
	return nil
}
