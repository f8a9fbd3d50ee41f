// Package lifecycle holds the decision rules tying student, enrollment and
// certificate statuses together. Functions here never perform I/O and never
// mutate their arguments; callers persist the returned entities atomically.
package lifecycle

import (
	"time"

	"github.com/noah-isme/academy-admin-api/internal/models"
	appErrors "github.com/noah-isme/academy-admin-api/pkg/errors"
)

// RevocationInput bundles the entities touched by a certificate revocation.
type RevocationInput struct {
	Certificate models.Certificate
	Enrollment  models.Enrollment
	Student     models.Student
	Reason      string
	Notes       string

	// Siblings are the student's enrollments. They keep a reopened
	// enrollment from clashing with a newer ACTIVE one in the same course.
	Siblings []models.Enrollment
}

// RevokeCertificate computes the certificate, enrollment and student states
// that follow a revocation.
//
// ADMINISTRATIVE_ERROR reopens the enrollment and leaves the student alone.
// Reopening fails with DUPLICATE_ENROLLMENT when the student has since
// enrolled in the same course again.
// MISUSE_VIOLATION terminates the enrollment and suspends the student, even
// when the student still holds other active enrollments.
func RevokeCertificate(in RevocationInput, now time.Time) (*models.RevocationResult, error) {
	if in.Certificate.Status != models.CertificateStatusActive {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRevoked, "certificate already revoked")
	}
	reason, ok := models.ParseRevocationReason(in.Reason)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidReason, "revocation reason must be MISUSE_VIOLATION or ADMINISTRATIVE_ERROR")
	}
	if in.Certificate.EnrollmentID != in.Enrollment.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment does not belong to certificate")
	}
	if in.Enrollment.StudentID != in.Student.ID || in.Certificate.StudentID != in.Student.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student does not belong to certificate")
	}
	if reason == models.RevocationReasonAdministrativeError &&
		in.Enrollment.Status != models.EnrollmentStatusActive &&
		hasOtherActive(in.Enrollment, in.Siblings) {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "student already has an active enrollment in this course")
	}

	now = now.UTC()
	result := &models.RevocationResult{
		Certificate: in.Certificate,
		Enrollment:  in.Enrollment,
		Student:     in.Student,
	}

	revokedAt := now
	notes := in.Notes
	result.Certificate.Status = models.CertificateStatusRevoked
	result.Certificate.RevokedAt = &revokedAt
	result.Certificate.RevocationReason = &reason
	result.Certificate.RevocationNotes = &notes

	switch reason {
	case models.RevocationReasonAdministrativeError:
		result.Enrollment.Status = models.EnrollmentStatusActive
		result.Enrollment.EndDate = nil
	case models.RevocationReasonMisuseViolation:
		endDate := now
		result.Enrollment.Status = models.EnrollmentStatusTerminatedViolation
		result.Enrollment.EndDate = &endDate
		result.Student.Status = models.StudentStatusSuspendedViolation
	}

	result.EnrollmentChanged = result.Enrollment.Status != in.Enrollment.Status || !sameTime(result.Enrollment.EndDate, in.Enrollment.EndDate)
	result.StudentChanged = result.Student.Status != in.Student.Status
	if result.EnrollmentChanged {
		result.Enrollment.UpdatedAt = now
	}
	if result.StudentChanged {
		result.Student.UpdatedAt = now
	}
	return result, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
