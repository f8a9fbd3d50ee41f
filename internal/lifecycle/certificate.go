package lifecycle

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/academy-admin-api/internal/models"
	appErrors "github.com/noah-isme/academy-admin-api/pkg/errors"
)

const codePrefix = "CERT-"

// IssueCertificate builds a certificate for a completed enrollment. existing
// is the certificate already issued for the enrollment, if any.
func IssueCertificate(enrollment models.Enrollment, student models.Student, existing *models.Certificate, issuedBy, code string, now time.Time) (models.Certificate, error) {
	if enrollment.StudentID != student.ID {
		return models.Certificate{}, appErrors.Clone(appErrors.ErrValidation, "student does not belong to enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusCompleted {
		return models.Certificate{}, appErrors.Clone(appErrors.ErrCertificateNotIssued, "enrollment must be COMPLETED before a certificate is issued")
	}
	if student.Status == models.StudentStatusSuspendedViolation {
		return models.Certificate{}, appErrors.Clone(appErrors.ErrStudentSuspended, "student suspended for violation")
	}
	if existing != nil && existing.Status == models.CertificateStatusActive {
		return models.Certificate{}, appErrors.Clone(appErrors.ErrConflict, "enrollment already has an active certificate")
	}
	if strings.TrimSpace(issuedBy) == "" {
		return models.Certificate{}, appErrors.Clone(appErrors.ErrValidation, "issuer required")
	}
	if code == "" {
		code = NewCertificateCode()
	}
	return models.Certificate{
		Code:         code,
		StudentID:    student.ID,
		CourseID:     enrollment.CourseID,
		EnrollmentID: enrollment.ID,
		Status:       models.CertificateStatusActive,
		IssuedAt:     now.UTC(),
		IssuedBy:     issuedBy,
	}, nil
}

// NewCertificateCode returns a random verification code such as CERT-9F2C41A07B3E.
func NewCertificateCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return codePrefix + strings.ToUpper(raw[:12])
}

// NormalizeCode canonicalises a user-supplied verification code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
