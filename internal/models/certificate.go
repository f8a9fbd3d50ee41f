package models

import (
	"strings"
	"time"
)

// CertificateStatus represents the validity of an issued certificate.
type CertificateStatus string

// Possible certificate statuses.
const (
	CertificateStatusActive  CertificateStatus = "ACTIVE"
	CertificateStatusRevoked CertificateStatus = "REVOKED"
)

// RevocationReason determines the cascade applied when a certificate is revoked.
type RevocationReason string

// Supported revocation reasons.
const (
	RevocationReasonMisuseViolation     RevocationReason = "MISUSE_VIOLATION"
	RevocationReasonAdministrativeError RevocationReason = "ADMINISTRATIVE_ERROR"
)

// ParseRevocationReason normalises raw input into a known RevocationReason.
func ParseRevocationReason(raw string) (RevocationReason, bool) {
	switch r := RevocationReason(strings.ToUpper(strings.TrimSpace(raw))); r {
	case RevocationReasonMisuseViolation, RevocationReasonAdministrativeError:
		return r, true
	}
	return "", false
}

// Certificate is proof of completion for exactly one enrollment.
type Certificate struct {
	ID               string            `db:"id" json:"id"`
	Code             string            `db:"code" json:"code"`
	StudentID        string            `db:"student_id" json:"student_id"`
	CourseID         string            `db:"course_id" json:"course_id"`
	EnrollmentID     string            `db:"enrollment_id" json:"enrollment_id"`
	Status           CertificateStatus `db:"status" json:"status"`
	IssuedAt         time.Time         `db:"issued_at" json:"issued_at"`
	IssuedBy         string            `db:"issued_by" json:"issued_by"`
	RevokedAt        *time.Time        `db:"revoked_at" json:"revoked_at,omitempty"`
	RevocationReason *RevocationReason `db:"revocation_reason" json:"revocation_reason,omitempty"`
	RevocationNotes  *string           `db:"revocation_notes" json:"revocation_notes,omitempty"`
}

// CertificateVerification is the public view returned when a code is checked.
type CertificateVerification struct {
	Code        string            `json:"code"`
	Valid       bool              `json:"valid"`
	Status      CertificateStatus `json:"status"`
	StudentName string            `json:"student_name"`
	CourseTitle string            `json:"course_title"`
	IssuedAt    time.Time         `json:"issued_at"`
	RevokedAt   *time.Time        `json:"revoked_at,omitempty"`
}

// RevocationResult carries the consistent triple produced by a revocation.
// The *Changed flags tell the persistence layer which rows to write.
type RevocationResult struct {
	Certificate       Certificate `json:"certificate"`
	Enrollment        Enrollment  `json:"enrollment"`
	Student           Student     `json:"student"`
	EnrollmentChanged bool        `json:"-"`
	StudentChanged    bool        `json:"-"`
}
