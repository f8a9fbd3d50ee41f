package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-admin-api/internal/models"
)

// ErrCertificateStateChanged signals that the certificate was no longer ACTIVE
// when the revocation was written.
var ErrCertificateStateChanged = errors.New("certificate status changed concurrently")

const certificateColumns = `id, code, student_id, course_id, enrollment_id, status, issued_at, issued_by, revoked_at, revocation_reason, revocation_notes`

// CertificateRepository handles persistence of certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// FindByID returns a certificate by ID. sql.ErrNoRows is returned untouched.
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	query := "SELECT " + certificateColumns + " FROM certificates WHERE id = $1"
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, id); err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindByCode returns a certificate by its verification code.
func (r *CertificateRepository) FindByCode(ctx context.Context, code string) (*models.Certificate, error) {
	query := "SELECT " + certificateColumns + " FROM certificates WHERE code = $1"
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, code); err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindLatestByEnrollment returns the most recent certificate issued for an
// enrollment, or nil when none exists.
func (r *CertificateRepository) FindLatestByEnrollment(ctx context.Context, enrollmentID string) (*models.Certificate, error) {
	query := "SELECT " + certificateColumns + " FROM certificates WHERE enrollment_id = $1 ORDER BY issued_at DESC LIMIT 1"
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, enrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find certificate by enrollment: %w", err)
	}
	return &cert, nil
}

// Create persists a newly issued certificate.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.IssuedAt.IsZero() {
		cert.IssuedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificates (id, code, student_id, course_id, enrollment_id, status, issued_at, issued_by)
        VALUES (:id, :code, :student_id, :course_id, :enrollment_id, :status, :issued_at, :issued_by)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// ApplyRevocation writes the certificate, enrollment and student updates of a
// revocation in one transaction. The certificate update only matches rows
// that are still ACTIVE; otherwise ErrCertificateStateChanged is returned and
// nothing is written.
func (r *CertificateRepository) ApplyRevocation(ctx context.Context, result *models.RevocationResult) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin revocation transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cert := result.Certificate
	const certQuery = `UPDATE certificates SET status = $2, revoked_at = $3, revocation_reason = $4, revocation_notes = $5
        WHERE id = $1 AND status = $6`
	res, err := tx.ExecContext(ctx, certQuery, cert.ID, cert.Status, cert.RevokedAt, cert.RevocationReason, cert.RevocationNotes, models.CertificateStatusActive)
	if err != nil {
		return fmt.Errorf("revoke certificate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke certificate rows: %w", err)
	}
	if affected != 1 {
		err = ErrCertificateStateChanged
		return err
	}

	if result.EnrollmentChanged {
		e := result.Enrollment
		const enrollmentQuery = `UPDATE enrollments SET status = $2, end_date = $3, updated_at = $4 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, enrollmentQuery, e.ID, e.Status, e.EndDate, e.UpdatedAt); err != nil {
			return fmt.Errorf("update revoked enrollment: %w", err)
		}
	}

	if result.StudentChanged {
		s := result.Student
		const studentQuery = `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, studentQuery, s.ID, s.Status, s.UpdatedAt); err != nil {
			return fmt.Errorf("update revoked student: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit revocation: %w", err)
	}
	return nil
}
