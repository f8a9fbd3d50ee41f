package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-admin-api/internal/lifecycle"
	"github.com/noah-isme/academy-admin-api/internal/models"
	"github.com/noah-isme/academy-admin-api/internal/repository"
	"github.com/noah-isme/academy-admin-api/pkg/certpdf"
	appErrors "github.com/noah-isme/academy-admin-api/pkg/errors"
	"github.com/noah-isme/academy-admin-api/pkg/events"
	"github.com/noah-isme/academy-admin-api/pkg/signedurl"
)

const verificationCachePrefix = "certificates:verify:"

type certificateRepository interface {
	FindByID(ctx context.Context, id string) (*models.Certificate, error)
	FindByCode(ctx context.Context, code string) (*models.Certificate, error)
	FindLatestByEnrollment(ctx context.Context, enrollmentID string) (*models.Certificate, error)
	Create(ctx context.Context, cert *models.Certificate) error
	ApplyRevocation(ctx context.Context, result *models.RevocationResult) error
}

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
}

type downloadSigner interface {
	Generate(certificateID, code string) (string, time.Time, error)
	Parse(token string) (signedurl.Claims, error)
}

type certificateRenderer interface {
	Render(doc certpdf.Document) ([]byte, error)
}

// IssueCertificateRequest holds payload for issuing a certificate.
type IssueCertificateRequest struct {
	EnrollmentID string `json:"enrollment_id" validate:"required"`
}

// RevokeCertificateRequest holds payload for revoking a certificate.
type RevokeCertificateRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes" validate:"max=1000"`
}

// DownloadLink is a signed, expiring reference to a certificate PDF.
type DownloadLink struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CertificateFile is a rendered certificate ready to be streamed.
type CertificateFile struct {
	Filename string
	Content  []byte
}

// CertificateConfig tunes certificate behaviour.
type CertificateConfig struct {
	CacheTTL   time.Duration
	IssuerName string
	VerifyURL  string
}

// CertificateService issues, verifies and revokes certificates.
type CertificateService struct {
	repo        certificateRepository
	enrollments enrollmentReader
	students    studentReader
	courses     courseReader
	cache       *CacheService
	events      *EventService
	metrics     *MetricsService
	signer      downloadSigner
	renderer    certificateRenderer
	validator   *validator.Validate
	logger      *zap.Logger
	config      CertificateConfig
	now         func() time.Time
}

// CertificateServiceDeps groups collaborators of the certificate service.
type CertificateServiceDeps struct {
	Repo        certificateRepository
	Enrollments enrollmentReader
	Students    studentReader
	Courses     courseReader
	Cache       *CacheService
	Events      *EventService
	Metrics     *MetricsService
	Signer      downloadSigner
	Renderer    certificateRenderer
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewCertificateService constructs the certificate service.
func NewCertificateService(deps CertificateServiceDeps, cfg CertificateConfig) *CertificateService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &CertificateService{
		repo:        deps.Repo,
		enrollments: deps.Enrollments,
		students:    deps.Students,
		courses:     deps.Courses,
		cache:       deps.Cache,
		events:      deps.Events,
		metrics:     deps.Metrics,
		signer:      deps.Signer,
		renderer:    deps.Renderer,
		validator:   deps.Validator,
		logger:      deps.Logger,
		config:      cfg,
		now:         time.Now,
	}
}

// Issue creates a certificate for a COMPLETED enrollment.
func (s *CertificateService) Issue(ctx context.Context, actorID string, req IssueCertificateRequest) (*models.Certificate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid certificate payload")
	}
	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		return nil, notFoundOrInternal(err, "enrollment not found", "failed to load enrollment")
	}
	student, err := s.students.FindByID(ctx, enrollment.StudentID)
	if err != nil {
		return nil, notFoundOrInternal(err, "student not found", "failed to load student")
	}
	existing, err := s.repo.FindLatestByEnrollment(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing certificate")
	}

	cert, err := lifecycle.IssueCertificate(*enrollment, *student, existing, actorID, "", s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &cert); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment already has an active certificate")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create certificate")
	}
	s.metrics.RecordCertificateIssued()
	s.events.Publish(events.TypeCertificateIssued, actorID, cert.ID, map[string]interface{}{
		"code":          cert.Code,
		"enrollment_id": cert.EnrollmentID,
		"student_id":    cert.StudentID,
	})
	return &cert, nil
}

// Get returns a certificate by ID.
func (s *CertificateService) Get(ctx context.Context, id string) (*models.Certificate, error) {
	cert, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "certificate not found", "failed to load certificate")
	}
	return cert, nil
}

// Verify resolves a public verification code. Results are cached until the
// certificate is revoked. After caching an ACTIVE result the row is read
// again, so a revocation committed between the first read and the cache
// write never leaves a stale valid entry behind.
func (s *CertificateService) Verify(ctx context.Context, code string) (*models.CertificateVerification, error) {
	code = lifecycle.NormalizeCode(code)
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "code required")
	}
	key := verificationCacheKey(code)
	var cached models.CertificateVerification
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	cert, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, notFoundOrInternal(err, "certificate not found", "failed to load certificate")
	}
	student, err := s.students.FindByID(ctx, cert.StudentID)
	if err != nil {
		return nil, notFoundOrInternal(err, "student not found", "failed to load student")
	}
	course, err := s.courses.FindByID(ctx, cert.CourseID)
	if err != nil {
		return nil, notFoundOrInternal(err, "course not found", "failed to load course")
	}

	result := verificationOf(cert, student.FullName, course.Title)
	if !s.cache.Enabled() {
		return result, nil
	}
	if err := s.cache.Set(ctx, key, result, s.config.CacheTTL); err != nil || !result.Valid {
		return result, nil
	}

	latest, err := s.repo.FindByCode(ctx, code)
	if err != nil || latest.Status != cert.Status {
		_ = s.cache.Invalidate(ctx, key)
	}
	if err == nil && latest.Status != cert.Status {
		return verificationOf(latest, student.FullName, course.Title), nil
	}
	return result, nil
}

func verificationOf(cert *models.Certificate, studentName, courseTitle string) *models.CertificateVerification {
	return &models.CertificateVerification{
		Code:        cert.Code,
		Valid:       cert.Status == models.CertificateStatusActive,
		Status:      cert.Status,
		StudentName: studentName,
		CourseTitle: courseTitle,
		IssuedAt:    cert.IssuedAt,
		RevokedAt:   cert.RevokedAt,
	}
}

// Revoke revokes an ACTIVE certificate and cascades the reason onto the
// enrollment and student. All three rows are written in one transaction.
func (s *CertificateService) Revoke(ctx context.Context, id, actorID string, req RevokeCertificateRequest) (*models.RevocationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid revocation payload")
	}
	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert.Status != models.CertificateStatusActive {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRevoked, "certificate already revoked")
	}
	enrollment, err := s.enrollments.FindByID(ctx, cert.EnrollmentID)
	if err != nil {
		return nil, notFoundOrInternal(err, "enrollment not found", "failed to load enrollment")
	}
	student, err := s.students.FindByID(ctx, cert.StudentID)
	if err != nil {
		return nil, notFoundOrInternal(err, "student not found", "failed to load student")
	}
	siblings, err := s.enrollments.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student enrollments")
	}

	result, err := lifecycle.RevokeCertificate(lifecycle.RevocationInput{
		Certificate: *cert,
		Enrollment:  *enrollment,
		Student:     *student,
		Reason:      req.Reason,
		Notes:       req.Notes,
		Siblings:    siblings,
	}, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.ApplyRevocation(ctx, result); err != nil {
		if errors.Is(err, repository.ErrCertificateStateChanged) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyRevoked, "certificate already revoked")
		}
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "student already has an active enrollment in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke certificate")
	}

	_ = s.cache.Invalidate(ctx, verificationCacheKey(cert.Code))

	reason := string(*result.Certificate.RevocationReason)
	s.metrics.RecordRevocation(reason)
	if result.EnrollmentChanged && enrollment.Status != result.Enrollment.Status {
		s.metrics.RecordEnrollmentTransition(string(enrollment.Status), string(result.Enrollment.Status))
	}
	s.events.Publish(events.TypeCertificateRevoked, actorID, cert.ID, map[string]interface{}{
		"code":              cert.Code,
		"reason":            reason,
		"notes":             req.Notes,
		"enrollment_id":     result.Enrollment.ID,
		"enrollment_status": result.Enrollment.Status,
		"student_id":        result.Student.ID,
		"student_status":    result.Student.Status,
	})
	s.logger.Info("certificate revoked",
		zap.String("certificate_id", cert.ID),
		zap.String("reason", reason),
		zap.String("enrollment_status", string(result.Enrollment.Status)),
		zap.String("student_status", string(result.Student.Status)),
		zap.String("actor_id", actorID),
	)
	return result, nil
}

// DownloadLink signs a short-lived link to the certificate PDF.
func (s *CertificateService) DownloadLink(ctx context.Context, id string) (*DownloadLink, error) {
	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert.Status != models.CertificateStatusActive {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRevoked, "certificate revoked")
	}
	token, expiresAt, err := s.signer.Generate(cert.ID, cert.Code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &DownloadLink{Token: token, ExpiresAt: expiresAt}, nil
}

// RenderPDF renders the certificate referenced by a signed download token.
func (s *CertificateService) RenderPDF(ctx context.Context, token string) (*CertificateFile, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}
	cert, err := s.Get(ctx, claims.CertificateID)
	if err != nil {
		return nil, err
	}
	if cert.Code != claims.Code {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link")
	}
	if cert.Status != models.CertificateStatusActive {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRevoked, "certificate revoked")
	}
	student, err := s.students.FindByID(ctx, cert.StudentID)
	if err != nil {
		return nil, notFoundOrInternal(err, "student not found", "failed to load student")
	}
	course, err := s.courses.FindByID(ctx, cert.CourseID)
	if err != nil {
		return nil, notFoundOrInternal(err, "course not found", "failed to load course")
	}
	enrollment, err := s.enrollments.FindByID(ctx, cert.EnrollmentID)
	if err != nil {
		return nil, notFoundOrInternal(err, "enrollment not found", "failed to load enrollment")
	}

	doc := certpdf.Document{
		Code:        cert.Code,
		StudentName: student.FullName,
		CourseTitle: course.Title,
		BatchNumber: enrollment.BatchNumber,
		IssuedAt:    cert.IssuedAt,
		IssuerName:  s.config.IssuerName,
	}
	if s.config.VerifyURL != "" {
		doc.VerifyURL = s.config.VerifyURL + "/" + cert.Code
	}
	content, err := s.renderer.Render(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}
	return &CertificateFile{Filename: cert.Code + ".pdf", Content: content}, nil
}

func verificationCacheKey(code string) string {
	return verificationCachePrefix + code
}
