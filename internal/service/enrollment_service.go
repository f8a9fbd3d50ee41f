package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-admin-api/internal/lifecycle"
	"github.com/noah-isme/academy-admin-api/internal/models"
	"github.com/noah-isme/academy-admin-api/internal/repository"
	appErrors "github.com/noah-isme/academy-admin-api/pkg/errors"
	"github.com/noah-isme/academy-admin-api/pkg/events"
	"github.com/noah-isme/academy-admin-api/pkg/export"
)

const exportPageSize = 100

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, endDate *time.Time, updatedAt time.Time) error
	UpdateProgress(ctx context.Context, id string, progress int, updatedAt time.Time) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// EnrollRequest holds payload for enrolling a student in a course batch.
type EnrollRequest struct {
	StudentID   string `json:"student_id" validate:"required"`
	CourseID    string `json:"course_id" validate:"required"`
	BatchNumber int    `json:"batch_number"`
}

// ChangeEnrollmentStatusRequest holds payload for an admin status change.
type ChangeEnrollmentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateProgressRequest holds payload for recording course progress.
type UpdateProgressRequest struct {
	Progress *int `json:"progress" validate:"required,min=0,max=100"`
}

// EnrollmentService handles enrollment use-cases.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	courses   courseReader
	events    *EventService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, courses courseReader, eventSvc *EventService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		courses:   courses,
		events:    eventSvc,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns enrollments with student and course names.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.Status != "" {
		status, ok := models.ParseEnrollmentStatus(string(filter.Status))
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
		filter.Status = status
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return items, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a single enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Enroll admits a student into a batch no later than the course's current batch.
func (s *EnrollmentService) Enroll(ctx context.Context, actorID string, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, notFoundOrInternal(err, "student not found", "failed to load student")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		return nil, notFoundOrInternal(err, "course not found", "failed to load course")
	}
	existing, err := s.repo.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student enrollments")
	}

	enrollment, err := lifecycle.NewEnrollment(*student, *course, req.BatchNumber, existing, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &enrollment); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "student already has an active enrollment in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.events.Publish(events.TypeEnrollmentCreated, actorID, enrollment.ID, map[string]interface{}{
		"student_id":   enrollment.StudentID,
		"course_id":    enrollment.CourseID,
		"batch_number": enrollment.BatchNumber,
	})
	return &enrollment, nil
}

// ChangeStatus applies an admin status change. TERMINATED_VIOLATION is never
// accepted here.
func (s *EnrollmentService) ChangeStatus(ctx context.Context, id, actorID string, req ChangeEnrollmentStatusRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.ListByStudent(ctx, current.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student enrollments")
	}
	updated, err := lifecycle.ChangeEnrollmentStatus(*current, req.Status, existing, s.now())
	if err != nil {
		return nil, err
	}
	if updated.Status == current.Status {
		return current, nil
	}
	if err := s.repo.UpdateStatus(ctx, id, updated.Status, updated.EndDate, updated.UpdatedAt); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "student already has an active enrollment in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	s.metrics.RecordEnrollmentTransition(string(current.Status), string(updated.Status))
	s.events.Publish(events.TypeEnrollmentStatusChanged, actorID, id, map[string]interface{}{
		"from": current.Status,
		"to":   updated.Status,
	})
	return &updated, nil
}

// UpdateProgress records progress for an ACTIVE enrollment.
func (s *EnrollmentService) UpdateProgress(ctx context.Context, id, actorID string, req UpdateProgressRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := lifecycle.UpdateProgress(*current, *req.Progress, s.now())
	if err != nil {
		return nil, err
	}
	if updated.Progress == current.Progress {
		return current, nil
	}
	if err := s.repo.UpdateProgress(ctx, id, updated.Progress, updated.UpdatedAt); err != nil {
		if errors.Is(err, repository.ErrProgressRejected) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment changed concurrently, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment progress")
	}
	s.events.Publish(events.TypeEnrollmentProgress, actorID, id, map[string]interface{}{
		"from": current.Progress,
		"to":   updated.Progress,
	})
	return &updated, nil
}

// Export renders every enrollment matching filter as a CSV roster. Paging
// fields on filter are ignored.
func (s *EnrollmentService) Export(ctx context.Context, filter models.EnrollmentFilter) ([]byte, error) {
	table := export.Table{Columns: []string{"enrollment_id", "student", "course", "batch", "status", "progress", "enrolled_at", "ended_at"}}
	filter.PageSize = exportPageSize
	for page := 1; ; page++ {
		filter.Page = page
		items, _, err := s.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			ended := ""
			if item.EndDate != nil {
				ended = item.EndDate.UTC().Format(time.RFC3339)
			}
			table.Append(
				item.ID,
				item.StudentName,
				item.CourseTitle,
				strconv.Itoa(item.BatchNumber),
				string(item.Status),
				strconv.Itoa(item.Progress),
				item.EnrollmentDate.UTC().Format(time.RFC3339),
				ended,
			)
		}
		if len(items) < exportPageSize {
			break
		}
	}
	out, err := export.CSV(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return out, nil
}

func notFoundOrInternal(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
