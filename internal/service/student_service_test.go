package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-admin-api/internal/models"
	appErrors "github.com/noah-isme/academy-admin-api/pkg/errors"
	"github.com/noah-isme/academy-admin-api/pkg/events"
)

func newTestStudentService(repo *mockStudentRepo, enrollments *mockEnrollmentRepo, publisher *recordingPublisher) *StudentService {
	return NewStudentService(repo, enrollments, NewEventService(publisher, zap.NewNop()), validator.New(), zap.NewNop())
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newTestStudentService(repo, &mockEnrollmentRepo{}, &recordingPublisher{})

	student, err := svc.Create(context.Background(), CreateStudentRequest{FullName: " Ana Putri ", Email: "Ana@Example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, "Ana Putri", student.FullName)
	assert.Equal(t, "ana@example.com", student.Email)
	assert.Equal(t, models.StudentStatusActive, student.Status)
	assert.Len(t, repo.students, 1)
}

func TestStudentServiceCreateDuplicate(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"s1": {ID: "s1", Email: "ana@example.com"}}}
	svc := newTestStudentService(repo, &mockEnrollmentRepo{}, &recordingPublisher{})

	_, err := svc.Create(context.Background(), CreateStudentRequest{FullName: "Ana", Email: "ana@example.com"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Create(context.Background(), CreateStudentRequest{FullName: "Ana", Email: "invalid"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestStudentServiceGetNotFound(t *testing.T) {
	svc := newTestStudentService(&mockStudentRepo{}, &mockEnrollmentRepo{}, &recordingPublisher{})
	_, err := svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceList(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"s1": {ID: "s1"}, "s2": {ID: "s2"}}, listTotal: 2}
	svc := newTestStudentService(repo, &mockEnrollmentRepo{}, &recordingPublisher{})

	items, pagination, err := svc.List(context.Background(), models.StudentFilter{Status: "active", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, models.StudentStatusActive, repo.lastFilter.Status)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 2, pagination.TotalCount)

	_, _, err = svc.List(context.Background(), models.StudentFilter{Status: "expelled"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestStudentServiceChangeStatus(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"s1": {ID: "s1", Status: models.StudentStatusActive}}}
	publisher := &recordingPublisher{}
	svc := newTestStudentService(repo, &mockEnrollmentRepo{}, publisher)

	updated, err := svc.ChangeStatus(context.Background(), "s1", "admin-1", ChangeStudentStatusRequest{Status: "GRADUATED"})
	require.NoError(t, err)
	assert.Equal(t, models.StudentStatusGraduated, updated.Status)
	assert.Equal(t, models.StudentStatusGraduated, repo.students["s1"].Status)
	assert.Equal(t, []string{events.TypeStudentStatusChanged}, publisher.types())

	_, err = svc.ChangeStatus(context.Background(), "s1", "admin-1", ChangeStudentStatusRequest{Status: "SUSPENDED_VIOLATION"})
	assert.True(t, errors.Is(err, appErrors.ErrForbiddenTransition))
	assert.Equal(t, models.StudentStatusGraduated, repo.students["s1"].Status)

	same, err := svc.ChangeStatus(context.Background(), "s1", "admin-1", ChangeStudentStatusRequest{Status: "GRADUATED"})
	require.NoError(t, err)
	assert.Equal(t, models.StudentStatusGraduated, same.Status)
	assert.Len(t, publisher.types(), 1)
}

func TestStudentServiceDeleteGuard(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", Status: models.StudentStatusActive},
		"s2": {ID: "s2", Status: models.StudentStatusGraduated},
	}}
	enrollments := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", Status: models.EnrollmentStatusActive},
		"e2": {ID: "e2", StudentID: "s2", Status: models.EnrollmentStatusCompleted},
	}}
	publisher := &recordingPublisher{}
	svc := newTestStudentService(repo, enrollments, publisher)

	err := svc.Delete(context.Background(), "s1", "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, repo.deleted)

	require.NoError(t, svc.Delete(context.Background(), "s2", "admin-1"))
	assert.Equal(t, []string{"s2"}, repo.deleted)
	assert.Equal(t, []string{events.TypeStudentDeleted}, publisher.types())

	err = svc.Delete(context.Background(), "missing", "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceDeleteWithHistory(t *testing.T) {
	repo := &mockStudentRepo{
		students:  map[string]models.Student{"s1": {ID: "s1", Status: models.StudentStatusActive, UpdatedAt: time.Now()}},
		deleteErr: &pq.Error{Code: "23503"},
	}
	svc := newTestStudentService(repo, &mockEnrollmentRepo{}, &recordingPublisher{})

	err := svc.Delete(context.Background(), "s1", "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}
