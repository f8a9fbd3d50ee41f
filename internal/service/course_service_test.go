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
)

func TestCourseServiceCreate(t *testing.T) {
	repo := &mockCourseRepo{}
	svc := NewCourseService(repo, validator.New(), zap.NewNop())

	course, err := svc.Create(context.Background(), CreateCourseRequest{Title: "Backend Engineering: Go!", Status: "active", BatchNumber: 3, BatchCapacity: 40})
	require.NoError(t, err)
	assert.Equal(t, "backend-engineering-go", course.Slug)
	assert.Equal(t, models.CourseStatusActive, course.Status)
	assert.Equal(t, 3, course.CurrentBatch.Number)
	assert.True(t, course.CurrentBatch.Active)

	upcoming, err := svc.Create(context.Background(), CreateCourseRequest{Title: "Data", Slug: "data-101", BatchNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusUpcoming, upcoming.Status)
	assert.Equal(t, "data-101", upcoming.Slug)
}

func TestCourseServiceCreateValidation(t *testing.T) {
	svc := NewCourseService(&mockCourseRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateCourseRequest{Title: "Go", BatchNumber: 0})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), CreateCourseRequest{Title: "Go", BatchNumber: 1, Status: "ARCHIVED"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)
	_, err = svc.Create(context.Background(), CreateCourseRequest{Title: "Go", BatchNumber: 1, StartDate: &start, EndDate: &end})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), CreateCourseRequest{Title: "!!!", BatchNumber: 1})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCourseServiceCreateDuplicateSlug(t *testing.T) {
	svc := NewCourseService(&mockCourseRepo{createErr: &pq.Error{Code: "23505"}}, validator.New(), zap.NewNop())
	_, err := svc.Create(context.Background(), CreateCourseRequest{Title: "Go", BatchNumber: 1})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestCourseServiceGet(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]models.Course{"c1": {ID: "c1", Title: "Go"}}}
	svc := NewCourseService(repo, validator.New(), zap.NewNop())

	course, err := svc.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Go", course.Title)

	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, _, err = svc.List(context.Background(), models.CourseFilter{Status: "bogus"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
