package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/academy-admin-api/internal/models"
	"github.com/noah-isme/academy-admin-api/internal/repository"
	"github.com/noah-isme/academy-admin-api/pkg/certpdf"
	"github.com/noah-isme/academy-admin-api/pkg/events"
)

type mockStudentRepo struct {
	mu         sync.Mutex
	students   map[string]models.Student
	deleted    []string
	lastFilter models.StudentFilter
	listTotal  int
	deleteErr  error
	err        error
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, 0, m.err
	}
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, m.listTotal, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, s := range m.students {
		if s.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) UpdateStatus(ctx context.Context, id string, status models.StudentStatus, updatedAt time.Time) error {
	s := m.students[id]
	s.Status = status
	s.UpdatedAt = updatedAt
	m.students[id] = s
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	delete(m.students, id)
	return nil
}

type mockCourseRepo struct {
	courses   map[string]models.Course
	createErr error
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	out := make([]models.Course, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.courses == nil {
		m.courses = make(map[string]models.Course)
	}
	if course.ID == "" {
		course.ID = "course-generated"
	}
	m.courses[course.ID] = *course
	return nil
}

type mockEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[string]models.Enrollment
	createErr   error
	statusErr   error
	progressErr error
	statusCalls int
	lastFilter  models.EnrollmentFilter
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	m.lastFilter = filter
	out := make([]models.EnrollmentDetail, 0, len(m.enrollments))
	for _, e := range m.enrollments {
		out = append(out, models.EnrollmentDetail{Enrollment: e})
	}
	return out, len(out), nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "enrollment-generated"
	}
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, endDate *time.Time, updatedAt time.Time) error {
	m.statusCalls++
	if m.statusErr != nil {
		return m.statusErr
	}
	e := m.enrollments[id]
	e.Status = status
	e.EndDate = endDate
	e.UpdatedAt = updatedAt
	m.enrollments[id] = e
	return nil
}

func (m *mockEnrollmentRepo) UpdateProgress(ctx context.Context, id string, progress int, updatedAt time.Time) error {
	if m.progressErr != nil {
		return m.progressErr
	}
	e := m.enrollments[id]
	e.Progress = progress
	e.UpdatedAt = updatedAt
	m.enrollments[id] = e
	return nil
}

// mockCertificateRepo applies revocations to the student and enrollment
// mocks so tests can observe the persisted triple.
type mockCertificateRepo struct {
	mu           sync.Mutex
	certificates map[string]models.Certificate
	students     *mockStudentRepo
	enrollments  *mockEnrollmentRepo
	revocations  int
	applyErr     error
	// afterFindByCode runs once the row has been read, before the caller
	// sees it.
	afterFindByCode func()
}

func (m *mockCertificateRepo) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.certificates[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateRepo) FindByCode(ctx context.Context, code string) (*models.Certificate, error) {
	m.mu.Lock()
	var found *models.Certificate
	for _, c := range m.certificates {
		if c.Code == code {
			cert := c
			found = &cert
			break
		}
	}
	hook := m.afterFindByCode
	m.afterFindByCode = nil
	m.mu.Unlock()

	if found == nil {
		return nil, sql.ErrNoRows
	}
	if hook != nil {
		hook()
	}
	return found, nil
}

func (m *mockCertificateRepo) FindLatestByEnrollment(ctx context.Context, enrollmentID string) (*models.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Certificate
	for _, c := range m.certificates {
		if c.EnrollmentID != enrollmentID {
			continue
		}
		if latest == nil || c.IssuedAt.After(latest.IssuedAt) {
			cert := c
			latest = &cert
		}
	}
	return latest, nil
}

func (m *mockCertificateRepo) Create(ctx context.Context, cert *models.Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.certificates == nil {
		m.certificates = make(map[string]models.Certificate)
	}
	if cert.ID == "" {
		cert.ID = "cert-generated"
	}
	m.certificates[cert.ID] = *cert
	return nil
}

func (m *mockCertificateRepo) ApplyRevocation(ctx context.Context, result *models.RevocationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	current := m.certificates[result.Certificate.ID]
	if current.Status != models.CertificateStatusActive {
		return repository.ErrCertificateStateChanged
	}
	m.certificates[result.Certificate.ID] = result.Certificate
	if result.EnrollmentChanged {
		m.enrollments.mu.Lock()
		m.enrollments.enrollments[result.Enrollment.ID] = result.Enrollment
		m.enrollments.mu.Unlock()
	}
	if result.StudentChanged {
		m.students.mu.Lock()
		m.students.students[result.Student.ID] = result.Student
		m.students.mu.Unlock()
	}
	m.revocations++
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, evt := range p.events {
		out = append(out, evt.Type)
	}
	return out
}

type stubRenderer struct {
	last certpdf.Document
	err  error
}

func (r *stubRenderer) Render(doc certpdf.Document) ([]byte, error) {
	r.last = doc
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3 stub"), nil
}
