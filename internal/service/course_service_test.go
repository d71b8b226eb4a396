package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harmonics-id/music-school-api/internal/models"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
)

type mockCourseRepo struct {
	courses     map[string]*models.Course
	details     map[string]*models.CourseDetail
	created     []*models.Course
	updated     []*models.Course
	deactivated []string
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	out := make([]models.CourseDetail, 0, len(m.details))
	for _, d := range m.details {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = "course-new"
	m.created = append(m.created, course)
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.updated = append(m.updated, course)
	return nil
}

func (m *mockCourseRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

type mockMentorByIDReader struct {
	mentors map[string]*models.Mentor
}

func (m *mockMentorByIDReader) FindByID(ctx context.Context, id string) (*models.Mentor, error) {
	if mentor, ok := m.mentors[id]; ok {
		return mentor, nil
	}
	return nil, sql.ErrNoRows
}

func newCourseFixture() (*CourseService, *mockCourseRepo, *mockInvalidator) {
	repo := &mockCourseRepo{
		courses: map[string]*models.Course{
			"course-1": {ID: "course-1", Title: "Piano Basics", Fee: 500000, Active: true},
		},
		details: map[string]*models.CourseDetail{
			"course-1": {Course: models.Course{ID: "course-1", Title: "Piano Basics", Fee: 500000, Active: true}},
		},
	}
	mentors := &mockMentorByIDReader{mentors: map[string]*models.Mentor{
		"mentor-1": {ID: "mentor-1", FullName: "Ms. Clara", Instrument: "Piano", Active: true},
	}}
	invalidator := &mockInvalidator{}
	svc := NewCourseService(repo, mentors, invalidator, nil, zap.NewNop())
	return svc, repo, invalidator
}

func TestCourseListPaginationDefaults(t *testing.T) {
	svc, _, _ := newCourseFixture()

	courses, pagination, err := svc.List(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	assert.Len(t, courses, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestCourseGetNotFound(t *testing.T) {
	svc, _, _ := newCourseFixture()

	_, err := svc.Get(context.Background(), "missing")
	assertErrCode(t, err, appErrors.ErrNotFound.Code)
}

func TestCourseCreate(t *testing.T) {
	svc, repo, _ := newCourseFixture()

	course, err := svc.Create(context.Background(), CreateCourseRequest{
		Title:    "Violin Basics",
		MentorID: strPtr("mentor-1"),
		Fee:      300000,
	})
	require.NoError(t, err)
	assert.Equal(t, "course-new", course.ID)
	assert.True(t, course.Active)
	assert.Len(t, repo.created, 1)
}

func TestCourseCreateUnknownMentor(t *testing.T) {
	svc, repo, _ := newCourseFixture()

	_, err := svc.Create(context.Background(), CreateCourseRequest{
		Title:    "Violin Basics",
		MentorID: strPtr("ghost"),
		Fee:      300000,
	})
	assertErrCode(t, err, appErrors.ErrValidation.Code)
	assert.Empty(t, repo.created)
}

func TestCourseCreateRejectsZeroFee(t *testing.T) {
	svc, _, _ := newCourseFixture()

	_, err := svc.Create(context.Background(), CreateCourseRequest{Title: "Free Course"})
	assertErrCode(t, err, appErrors.ErrValidation.Code)
}

func TestCourseUpdateInvalidatesAvailability(t *testing.T) {
	svc, repo, invalidator := newCourseFixture()

	active := false
	course, err := svc.Update(context.Background(), "course-1", UpdateCourseRequest{
		Title:    "Piano Basics II",
		MentorID: strPtr("mentor-1"),
		Fee:      550000,
		Active:   &active,
	})
	require.NoError(t, err)
	assert.Equal(t, "Piano Basics II", course.Title)
	assert.False(t, course.Active)
	assert.Len(t, repo.updated, 1)
	assert.Contains(t, invalidator.patterns, "availability:course-1")
}

func TestCourseUpdateNotFound(t *testing.T) {
	svc, _, _ := newCourseFixture()

	_, err := svc.Update(context.Background(), "missing", UpdateCourseRequest{Title: "X", Fee: 1})
	assertErrCode(t, err, appErrors.ErrNotFound.Code)
}

func TestCourseDeactivate(t *testing.T) {
	svc, repo, invalidator := newCourseFixture()

	require.NoError(t, svc.Deactivate(context.Background(), "course-1"))
	assert.Equal(t, []string{"course-1"}, repo.deactivated)
	assert.Contains(t, invalidator.patterns, "availability:course-1")
}

func TestCourseDeactivateNotFound(t *testing.T) {
	svc, _, _ := newCourseFixture()

	err := svc.Deactivate(context.Background(), "missing")
	assertErrCode(t, err, appErrors.ErrNotFound.Code)
}
