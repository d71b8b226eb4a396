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

type mockCourseReader struct {
	courses map[string]*models.CourseDetail
}

func (m *mockCourseReader) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type mockOccupancyReader struct {
	occupancy []models.SlotOccupancy
}

func (m *mockOccupancyReader) ListOccupancy(ctx context.Context) ([]models.SlotOccupancy, error) {
	return m.occupancy, nil
}

func strPtr(s string) *string { return &s }

func testCourse(id, mentorID string) *models.CourseDetail {
	return &models.CourseDetail{
		Course: models.Course{
			ID:       id,
			Title:    "Piano Basics",
			MentorID: strPtr(mentorID),
			Fee:      500000,
			Active:   true,
		},
		MentorName: strPtr("Ms. Clara"),
	}
}

func TestAvailabilityFullGridWhenEmpty(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]*models.CourseDetail{"c1": testCourse("c1", "m1")}}
	svc := NewAvailabilityService(courses, &mockOccupancyReader{}, NewSlotCatalog([]string{"Studio 1", "Studio 2"}), nil, 0, zap.NewNop())

	resp, err := svc.GetAvailability(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, resp.Slots, 42)
	for _, slot := range resp.Slots {
		assert.True(t, slot.IsAvailable)
		assert.Equal(t, "Ms. Clara", slot.MentorName)
	}
	assert.Equal(t, "Piano Basics", resp.Course.Title)
}

func TestAvailabilityMentorBusyBlocksSlot(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]*models.CourseDetail{"c1": testCourse("c1", "m1")}}
	occupancy := &mockOccupancyReader{occupancy: []models.SlotOccupancy{
		{SessionID: "s1", MentorID: "m1", DayOfWeek: "MONDAY", StartTime: "11:00", Room: "Studio 1"},
	}}
	svc := NewAvailabilityService(courses, occupancy, NewSlotCatalog([]string{"Studio 1", "Studio 2"}), nil, 0, zap.NewNop())

	resp, err := svc.GetAvailability(context.Background(), "c1")
	require.NoError(t, err)

	for _, slot := range resp.Slots {
		if slot.Day == "MONDAY" && slot.StartTime == "11:00" {
			assert.False(t, slot.IsAvailable)
		} else {
			assert.True(t, slot.IsAvailable)
		}
	}
}

func TestAvailabilityOtherMentorDoesNotBlockUntilRoomsExhausted(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]*models.CourseDetail{"c1": testCourse("c1", "m1")}}
	occupancy := &mockOccupancyReader{occupancy: []models.SlotOccupancy{
		{SessionID: "s1", MentorID: "m2", DayOfWeek: "TUESDAY", StartTime: "12:00", Room: "Studio 1"},
	}}
	svc := NewAvailabilityService(courses, occupancy, NewSlotCatalog([]string{"Studio 1", "Studio 2"}), nil, 0, zap.NewNop())

	resp, err := svc.GetAvailability(context.Background(), "c1")
	require.NoError(t, err)
	for _, slot := range resp.Slots {
		assert.True(t, slot.IsAvailable, "slot %s %s", slot.Day, slot.StartTime)
	}
}

func TestAvailabilityRoomPoolExhausted(t *testing.T) {
	courses := &mockCourseReader{courses: map[string]*models.CourseDetail{"c1": testCourse("c1", "m1")}}
	occupancy := &mockOccupancyReader{occupancy: []models.SlotOccupancy{
		{SessionID: "s1", MentorID: "m2", DayOfWeek: "FRIDAY", StartTime: "15:00", Room: "Studio 1"},
		{SessionID: "s2", MentorID: "m3", DayOfWeek: "FRIDAY", StartTime: "15:00", Room: "Studio 2"},
	}}
	svc := NewAvailabilityService(courses, occupancy, NewSlotCatalog([]string{"Studio 1", "Studio 2"}), nil, 0, zap.NewNop())

	resp, err := svc.GetAvailability(context.Background(), "c1")
	require.NoError(t, err)
	for _, slot := range resp.Slots {
		if slot.Day == "FRIDAY" && slot.StartTime == "15:00" {
			assert.False(t, slot.IsAvailable)
		} else {
			assert.True(t, slot.IsAvailable)
		}
	}
}

func TestAvailabilityMissingCourse(t *testing.T) {
	svc := NewAvailabilityService(&mockCourseReader{}, &mockOccupancyReader{}, NewSlotCatalog(nil), nil, 0, zap.NewNop())

	_, err := svc.GetAvailability(context.Background(), "nope")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAvailabilityCourseWithoutMentor(t *testing.T) {
	course := testCourse("c1", "m1")
	course.MentorID = nil
	courses := &mockCourseReader{courses: map[string]*models.CourseDetail{"c1": course}}
	svc := NewAvailabilityService(courses, &mockOccupancyReader{}, NewSlotCatalog(nil), nil, 0, zap.NewNop())

	_, err := svc.GetAvailability(context.Background(), "c1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNoMentorAssigned.Code, appErr.Code)
}
