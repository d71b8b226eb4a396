package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harmonics-id/music-school-api/internal/models"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
)

type mockSessionRepo struct {
	sessions   map[string]*models.Session
	mentorBusy bool
	roomsInUse []string
	updated    *models.Session
	deleted    []string
}

func (m *mockSessionRepo) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	return nil, 0, nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s, ok := m.sessions[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessionRepo) ListByMentor(ctx context.Context, mentorID string) ([]models.SessionDetail, error) {
	return nil, nil
}

func (m *mockSessionRepo) MentorBusyTx(ctx context.Context, tx *sqlx.Tx, mentorID, day, startTime, excludeID string) (bool, error) {
	return m.mentorBusy, nil
}

func (m *mockSessionRepo) RoomsInUseTx(ctx context.Context, tx *sqlx.Tx, day, startTime, excludeID string) ([]string, error) {
	return m.roomsInUse, nil
}

func (m *mockSessionRepo) UpdateTx(ctx context.Context, tx *sqlx.Tx, session *models.Session) error {
	m.updated = session
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type mockSessionEnrollmentReader struct {
	bySession   []models.SessionEnrollment
	studentBusy bool
}

func (m *mockSessionEnrollmentReader) ListBySession(ctx context.Context, sessionID string) ([]models.SessionEnrollment, error) {
	return m.bySession, nil
}

func (m *mockSessionEnrollmentReader) ListStudentSchedule(ctx context.Context, studentID string) ([]models.SessionDetail, error) {
	return nil, nil
}

func (m *mockSessionEnrollmentReader) StudentBusyTx(ctx context.Context, tx *sqlx.Tx, studentID, day, startTime, excludeEnrollmentID string) (bool, error) {
	return m.studentBusy, nil
}

type sessionFixture struct {
	svc         *SessionService
	sessions    *mockSessionRepo
	enrollments *mockSessionEnrollmentReader
	runner      *mockTxRunner
	invalidator *mockInvalidator
}

func newSessionFixture() *sessionFixture {
	f := &sessionFixture{
		sessions: &mockSessionRepo{sessions: map[string]*models.Session{
			"sess-1": {ID: "sess-1", CourseID: "c1", MentorID: "m1", DayOfWeek: "MONDAY", StartTime: "11:00", EndTime: "11:45", Room: "Studio 1", Status: models.SessionStatusActive},
		}},
		enrollments: &mockSessionEnrollmentReader{bySession: []models.SessionEnrollment{
			{ID: "enr-1", SessionID: "sess-1", StudentID: "s1", Status: models.SessionEnrollmentStatusEnrolled},
		}},
		runner:      &mockTxRunner{},
		invalidator: &mockInvalidator{},
	}
	f.svc = NewSessionService(NewSlotCatalog([]string{"Studio 1", "Studio 2"}), f.sessions, f.enrollments, f.runner, f.invalidator, nil, zap.NewNop())
	return f
}

func TestSessionUpdateMoveSlotAssignsRoom(t *testing.T) {
	f := newSessionFixture()
	f.sessions.roomsInUse = []string{"Studio 1"}

	day := "tuesday"
	start := "13:00"
	updated, err := f.svc.Update(context.Background(), "sess-1", UpdateSessionRequest{Day: &day, StartTime: &start})
	require.NoError(t, err)

	assert.Equal(t, "TUESDAY", updated.DayOfWeek)
	assert.Equal(t, "13:00", updated.StartTime)
	assert.Equal(t, "13:45", updated.EndTime)
	assert.Equal(t, "Studio 2", updated.Room)
	require.NotNil(t, f.sessions.updated)
	assert.Contains(t, f.invalidator.patterns, "availability:*")
}

func TestSessionUpdateInvalidSlot(t *testing.T) {
	f := newSessionFixture()

	day := "SUNDAY"
	_, err := f.svc.Update(context.Background(), "sess-1", UpdateSessionRequest{Day: &day})
	assertErrCode(t, err, appErrors.ErrInvalidScheduleInput.Code)
}

func TestSessionUpdatePinnedRoomConflict(t *testing.T) {
	f := newSessionFixture()
	f.sessions.roomsInUse = []string{"Studio 2"}

	room := "Studio 2"
	_, err := f.svc.Update(context.Background(), "sess-1", UpdateSessionRequest{Room: &room})
	assertErrCode(t, err, appErrors.ErrConflict.Code)
}

func TestSessionUpdateRoomOutsidePool(t *testing.T) {
	f := newSessionFixture()

	room := "Garage"
	_, err := f.svc.Update(context.Background(), "sess-1", UpdateSessionRequest{Room: &room})
	assertErrCode(t, err, appErrors.ErrInvalidScheduleInput.Code)
}

func TestSessionUpdateMentorConflict(t *testing.T) {
	f := newSessionFixture()
	f.sessions.mentorBusy = true

	day := "TUESDAY"
	_, err := f.svc.Update(context.Background(), "sess-1", UpdateSessionRequest{Day: &day})
	assertErrCode(t, err, appErrors.ErrMentorConflict.Code)
}

func TestSessionUpdateStudentConflict(t *testing.T) {
	f := newSessionFixture()
	f.enrollments.studentBusy = true

	day := "TUESDAY"
	_, err := f.svc.Update(context.Background(), "sess-1", UpdateSessionRequest{Day: &day})
	assertErrCode(t, err, appErrors.ErrStudentConflict.Code)
}

func TestSessionUpdateCancelSkipsOccupancyChecks(t *testing.T) {
	f := newSessionFixture()
	f.sessions.mentorBusy = true

	status := "CANCELLED"
	updated, err := f.svc.Update(context.Background(), "sess-1", UpdateSessionRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCancelled, updated.Status)
}

func TestSessionUpdateInvalidStatus(t *testing.T) {
	f := newSessionFixture()

	status := "PAUSED"
	_, err := f.svc.Update(context.Background(), "sess-1", UpdateSessionRequest{Status: &status})
	assertErrCode(t, err, appErrors.ErrValidation.Code)
}

func TestSessionUpdateNotFound(t *testing.T) {
	f := newSessionFixture()

	_, err := f.svc.Update(context.Background(), "ghost", UpdateSessionRequest{})
	assertErrCode(t, err, appErrors.ErrNotFound.Code)
}

func TestSessionDelete(t *testing.T) {
	f := newSessionFixture()

	require.NoError(t, f.svc.Delete(context.Background(), "sess-1"))
	assert.Contains(t, f.sessions.deleted, "sess-1")
	assert.Contains(t, f.invalidator.patterns, "availability:*")

	err := f.svc.Delete(context.Background(), "ghost")
	assertErrCode(t, err, appErrors.ErrNotFound.Code)
}
