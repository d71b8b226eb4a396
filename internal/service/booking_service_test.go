package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harmonics-id/music-school-api/internal/models"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
)

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockBookingEnrollments struct {
	exists    bool
	createErr error
	created   *models.Enrollment
}

func (m *mockBookingEnrollments) ExistsForStudentCourse(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.exists, nil
}

func (m *mockBookingEnrollments) CreateTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	enrollment.ID = "enr-1"
	m.created = enrollment
	return nil
}

type mockBookingSessions struct {
	mentorBusy bool
	roomsInUse []string
	created    *models.Session
}

func (m *mockBookingSessions) MentorBusyTx(ctx context.Context, tx *sqlx.Tx, mentorID, day, startTime, excludeID string) (bool, error) {
	return m.mentorBusy, nil
}

func (m *mockBookingSessions) RoomsInUseTx(ctx context.Context, tx *sqlx.Tx, day, startTime, excludeID string) ([]string, error) {
	return m.roomsInUse, nil
}

func (m *mockBookingSessions) CreateTx(ctx context.Context, tx *sqlx.Tx, session *models.Session) error {
	session.ID = "sess-1"
	m.created = session
	return nil
}

type mockBookingSessionEnrollments struct {
	studentBusy bool
	created     *models.SessionEnrollment
}

func (m *mockBookingSessionEnrollments) StudentBusyTx(ctx context.Context, tx *sqlx.Tx, studentID, day, startTime, excludeEnrollmentID string) (bool, error) {
	return m.studentBusy, nil
}

func (m *mockBookingSessionEnrollments) CreateTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.SessionEnrollment) error {
	enrollment.ID = "se-1"
	m.created = enrollment
	return nil
}

type mockBillCreator struct {
	created *models.Bill
}

func (m *mockBillCreator) CreateTx(ctx context.Context, tx *sqlx.Tx, bill *models.Bill) error {
	bill.ID = "bill-1"
	m.created = bill
	return nil
}

// mockTxRunner executes the callback outside a real transaction. The mocked
// stores ignore the tx argument.
type mockTxRunner struct {
	calls int
}

func (m *mockTxRunner) WithSlotLock(ctx context.Context, day, startTime string, fn func(tx *sqlx.Tx) error) error {
	m.calls++
	return fn(nil)
}

type mockInvalidator struct {
	patterns []string
}

func (m *mockInvalidator) Invalidate(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

type bookingFixture struct {
	svc                *BookingService
	courses            *mockCourseReader
	students           *mockStudentReader
	enrollments        *mockBookingEnrollments
	sessions           *mockBookingSessions
	sessionEnrollments *mockBookingSessionEnrollments
	bills              *mockBillCreator
	runner             *mockTxRunner
	invalidator        *mockInvalidator
}

func newBookingFixture() *bookingFixture {
	f := &bookingFixture{
		courses:            &mockCourseReader{courses: map[string]*models.CourseDetail{"c1": testCourse("c1", "m1")}},
		students:           &mockStudentReader{students: map[string]*models.Student{"s1": {ID: "s1", Active: true}}},
		enrollments:        &mockBookingEnrollments{},
		sessions:           &mockBookingSessions{},
		sessionEnrollments: &mockBookingSessionEnrollments{},
		bills:              &mockBillCreator{},
		runner:             &mockTxRunner{},
		invalidator:        &mockInvalidator{},
	}
	f.svc = NewBookingService(
		NewSlotCatalog([]string{"Studio 1", "Studio 2"}),
		f.courses,
		f.students,
		f.enrollments,
		f.sessions,
		f.sessionEnrollments,
		f.bills,
		f.runner,
		f.invalidator,
		nil,
		250000,
		0,
		nil,
		zap.NewNop(),
	)
	return f
}

func assertErrCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestBookSuccess(t *testing.T) {
	f := newBookingFixture()

	result, err := f.svc.Book(context.Background(), BookSlotRequest{
		StudentID: "s1", CourseID: "c1", Day: "monday", StartTime: "11:00",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "sess-1", result.SessionID)
	assert.Equal(t, "MONDAY", result.Day)
	assert.Equal(t, "11:45", result.EndTime)
	assert.Equal(t, "Studio 1", result.Room)
	assert.Equal(t, int64(250000), result.Amount)

	require.NotNil(t, f.sessions.created)
	assert.Equal(t, models.SessionStatusActive, f.sessions.created.Status)
	require.NotNil(t, f.sessionEnrollments.created)
	assert.Equal(t, models.SessionEnrollmentStatusEnrolled, f.sessionEnrollments.created.Status)
	require.NotNil(t, f.enrollments.created)
	assert.Equal(t, models.EnrollmentStatusPendingPayment, f.enrollments.created.Status)
	require.NotNil(t, f.bills.created)
	assert.Equal(t, models.BillStatusUnpaid, f.bills.created.Status)
	assert.Equal(t, "Registration fee for Piano Basics", f.bills.created.Description)

	assert.Equal(t, 1, f.runner.calls)
	assert.Contains(t, f.invalidator.patterns, "availability:*")
}

func TestBookInvalidSlot(t *testing.T) {
	f := newBookingFixture()

	_, err := f.svc.Book(context.Background(), BookSlotRequest{
		StudentID: "s1", CourseID: "c1", Day: "SUNDAY", StartTime: "11:00",
	})
	assertErrCode(t, err, appErrors.ErrInvalidScheduleInput.Code)

	_, err = f.svc.Book(context.Background(), BookSlotRequest{
		StudentID: "s1", CourseID: "c1", Day: "MONDAY", StartTime: "11:30",
	})
	assertErrCode(t, err, appErrors.ErrInvalidScheduleInput.Code)
	assert.Zero(t, f.runner.calls)
}

func TestBookUnknownStudent(t *testing.T) {
	f := newBookingFixture()

	_, err := f.svc.Book(context.Background(), BookSlotRequest{
		StudentID: "ghost", CourseID: "c1", Day: "MONDAY", StartTime: "11:00",
	})
	assertErrCode(t, err, appErrors.ErrNotFound.Code)
}

func TestBookInactiveCourse(t *testing.T) {
	f := newBookingFixture()
	f.courses.courses["c1"].Active = false

	_, err := f.svc.Book(context.Background(), BookSlotRequest{
		StudentID: "s1", CourseID: "c1", Day: "MONDAY", StartTime: "11:00",
	})
	assertErrCode(t, err, appErrors.ErrPreconditionFailed.Code)
}

func TestBookAlreadyEnrolled(t *testing.T) {
	f := newBookingFixture()
	f.enrollments.exists = true

	_, err := f.svc.Book(context.Background(), BookSlotRequest{
		StudentID: "s1", CourseID: "c1", Day: "MONDAY", StartTime: "11:00",
	})
	assertErrCode(t, err, appErrors.ErrAlreadyEnrolled.Code)
	assert.Zero(t, f.runner.calls)
}

func TestBookDuplicateEnrollmentRace(t *testing.T) {
	f := newBookingFixture()
	f.enrollments.createErr = &pq.Error{Code: "23505"}

	_, err := f.svc.Book(context.Background(), BookSlotRequest{
		StudentID: "s1", CourseID: "c1", Day: "MONDAY", StartTime: "11:00",
	})
	assertErrCode(t, err, appErrors.ErrAlreadyEnrolled.Code)
	assert.Nil(t, f.bills.created)
}

func TestBookCourseWithoutMentor(t *testing.T) {
	f := newBookingFixture()
	f.courses.courses["c1"].MentorID = nil

	_, err := f.svc.Book(context.Background(), BookSlotRequest{
		StudentID: "s1", CourseID: "c1", Day: "MONDAY", StartTime: "11:00",
	})
	assertErrCode(t, err, appErrors.ErrNoMentorAssigned.Code)
}

func TestBookMentorConflict(t *testing.T) {
	f := newBookingFixture()
	f.sessions.mentorBusy = true

	_, err := f.svc.Book(context.Background(), BookSlotRequest{
		StudentID: "s1", CourseID: "c1", Day: "MONDAY", StartTime: "11:00",
	})
	assertErrCode(t, err, appErrors.ErrMentorConflict.Code)
	assert.Nil(t, f.sessions.created)
}

func TestBookStudentConflict(t *testing.T) {
	f := newBookingFixture()
	f.sessionEnrollments.studentBusy = true

	_, err := f.svc.Book(context.Background(), BookSlotRequest{
		StudentID: "s1", CourseID: "c1", Day: "MONDAY", StartTime: "11:00",
	})
	assertErrCode(t, err, appErrors.ErrStudentConflict.Code)
}

func TestBookNoRoomAvailable(t *testing.T) {
	f := newBookingFixture()
	f.sessions.roomsInUse = []string{"Studio 1", "Studio 2"}

	_, err := f.svc.Book(context.Background(), BookSlotRequest{
		StudentID: "s1", CourseID: "c1", Day: "MONDAY", StartTime: "11:00",
	})
	assertErrCode(t, err, appErrors.ErrNoRoomAvailable.Code)
}

func TestBookPicksFirstFreeRoom(t *testing.T) {
	f := newBookingFixture()
	f.sessions.roomsInUse = []string{"Studio 1"}

	result, err := f.svc.Book(context.Background(), BookSlotRequest{
		StudentID: "s1", CourseID: "c1", Day: "MONDAY", StartTime: "11:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "Studio 2", result.Room)
}

// serializingTxRunner stands in for the advisory slot lock: concurrent
// bookings of the same slot run their critical sections one at a time.
type serializingTxRunner struct {
	mu sync.Mutex
}

func (r *serializingTxRunner) WithSlotLock(ctx context.Context, day, startTime string, fn func(tx *sqlx.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(nil)
}

// concurrentSessionStore tracks claimed mentor slots in a shared map so a
// second booking inside the lock sees the first one's session.
type concurrentSessionStore struct {
	mu      sync.Mutex
	mentors map[string]bool
	created int
}

func occupancyKey(mentorID, day, startTime string) string {
	return mentorID + "|" + day + "|" + startTime
}

func (c *concurrentSessionStore) MentorBusyTx(ctx context.Context, tx *sqlx.Tx, mentorID, day, startTime, excludeID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mentors[occupancyKey(mentorID, day, startTime)], nil
}

func (c *concurrentSessionStore) RoomsInUseTx(ctx context.Context, tx *sqlx.Tx, day, startTime, excludeID string) ([]string, error) {
	return nil, nil
}

func (c *concurrentSessionStore) CreateTx(ctx context.Context, tx *sqlx.Tx, session *models.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created++
	session.ID = fmt.Sprintf("sess-%d", c.created)
	c.mentors[occupancyKey(session.MentorID, session.DayOfWeek, session.StartTime)] = true
	return nil
}

func TestBookConcurrentSameMentorSlot(t *testing.T) {
	f := newBookingFixture()
	f.students.students["s2"] = &models.Student{ID: "s2", Active: true}
	sessions := &concurrentSessionStore{mentors: map[string]bool{}}
	f.svc.sessions = sessions
	f.svc.runner = &serializingTxRunner{}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, studentID := range []string{"s1", "s2"} {
		wg.Add(1)
		go func(i int, studentID string) {
			defer wg.Done()
			_, errs[i] = f.svc.Book(context.Background(), BookSlotRequest{
				StudentID: studentID, CourseID: "c1", Day: "MONDAY", StartTime: "11:00",
			})
		}(i, studentID)
	}
	wg.Wait()

	var booked, conflicts int
	for _, err := range errs {
		if err == nil {
			booked++
			continue
		}
		var appErr *appErrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, appErrors.ErrMentorConflict.Code, appErr.Code)
		conflicts++
	}
	assert.Equal(t, 1, booked)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, sessions.created)
}

func TestBookingOutcomeMapping(t *testing.T) {
	assert.Equal(t, "booked", bookingOutcome(nil))
	assert.Equal(t, "mentor_conflict", bookingOutcome(appErrors.ErrMentorConflict))
	assert.Equal(t, "student_conflict", bookingOutcome(appErrors.ErrStudentConflict))
	assert.Equal(t, "no_room", bookingOutcome(appErrors.ErrNoRoomAvailable))
	assert.Equal(t, "already_enrolled", bookingOutcome(appErrors.ErrAlreadyEnrolled))
	assert.Equal(t, "invalid_input", bookingOutcome(appErrors.ErrInvalidScheduleInput))
	assert.Equal(t, "rejected", bookingOutcome(appErrors.ErrNotFound))
	assert.Equal(t, "error", bookingOutcome(sql.ErrNoRows))
}
