package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/harmonics-id/music-school-api/internal/dto"
	"github.com/harmonics-id/music-school-api/internal/models"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
)

type bookingStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type bookingEnrollmentStore interface {
	ExistsForStudentCourse(ctx context.Context, studentID, courseID string) (bool, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error
}

type bookingSessionStore interface {
	MentorBusyTx(ctx context.Context, tx *sqlx.Tx, mentorID, day, startTime, excludeID string) (bool, error)
	RoomsInUseTx(ctx context.Context, tx *sqlx.Tx, day, startTime, excludeID string) ([]string, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, session *models.Session) error
}

type bookingSessionEnrollmentStore interface {
	StudentBusyTx(ctx context.Context, tx *sqlx.Tx, studentID, day, startTime, excludeEnrollmentID string) (bool, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.SessionEnrollment) error
}

type billCreator interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, bill *models.Bill) error
}

type slotTxRunner interface {
	WithSlotLock(ctx context.Context, day, startTime string, fn func(tx *sqlx.Tx) error) error
}

type availabilityInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// BookSlotRequest describes a student's request to claim a weekly slot for a
// course.
type BookSlotRequest struct {
	StudentID string `json:"-" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	Day       string `json:"day" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
}

// BookingService atomically converts a free slot into a scheduled session,
// its enrollment records, and the registration bill.
type BookingService struct {
	catalog            *SlotCatalog
	courses            availabilityCourseReader
	students           bookingStudentReader
	enrollments        bookingEnrollmentStore
	sessions           bookingSessionStore
	sessionEnrollments bookingSessionEnrollmentStore
	bills              billCreator
	runner             slotTxRunner
	cache              availabilityInvalidator
	metrics            *MetricsService
	registrationFee    int64
	billDueIn          time.Duration
	validator          *validator.Validate
	logger             *zap.Logger
}

// NewBookingService instantiates BookingService.
func NewBookingService(
	catalog *SlotCatalog,
	courses availabilityCourseReader,
	students bookingStudentReader,
	enrollments bookingEnrollmentStore,
	sessions bookingSessionStore,
	sessionEnrollments bookingSessionEnrollmentStore,
	bills billCreator,
	runner slotTxRunner,
	cache availabilityInvalidator,
	metrics *MetricsService,
	registrationFee int64,
	billDueIn time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if billDueIn <= 0 {
		billDueIn = 7 * 24 * time.Hour
	}
	return &BookingService{
		catalog:            catalog,
		courses:            courses,
		students:           students,
		enrollments:        enrollments,
		sessions:           sessions,
		sessionEnrollments: sessionEnrollments,
		bills:              bills,
		runner:             runner,
		cache:              cache,
		metrics:            metrics,
		registrationFee:    registrationFee,
		billDueIn:          billDueIn,
		validator:          validate,
		logger:             logger,
	}
}

// Book claims the requested slot for the student. Preconditions run in a
// fixed order so callers get deterministic errors: input validity, duplicate
// enrollment, mentor assignment, then the slot checks under the advisory
// lock. On success the session, session enrollment, course enrollment, and
// registration bill are committed together.
func (s *BookingService) Book(ctx context.Context, req BookSlotRequest) (*dto.BookingResult, error) {
	result, err := s.book(ctx, req)
	s.metrics.RecordBooking(bookingOutcome(err))
	return result, err
}

func (s *BookingService) book(ctx context.Context, req BookSlotRequest) (*dto.BookingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	day := strings.ToUpper(req.Day)
	if !s.catalog.ValidSlot(day, req.StartTime) {
		return nil, appErrors.ErrInvalidScheduleInput
	}
	endTime, err := s.catalog.EndTimeFor(req.StartTime)
	if err != nil {
		return nil, err
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	course, err := s.courses.FindDetailByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is not open for booking")
	}

	enrolled, err := s.enrollments.ExistsForStudentCourse(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		return nil, appErrors.ErrAlreadyEnrolled
	}

	if course.MentorID == nil {
		return nil, appErrors.ErrNoMentorAssigned
	}
	mentorID := *course.MentorID

	var result *dto.BookingResult
	err = s.runner.WithSlotLock(ctx, day, req.StartTime, func(tx *sqlx.Tx) error {
		busy, err := s.sessions.MentorBusyTx(ctx, tx, mentorID, day, req.StartTime, "")
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check mentor occupancy")
		}
		if busy {
			return appErrors.ErrMentorConflict
		}

		busy, err = s.sessionEnrollments.StudentBusyTx(ctx, tx, req.StudentID, day, req.StartTime, "")
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student occupancy")
		}
		if busy {
			return appErrors.ErrStudentConflict
		}

		inUse, err := s.sessions.RoomsInUseTx(ctx, tx, day, req.StartTime, "")
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room occupancy")
		}
		room, ok := firstFreeRoom(s.catalog.Rooms(), inUse)
		if !ok {
			return appErrors.ErrNoRoomAvailable
		}

		session := models.Session{
			CourseID:  req.CourseID,
			MentorID:  mentorID,
			DayOfWeek: day,
			StartTime: req.StartTime,
			EndTime:   endTime,
			Room:      room,
			Status:    models.SessionStatusActive,
		}
		if err := s.sessions.CreateTx(ctx, tx, &session); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
		}

		sessionEnrollment := models.SessionEnrollment{
			SessionID: session.ID,
			StudentID: req.StudentID,
			Status:    models.SessionEnrollmentStatusEnrolled,
		}
		if err := s.sessionEnrollments.CreateTx(ctx, tx, &sessionEnrollment); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session enrollment")
		}

		enrollment := models.Enrollment{
			StudentID: req.StudentID,
			CourseID:  req.CourseID,
			Status:    models.EnrollmentStatusPendingPayment,
		}
		if err := s.enrollments.CreateTx(ctx, tx, &enrollment); err != nil {
			// The duplicate check above runs before the slot lock, so a
			// concurrent booking of the same course can still race it. The
			// partial unique index on live enrollments settles the race.
			if isUniqueViolation(err) {
				return appErrors.ErrAlreadyEnrolled
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}

		bill := models.Bill{
			EnrollmentID: enrollment.ID,
			StudentID:    req.StudentID,
			Description:  "Registration fee for " + course.Title,
			Amount:       s.registrationFee,
			DueDate:      time.Now().UTC().Add(s.billDueIn),
			Status:       models.BillStatusUnpaid,
		}
		if err := s.bills.CreateTx(ctx, tx, &bill); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration bill")
		}

		result = &dto.BookingResult{
			SessionID:    session.ID,
			EnrollmentID: enrollment.ID,
			Day:          day,
			StartTime:    req.StartTime,
			EndTime:      endTime,
			Room:         room,
			BillID:       bill.ID,
			Amount:       bill.Amount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "availability:*"); err != nil {
			s.logger.Warn("availability invalidation failed after booking", zap.Error(err))
		}
	}

	s.logger.Info("slot booked",
		zap.String("student_id", req.StudentID),
		zap.String("course_id", req.CourseID),
		zap.String("day", day),
		zap.String("start_time", req.StartTime),
		zap.String("room", result.Room),
	)
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func bookingOutcome(err error) string {
	if err == nil {
		return "booked"
	}
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		return "error"
	}
	switch appErr.Code {
	case appErrors.ErrMentorConflict.Code:
		return "mentor_conflict"
	case appErrors.ErrStudentConflict.Code:
		return "student_conflict"
	case appErrors.ErrNoRoomAvailable.Code:
		return "no_room"
	case appErrors.ErrAlreadyEnrolled.Code:
		return "already_enrolled"
	case appErrors.ErrInvalidScheduleInput.Code, appErrors.ErrValidation.Code:
		return "invalid_input"
	default:
		return "rejected"
	}
}
