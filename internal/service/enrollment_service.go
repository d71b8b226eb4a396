package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/harmonics-id/music-school-api/internal/models"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

type enrollmentSessionStore interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	CountEnrollmentsTx(ctx context.Context, tx *sqlx.Tx, sessionID string) (int, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.SessionStatus) error
}

type enrollmentSessionEnrollmentStore interface {
	FindByStudentCourse(ctx context.Context, studentID, courseID string) (*models.SessionEnrollment, error)
	DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error
}

// EnrollmentService exposes read and lifecycle operations on course
// enrollments. Enrollments are created by the booking flow, never directly.
type EnrollmentService struct {
	repo               enrollmentRepository
	sessions           enrollmentSessionStore
	sessionEnrollments enrollmentSessionEnrollmentStore
	runner             slotTxRunner
	cache              availabilityInvalidator
	logger             *zap.Logger
}

// NewEnrollmentService instantiates EnrollmentService.
func NewEnrollmentService(
	repo enrollmentRepository,
	sessions enrollmentSessionStore,
	sessionEnrollments enrollmentSessionEnrollmentStore,
	runner slotTxRunner,
	cache availabilityInvalidator,
	logger *zap.Logger,
) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:               repo,
		sessions:           sessions,
		sessionEnrollments: sessionEnrollments,
		runner:             runner,
		cache:              cache,
		logger:             logger,
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Get returns one enrollment by id.
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

// Cancel marks an enrollment cancelled and releases the weekly slot it holds.
// The student's session enrollment is removed, and when it was the last one
// on the session the session itself is cancelled so the mentor and room open
// up again.
func (s *EnrollmentService) Cancel(ctx context.Context, id string) error {
	enrollment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if enrollment.Status == models.EnrollmentStatusCancelled {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is already cancelled")
	}

	if err := s.releaseSlot(ctx, enrollment); err != nil {
		return err
	}

	if err := s.repo.UpdateStatus(ctx, id, models.EnrollmentStatusCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "availability:*"); err != nil {
			s.logger.Warn("availability invalidation failed after cancellation", zap.Error(err))
		}
	}
	return nil
}

func (s *EnrollmentService) releaseSlot(ctx context.Context, enrollment *models.Enrollment) error {
	sessionEnrollment, err := s.sessionEnrollments.FindByStudentCourse(ctx, enrollment.StudentID, enrollment.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No live session binding, nothing to release.
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session enrollment")
	}

	session, err := s.sessions.FindByID(ctx, sessionEnrollment.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	err = s.runner.WithSlotLock(ctx, session.DayOfWeek, session.StartTime, func(tx *sqlx.Tx) error {
		if err := s.sessionEnrollments.DeleteTx(ctx, tx, sessionEnrollment.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release session enrollment")
		}
		remaining, err := s.sessions.CountEnrollmentsTx(ctx, tx, session.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count session enrollments")
		}
		if remaining == 0 {
			if err := s.sessions.UpdateStatusTx(ctx, tx, session.ID, models.SessionStatusCancelled); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel vacated session")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("slot released",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("session_id", session.ID),
		zap.String("day", session.DayOfWeek),
		zap.String("start_time", session.StartTime),
	)
	return nil
}
