package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/harmonics-id/music-school-api/internal/models"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
)

type rescheduleSessionStore interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	MentorBusyTx(ctx context.Context, tx *sqlx.Tx, mentorID, day, startTime, excludeID string) (bool, error)
	RoomsInUseTx(ctx context.Context, tx *sqlx.Tx, day, startTime, excludeID string) ([]string, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, session *models.Session) error
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.SessionStatus) error
	CountEnrollmentsTx(ctx context.Context, tx *sqlx.Tx, sessionID string) (int, error)
}

type rescheduleEnrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.SessionEnrollment, error)
	FindBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*models.SessionEnrollment, error)
	StudentBusyTx(ctx context.Context, tx *sqlx.Tx, studentID, day, startTime, excludeEnrollmentID string) (bool, error)
	ListPending(ctx context.Context) ([]models.PendingReschedule, error)
	SetPendingChange(ctx context.Context, id, requestedDay, requestedTime string) error
	ClearPendingChange(ctx context.Context, id string) error
	RepointTx(ctx context.Context, tx *sqlx.Tx, id, newSessionID string) error
}

// ProposeRescheduleRequest is a student's request to move their weekly slot.
type ProposeRescheduleRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	StudentID string `json:"-" validate:"required"`
	Day       string `json:"day" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
}

// DecideRescheduleRequest is the admin verdict on a pending reschedule.
type DecideRescheduleRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve reject"`
}

// RescheduleDecisionResult reports the outcome of a decision.
type RescheduleDecisionResult struct {
	EnrollmentID string `json:"enrollment_id"`
	Decision     string `json:"decision"`
	NewSessionID string `json:"new_session_id,omitempty"`
}

// RescheduleService implements the two-phase slot move: a student marks their
// enrollment PENDING_CHANGE, and an admin later approves or rejects it. The
// original slot stays occupied for the whole pending window.
type RescheduleService struct {
	catalog     *SlotCatalog
	sessions    rescheduleSessionStore
	enrollments rescheduleEnrollmentStore
	runner      slotTxRunner
	cache       availabilityInvalidator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRescheduleService instantiates RescheduleService.
func NewRescheduleService(
	catalog *SlotCatalog,
	sessions rescheduleSessionStore,
	enrollments rescheduleEnrollmentStore,
	runner slotTxRunner,
	cache availabilityInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *RescheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RescheduleService{
		catalog:     catalog,
		sessions:    sessions,
		enrollments: enrollments,
		runner:      runner,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Propose records a requested slot change on the student's enrollment. The
// enrollment flips to PENDING_CHANGE; nothing is reserved at the target slot
// yet.
func (s *RescheduleService) Propose(ctx context.Context, req ProposeRescheduleRequest) (*models.SessionEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}

	day := strings.ToUpper(req.Day)
	if !s.catalog.ValidSlot(day, req.StartTime) {
		return nil, appErrors.ErrInvalidScheduleInput
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Status != models.SessionStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "session is not active")
	}
	if session.DayOfWeek == day && session.StartTime == req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "requested slot equals the current slot")
	}

	enrollment, err := s.enrollments.FindBySessionAndStudent(ctx, req.SessionID, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found for this session")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status == models.SessionEnrollmentStatusPendingChange {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a reschedule is already pending for this enrollment")
	}

	if err := s.enrollments.SetPendingChange(ctx, enrollment.ID, day, req.StartTime); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record reschedule request")
	}

	enrollment.Status = models.SessionEnrollmentStatusPendingChange
	enrollment.RequestedDay = &day
	enrollment.RequestedTime = &req.StartTime

	s.logger.Info("reschedule proposed",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("session_id", req.SessionID),
		zap.String("requested_day", day),
		zap.String("requested_time", req.StartTime),
	)
	return enrollment, nil
}

// ListPending returns the admin approval queue.
func (s *RescheduleService) ListPending(ctx context.Context) ([]models.PendingReschedule, error) {
	pending, err := s.enrollments.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending reschedules")
	}
	return pending, nil
}

// Decide resolves a pending reschedule. Reject simply reverts the enrollment
// to ENROLLED. Approve re-runs the slot checks under the target slot's lock;
// on success the enrollment is repointed to a freshly created session and
// the old session is cancelled when it has no enrollments left. If the target
// slot has become unavailable since the proposal, the request is reverted to
// ENROLLED and the conflict is returned.
func (s *RescheduleService) Decide(ctx context.Context, enrollmentID string, req DecideRescheduleRequest) (*RescheduleDecisionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.SessionEnrollmentStatusPendingChange || enrollment.RequestedDay == nil || enrollment.RequestedTime == nil {
		// A second decision on an already-settled request finds no pending
		// state, so it reports not-found rather than failing the first one.
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending reschedule for this enrollment")
	}

	if req.Decision == "reject" {
		if err := s.enrollments.ClearPendingChange(ctx, enrollment.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject reschedule")
		}
		s.metrics.RecordRescheduleDecision("reject")
		return &RescheduleDecisionResult{EnrollmentID: enrollment.ID, Decision: "reject"}, nil
	}

	session, err := s.sessions.FindByID(ctx, enrollment.SessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	day := *enrollment.RequestedDay
	startTime := *enrollment.RequestedTime
	endTime, err := s.catalog.EndTimeFor(startTime)
	if err != nil {
		return nil, err
	}

	var newSessionID string
	err = s.runner.WithSlotLock(ctx, day, startTime, func(tx *sqlx.Tx) error {
		busy, err := s.sessions.MentorBusyTx(ctx, tx, session.MentorID, day, startTime, session.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check mentor occupancy")
		}
		if busy {
			return appErrors.ErrMentorConflict
		}

		busy, err = s.enrollments.StudentBusyTx(ctx, tx, enrollment.StudentID, day, startTime, enrollment.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student occupancy")
		}
		if busy {
			return appErrors.ErrStudentConflict
		}

		inUse, err := s.sessions.RoomsInUseTx(ctx, tx, day, startTime, session.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room occupancy")
		}
		room, ok := firstFreeRoom(s.catalog.Rooms(), inUse)
		if !ok {
			return appErrors.ErrNoRoomAvailable
		}

		newSession := models.Session{
			CourseID:  session.CourseID,
			MentorID:  session.MentorID,
			DayOfWeek: day,
			StartTime: startTime,
			EndTime:   endTime,
			Room:      room,
			Status:    models.SessionStatusActive,
		}
		if err := s.sessions.CreateTx(ctx, tx, &newSession); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create target session")
		}

		if err := s.enrollments.RepointTx(ctx, tx, enrollment.ID, newSession.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move enrollment")
		}

		remaining, err := s.sessions.CountEnrollmentsTx(ctx, tx, session.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count remaining enrollments")
		}
		if remaining == 0 {
			if err := s.sessions.UpdateStatusTx(ctx, tx, session.ID, models.SessionStatusCancelled); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel vacated session")
			}
		}

		newSessionID = newSession.ID
		return nil
	})
	if err != nil {
		if isSlotConflict(err) {
			// The target slot was taken while the request sat in the queue.
			// Revert to ENROLLED so the student can propose a different slot.
			if revertErr := s.enrollments.ClearPendingChange(ctx, enrollment.ID); revertErr != nil {
				s.logger.Error("failed to revert enrollment after approve conflict",
					zap.String("enrollment_id", enrollment.ID), zap.Error(revertErr))
			}
			s.metrics.RecordRescheduleDecision("approve_conflict")
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "availability:*"); err != nil {
			s.logger.Warn("availability invalidation failed after reschedule", zap.Error(err))
		}
	}

	s.metrics.RecordRescheduleDecision("approve")
	s.logger.Info("reschedule approved",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("old_session_id", session.ID),
		zap.String("new_session_id", newSessionID),
	)
	return &RescheduleDecisionResult{EnrollmentID: enrollment.ID, Decision: "approve", NewSessionID: newSessionID}, nil
}

// firstFreeRoom returns the first room of pool not present in inUse.
func firstFreeRoom(pool, inUse []string) (string, bool) {
	used := make(map[string]struct{}, len(inUse))
	for _, room := range inUse {
		used[room] = struct{}{}
	}
	for _, room := range pool {
		if _, taken := used[room]; !taken {
			return room, true
		}
	}
	return "", false
}

func isSlotConflict(err error) bool {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case appErrors.ErrMentorConflict.Code, appErrors.ErrStudentConflict.Code, appErrors.ErrNoRoomAvailable.Code:
		return true
	}
	return false
}
