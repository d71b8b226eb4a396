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

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	ListByMentor(ctx context.Context, mentorID string) ([]models.SessionDetail, error)
	MentorBusyTx(ctx context.Context, tx *sqlx.Tx, mentorID, day, startTime, excludeID string) (bool, error)
	RoomsInUseTx(ctx context.Context, tx *sqlx.Tx, day, startTime, excludeID string) ([]string, error)
	UpdateTx(ctx context.Context, tx *sqlx.Tx, session *models.Session) error
	Delete(ctx context.Context, id string) error
}

type sessionEnrollmentReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.SessionEnrollment, error)
	ListStudentSchedule(ctx context.Context, studentID string) ([]models.SessionDetail, error)
	StudentBusyTx(ctx context.Context, tx *sqlx.Tx, studentID, day, startTime, excludeEnrollmentID string) (bool, error)
}

// UpdateSessionRequest moves or re-rooms a session. Omitted fields keep their
// current value.
type UpdateSessionRequest struct {
	Day       *string `json:"day"`
	StartTime *string `json:"start_time"`
	Room      *string `json:"room"`
	Status    *string `json:"status" validate:"omitempty,oneof=ACTIVE CANCELLED COMPLETED"`
}

// SessionService covers admin maintenance of scheduled sessions and schedule
// queries.
type SessionService struct {
	catalog     *SlotCatalog
	sessions    sessionRepository
	enrollments sessionEnrollmentReader
	runner      slotTxRunner
	cache       availabilityInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSessionService instantiates SessionService.
func NewSessionService(
	catalog *SlotCatalog,
	sessions sessionRepository,
	enrollments sessionEnrollmentReader,
	runner slotTxRunner,
	cache availabilityInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		catalog:     catalog,
		sessions:    sessions,
		enrollments: enrollments,
		runner:      runner,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// List returns sessions with pagination metadata.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, *models.Pagination, error) {
	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
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
	return sessions, pagination, nil
}

// Get returns one session by id.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// ListByMentor returns a mentor's weekly teaching schedule.
func (s *SessionService) ListByMentor(ctx context.Context, mentorID string) ([]models.SessionDetail, error) {
	sessions, err := s.sessions.ListByMentor(ctx, mentorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mentor sessions")
	}
	return sessions, nil
}

// ListStudentSchedule returns a student's weekly lesson schedule.
func (s *SessionService) ListStudentSchedule(ctx context.Context, studentID string) ([]models.SessionDetail, error) {
	sessions, err := s.enrollments.ListStudentSchedule(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student schedule")
	}
	return sessions, nil
}

// Update moves a session to a new slot, room, or status. Slot and room moves
// re-run the occupancy checks under the target slot's lock, so an admin edit
// cannot double-book a mentor, a student, or a room.
func (s *SessionService) Update(ctx context.Context, id string, req UpdateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	updated := *session
	if req.Day != nil {
		updated.DayOfWeek = strings.ToUpper(*req.Day)
	}
	if req.StartTime != nil {
		updated.StartTime = *req.StartTime
	}
	if req.Status != nil {
		updated.Status = models.SessionStatus(*req.Status)
	}

	if !s.catalog.ValidSlot(updated.DayOfWeek, updated.StartTime) {
		return nil, appErrors.ErrInvalidScheduleInput
	}
	endTime, err := s.catalog.EndTimeFor(updated.StartTime)
	if err != nil {
		return nil, err
	}
	updated.EndTime = endTime

	roomPinned := false
	if req.Room != nil {
		if !s.roomInPool(*req.Room) {
			return nil, appErrors.Clone(appErrors.ErrInvalidScheduleInput, "room is not part of the room pool")
		}
		updated.Room = *req.Room
		roomPinned = true
	}

	enrollments, err := s.enrollments.ListBySession(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session enrollments")
	}

	err = s.runner.WithSlotLock(ctx, updated.DayOfWeek, updated.StartTime, func(tx *sqlx.Tx) error {
		if updated.Status == models.SessionStatusActive {
			busy, err := s.sessions.MentorBusyTx(ctx, tx, updated.MentorID, updated.DayOfWeek, updated.StartTime, updated.ID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check mentor occupancy")
			}
			if busy {
				return appErrors.ErrMentorConflict
			}

			for _, enrollment := range enrollments {
				busy, err := s.enrollments.StudentBusyTx(ctx, tx, enrollment.StudentID, updated.DayOfWeek, updated.StartTime, enrollment.ID)
				if err != nil {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student occupancy")
				}
				if busy {
					return appErrors.ErrStudentConflict
				}
			}

			inUse, err := s.sessions.RoomsInUseTx(ctx, tx, updated.DayOfWeek, updated.StartTime, updated.ID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room occupancy")
			}
			if roomPinned {
				for _, room := range inUse {
					if room == updated.Room {
						return appErrors.Clone(appErrors.ErrConflict, "room already booked at this slot")
					}
				}
			} else if slotMoved(session, &updated) {
				room, ok := firstFreeRoom(s.catalog.Rooms(), inUse)
				if !ok {
					return appErrors.ErrNoRoomAvailable
				}
				updated.Room = room
			}
		}

		if err := s.sessions.UpdateTx(ctx, tx, &updated); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "availability:*"); err != nil {
			s.logger.Warn("availability invalidation failed after session update", zap.Error(err))
		}
	}
	return &updated, nil
}

// Delete removes a session and its enrollments.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if _, err := s.sessions.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	if err := s.sessions.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "availability:*"); err != nil {
			s.logger.Warn("availability invalidation failed after session delete", zap.Error(err))
		}
	}
	return nil
}

func (s *SessionService) roomInPool(room string) bool {
	for _, candidate := range s.catalog.Rooms() {
		if candidate == room {
			return true
		}
	}
	return false
}

func slotMoved(before, after *models.Session) bool {
	return before.DayOfWeek != after.DayOfWeek || before.StartTime != after.StartTime
}
