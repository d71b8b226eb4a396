package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/harmonics-id/music-school-api/internal/models"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
)

type dashboardSessionReader interface {
	CountActive(ctx context.Context) (int, error)
	ListOccupancy(ctx context.Context) ([]models.SlotOccupancy, error)
}

type dashboardEnrollmentReader interface {
	CountPending(ctx context.Context) (int, error)
}

type dashboardBillReader interface {
	CountUnpaid(ctx context.Context) (int, error)
}

type dashboardStudentReader interface {
	CountActive(ctx context.Context) (int, error)
}

// DashboardService aggregates headline numbers for the admin portal.
type DashboardService struct {
	sessions    dashboardSessionReader
	enrollments dashboardEnrollmentReader
	bills       dashboardBillReader
	students    dashboardStudentReader
	catalog     *SlotCatalog
	cache       *CacheService
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewDashboardService instantiates DashboardService.
func NewDashboardService(
	sessions dashboardSessionReader,
	enrollments dashboardEnrollmentReader,
	bills dashboardBillReader,
	students dashboardStudentReader,
	catalog *SlotCatalog,
	cache *CacheService,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		sessions:    sessions,
		enrollments: enrollments,
		bills:       bills,
		students:    students,
		catalog:     catalog,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// Summary computes the dashboard counters and per-day room utilisation.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	const cacheKey = "dashboard:summary"
	if s.cache.Enabled() {
		var cached models.DashboardSummary
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	activeSessions, err := s.sessions.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active sessions")
	}
	pending, err := s.enrollments.CountPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending reschedules")
	}
	unpaid, err := s.bills.CountUnpaid(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unpaid bills")
	}
	students, err := s.students.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active students")
	}

	occupancy, err := s.sessions.ListOccupancy(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot occupancy")
	}

	occupiedByDay := make(map[string]int)
	for _, occ := range occupancy {
		occupiedByDay[occ.DayOfWeek]++
	}

	capacityPerDay := len(s.catalog.TimeSlots()) * s.catalog.RoomCount()
	utilisation := make([]models.DayRoomUtilisation, 0, len(s.catalog.Days()))
	for _, day := range s.catalog.Days() {
		occupied := occupiedByDay[day]
		ratio := 0.0
		if capacityPerDay > 0 {
			ratio = float64(occupied) / float64(capacityPerDay)
		}
		utilisation = append(utilisation, models.DayRoomUtilisation{
			Day:      day,
			Occupied: occupied,
			Capacity: capacityPerDay,
			Ratio:    ratio,
		})
	}

	summary := &models.DashboardSummary{
		ActiveSessions:     activeSessions,
		PendingReschedules: pending,
		UnpaidBills:        unpaid,
		ActiveStudents:     students,
		RoomUtilisation:    utilisation,
		GeneratedAt:        time.Now().UTC(),
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}
