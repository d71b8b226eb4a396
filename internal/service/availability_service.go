package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/harmonics-id/music-school-api/internal/dto"
	"github.com/harmonics-id/music-school-api/internal/models"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
)

type availabilityCourseReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type availabilitySessionReader interface {
	ListOccupancy(ctx context.Context) ([]models.SlotOccupancy, error)
}

// AvailabilityService computes the weekly booking grid for a course by
// overlaying the occupancy ledger on the slot catalog.
type AvailabilityService struct {
	courses  availabilityCourseReader
	sessions availabilitySessionReader
	catalog  *SlotCatalog
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewAvailabilityService instantiates AvailabilityService.
func NewAvailabilityService(courses availabilityCourseReader, sessions availabilitySessionReader, catalog *SlotCatalog, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		courses:  courses,
		sessions: sessions,
		catalog:  catalog,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// GetAvailability returns every (day, startTime) cell of the grid with its
// availability for the course. A cell is bookable when the course's mentor is
// free there and the room pool is not exhausted.
func (s *AvailabilityService) GetAvailability(ctx context.Context, courseID string) (*dto.AvailabilityResponse, error) {
	course, err := s.courses.FindDetailByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.MentorID == nil {
		return nil, appErrors.ErrNoMentorAssigned
	}

	cacheKey := "availability:" + courseID
	if s.cache.Enabled() {
		var cached dto.AvailabilityResponse
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	occupancy, err := s.sessions.ListOccupancy(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot occupancy")
	}

	mentorBusy := make(map[string]struct{})
	roomsUsed := make(map[string]map[string]struct{})
	for _, occ := range occupancy {
		key := occ.DayOfWeek + "|" + occ.StartTime
		if occ.MentorID == *course.MentorID {
			mentorBusy[key] = struct{}{}
		}
		if roomsUsed[key] == nil {
			roomsUsed[key] = make(map[string]struct{})
		}
		roomsUsed[key][occ.Room] = struct{}{}
	}

	mentorName := ""
	if course.MentorName != nil {
		mentorName = *course.MentorName
	}

	resp := &dto.AvailabilityResponse{
		Course: dto.AvailabilityCourse{
			ID:         course.ID,
			Title:      course.Title,
			Fee:        course.Fee,
			MentorName: mentorName,
		},
		Slots: make([]dto.AvailabilitySlot, 0, len(s.catalog.Days())*len(s.catalog.TimeSlots())),
	}

	for _, day := range s.catalog.Days() {
		for _, slot := range s.catalog.TimeSlots() {
			key := day + "|" + slot.StartTime
			_, busy := mentorBusy[key]
			available := !busy && len(roomsUsed[key]) < s.catalog.RoomCount()
			resp.Slots = append(resp.Slots, dto.AvailabilitySlot{
				Day:         day,
				StartTime:   slot.StartTime,
				EndTime:     slot.EndTime,
				IsAvailable: available,
				MentorName:  mentorName,
			})
		}
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, resp, s.cacheTTL); err != nil {
			s.logger.Warn("availability cache write failed", zap.String("course_id", courseID), zap.Error(err))
		}
	}

	return resp, nil
}
