package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/harmonics-id/music-school-api/internal/models"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Deactivate(ctx context.Context, id string) error
}

type courseMentorReader interface {
	FindByID(ctx context.Context, id string) (*models.Mentor, error)
}

// CreateCourseRequest describes payload for creating a course.
type CreateCourseRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	MentorID    *string `json:"mentor_id"`
	Fee         int64   `json:"fee" validate:"required,gt=0"`
}

// UpdateCourseRequest updates an existing course.
type UpdateCourseRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	MentorID    *string `json:"mentor_id"`
	Fee         int64   `json:"fee" validate:"required,gt=0"`
	Active      *bool   `json:"active"`
}

// CourseService manages the course catalogue.
type CourseService struct {
	repo      courseRepository
	mentors   courseMentorReader
	cache     availabilityInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService instantiates CourseService.
func NewCourseService(repo courseRepository, mentors courseMentorReader, cache availabilityInvalidator, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, mentors: mentors, cache: cache, validator: validate, logger: logger}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
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
	return courses, pagination, nil
}

// Get returns one course with mentor info.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create inserts a new course.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	if err := s.ensureMentorExists(ctx, req.MentorID); err != nil {
		return nil, err
	}

	course := models.Course{
		Title:       req.Title,
		Description: req.Description,
		MentorID:    req.MentorID,
		Fee:         req.Fee,
		Active:      true,
	}
	if err := s.repo.Create(ctx, &course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return &course, nil
}

// Update modifies an existing course. Mentor changes invalidate availability
// grids since they shift occupancy.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if err := s.ensureMentorExists(ctx, req.MentorID); err != nil {
		return nil, err
	}

	updated := models.Course{
		ID:          existing.ID,
		Title:       req.Title,
		Description: req.Description,
		MentorID:    req.MentorID,
		Fee:         req.Fee,
		Active:      existing.Active,
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "availability:"+id); err != nil {
			s.logger.Warn("availability invalidation failed after course update", zap.Error(err))
		}
	}
	return &updated, nil
}

// Deactivate closes a course for new bookings. Existing sessions keep
// running.
func (s *CourseService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate course")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, "availability:"+id); err != nil {
			s.logger.Warn("availability invalidation failed after course deactivation", zap.Error(err))
		}
	}
	return nil
}

func (s *CourseService) ensureMentorExists(ctx context.Context, mentorID *string) error {
	if mentorID == nil {
		return nil
	}
	if _, err := s.mentors.FindByID(ctx, *mentorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "mentor does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	return nil
}
