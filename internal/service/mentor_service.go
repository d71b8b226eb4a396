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

type mentorRepository interface {
	List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, int, error)
	FindByID(ctx context.Context, id string) (*models.Mentor, error)
	FindByEmail(ctx context.Context, email string) (*models.Mentor, error)
	Create(ctx context.Context, mentor *models.Mentor) error
	Update(ctx context.Context, mentor *models.Mentor) error
	Deactivate(ctx context.Context, id string) error
}

// CreateMentorRequest describes payload for registering a mentor.
type CreateMentorRequest struct {
	FullName   string `json:"full_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone"`
	Instrument string `json:"instrument" validate:"required"`
}

// UpdateMentorRequest updates an existing mentor.
type UpdateMentorRequest struct {
	FullName   string `json:"full_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone"`
	Instrument string `json:"instrument" validate:"required"`
	Active     *bool  `json:"active"`
}

// MentorService manages mentor records.
type MentorService struct {
	repo      mentorRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMentorService instantiates MentorService.
func NewMentorService(repo mentorRepository, validate *validator.Validate, logger *zap.Logger) *MentorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MentorService{repo: repo, validator: validate, logger: logger}
}

// List returns mentors with pagination metadata.
func (s *MentorService) List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, *models.Pagination, error) {
	mentors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mentors")
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
	return mentors, pagination, nil
}

// Get returns one mentor by id.
func (s *MentorService) Get(ctx context.Context, id string) (*models.Mentor, error) {
	mentor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	return mentor, nil
}

// GetByEmail resolves the mentor profile tied to a login email.
func (s *MentorService) GetByEmail(ctx context.Context, email string) (*models.Mentor, error) {
	mentor, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no mentor profile for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	return mentor, nil
}

// Create registers a new mentor.
func (s *MentorService) Create(ctx context.Context, req CreateMentorRequest) (*models.Mentor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mentor payload")
	}

	mentor := models.Mentor{
		FullName:   req.FullName,
		Email:      req.Email,
		Phone:      req.Phone,
		Instrument: req.Instrument,
		Active:     true,
	}
	if err := s.repo.Create(ctx, &mentor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create mentor")
	}
	return &mentor, nil
}

// Update modifies an existing mentor.
func (s *MentorService) Update(ctx context.Context, id string, req UpdateMentorRequest) (*models.Mentor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mentor payload")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}

	updated := models.Mentor{
		ID:         existing.ID,
		FullName:   req.FullName,
		Email:      req.Email,
		Phone:      req.Phone,
		Instrument: req.Instrument,
		Active:     existing.Active,
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mentor")
	}
	return &updated, nil
}

// Deactivate marks a mentor inactive. Their courses stay assigned but stop
// accepting bookings once the course is closed.
func (s *MentorService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "mentor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate mentor")
	}
	return nil
}
