package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/harmonics-id/music-school-api/internal/models"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
)

type billRepository interface {
	List(ctx context.Context, filter models.BillFilter) ([]models.Bill, int, error)
	FindByID(ctx context.Context, id string) (*models.Bill, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time) error
}

type billEnrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

// BillService manages invoices. Settling the registration bill activates the
// enrollment it belongs to.
type BillService struct {
	repo        billRepository
	enrollments billEnrollmentStore
	logger      *zap.Logger
}

// NewBillService instantiates BillService.
func NewBillService(repo billRepository, enrollments billEnrollmentStore, logger *zap.Logger) *BillService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillService{repo: repo, enrollments: enrollments, logger: logger}
}

// List returns bills with pagination metadata.
func (s *BillService) List(ctx context.Context, filter models.BillFilter) ([]models.Bill, *models.Pagination, error) {
	bills, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bills")
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
	return bills, pagination, nil
}

// Get returns one bill by id.
func (s *BillService) Get(ctx context.Context, id string) (*models.Bill, error) {
	bill, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bill not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bill")
	}
	return bill, nil
}

// MarkPaid settles a bill. A pending-payment enrollment becomes ACTIVE once
// its registration bill is paid.
func (s *BillService) MarkPaid(ctx context.Context, id string) (*models.Bill, error) {
	bill, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.Status == models.BillStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "bill is already paid")
	}

	paidAt := time.Now().UTC()
	if err := s.repo.MarkPaid(ctx, id, paidAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark bill paid")
	}

	enrollment, err := s.enrollments.FindByID(ctx, bill.EnrollmentID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to load enrollment after payment", zap.String("bill_id", id), zap.Error(err))
		}
	} else if enrollment.Status == models.EnrollmentStatusPendingPayment {
		if err := s.enrollments.UpdateStatus(ctx, enrollment.ID, models.EnrollmentStatusActive); err != nil {
			s.logger.Error("failed to activate enrollment after payment",
				zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		}
	}

	bill.Status = models.BillStatusPaid
	bill.PaidAt = &paidAt
	return bill, nil
}
