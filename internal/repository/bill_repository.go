package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harmonics-id/music-school-api/internal/models"
)

// BillRepository handles persistence of bills.
type BillRepository struct {
	db *sqlx.DB
}

// NewBillRepository constructs the repository.
func NewBillRepository(db *sqlx.DB) *BillRepository {
	return &BillRepository{db: db}
}

const billColumns = `id, enrollment_id, student_id, description, amount, due_date, status, paid_at, created_at, updated_at`

// List returns bills filtered by student and status.
func (r *BillRepository) List(ctx context.Context, filter models.BillFilter) ([]models.Bill, int, error) {
	base := "FROM bills WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY due_date ASC LIMIT %d OFFSET %d", billColumns, base, size, offset)
	var bills []models.Bill
	if err := r.db.SelectContext(ctx, &bills, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bills: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bills: %w", err)
	}
	return bills, total, nil
}

// FindByID loads a bill by id.
func (r *BillRepository) FindByID(ctx context.Context, id string) (*models.Bill, error) {
	query := fmt.Sprintf(`SELECT %s FROM bills WHERE id = $1`, billColumns)
	var bill models.Bill
	if err := r.db.GetContext(ctx, &bill, query, id); err != nil {
		return nil, err
	}
	return &bill, nil
}

// CreateTx stores a new bill using an existing transaction.
func (r *BillRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, bill *models.Bill) error {
	if bill.ID == "" {
		bill.ID = uuid.NewString()
	}
	if bill.Status == "" {
		bill.Status = models.BillStatusUnpaid
	}
	now := time.Now().UTC()
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = now
	}
	bill.UpdatedAt = now

	const query = `INSERT INTO bills (id, enrollment_id, student_id, description, amount, due_date, status, paid_at, created_at, updated_at)
        VALUES (:id, :enrollment_id, :student_id, :description, :amount, :due_date, :status, :paid_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, bill); err != nil {
		return fmt.Errorf("create bill: %w", err)
	}
	return nil
}

// MarkPaid records payment of a bill.
func (r *BillRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	const query = `UPDATE bills SET status = $1, paid_at = $2, updated_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, models.BillStatusPaid, paidAt, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark bill paid: %w", err)
	}
	return nil
}

// CountUnpaid counts bills awaiting payment.
func (r *BillRepository) CountUnpaid(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM bills WHERE status = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.BillStatusUnpaid); err != nil {
		return 0, fmt.Errorf("count unpaid bills: %w", err)
	}
	return count, nil
}
