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

// EnrollmentRepository handles persistence of course enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.status, e.created_at, e.updated_at,
        s.full_name AS student_name, c.title AS course_title
        %s ORDER BY e.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, status, created_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsForStudentCourse reports whether the student already holds a live
// (pending-payment or active) enrollment for the course.
func (r *EnrollmentRepository) ExistsForStudentCourse(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status IN ($3, $4))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, models.EnrollmentStatusPendingPayment, models.EnrollmentStatusActive); err != nil {
		return false, fmt.Errorf("check existing enrollment: %w", err)
	}
	return exists, nil
}

// CreateTx stores a new enrollment using an existing transaction.
func (r *EnrollmentRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPendingPayment
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now

	const query = `INSERT INTO enrollments (id, student_id, course_id, status, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus transitions an enrollment's lifecycle state.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}
