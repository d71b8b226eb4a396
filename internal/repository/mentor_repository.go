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

// MentorRepository handles persistence of mentors.
type MentorRepository struct {
	db *sqlx.DB
}

// NewMentorRepository constructs the repository.
func NewMentorRepository(db *sqlx.DB) *MentorRepository {
	return &MentorRepository{db: db}
}

const mentorColumns = `id, full_name, email, phone, instrument, active, created_at, updated_at`

// List returns mentors with optional filtering and pagination.
func (r *MentorRepository) List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, int, error) {
	base := "FROM mentors WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR instrument ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY full_name ASC LIMIT %d OFFSET %d", mentorColumns, base, size, offset)
	var mentors []models.Mentor
	if err := r.db.SelectContext(ctx, &mentors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list mentors: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count mentors: %w", err)
	}
	return mentors, total, nil
}

// FindByID loads a mentor by id.
func (r *MentorRepository) FindByID(ctx context.Context, id string) (*models.Mentor, error) {
	query := fmt.Sprintf(`SELECT %s FROM mentors WHERE id = $1`, mentorColumns)
	var mentor models.Mentor
	if err := r.db.GetContext(ctx, &mentor, query, id); err != nil {
		return nil, err
	}
	return &mentor, nil
}

// FindByEmail loads a mentor by email.
func (r *MentorRepository) FindByEmail(ctx context.Context, email string) (*models.Mentor, error) {
	query := fmt.Sprintf(`SELECT %s FROM mentors WHERE LOWER(email) = LOWER($1)`, mentorColumns)
	var mentor models.Mentor
	if err := r.db.GetContext(ctx, &mentor, query, email); err != nil {
		return nil, err
	}
	return &mentor, nil
}

// Create stores a new mentor record.
func (r *MentorRepository) Create(ctx context.Context, mentor *models.Mentor) error {
	if mentor.ID == "" {
		mentor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if mentor.CreatedAt.IsZero() {
		mentor.CreatedAt = now
	}
	mentor.UpdatedAt = now

	const query = `INSERT INTO mentors (id, full_name, email, phone, instrument, active, created_at, updated_at)
        VALUES (:id, :full_name, :email, :phone, :instrument, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mentor); err != nil {
		return fmt.Errorf("create mentor: %w", err)
	}
	return nil
}

// Update modifies a mentor record.
func (r *MentorRepository) Update(ctx context.Context, mentor *models.Mentor) error {
	mentor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE mentors SET full_name = :full_name, email = :email, phone = :phone, instrument = :instrument, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, mentor); err != nil {
		return fmt.Errorf("update mentor: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a mentor.
func (r *MentorRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE mentors SET active = FALSE, updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("deactivate mentor: %w", err)
	}
	return nil
}
