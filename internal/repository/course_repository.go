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

// CourseRepository handles persistence of courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseDetailColumns = `c.id, c.title, c.description, c.mentor_id, c.fee, c.active, c.created_at, c.updated_at, m.full_name AS mentor_name`

// List returns courses with optional filtering and pagination.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := `FROM courses c LEFT JOIN mentors m ON m.id = c.mentor_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("c.title ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.MentorID != "" {
		conditions = append(conditions, fmt.Sprintf("c.mentor_id = $%d", len(args)+1))
		args = append(args, filter.MentorID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("c.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"title":      "c.title",
		"fee":        "c.fee",
		"created_at": "c.created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "title"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "c.title"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", courseDetailColumns, base, orderBy, order, size, offset)
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID loads a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, description, mentor_id, fee, active, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindDetailByID loads a course with its mentor display name.
func (r *CourseRepository) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c LEFT JOIN mentors m ON m.id = c.mentor_id WHERE c.id = $1`, courseDetailColumns)
	var course models.CourseDetail
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create stores a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, title, description, mentor_id, fee, active, created_at, updated_at)
        VALUES (:id, :title, :description, :mentor_id, :fee, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies a course record.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, mentor_id = :mentor_id, fee = :fee, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a course.
func (r *CourseRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE courses SET active = FALSE, updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("deactivate course: %w", err)
	}
	return nil
}
