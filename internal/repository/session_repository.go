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

// SessionRepository provides persistence for scheduled sessions and the
// mentor/room occupancy ledger derived from them.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionDetailColumns = `s.id, s.course_id, s.mentor_id, s.day_of_week, s.start_time, s.end_time, s.room, s.status, s.created_at, s.updated_at,
        c.title AS course_title, m.full_name AS mentor_name`

// List returns sessions with optional filtering and pagination.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	base := `FROM sessions s
LEFT JOIN courses c ON c.id = s.course_id
LEFT JOIN mentors m ON m.id = s.mentor_id
WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("s.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.MentorID != "" {
		conditions = append(conditions, fmt.Sprintf("s.mentor_id = $%d", len(args)+1))
		args = append(args, filter.MentorID)
	}
	if filter.DayOfWeek != "" {
		conditions = append(conditions, fmt.Sprintf("s.day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
	}
	if filter.StartTime != "" {
		conditions = append(conditions, fmt.Sprintf("s.start_time = $%d", len(args)+1))
		args = append(args, filter.StartTime)
	}
	if filter.Room != "" {
		conditions = append(conditions, fmt.Sprintf("s.room = $%d", len(args)+1))
		args = append(args, filter.Room)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"day_of_week": "s.day_of_week",
		"start_time":  "s.start_time",
		"room":        "s.room",
		"created_at":  "s.created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "day_of_week"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "s.day_of_week"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, s.start_time ASC LIMIT %d OFFSET %d", sessionDetailColumns, base, orderBy, order, size, offset)
	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	return sessions, total, nil
}

// FindByID loads a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT id, course_id, mentor_id, day_of_week, start_time, end_time, room, status, created_at, updated_at FROM sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByMentor returns a mentor's sessions ordered by day/time.
func (r *SessionRepository) ListByMentor(ctx context.Context, mentorID string) ([]models.SessionDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions s
LEFT JOIN courses c ON c.id = s.course_id
LEFT JOIN mentors m ON m.id = s.mentor_id
WHERE s.mentor_id = $1 AND s.status = $2
ORDER BY s.day_of_week ASC, s.start_time ASC`, sessionDetailColumns)
	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, mentorID, models.SessionStatusActive); err != nil {
		return nil, fmt.Errorf("list sessions by mentor: %w", err)
	}
	return sessions, nil
}

// ListOccupancy returns the full occupancy ledger: every active session that
// still has a student attached, with the mentor and room it consumes.
func (r *SessionRepository) ListOccupancy(ctx context.Context) ([]models.SlotOccupancy, error) {
	const query = `SELECT DISTINCT s.id AS session_id, s.mentor_id, s.day_of_week, s.start_time, s.room
FROM sessions s
JOIN session_enrollments se ON se.session_id = s.id
WHERE s.status = $1`
	var occupancy []models.SlotOccupancy
	if err := r.db.SelectContext(ctx, &occupancy, query, models.SessionStatusActive); err != nil {
		return nil, fmt.Errorf("list slot occupancy: %w", err)
	}
	return occupancy, nil
}

// MentorBusy reports whether the mentor already holds an occupied session at
// the slot. excludeID skips one session (used when editing it in place).
func (r *SessionRepository) MentorBusy(ctx context.Context, mentorID, day, startTime, excludeID string) (bool, error) {
	return r.mentorBusy(ctx, r.db, mentorID, day, startTime, excludeID)
}

// MentorBusyTx is MentorBusy inside an existing transaction.
func (r *SessionRepository) MentorBusyTx(ctx context.Context, tx *sqlx.Tx, mentorID, day, startTime, excludeID string) (bool, error) {
	return r.mentorBusy(ctx, tx, mentorID, day, startTime, excludeID)
}

func (r *SessionRepository) mentorBusy(ctx context.Context, q sqlx.QueryerContext, mentorID, day, startTime, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM sessions s
        JOIN session_enrollments se ON se.session_id = s.id
        WHERE s.status = $1 AND s.mentor_id = $2 AND s.day_of_week = $3 AND s.start_time = $4
          AND ($5 = '' OR s.id::text <> $5))`
	var busy bool
	if err := sqlx.GetContext(ctx, q, &busy, query, models.SessionStatusActive, mentorID, day, startTime, excludeID); err != nil {
		return false, fmt.Errorf("check mentor conflict: %w", err)
	}
	return busy, nil
}

// RoomsInUse returns the distinct rooms consumed by occupied sessions at the
// slot, school-wide. Together with the catalog pool it yields the free rooms.
func (r *SessionRepository) RoomsInUse(ctx context.Context, day, startTime, excludeID string) ([]string, error) {
	return r.roomsInUse(ctx, r.db, day, startTime, excludeID)
}

// RoomsInUseTx is RoomsInUse inside an existing transaction.
func (r *SessionRepository) RoomsInUseTx(ctx context.Context, tx *sqlx.Tx, day, startTime, excludeID string) ([]string, error) {
	return r.roomsInUse(ctx, tx, day, startTime, excludeID)
}

func (r *SessionRepository) roomsInUse(ctx context.Context, q sqlx.QueryerContext, day, startTime, excludeID string) ([]string, error) {
	const query = `SELECT DISTINCT s.room FROM sessions s
        JOIN session_enrollments se ON se.session_id = s.id
        WHERE s.status = $1 AND s.day_of_week = $2 AND s.start_time = $3
          AND ($4 = '' OR s.id::text <> $4)`
	var rooms []string
	if err := sqlx.SelectContext(ctx, q, &rooms, query, models.SessionStatusActive, day, startTime, excludeID); err != nil {
		return nil, fmt.Errorf("list rooms in use: %w", err)
	}
	return rooms, nil
}

// CountEnrollmentsTx counts the students still attached to a session.
func (r *SessionRepository) CountEnrollmentsTx(ctx context.Context, tx *sqlx.Tx, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM session_enrollments WHERE session_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, tx, &count, query, sessionID); err != nil {
		return 0, fmt.Errorf("count session enrollments: %w", err)
	}
	return count, nil
}

// Create stores a new session record.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	return r.create(ctx, r.db, session)
}

// CreateTx stores a new session record using an existing transaction.
func (r *SessionRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, session *models.Session) error {
	return r.create(ctx, tx, session)
}

func (r *SessionRepository) create(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = models.SessionStatusActive
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO sessions (id, course_id, mentor_id, day_of_week, start_time, end_time, room, status, created_at, updated_at)
        VALUES (:id, :course_id, :mentor_id, :day_of_week, :start_time, :end_time, :room, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Update modifies a session record.
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	return r.update(ctx, r.db, session)
}

// UpdateTx is Update inside an existing transaction.
func (r *SessionRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, session *models.Session) error {
	return r.update(ctx, tx, session)
}

func (r *SessionRepository) update(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sessions SET day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, room = :room, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// UpdateStatusTx flips a session's status inside an existing transaction.
func (r *SessionRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.SessionStatus) error {
	const query = `UPDATE sessions SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, query, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// Delete hard-deletes a session together with its enrollments. This is the
// admin teardown path; sessions vacated by an approved reschedule are only
// soft-cancelled.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete session: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM session_enrollments WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("delete session enrollments: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}
	return nil
}

// CountActive counts sessions currently marked active.
func (r *SessionRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM sessions WHERE status = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.SessionStatusActive); err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}
