package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harmonics-id/music-school-api/internal/models"
)

// SessionEnrollmentRepository handles persistence of the student-to-session
// bindings, including the inline reschedule request state.
type SessionEnrollmentRepository struct {
	db *sqlx.DB
}

// NewSessionEnrollmentRepository constructs the repository.
func NewSessionEnrollmentRepository(db *sqlx.DB) *SessionEnrollmentRepository {
	return &SessionEnrollmentRepository{db: db}
}

const sessionEnrollmentColumns = `id, session_id, student_id, status, requested_day, requested_time, created_at, updated_at`

// FindByID returns a session enrollment by its ID.
func (r *SessionEnrollmentRepository) FindByID(ctx context.Context, id string) (*models.SessionEnrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_enrollments WHERE id = $1`, sessionEnrollmentColumns)
	var enrollment models.SessionEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByStudentCourse returns the enrollment binding the student to an
// active session of the given course.
func (r *SessionEnrollmentRepository) FindByStudentCourse(ctx context.Context, studentID, courseID string) (*models.SessionEnrollment, error) {
	const query = `SELECT se.id, se.session_id, se.student_id, se.status, se.requested_day, se.requested_time, se.created_at, se.updated_at
        FROM session_enrollments se
        JOIN sessions s ON s.id = se.session_id
        WHERE se.student_id = $1 AND s.course_id = $2 AND s.status = $3`
	var enrollment models.SessionEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID, models.SessionStatusActive); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindBySessionAndStudent returns the enrollment binding a student to a session.
func (r *SessionEnrollmentRepository) FindBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*models.SessionEnrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_enrollments WHERE session_id = $1 AND student_id = $2`, sessionEnrollmentColumns)
	var enrollment models.SessionEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, sessionID, studentID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// StudentBusy reports whether the student holds any other enrollment whose
// active session occupies the given slot, regardless of course.
func (r *SessionEnrollmentRepository) StudentBusy(ctx context.Context, studentID, day, startTime, excludeEnrollmentID string) (bool, error) {
	return r.studentBusy(ctx, r.db, studentID, day, startTime, excludeEnrollmentID)
}

// StudentBusyTx is StudentBusy inside an existing transaction.
func (r *SessionEnrollmentRepository) StudentBusyTx(ctx context.Context, tx *sqlx.Tx, studentID, day, startTime, excludeEnrollmentID string) (bool, error) {
	return r.studentBusy(ctx, tx, studentID, day, startTime, excludeEnrollmentID)
}

func (r *SessionEnrollmentRepository) studentBusy(ctx context.Context, q sqlx.QueryerContext, studentID, day, startTime, excludeEnrollmentID string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM session_enrollments se
        JOIN sessions s ON s.id = se.session_id
        WHERE se.student_id = $1 AND s.status = $2 AND s.day_of_week = $3 AND s.start_time = $4
          AND ($5 = '' OR se.id::text <> $5))`
	var busy bool
	if err := sqlx.GetContext(ctx, q, &busy, query, studentID, models.SessionStatusActive, day, startTime, excludeEnrollmentID); err != nil {
		return false, fmt.Errorf("check student conflict: %w", err)
	}
	return busy, nil
}

// ListBySession returns the enrollments attached to a session.
func (r *SessionEnrollmentRepository) ListBySession(ctx context.Context, sessionID string) ([]models.SessionEnrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_enrollments WHERE session_id = $1`, sessionEnrollmentColumns)
	var enrollments []models.SessionEnrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session enrollments: %w", err)
	}
	return enrollments, nil
}

// ListStudentSchedule returns the student's current weekly timetable.
func (r *SessionEnrollmentRepository) ListStudentSchedule(ctx context.Context, studentID string) ([]models.SessionDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM session_enrollments se
JOIN sessions s ON s.id = se.session_id
LEFT JOIN courses c ON c.id = s.course_id
LEFT JOIN mentors m ON m.id = s.mentor_id
WHERE se.student_id = $1 AND s.status = $2
ORDER BY s.day_of_week ASC, s.start_time ASC`, sessionDetailColumns)
	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, studentID, models.SessionStatusActive); err != nil {
		return nil, fmt.Errorf("list student schedule: %w", err)
	}
	return sessions, nil
}

// ListPending returns the admin approval queue of outstanding reschedule
// requests with student, course, mentor, and slot context.
func (r *SessionEnrollmentRepository) ListPending(ctx context.Context) ([]models.PendingReschedule, error) {
	const query = `SELECT se.id AS enrollment_id, se.session_id, se.student_id,
        st.full_name AS student_name, s.course_id, c.title AS course_title,
        s.mentor_id, m.full_name AS mentor_name,
        s.day_of_week AS current_day, s.start_time AS current_time, s.room AS current_room,
        se.requested_day, se.requested_time
        FROM session_enrollments se
        JOIN sessions s ON s.id = se.session_id
        LEFT JOIN students st ON st.id = se.student_id
        LEFT JOIN courses c ON c.id = s.course_id
        LEFT JOIN mentors m ON m.id = s.mentor_id
        WHERE se.status = $1
        ORDER BY se.updated_at ASC`
	var pending []models.PendingReschedule
	if err := r.db.SelectContext(ctx, &pending, query, models.SessionEnrollmentStatusPendingChange); err != nil {
		return nil, fmt.Errorf("list pending reschedules: %w", err)
	}
	return pending, nil
}

// CountPending counts outstanding reschedule requests.
func (r *SessionEnrollmentRepository) CountPending(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM session_enrollments WHERE status = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.SessionEnrollmentStatusPendingChange); err != nil {
		return 0, fmt.Errorf("count pending reschedules: %w", err)
	}
	return count, nil
}

// Create stores a new session enrollment.
func (r *SessionEnrollmentRepository) Create(ctx context.Context, enrollment *models.SessionEnrollment) error {
	return r.create(ctx, r.db, enrollment)
}

// CreateTx stores a new session enrollment using an existing transaction.
func (r *SessionEnrollmentRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.SessionEnrollment) error {
	return r.create(ctx, tx, enrollment)
}

func (r *SessionEnrollmentRepository) create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.SessionEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.SessionEnrollmentStatusEnrolled
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now

	const query = `INSERT INTO session_enrollments (id, session_id, student_id, status, requested_day, requested_time, created_at, updated_at)
        VALUES (:id, :session_id, :student_id, :status, :requested_day, :requested_time, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, enrollment); err != nil {
		return fmt.Errorf("create session enrollment: %w", err)
	}
	return nil
}

// SetPendingChange records a reschedule request inline on the enrollment.
func (r *SessionEnrollmentRepository) SetPendingChange(ctx context.Context, id, requestedDay, requestedTime string) error {
	const query = `UPDATE session_enrollments SET status = $1, requested_day = $2, requested_time = $3, updated_at = $4 WHERE id = $5`
	if _, err := r.db.ExecContext(ctx, query, models.SessionEnrollmentStatusPendingChange, requestedDay, requestedTime, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set pending change: %w", err)
	}
	return nil
}

// ClearPendingChange reverts the enrollment to the enrolled state, dropping
// the requested slot.
func (r *SessionEnrollmentRepository) ClearPendingChange(ctx context.Context, id string) error {
	return r.clearPendingChange(ctx, r.db, id)
}

// ClearPendingChangeTx is ClearPendingChange inside an existing transaction.
func (r *SessionEnrollmentRepository) ClearPendingChangeTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	return r.clearPendingChange(ctx, tx, id)
}

func (r *SessionEnrollmentRepository) clearPendingChange(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `UPDATE session_enrollments SET status = $1, requested_day = NULL, requested_time = NULL, updated_at = $2 WHERE id = $3`
	if _, err := exec.ExecContext(ctx, query, models.SessionEnrollmentStatusEnrolled, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("clear pending change: %w", err)
	}
	return nil
}

// RepointTx moves the enrollment to a new session and clears the request,
// all inside the approval transaction. The enrollment must still be in the
// pending-change state; a concurrent decision that already settled it makes
// the update match zero rows.
func (r *SessionEnrollmentRepository) RepointTx(ctx context.Context, tx *sqlx.Tx, id, newSessionID string) error {
	const query = `UPDATE session_enrollments SET session_id = $1, status = $2, requested_day = NULL, requested_time = NULL, updated_at = $3 WHERE id = $4 AND status = $5`
	res, err := tx.ExecContext(ctx, query, newSessionID, models.SessionEnrollmentStatusEnrolled, time.Now().UTC(), id, models.SessionEnrollmentStatusPendingChange)
	if err != nil {
		return fmt.Errorf("repoint session enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repoint session enrollment: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("repoint session enrollment %s: no longer pending", id)
	}
	return nil
}

// DeleteTx removes a session enrollment inside an existing transaction.
func (r *SessionEnrollmentRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	const query = `DELETE FROM session_enrollments WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete session enrollment: %w", err)
	}
	return nil
}
