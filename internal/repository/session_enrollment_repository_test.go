package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonics-id/music-school-api/internal/models"
)

func newSessionEnrollmentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSessionEnrollmentRepositoryFindByStudentCourse(t *testing.T) {
	db, mock, cleanup := newSessionEnrollmentMock(t)
	defer cleanup()
	repo := NewSessionEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "session_id", "student_id", "status", "requested_day", "requested_time", "created_at", "updated_at"}).
		AddRow("se-1", "sess-1", "stud-1", "ENROLLED", nil, nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT se.id, se.session_id, .+ JOIN sessions s ON s.id = se.session_id").
		WithArgs("stud-1", "course-1", models.SessionStatusActive).
		WillReturnRows(rows)

	enrollment, err := repo.FindByStudentCourse(context.Background(), "stud-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, "se-1", enrollment.ID)
	assert.Equal(t, "sess-1", enrollment.SessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionEnrollmentRepositoryRepointTx(t *testing.T) {
	db, mock, cleanup := newSessionEnrollmentMock(t)
	defer cleanup()
	repo := NewSessionEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE session_enrollments SET session_id = \$1, status = \$2, requested_day = NULL, requested_time = NULL, updated_at = \$3 WHERE id = \$4 AND status = \$5`).
		WithArgs("sess-2", models.SessionEnrollmentStatusEnrolled, sqlmock.AnyArg(), "se-1", models.SessionEnrollmentStatusPendingChange).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.RepointTx(context.Background(), tx, "se-1", "sess-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionEnrollmentRepositoryRepointTxNoLongerPending(t *testing.T) {
	db, mock, cleanup := newSessionEnrollmentMock(t)
	defer cleanup()
	repo := NewSessionEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE session_enrollments SET session_id = \$1, status = \$2`).
		WithArgs("sess-2", models.SessionEnrollmentStatusEnrolled, sqlmock.AnyArg(), "se-1", models.SessionEnrollmentStatusPendingChange).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := db.Beginx()
	require.NoError(t, err)
	err = repo.RepointTx(context.Background(), tx, "se-1", "sess-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer pending")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionEnrollmentRepositoryDeleteTx(t *testing.T) {
	db, mock, cleanup := newSessionEnrollmentMock(t)
	defer cleanup()
	repo := NewSessionEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM session_enrollments WHERE id = \$1`).
		WithArgs("se-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.DeleteTx(context.Background(), tx, "se-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
