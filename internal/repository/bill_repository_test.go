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

func newBillMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBillRepositoryListByStudentAndStatus(t *testing.T) {
	db, mock, cleanup := newBillMock(t)
	defer cleanup()
	repo := NewBillRepository(db)

	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "student_id", "description", "amount", "due_date", "status", "paid_at", "created_at", "updated_at"}).
		AddRow("bill-1", "enr-1", "stud-1", "Registration fee for Piano Basics", int64(500000), time.Now(), "UNPAID", nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, enrollment_id, student_id, .+ FROM bills WHERE 1=1 AND student_id = \\$1 AND status = \\$2").
		WithArgs("stud-1", models.BillStatusUnpaid).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bills WHERE 1=1 AND student_id = \$1 AND status = \$2`).
		WithArgs("stud-1", models.BillStatusUnpaid).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	bills, total, err := repo.List(context.Background(), models.BillFilter{StudentID: "stud-1", Status: models.BillStatusUnpaid})
	require.NoError(t, err)
	assert.Len(t, bills, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, int64(500000), bills[0].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newBillMock(t)
	defer cleanup()
	repo := NewBillRepository(db)

	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "student_id", "description", "amount", "due_date", "status", "paid_at", "created_at", "updated_at"}).
		AddRow("bill-1", "enr-1", "stud-1", "Registration fee for Piano Basics", int64(500000), time.Now(), "UNPAID", nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, enrollment_id, student_id, .+ FROM bills WHERE id = \\$1").
		WithArgs("bill-1").
		WillReturnRows(rows)

	bill, err := repo.FindByID(context.Background(), "bill-1")
	require.NoError(t, err)
	assert.Equal(t, "stud-1", bill.StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillRepositoryCreateTx(t *testing.T) {
	db, mock, cleanup := newBillMock(t)
	defer cleanup()
	repo := NewBillRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bills").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	bill := models.Bill{EnrollmentID: "enr-1", StudentID: "stud-1", Description: "Registration fee", Amount: 250000, DueDate: time.Now().Add(7 * 24 * time.Hour)}
	require.NoError(t, repo.CreateTx(context.Background(), tx, &bill))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, bill.ID)
	assert.Equal(t, models.BillStatusUnpaid, bill.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillRepositoryMarkPaid(t *testing.T) {
	db, mock, cleanup := newBillMock(t)
	defer cleanup()
	repo := NewBillRepository(db)

	paidAt := time.Now().UTC()
	mock.ExpectExec("UPDATE bills SET status = \\$1, paid_at = \\$2").
		WithArgs(models.BillStatusPaid, paidAt, sqlmock.AnyArg(), "bill-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkPaid(context.Background(), "bill-1", paidAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillRepositoryCountUnpaid(t *testing.T) {
	db, mock, cleanup := newBillMock(t)
	defer cleanup()
	repo := NewBillRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bills WHERE status = \$1`).
		WithArgs(models.BillStatusUnpaid).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountUnpaid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
