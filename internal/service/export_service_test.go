package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harmonics-id/music-school-api/internal/models"
	"github.com/harmonics-id/music-school-api/pkg/export"
	"github.com/harmonics-id/music-school-api/pkg/storage"
)

type mockExportSessions struct {
	all      []models.SessionDetail
	byMentor map[string][]models.SessionDetail
}

func (m *mockExportSessions) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error) {
	return m.all, len(m.all), nil
}

func (m *mockExportSessions) ListByMentor(ctx context.Context, mentorID string) ([]models.SessionDetail, error) {
	return m.byMentor[mentorID], nil
}

type mockExportBills struct {
	bills []models.Bill
}

func (m *mockExportBills) List(ctx context.Context, filter models.BillFilter) ([]models.Bill, int, error) {
	return m.bills, len(m.bills), nil
}

type memoryStorage struct {
	files map[string][]byte
}

func (m *memoryStorage) Save(filename string, data []byte) (string, error) {
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[filename] = data
	return filename, nil
}

func (m *memoryStorage) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (m *memoryStorage) Delete(filename string) error {
	delete(m.files, filename)
	return nil
}

func (m *memoryStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

type capturingCSV struct {
	table export.Table
}

func (c *capturingCSV) Render(data export.Table) ([]byte, error) {
	c.table = data
	return []byte("csv-bytes"), nil
}

type capturingPDF struct {
	table export.Table
	title string
}

func (c *capturingPDF) Render(data export.Table, title string) ([]byte, error) {
	c.table = data
	c.title = title
	return []byte("pdf-bytes"), nil
}

func newExportFixture() (*ExportService, *memoryStorage, *capturingCSV, *capturingPDF) {
	sessions := &mockExportSessions{
		all: []models.SessionDetail{
			{
				Session: models.Session{
					ID:        "sess-1",
					DayOfWeek: "MONDAY",
					StartTime: "11:00",
					EndTime:   "11:45",
					Room:      "Studio 1",
					Status:    models.SessionStatusActive,
				},
				CourseTitle: "Piano Basics",
				MentorName:  "Ms. Clara",
			},
		},
		byMentor: map[string][]models.SessionDetail{
			"mentor-1": {
				{
					Session: models.Session{
						ID:        "sess-2",
						DayOfWeek: "TUESDAY",
						StartTime: "14:00",
						EndTime:   "14:45",
						Room:      "Studio 2",
						Status:    models.SessionStatusActive,
					},
					CourseTitle: "Violin Basics",
					MentorName:  "Mr. Theo",
				},
			},
		},
	}
	bills := &mockExportBills{bills: []models.Bill{
		{
			ID:          "bill-1",
			StudentID:   "stud-1",
			Description: "Registration fee for Piano Basics",
			Amount:      500000,
			DueDate:     time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
			Status:      models.BillStatusUnpaid,
		},
	}}
	store := &memoryStorage{}
	csv := &capturingCSV{}
	pdf := &capturingPDF{}
	signer := storage.NewSignedURLSigner("sign-secret", time.Hour)
	svc := NewExportService(sessions, bills, store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop(), csv, pdf)
	return svc, store, csv, pdf
}

func TestExportTimetableCSV(t *testing.T) {
	svc, store, csv, _ := newExportFixture()

	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeTimetable,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, models.ReportFormatCSV, result.Format)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/reports/download/"))
	assert.NotEmpty(t, result.Token)
	assert.False(t, result.ExpiresAt.IsZero())

	require.Len(t, csv.table.Rows, 1)
	assert.Equal(t, []string{"MONDAY", "11:00", "11:45", "Piano Basics", "Ms. Clara", "Studio 1", "ACTIVE"}, csv.table.Rows[0])

	require.Len(t, store.files, 1)
	for name, data := range store.files {
		assert.True(t, strings.HasPrefix(name, "timetable_"))
		assert.True(t, strings.HasSuffix(name, ".csv"))
		assert.Equal(t, []byte("csv-bytes"), data)
	}

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportMentorTimetablePDF(t *testing.T) {
	svc, _, _, pdf := newExportFixture()

	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeTimetable,
		Params: models.ReportJobParams{MentorID: strPtr("mentor-1"), Format: models.ReportFormatPDF},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, models.ReportFormatPDF, result.Format)
	assert.Equal(t, "Mentor Timetable", pdf.title)
	require.Len(t, pdf.table.Rows, 1)
	assert.Equal(t, "Violin Basics", pdf.table.Rows[0][3])
}

func TestExportBillingCSV(t *testing.T) {
	svc, _, csv, _ := newExportFixture()

	job := &models.ReportJob{
		ID:     "job-3",
		Type:   models.ReportTypeBilling,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	_, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, csv.table.Rows, 1)
	assert.Equal(t, []string{"bill-1", "stud-1", "Registration fee for Piano Basics", "500000", "2026-09-15", "UNPAID"}, csv.table.Rows[0])
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc, store, _, _ := newExportFixture()

	job := &models.ReportJob{
		ID:     "job-4",
		Type:   models.ReportTypeTimetable,
		Params: models.ReportJobParams{Format: models.ReportFormat("xlsx")},
	}
	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
	assert.Empty(t, store.files)
}

func TestExportUnsupportedType(t *testing.T) {
	svc, _, _, _ := newExportFixture()

	job := &models.ReportJob{
		ID:     "job-5",
		Type:   models.ReportType("attendance"),
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	}
	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
}
