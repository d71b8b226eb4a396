package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harmonics-id/music-school-api/internal/models"
	"github.com/harmonics-id/music-school-api/pkg/export"
	"github.com/harmonics-id/music-school-api/pkg/storage"
)

type exportSessionReader interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionDetail, int, error)
	ListByMentor(ctx context.Context, mentorID string) ([]models.SessionDetail, error)
}

type exportBillReader interface {
	List(ctx context.Context, filter models.BillFilter) ([]models.Bill, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Table, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report tables and persists rendered files.
type ExportService struct {
	sessions exportSessionReader
	bills    exportBillReader
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(sessions exportSessionReader, bills exportBillReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		sessions: sessions,
		bills:    bills,
		storage:  store,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate builds the table according to the job definition and stores the
// rendered file.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	table, title, err := s.buildTable(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(table)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(table, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/reports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored report file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL
// when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.%s", strings.ToLower(string(job.Type)), timestamp, job.Params.Format)
}

func (s *ExportService) buildTable(ctx context.Context, job *models.ReportJob) (export.Table, string, error) {
	switch job.Type {
	case models.ReportTypeTimetable:
		return s.buildTimetableTable(ctx, job.Params)
	case models.ReportTypeBilling:
		return s.buildBillingTable(ctx, job.Params)
	default:
		return export.Table{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildTimetableTable(ctx context.Context, params models.ReportJobParams) (export.Table, string, error) {
	var (
		sessions []models.SessionDetail
		err      error
	)
	title := "Weekly Timetable"
	if params.MentorID != nil && *params.MentorID != "" {
		sessions, err = s.sessions.ListByMentor(ctx, *params.MentorID)
		title = "Mentor Timetable"
	} else {
		filter := models.SessionFilter{Status: models.SessionStatusActive, PageSize: 1000}
		sessions, _, err = s.sessions.List(ctx, filter)
	}
	if err != nil {
		return export.Table{}, "", fmt.Errorf("load timetable sessions: %w", err)
	}

	table := export.Table{
		Headers: []string{"Day", "Start", "End", "Course", "Mentor", "Room", "Status"},
		Rows:    make([][]string, 0, len(sessions)),
	}
	for _, session := range sessions {
		table.Rows = append(table.Rows, []string{
			session.DayOfWeek,
			session.StartTime,
			session.EndTime,
			session.CourseTitle,
			session.MentorName,
			session.Room,
			string(session.Status),
		})
	}
	return table, title, nil
}

func (s *ExportService) buildBillingTable(ctx context.Context, params models.ReportJobParams) (export.Table, string, error) {
	filter := models.BillFilter{PageSize: 1000}
	bills, _, err := s.bills.List(ctx, filter)
	if err != nil {
		return export.Table{}, "", fmt.Errorf("load bills: %w", err)
	}

	table := export.Table{
		Headers: []string{"Bill ID", "Student ID", "Description", "Amount", "Due Date", "Status"},
		Rows:    make([][]string, 0, len(bills)),
	}
	for _, bill := range bills {
		table.Rows = append(table.Rows, []string{
			bill.ID,
			bill.StudentID,
			bill.Description,
			strconv.FormatInt(bill.Amount, 10),
			bill.DueDate.Format("2006-01-02"),
			string(bill.Status),
		})
	}
	return table, "Billing Overview", nil
}
