package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harmonics-id/music-school-api/internal/dto"
	"github.com/harmonics-id/music-school-api/internal/models"
	"github.com/harmonics-id/music-school-api/internal/repository"
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
	"github.com/harmonics-id/music-school-api/pkg/jobs"
)

type mockReportStore struct {
	jobs    map[string]*models.ReportJob
	updates []repository.UpdateReportJobParams
	queued  []models.ReportJob
}

func (m *mockReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	if m.jobs == nil {
		m.jobs = make(map[string]*models.ReportJob)
	}
	if job.ID == "" {
		job.ID = "job-new"
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *mockReportStore) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if job, ok := m.jobs[id]; ok {
		return job, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportStore) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	m.updates = append(m.updates, params)
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockReportStore) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	return m.queued, nil
}

func (m *mockReportStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type mockDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockGenerator struct {
	result *ExportResult
	err    error
	calls  int
}

func (m *mockGenerator) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func newReportFixture() (*ReportService, *mockReportStore, *mockDispatcher) {
	store := &mockReportStore{jobs: make(map[string]*models.ReportJob)}
	dispatcher := &mockDispatcher{}
	svc := NewReportService(store, dispatcher, nil, nil, zap.NewNop(), ReportServiceConfig{})
	return svc, store, dispatcher
}

func TestReportCreateJobAdmin(t *testing.T) {
	svc, store, dispatcher := newReportFixture()

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeBilling,
		Format: models.ReportFormatCSV,
	}, "admin-1", models.RoleAdmin, "")
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, resp.ID, dispatcher.enqueued[0].ID)
	assert.Equal(t, "admin-1", store.jobs[resp.ID].CreatedBy)
}

func TestReportCreateJobMentorScopedToOwnTimetable(t *testing.T) {
	svc, store, _ := newReportFixture()

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:     models.ReportTypeTimetable,
		MentorID: strPtr("other-mentor"),
		Format:   models.ReportFormatPDF,
	}, "user-9", models.RoleMentor, "mentor-1")
	require.NoError(t, err)

	job := store.jobs[resp.ID]
	require.NotNil(t, job.Params.MentorID)
	assert.Equal(t, "mentor-1", *job.Params.MentorID)
}

func TestReportCreateJobMentorCannotExportBilling(t *testing.T) {
	svc, _, _ := newReportFixture()

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeBilling,
		Format: models.ReportFormatCSV,
	}, "user-9", models.RoleMentor, "mentor-1")
	assertErrCode(t, err, appErrors.ErrForbidden.Code)
}

func TestReportCreateJobMentorWithoutProfile(t *testing.T) {
	svc, _, _ := newReportFixture()

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeTimetable,
		Format: models.ReportFormatCSV,
	}, "user-9", models.RoleMentor, "")
	assertErrCode(t, err, appErrors.ErrForbidden.Code)
}

func TestReportCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	store := &mockReportStore{jobs: make(map[string]*models.ReportJob)}
	dispatcher := &mockDispatcher{err: errors.New("queue stopped")}
	svc := NewReportService(store, dispatcher, nil, nil, zap.NewNop(), ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeTimetable,
		Format: models.ReportFormatCSV,
	}, "admin-1", models.RoleAdmin, "")
	require.Error(t, err)

	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
	}
}

func TestReportGetStatusOwnership(t *testing.T) {
	svc, store, _ := newReportFixture()
	store.jobs["job-1"] = &models.ReportJob{ID: "job-1", Type: models.ReportTypeTimetable, Status: models.ReportStatusFinished, CreatedBy: "user-1"}

	resp, err := svc.GetStatus(context.Background(), "job-1", "user-1", models.RoleMentor)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, resp.Status)

	_, err = svc.GetStatus(context.Background(), "job-1", "user-2", models.RoleMentor)
	assertErrCode(t, err, appErrors.ErrForbidden.Code)

	_, err = svc.GetStatus(context.Background(), "job-1", "someone-else", models.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), "missing", "user-1", models.RoleAdmin)
	assertErrCode(t, err, appErrors.ErrNotFound.Code)
}

func TestReportRecoverPendingJobs(t *testing.T) {
	svc, store, dispatcher := newReportFixture()
	store.queued = []models.ReportJob{
		{ID: "job-1", Type: models.ReportTypeTimetable},
		{ID: "job-2", Type: models.ReportTypeBilling},
	}

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, dispatcher.enqueued, 2)
	assert.Equal(t, "job-1", dispatcher.enqueued[0].ID)
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	store := &mockReportStore{jobs: map[string]*models.ReportJob{
		"job-1": {ID: "job-1", Type: models.ReportTypeTimetable, Status: models.ReportStatusQueued, Params: models.ReportJobParams{Format: models.ReportFormatCSV}},
	}}
	generator := &mockGenerator{result: &ExportResult{URL: "/api/v1/reports/download/tok", Format: models.ReportFormatCSV}}
	worker := NewReportWorker(store, generator, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.NoError(t, err)

	job := store.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/reports/download/tok", *job.ResultURL)
	require.NotNil(t, job.FinishedAt)
}

func TestReportWorkerHandleRetriesThenFails(t *testing.T) {
	store := &mockReportStore{jobs: map[string]*models.ReportJob{
		"job-1": {ID: "job-1", Type: models.ReportTypeTimetable, Status: models.ReportStatusQueued, Params: models.ReportJobParams{Format: models.ReportFormatCSV}},
	}}
	generator := &mockGenerator{err: errors.New("render failed")}
	worker := NewReportWorker(store, generator, 2, zap.NewNop())

	// Early attempts requeue the job.
	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusQueued, store.jobs["job-1"].Status)

	// The final attempt marks it failed.
	err = worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	job := store.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "render failed", *job.ErrorMessage)
}

func TestExtractToken(t *testing.T) {
	assert.Equal(t, "tok-1", extractToken("/api/v1/reports/download/tok-1"))
	assert.Equal(t, "", extractToken(""))
}
