package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/paud-api/internal/models"
	"github.com/noah-isme/paud-api/internal/repository"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
	"github.com/noah-isme/paud-api/pkg/jobs"
)

type exportRepoStub struct {
	jobs    map[string]*models.ExportJob
	cleared []string
}

func newExportRepoStub() *exportRepoStub {
	return &exportRepoStub{jobs: map[string]*models.ExportJob{}}
}

func (r *exportRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *exportRepoStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (r *exportRepoStub) Update(ctx context.Context, id string, params repository.ExportJobUpdate) error {
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("not found")
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

func (r *exportRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var queued []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusQueued || job.Status == models.ExportStatusProcessing {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *exportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusFinished && job.ResultURL != nil && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (r *exportRepoStub) ClearResult(ctx context.Context, id string) error {
	r.cleared = append(r.cleared, id)
	r.jobs[id].ResultURL = nil
	return nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type exportMetricsStub struct {
	statuses []models.ExportStatus
}

func (m *exportMetricsStub) RecordExportJob(status models.ExportStatus) {
	m.statuses = append(m.statuses, status)
}

func newExportJobServiceForTest(t *testing.T) (*ExportJobService, *exportRepoStub, *queueStub, *ExportService) {
	t.Helper()
	repo := newExportRepoStub()
	queue := &queueStub{}
	exporter, _ := newExportServiceForTest(t, sampleExportSource())
	lookup := exportLookupStub{teacherID: "teacher-1"}
	svc := NewExportJobService(repo, lookup, lookup, queue, exporter, &exportMetricsStub{}, nil, zap.NewNop(), ExportJobConfig{ResultTTL: time.Hour, MaxRetries: 3})
	return svc, repo, queue, exporter
}

func validExportRequest() models.ExportRequest {
	return models.ExportRequest{Type: models.ExportTypeStatistics, TermID: "term-1", ClassroomID: "room-1", Format: models.ExportFormatCSV}
}

func TestExportJobServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)

	resp, err := svc.CreateJob(context.Background(), validExportRequest(), "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	assert.Equal(t, "room-1", repo.jobs[resp.ID].Params.ClassroomID)
}

func TestExportJobServiceCreateJobAccess(t *testing.T) {
	svc, _, _, _ := newExportJobServiceForTest(t)

	_, err := svc.CreateJob(context.Background(), validExportRequest(), "teacher-1", models.RoleTeacher)
	require.NoError(t, err)

	_, err = svc.CreateJob(context.Background(), validExportRequest(), "teacher-2", models.RoleTeacher)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.CreateJob(context.Background(), validExportRequest(), "parent-1", models.RoleParent)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestExportJobServiceCreateJobValidation(t *testing.T) {
	svc, _, queue, _ := newExportJobServiceForTest(t)

	bad := validExportRequest()
	bad.Format = "xlsx"
	_, err := svc.CreateJob(context.Background(), bad, "admin-1", models.RoleAdmin)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	bad = validExportRequest()
	bad.ClassroomID = "room-9"
	_, err = svc.CreateJob(context.Background(), bad, "admin-1", models.RoleAdmin)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, queue.jobs)
}

func TestExportJobServiceCreateJobEnqueueFailure(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)
	queue.err = errors.New("queue stopped")

	_, err := svc.CreateJob(context.Background(), validExportRequest(), "admin-1", models.RoleAdmin)
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestExportJobServiceGetStatus(t *testing.T) {
	svc, repo, _, _ := newExportJobServiceForTest(t)
	repo.jobs["job-1"] = &models.ExportJob{ID: "job-1", Status: models.ExportStatusFinished, Progress: 100, CreatedBy: "teacher-1"}

	resp, err := svc.GetStatus(context.Background(), "job-1", "teacher-1", models.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, 100, resp.Progress)

	_, err = svc.GetStatus(context.Background(), "job-1", "teacher-2", models.RoleTeacher)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.GetStatus(context.Background(), "job-1", "admin-1", models.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), "missing", "admin-1", models.RoleAdmin)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestExportJobServiceResolveDownload(t *testing.T) {
	svc, repo, _, exporter := newExportJobServiceForTest(t)
	job := &models.ExportJob{
		ID:     "job-download",
		Type:   models.ExportTypeStatistics,
		Params: models.ExportParams{TermID: "term-1", ClassroomID: "room-1", Format: models.ExportFormatCSV},
		Status: models.ExportStatusProcessing,
	}
	repo.jobs[job.ID] = job
	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL

	_, err = svc.ResolveDownload(context.Background(), result.Token)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	job.Status = models.ExportStatusFinished
	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, result.RelativePath, download.Filename)
	assert.Equal(t, models.ExportFormatCSV, download.Format)

	_, err = svc.ResolveDownload(context.Background(), result.Token+"x")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestExportJobServiceRecoverPendingJobs(t *testing.T) {
	svc, repo, queue, _ := newExportJobServiceForTest(t)
	repo.jobs["a"] = &models.ExportJob{ID: "a", Status: models.ExportStatusQueued}
	repo.jobs["b"] = &models.ExportJob{ID: "b", Status: models.ExportStatusProcessing}
	repo.jobs["c"] = &models.ExportJob{ID: "c", Status: models.ExportStatusFinished}

	assert.Equal(t, 2, svc.RecoverPendingJobs(context.Background()))
	assert.Len(t, queue.jobs, 2)
}

func TestExportJobServiceCleanupExpired(t *testing.T) {
	svc, repo, _, exporter := newExportJobServiceForTest(t)
	job := &models.ExportJob{
		ID:     "old",
		Type:   models.ExportTypeStatistics,
		Params: models.ExportParams{TermID: "term-1", ClassroomID: "room-1", Format: models.ExportFormatCSV},
	}
	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)
	finished := time.Now().Add(-2 * time.Hour)
	job.Status = models.ExportStatusFinished
	job.ResultURL = &result.URL
	job.FinishedAt = &finished
	repo.jobs[job.ID] = job

	assert.Equal(t, 1, svc.CleanupExpired(context.Background()))
	assert.Equal(t, []string{"old"}, repo.cleared)
	_, err = exporter.Open(result.RelativePath)
	assert.Error(t, err)
}

func TestExportJobServiceScheduleCleanup(t *testing.T) {
	svc, _, _, _ := newExportJobServiceForTest(t)

	_, err := svc.ScheduleCleanup(context.Background(), "not a schedule")
	assert.Error(t, err)

	scheduler, err := svc.ScheduleCleanup(context.Background(), "@every 1h")
	require.NoError(t, err)
	assert.Len(t, scheduler.Entries(), 1)
	scheduler.Stop()
}

type exportStub struct {
	result *ExportResult
	err    error
}

func (e exportStub) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func TestExportWorkerHandleSuccess(t *testing.T) {
	repo := newExportRepoStub()
	repo.jobs["job-1"] = &models.ExportJob{ID: "job-1", Status: models.ExportStatusQueued}
	metrics := &exportMetricsStub{}
	worker := NewExportWorker(repo, exportStub{result: &ExportResult{URL: "/api/v1/exports/download/token"}}, metrics, 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	job := repo.jobs["job-1"]
	assert.Equal(t, models.ExportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/exports/download/token", *job.ResultURL)
	assert.Equal(t, []models.ExportStatus{models.ExportStatusProcessing, models.ExportStatusFinished}, metrics.statuses)
}

func TestExportWorkerHandleRetryThenFail(t *testing.T) {
	repo := newExportRepoStub()
	repo.jobs["job-1"] = &models.ExportJob{ID: "job-1", Status: models.ExportStatusQueued}
	worker := NewExportWorker(repo, exportStub{err: errors.New("disk full")}, nil, 2, zap.NewNop())

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 0}))
	assert.Equal(t, models.ExportStatusQueued, repo.jobs["job-1"].Status)

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2}))
	assert.Equal(t, models.ExportStatusFailed, repo.jobs["job-1"].Status)
	require.NotNil(t, repo.jobs["job-1"].ErrorMessage)
	assert.Equal(t, "disk full", *repo.jobs["job-1"].ErrorMessage)
}

func TestExportWorkerHandlePermanentFailure(t *testing.T) {
	repo := newExportRepoStub()
	repo.jobs["job-1"] = &models.ExportJob{ID: "job-1", Status: models.ExportStatusQueued}
	worker := NewExportWorker(repo, exportStub{err: jobs.Permanent(errors.New("no report cards"))}, nil, 3, zap.NewNop())

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	assert.Equal(t, models.ExportStatusFailed, repo.jobs["job-1"].Status)
}
