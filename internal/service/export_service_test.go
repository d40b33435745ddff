package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
	"github.com/gandhamprakashtech/stumart-api/internal/repository"
	appErrors "github.com/gandhamprakashtech/stumart-api/pkg/errors"
	"github.com/gandhamprakashtech/stumart-api/pkg/jobs"
	"github.com/gandhamprakashtech/stumart-api/pkg/storage"
)

type fakeJobStore struct {
	jobs          map[string]*models.ExportJob
	seq           int
	finishedLists int
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*models.ExportJob)}
}

func (f *fakeJobStore) Create(ctx context.Context, job *models.ExportJob) error {
	f.seq++
	job.ID = fmt.Sprintf("job-%d", f.seq)
	job.CreatedAt = time.Now().UTC()
	clone := *job
	f.jobs[job.ID] = &clone
	return nil
}

func (f *fakeJobStore) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	if job, ok := f.jobs[id]; ok {
		clone := *job
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeJobStore) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := f.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
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

func (f *fakeJobStore) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var queued []models.ExportJob
	for _, job := range f.jobs {
		if job.Status == models.ExportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (f *fakeJobStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	f.finishedLists++
	var finished []models.ExportJob
	for _, job := range f.jobs {
		if job.Status != models.ExportStatusFinished {
			continue
		}
		if job.FinishedAt == nil || !job.FinishedAt.Before(cutoff) {
			continue
		}
		finished = append(finished, *job)
		if len(finished) == limit {
			break
		}
	}
	return finished, nil
}

type fakeDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (f *fakeDispatcher) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, job)
	return nil
}

type fakeRoster struct {
	rows []models.RosterRow
	err  error
}

func (f *fakeRoster) RosterByScope(ctx context.Context, scope models.PINScope) ([]models.RosterRow, error) {
	return f.rows, f.err
}

func newExportFixture(t *testing.T, roster *fakeRoster, queue *fakeDispatcher) (*ExportService, *fakeJobStore) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-signing-key", time.Hour)
	repo := newFakeJobStore()
	svc := NewExportService(repo, roster, queue, store, signer, ExportConfig{
		APIPrefix:  "/api/v1",
		ResultTTL:  time.Hour,
		MaxRetries: 2,
	}, nil)
	return svc, repo
}

func csvExportRequest() ExportRequest {
	return ExportRequest{JoiningYear: 2026, Branch: "cme", Year: 1, Section: "a", Format: models.ExportFormatCSV}
}

func TestExportServiceCreateJob(t *testing.T) {
	queue := &fakeDispatcher{}
	svc, repo := newExportFixture(t, &fakeRoster{}, queue)

	job, err := svc.CreateJob(context.Background(), csvExportRequest(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, job.Status)
	assert.Equal(t, "CME", job.Params.Branch)
	assert.Equal(t, "A", job.Params.Section)
	assert.Equal(t, "admin-1", job.CreatedBy)

	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, job.ID, queue.enqueued[0].ID)
	assert.Equal(t, "roster_export", queue.enqueued[0].Type)

	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, stored.Status)
}

func TestExportServiceCreateJobValidation(t *testing.T) {
	svc, _ := newExportFixture(t, &fakeRoster{}, &fakeDispatcher{})

	cases := []ExportRequest{
		{JoiningYear: 2026, Branch: "XYZ", Year: 1, Section: "A", Format: models.ExportFormatCSV},
		{JoiningYear: 1990, Branch: "CME", Year: 1, Section: "A", Format: models.ExportFormatCSV},
		{JoiningYear: 2026, Branch: "CME", Year: 0, Section: "A", Format: models.ExportFormatCSV},
		{JoiningYear: 2026, Branch: "CME", Year: 4, Section: "A", Format: models.ExportFormatCSV},
		{JoiningYear: 2026, Branch: "CME", Year: 1, Section: "", Format: models.ExportFormatCSV},
		{JoiningYear: 2026, Branch: "CME", Year: 1, Section: "A", Format: "xlsx"},
	}
	for _, req := range cases {
		_, err := svc.CreateJob(context.Background(), req, "admin-1")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestExportServiceCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	queue := &fakeDispatcher{err: errors.New("queue closed")}
	svc, repo := newExportFixture(t, &fakeRoster{}, queue)

	_, err := svc.CreateJob(context.Background(), csvExportRequest(), "admin-1")
	require.Error(t, err)

	queued, _ := repo.ListQueued(context.Background(), 10)
	assert.Empty(t, queued)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestExportServiceHandleProducesDownloadableCSV(t *testing.T) {
	name := "Asha Rao"
	email := "asha@example.com"
	roster := &fakeRoster{rows: []models.RosterRow{
		{PINNumber: "26030-CME-001", PINSequence: 1, Status: models.PINStatusRegistered, FullName: &name, Email: &email},
		{PINNumber: "26030-CME-002", PINSequence: 2, Status: models.PINStatusAvailable},
	}}
	queue := &fakeDispatcher{}
	svc, repo := newExportFixture(t, roster, queue)

	job, err := svc.CreateJob(context.Background(), csvExportRequest(), "admin-1")
	require.NoError(t, err)

	require.NoError(t, svc.Handle(context.Background(), jobs.Job{ID: job.ID, Type: "roster_export", Attempt: 1}))

	finished, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, finished.Status)
	require.NotNil(t, finished.ResultURL)
	assert.True(t, strings.HasPrefix(*finished.ResultURL, "/api/v1/exports/download/"))
	require.NotNil(t, finished.FinishedAt)

	token := (*finished.ResultURL)[strings.LastIndex(*finished.ResultURL, "/")+1:]
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, models.ExportFormatCSV, download.Format)

	payload, err := io.ReadAll(download.File)
	require.NoError(t, err)
	content := string(payload)
	assert.Contains(t, content, "PIN,Sequence,Status,Name,Email,Phone")
	assert.Contains(t, content, "26030-CME-001")
	assert.Contains(t, content, "Asha Rao")
}

func TestExportServiceHandleRequeuesBeforeMaxRetries(t *testing.T) {
	roster := &fakeRoster{err: errors.New("db unavailable")}
	svc, repo := newExportFixture(t, roster, &fakeDispatcher{})

	job, err := svc.CreateJob(context.Background(), csvExportRequest(), "admin-1")
	require.NoError(t, err)

	require.Error(t, svc.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1}))
	stored, _ := repo.GetByID(context.Background(), job.ID)
	assert.Equal(t, models.ExportStatusQueued, stored.Status)
	require.NotNil(t, stored.ErrorMessage)

	// at the retry ceiling the job fails for good
	require.Error(t, svc.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 2}))
	stored, _ = repo.GetByID(context.Background(), job.ID)
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
	require.NotNil(t, stored.FinishedAt)
}

func TestExportServiceGetStatusOwnership(t *testing.T) {
	svc, _ := newExportFixture(t, &fakeRoster{}, &fakeDispatcher{})

	job, err := svc.CreateJob(context.Background(), csvExportRequest(), "stu-1")
	require.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), job.ID, "stu-2", models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	got, err := svc.GetStatus(context.Background(), job.ID, "stu-1", models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	got, err = svc.GetStatus(context.Background(), job.ID, "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}

func TestExportServiceResolveDownloadRejectsBadToken(t *testing.T) {
	svc, _ := newExportFixture(t, &fakeRoster{}, &fakeDispatcher{})

	_, err := svc.ResolveDownload(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRecoverPendingJobs(t *testing.T) {
	queue := &fakeDispatcher{}
	svc, _ := newExportFixture(t, &fakeRoster{}, queue)

	job, err := svc.CreateJob(context.Background(), csvExportRequest(), "admin-1")
	require.NoError(t, err)
	queue.enqueued = nil

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, job.ID, queue.enqueued[0].ID)
}

func TestExportServiceCleanupExpiredTerminates(t *testing.T) {
	svc, repo := newExportFixture(t, &fakeRoster{}, &fakeDispatcher{})

	finishedAt := time.Now().Add(-48 * time.Hour)
	for i := 0; i < 250; i++ {
		ts := finishedAt
		repo.jobs[fmt.Sprintf("job-%d", i)] = &models.ExportJob{
			ID:         fmt.Sprintf("job-%d", i),
			Status:     models.ExportStatusFinished,
			FinishedAt: &ts,
		}
	}

	svc.cleanupExpired(context.Background())

	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusExpired, job.Status)
	}
	// 250 rows at a page size of 100 is three full pages plus the empty
	// terminator at most.
	assert.LessOrEqual(t, repo.finishedLists, 4)
}

func TestExportServiceCleanupSkipsRecentResults(t *testing.T) {
	svc, repo := newExportFixture(t, &fakeRoster{}, &fakeDispatcher{})

	recent := time.Now().Add(-time.Minute)
	repo.jobs["job-fresh"] = &models.ExportJob{
		ID:         "job-fresh",
		Status:     models.ExportStatusFinished,
		FinishedAt: &recent,
	}

	svc.cleanupExpired(context.Background())

	assert.Equal(t, models.ExportStatusFinished, repo.jobs["job-fresh"].Status)
}
