package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
	"github.com/gandhamprakashtech/stumart-api/internal/repository"
	appErrors "github.com/gandhamprakashtech/stumart-api/pkg/errors"
	"github.com/gandhamprakashtech/stumart-api/pkg/export"
	"github.com/gandhamprakashtech/stumart-api/pkg/jobs"
	"github.com/gandhamprakashtech/stumart-api/pkg/storage"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type rosterSource interface {
	RosterByScope(ctx context.Context, scope models.PINScope) ([]models.RosterRow, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// ExportRequest describes the roster scope and output format for a new job.
type ExportRequest struct {
	JoiningYear int                 `json:"joining_year"`
	Branch      string              `json:"branch"`
	Year        int                 `json:"year"`
	Section     string              `json:"section"`
	Format      models.ExportFormat `json:"format"`
}

// ExportDownload wraps an open handle to a finished export file.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportService queues roster exports, renders them in background workers
// and serves the results through signed download tokens.
type ExportService struct {
	repo    exportJobStore
	roster  rosterSource
	queue   jobDispatcher
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs the export service.
func NewExportService(repo exportJobStore, roster rosterSource, queue jobDispatcher, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &ExportService{
		repo:    repo,
		roster:  roster,
		queue:   queue,
		storage: store,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// CreateJob validates the request, persists the job and enqueues processing.
func (s *ExportService) CreateJob(ctx context.Context, req ExportRequest, actorID string) (*models.ExportJob, error) {
	branch := strings.ToUpper(strings.TrimSpace(req.Branch))
	if !models.IsValidBranch(branch) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown branch code "+req.Branch)
	}
	if req.JoiningYear < 2000 || req.JoiningYear > 2100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "joining year out of range")
	}
	if req.Year < 1 || req.Year > 3 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "year of study out of range")
	}
	section := strings.ToUpper(strings.TrimSpace(req.Section))
	if section == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section is required")
	}
	if req.Format != models.ExportFormatCSV && req.Format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	job := &models.ExportJob{
		Params: models.ExportJobParams{
			JoiningYear: req.JoiningYear,
			Branch:      branch,
			Year:        req.Year,
			Section:     section,
			Format:      req.Format,
		},
		Status:    models.ExportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "roster_export"}); err != nil {
		failed := models.ExportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &failed,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return job, nil
}

// GetStatus exposes job metadata. Non-admin callers only see their own jobs.
func (s *ExportService) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*models.ExportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if role != models.RoleAdmin && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	return job, nil
}

// ResolveDownload validates a signed token and opens the stored export file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// Handle processes a queued export job. Wired as the queue handler.
func (s *ExportService) Handle(ctx context.Context, job jobs.Job) error {
	record, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ExportStatusProcessing
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing}); err != nil {
		return err
	}

	resultURL, genErr := s.generate(ctx, record)
	if genErr != nil {
		msg := genErr.Error()
		if job.Attempt >= s.cfg.MaxRetries {
			failed := models.ExportStatusFailed
			now := time.Now().UTC()
			if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &failed,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				s.logger.Warn("failed to mark export failed", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		} else {
			queued := models.ExportStatusQueued
			if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &queued,
				ErrorMessage: &msg,
			}); updateErr != nil {
				s.logger.Warn("failed to requeue export", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		}
		return genErr
	}

	finished := models.ExportStatusFinished
	now := time.Now().UTC()
	clear := ""
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &finished,
		ResultURL:    &resultURL,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Warn("failed to mark export finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	return nil
}

// RecoverPendingJobs replays queued jobs after a process restart.
func (s *ExportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued export jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "roster_export"}); err != nil {
			s.logger.Warn("failed to requeue pending export", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

func (s *ExportService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	for {
		finished, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
		if err != nil {
			s.logger.Warn("export cleanup list failed", zap.Error(err))
			return
		}
		if len(finished) == 0 {
			break
		}
		for _, job := range finished {
			s.purgeResult(job)
			// Moving the row out of FINISHED is what lets the listing
			// advance; a row left behind would come back on the next page.
			expired := models.ExportStatusExpired
			if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &expired}); err != nil {
				s.logger.Warn("export cleanup update failed", zap.String("job_id", job.ID), zap.Error(err))
				return
			}
		}
		if len(finished) < 100 {
			break
		}
	}
	if _, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("export filesystem cleanup failed", zap.Error(err))
	}
}

// purgeResult deletes the stored file behind a job's download URL, if any.
func (s *ExportService) purgeResult(job models.ExportJob) {
	if job.ResultURL == nil {
		return
	}
	token := lastPathSegment(*job.ResultURL)
	if token == "" {
		return
	}
	_, relPath, _, err := s.signer.Parse(token, true)
	if err != nil {
		return
	}
	if err := s.storage.Delete(relPath); err != nil {
		s.logger.Warn("export cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *ExportService) generate(ctx context.Context, job *models.ExportJob) (string, error) {
	scope := models.PINScope{
		JoiningYear: job.Params.JoiningYear,
		Branch:      job.Params.Branch,
		Year:        job.Params.Year,
		Section:     job.Params.Section,
	}
	rows, err := s.roster.RosterByScope(ctx, scope)
	if err != nil {
		return "", err
	}

	dataset := buildRosterDataset(rows)
	title := fmt.Sprintf("PIN Roster %d %s Year %d Section %s", scope.JoiningYear, scope.Branch, scope.Year, scope.Section)

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("roster_%d_%s_%d_%s_%s.%s",
		scope.JoiningYear, strings.ToLower(scope.Branch), scope.Year, strings.ToLower(scope.Section),
		time.Now().UTC().Format("20060102_150405"), job.Params.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return "", err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return "", err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/exports/download/%s", prefix, token), nil
}

func buildRosterDataset(rows []models.RosterRow) export.Dataset {
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"PIN":      row.PINNumber,
			"Sequence": fmt.Sprintf("%d", row.PINSequence),
			"Status":   string(row.Status),
			"Name":     deref(row.FullName),
			"Email":    deref(row.Email),
			"Phone":    deref(row.Phone),
		})
	}
	return export.Dataset{
		Headers: []string{"PIN", "Sequence", "Status", "Name", "Email", "Phone"},
		Rows:    dataRows,
	}
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func lastPathSegment(url string) string {
	idx := strings.LastIndex(url, "/")
	if idx < 0 || idx == len(url)-1 {
		return ""
	}
	return url[idx+1:]
}
