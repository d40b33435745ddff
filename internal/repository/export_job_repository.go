package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
)

// ExportJobRepository persists roster export job metadata.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository constructs an ExportJobRepository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// UpdateExportJobParams lists mutable job fields for partial updates.
type UpdateExportJobParams struct {
	Status       *models.ExportStatus
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Create inserts a new export job.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO export_jobs (id, params, status, created_by, created_at)
        VALUES (:id, :params, :status, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// GetByID fetches a job by identifier.
func (r *ExportJobRepository) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	const query = `SELECT id, params, status, result_url, created_by, created_at, finished_at, error_message FROM export_jobs WHERE id = $1`
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// Update applies the provided partial changes to a job row.
func (r *ExportJobRepository) Update(ctx context.Context, id string, params UpdateExportJobParams) error {
	sets := []string{}
	args := []interface{}{id}

	if params.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *params.Status)
	}
	if params.ResultURL != nil {
		sets = append(sets, fmt.Sprintf("result_url = $%d", len(args)+1))
		args = append(args, *params.ResultURL)
	}
	if params.ErrorMessage != nil {
		sets = append(sets, fmt.Sprintf("error_message = $%d", len(args)+1))
		args = append(args, *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		sets = append(sets, fmt.Sprintf("finished_at = $%d", len(args)+1))
		args = append(args, *params.FinishedAt)
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE export_jobs SET %s WHERE id = $1", strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	return nil
}

// ListQueued returns jobs awaiting processing, oldest first.
func (r *ExportJobRepository) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	const query = `SELECT id, params, status, result_url, created_by, created_at, finished_at, error_message
        FROM export_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	var jobsList []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobsList, query, models.ExportStatusQueued, limit); err != nil {
		return nil, fmt.Errorf("list queued export jobs: %w", err)
	}
	return jobsList, nil
}

// ListFinishedBefore returns finished jobs older than the cutoff for cleanup.
func (r *ExportJobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	const query = `SELECT id, params, status, result_url, created_by, created_at, finished_at, error_message
        FROM export_jobs WHERE status = $1 AND finished_at < $2 ORDER BY finished_at ASC LIMIT $3`
	var jobsList []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobsList, query, models.ExportStatusFinished, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished export jobs: %w", err)
	}
	return jobsList, nil
}
