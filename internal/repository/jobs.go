package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/escolab/pi-pipeline/constants"
	"github.com/escolab/pi-pipeline/internal/common"
	"github.com/escolab/pi-pipeline/internal/entity"
)

// JobRepository is the durable job record store. The pipeline creates a row
// per submission and only ever moves its status forward.
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Job, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	FinishSuccess(ctx context.Context, id uuid.UUID, result *entity.ExtractionResult, processedAt time.Time) error
	FinishFailure(ctx context.Context, id uuid.UUID, message string, processedAt time.Time) error
}

type jobRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewJobRepository(pool *pgxpool.Pool, log *slog.Logger) JobRepository {
	return &jobRepo{pool: pool, log: log}
}

func (r *jobRepo) Create(ctx context.Context, job *entity.Job) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO jobs (id, user_id, filename, file_path, status, submitted_at)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.UserID, job.Filename, job.FilePath, job.Status, job.SubmittedAt,
	)
	if err != nil {
		r.log.Error("job create failed", "job_id", job.ID, "error", err)
		return err
	}
	r.log.Info("job created", "job_id", job.ID, "user_id", job.UserID, "filename", job.Filename)
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, filename, file_path, status, result, error_message, submitted_at, processed_at
         FROM jobs WHERE id = $1`, id,
	)
	var (
		job       entity.Job
		resultRaw []byte
	)
	err := row.Scan(&job.ID, &job.UserID, &job.Filename, &job.FilePath, &job.Status,
		&resultRaw, &job.ErrorMessage, &job.SubmittedAt, &job.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if len(resultRaw) > 0 {
		res := entity.NewExtractionResult()
		if err := json.Unmarshal(resultRaw, res); err != nil {
			return nil, fmt.Errorf("decode stored result: %w", err)
		}
		res.EnsureLists()
		job.Result = res
	}
	return &job, nil
}

func (r *jobRepo) ListByUser(ctx context.Context, userID string) ([]*entity.Job, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, filename, file_path, status, result, error_message, submitted_at, processed_at
         FROM jobs WHERE user_id = $1 ORDER BY submitted_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		var (
			job       entity.Job
			resultRaw []byte
		)
		if err := rows.Scan(&job.ID, &job.UserID, &job.Filename, &job.FilePath, &job.Status,
			&resultRaw, &job.ErrorMessage, &job.SubmittedAt, &job.ProcessedAt); err != nil {
			return nil, err
		}
		if len(resultRaw) > 0 {
			res := entity.NewExtractionResult()
			if err := json.Unmarshal(resultRaw, res); err != nil {
				return nil, fmt.Errorf("decode stored result: %w", err)
			}
			res.EnsureLists()
			job.Result = res
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

func (r *jobRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = $1 WHERE id = $2 AND status = $3`,
		constants.JobStatusProcessing, id, constants.JobStatusQueued,
	)
	if err != nil {
		r.log.Error("job mark processing failed", "job_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		// queued is the only state processing may follow; a redelivered
		// descriptor for an already-claimed job lands here
		r.log.Warn("job not in queued state, skipping transition", "job_id", id)
	}
	return nil
}

func (r *jobRepo) FinishSuccess(ctx context.Context, id uuid.UUID, result *entity.ExtractionResult, processedAt time.Time) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, result = $2, error_message = '', processed_at = $3 WHERE id = $4`,
		constants.JobStatusCompleted, raw, processedAt, id,
	)
	if err != nil {
		r.log.Error("job finish(completed) failed", "job_id", id, "error", err)
		return err
	}
	r.log.Info("job finished (completed)", "job_id", id)
	return nil
}

func (r *jobRepo) FinishFailure(ctx context.Context, id uuid.UUID, message string, processedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, error_message = $2, processed_at = $3 WHERE id = $4`,
		constants.JobStatusFailed, message, processedAt, id,
	)
	if err != nil {
		r.log.Error("job finish(failed) failed", "job_id", id, "error", err)
		return err
	}
	r.log.Warn("job finished (failed)", "job_id", id, "error_message", message)
	return nil
}
