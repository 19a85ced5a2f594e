package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Enqueue inserts a new job at the queued stage. The caller supplies the id
// and the staged input path.
func (s *Store) Enqueue(ctx context.Context, id, inputPath, clientKey string) (*Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("enqueue: job id is required")
	}
	if strings.TrimSpace(inputPath) == "" {
		return nil, errors.New("enqueue: input path is required")
	}
	now := s.nowMillis()
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (id, input_path, client_key, stage, progress, progress_message, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		inputPath,
		nullableString(clientKey),
		string(StageQueued),
		StageQueued.Progress(),
		"Queued",
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. It returns nil without error when the
// job does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by stage, newest first. With no stages it
// returns every job.
func (s *Store) List(ctx context.Context, limit int, stages ...Stage) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := stageArgs(stages)
	if len(stages) > 0 {
		query += ` WHERE stage IN (` + makePlaceholders(len(stages)) + `)`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ClaimNext atomically assigns the oldest unclaimed queued job to workerID and
// returns it. It returns nil without error when nothing is waiting. The select
// and the update are one statement, so two workers never receive the same job.
func (s *Store) ClaimNext(ctx context.Context, workerID string) (*Job, error) {
	if strings.TrimSpace(workerID) == "" {
		return nil, errors.New("claim: worker id is required")
	}
	ctx = ensureContext(ctx)
	var job *Job
	err := retryOnBusy(ctx, func() error {
		now := s.nowMillis()
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE jobs
             SET worker_id = ?, last_heartbeat = ?, updated_at = ?
             WHERE id = (
                 SELECT id FROM jobs
                 WHERE stage = ? AND worker_id IS NULL
                 ORDER BY created_at, rowid
                 LIMIT 1
             ) AND worker_id IS NULL
             RETURNING `+jobColumns,
			workerID,
			now,
			now,
			string(StageQueued),
		)
		claimed, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			job = nil
			return nil
		}
		if err != nil {
			return err
		}
		job = claimed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}
