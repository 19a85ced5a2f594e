package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Checkpoint moves a claimed job forward to stage `to`, recording its fixed
// progress value. The write succeeds only when workerID owns the job and the
// move is in the transition table.
func (s *Store) Checkpoint(ctx context.Context, id, workerID string, to Stage, message string) (*Job, error) {
	if to == StageError || to == StageCompleted {
		return nil, fmt.Errorf("%w: use Fail or Complete for %s", ErrInvalidTransition, to)
	}
	return s.transition(ctx, id, workerID, to, message, "", "")
}

// Complete marks a claimed job finished with its result URL.
func (s *Store) Complete(ctx context.Context, id, workerID, resultURL string) (*Job, error) {
	return s.transition(ctx, id, workerID, StageCompleted, "Completed", resultURL, "")
}

// Fail marks a claimed job failed with a user-facing message.
func (s *Store) Fail(ctx context.Context, id, workerID, message string) (*Job, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "processing failed"
	}
	return s.transition(ctx, id, workerID, StageError, "Failed", "", message)
}

func (s *Store) transition(ctx context.Context, id, workerID string, to Stage, message, resultURL, errorMessage string) (*Job, error) {
	from := predecessors(to)
	if len(from) == 0 {
		return nil, fmt.Errorf("%w: nothing moves to %s", ErrInvalidTransition, to)
	}
	ctx = ensureContext(ctx)

	args := []any{
		string(to),
		to.Progress(),
		nullableString(message),
		nullableString(resultURL),
		nullableString(errorMessage),
		s.nowMillis(),
		id,
		workerID,
	}
	args = append(args, stageArgs(from)...)

	var job *Job
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE jobs
             SET stage = ?, progress = ?, progress_message = ?,
                 result_url = COALESCE(?, result_url),
                 error_message = COALESCE(?, error_message),
                 updated_at = ?
             WHERE id = ? AND worker_id = ? AND stage IN (`+makePlaceholders(len(from))+`)
             RETURNING `+jobColumns,
			args...,
		)
		updated, err := scanJob(row)
		if err != nil {
			return err
		}
		job = updated
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.explainRejectedWrite(ctx, id, workerID, to)
	}
	if err != nil {
		return nil, fmt.Errorf("transition job to %s: %w", to, err)
	}
	return job, nil
}

// explainRejectedWrite turns a zero-row update into the specific reason.
func (s *Store) explainRejectedWrite(ctx context.Context, id, workerID string, to Stage) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case current == nil:
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	case current.Stage.IsTerminal():
		return fmt.Errorf("%w: %s is %s", ErrTerminal, id, current.Stage)
	case current.WorkerID != workerID:
		return fmt.Errorf("%w: %s", ErrNotOwner, id)
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Stage, to)
	}
}

// UpdateHeartbeat refreshes the liveness timestamp of a claimed job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id, workerID string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ? WHERE id = ? AND worker_id = ? AND stage NOT IN (?, ?)`,
		s.nowMillis(),
		id,
		workerID,
		string(StageCompleted),
		string(StageError),
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.explainRejectedWrite(ctx, id, workerID, StageError)
	}
	return nil
}

// FailStale fails every claimed job whose heartbeat is older than cutoff and
// returns them. Lost jobs are terminal and never re-run.
func (s *Store) FailStale(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	return s.failClaimed(ctx, WorkerLostReason, `AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`, cutoff.UTC().UnixMilli())
}

// FailOrphaned fails every claimed, non-terminal job. The worker role calls it
// at startup while holding the state directory lock, when no other pool can
// own a job.
func (s *Store) FailOrphaned(ctx context.Context) ([]*Job, error) {
	return s.failClaimed(ctx, DaemonRestartedReason, "")
}

func (s *Store) failClaimed(ctx context.Context, reason, extraWhere string, extraArgs ...any) ([]*Job, error) {
	ctx = ensureContext(ctx)
	args := []any{
		string(StageError),
		StageError.Progress(),
		"Failed",
		reason,
		s.nowMillis(),
		string(StageCompleted),
		string(StageError),
	}
	args = append(args, extraArgs...)

	var jobs []*Job
	err := retryOnBusy(ctx, func() error {
		jobs = jobs[:0]
		rows, err := s.db.QueryContext(
			ctx,
			`UPDATE jobs
             SET stage = ?, progress = ?, progress_message = ?, error_message = ?, updated_at = ?
             WHERE worker_id IS NOT NULL AND stage NOT IN (?, ?) `+extraWhere+`
             RETURNING `+jobColumns,
			args...,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			job, err := scanJob(rows)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("fail claimed jobs: %w", err)
	}
	return jobs, nil
}
