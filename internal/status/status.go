package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/statedb"
)

// Snapshot is the short-lived, shared view of a job that status polls read.
type Snapshot struct {
	JobID     string
	Stage     queue.Stage
	Progress  float64
	Message   string
	ResultURL string
	Error     string
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Terminal reports whether the snapshot describes a finished job.
func (s Snapshot) Terminal() bool {
	return s.Stage.IsTerminal()
}

// FromJob projects the authoritative queue row into a snapshot.
func FromJob(job *queue.Job) Snapshot {
	return Snapshot{
		JobID:     job.ID,
		Stage:     job.Stage,
		Progress:  job.Progress,
		Message:   job.ProgressMessage,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
		UpdatedAt: job.UpdatedAt,
	}
}

// Store keeps snapshots in the state database with a TTL. Writes never move
// a job's progress backwards and never touch a terminal snapshot.
type Store struct {
	db  *statedb.DB
	ttl time.Duration
	now func() time.Time
}

// NewStore builds a status store over db.
func NewStore(db *statedb.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{db: db, ttl: ttl, now: time.Now}
}

// SetClock overrides the store clock for tests.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Put upserts a snapshot. It reports false when the write was discarded by
// the monotonic guard.
func (s *Store) Put(ctx context.Context, snap Snapshot) (bool, error) {
	if snap.JobID == "" {
		return false, errors.New("status: job id is required")
	}
	now := s.now().UTC()
	terminal := 0
	if snap.Terminal() {
		terminal = 1
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO status_snapshots (job_id, stage, progress, message, result_url, error, terminal, updated_at, expires_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (job_id) DO UPDATE SET
             stage = excluded.stage,
             progress = excluded.progress,
             message = excluded.message,
             result_url = excluded.result_url,
             error = excluded.error,
             terminal = excluded.terminal,
             updated_at = excluded.updated_at,
             expires_at = excluded.expires_at
         WHERE status_snapshots.progress <= excluded.progress AND status_snapshots.terminal = 0`,
		snap.JobID,
		string(snap.Stage),
		snap.Progress,
		snap.Message,
		snap.ResultURL,
		snap.Error,
		terminal,
		now.UnixMilli(),
		now.Add(s.ttl).UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("put status snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return true, nil
	}
	return n > 0, nil
}

// Get returns the unexpired snapshot for jobID, or nil.
func (s *Store) Get(ctx context.Context, jobID string) (*Snapshot, error) {
	var (
		snap               Snapshot
		stage              string
		message, url, errs sql.NullString
		updated, expires   int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, stage, progress, message, result_url, error, updated_at, expires_at
         FROM status_snapshots WHERE job_id = ? AND expires_at > ?`,
		jobID, s.now().UTC().UnixMilli(),
	).Scan(&snap.JobID, &stage, &snap.Progress, &message, &url, &errs, &updated, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get status snapshot: %w", err)
	}
	snap.Stage = queue.Stage(stage)
	snap.Message = message.String
	snap.ResultURL = url.String
	snap.Error = errs.String
	snap.UpdatedAt = time.UnixMilli(updated).UTC()
	snap.ExpiresAt = time.UnixMilli(expires).UTC()
	return &snap, nil
}

// PurgeExpired deletes snapshots past their TTL.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM status_snapshots WHERE expires_at <= ?`, s.now().UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge status snapshots: %w", err)
	}
	return res.RowsAffected()
}
