package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats counts jobs per stage.
func (s *Store) Stats(ctx context.Context) (map[Stage]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT stage, COUNT(1) FROM jobs GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Stage]int)
	for rows.Next() {
		var (
			stage string
			n     int
		)
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, fmt.Errorf("queue stats: %w", err)
		}
		stats[Stage(stage)] = n
	}
	return stats, rows.Err()
}

// Health buckets jobs into queued, running, completed, and failed in one
// query. Every stage that is not queued or terminal counts as running.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	var h HealthSummary
	err := s.db.QueryRowContext(ensureContext(ctx), `
SELECT COUNT(1),
       COALESCE(SUM(stage = ?), 0),
       COALESCE(SUM(stage = ?), 0),
       COALESCE(SUM(stage = ?), 0)
FROM jobs`,
		string(StageQueued), string(StageCompleted), string(StageError),
	).Scan(&h.Total, &h.Queued, &h.Completed, &h.Failed)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("queue health: %w", err)
	}
	h.Running = h.Total - h.Queued - h.Completed - h.Failed
	return h, nil
}

// PruneTerminal deletes completed and failed jobs untouched since cutoff.
// Artifact rows go with them through the foreign-key cascade.
func (s *Store) PruneTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM jobs WHERE stage IN (?, ?) AND updated_at < ?`,
		string(StageCompleted), string(StageError), cutoff.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

// CheckHealth inspects the database file for `jobs health`. A missing file is
// reported, not treated as an error. Probes stop at the first failure, which
// is recorded in DatabaseHealth.Error as well as returned.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	h := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return h, errors.New("queue database path is unknown")
	}
	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return h, nil
	case err != nil:
		return h, fmt.Errorf("stat queue database: %w", err)
	case info.IsDir():
		return h, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	h.DatabaseExists = true

	ctx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	var integrity string
	probes := []struct {
		name string
		run  func() error
	}{
		{"ping", func() error {
			if err := s.db.PingContext(ctx); err != nil {
				return err
			}
			h.DatabaseReadable = true
			return nil
		}},
		{"schema version", func() (err error) {
			h.SchemaVersion, err = s.userVersion(ctx)
			return err
		}},
		{"count jobs", func() error {
			return s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM jobs").Scan(&h.TotalJobs)
		}},
		{"integrity check", func() error {
			return s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity)
		}},
	}
	for _, p := range probes {
		if err := p.run(); err != nil {
			h.Error = err.Error()
			return h, fmt.Errorf("queue %s: %w", p.name, err)
		}
	}
	h.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return h, nil
}
