package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// RecordArtifact stores a published artifact. A second publication of the
// same job and kind is ignored and the original row is returned with
// created=false.
func (s *Store) RecordArtifact(ctx context.Context, artifact Artifact) (*Artifact, bool, error) {
	if strings.TrimSpace(artifact.JobID) == "" || strings.TrimSpace(artifact.Name) == "" {
		return nil, false, errors.New("record artifact: job id and name are required")
	}
	if artifact.Kind != ArtifactVideo && artifact.Kind != ArtifactText {
		return nil, false, fmt.Errorf("record artifact: unknown kind %q", artifact.Kind)
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO artifacts (job_id, kind, object_key, name, url, size_bytes, content_type, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (job_id, kind) DO NOTHING`,
		artifact.JobID,
		string(artifact.Kind),
		artifact.Key,
		artifact.Name,
		artifact.URL,
		artifact.Size,
		nullableString(artifact.ContentType),
		s.nowMillis(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert artifact: %w", err)
	}
	created := false
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		created = true
	}
	stored, err := s.ArtifactFor(ctx, artifact.JobID, artifact.Kind)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, fmt.Errorf("artifact %s/%s missing after insert", artifact.JobID, artifact.Kind)
	}
	return stored, created, nil
}

// ArtifactFor returns the artifact of a given kind for a job, or nil.
func (s *Store) ArtifactFor(ctx context.Context, jobID string, kind ArtifactKind) (*Artifact, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+artifactColumns+` FROM artifacts WHERE job_id = ? AND kind = ?`, jobID, string(kind))
	return scanOptionalArtifact(row)
}

// ArtifactByName resolves a download name, or returns nil.
func (s *Store) ArtifactByName(ctx context.Context, name string) (*Artifact, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+artifactColumns+` FROM artifacts WHERE name = ?`, name)
	return scanOptionalArtifact(row)
}

// Artifacts lists the artifacts recorded for a job.
func (s *Store) Artifacts(ctx context.Context, jobID string) ([]*Artifact, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+artifactColumns+` FROM artifacts WHERE job_id = ? ORDER BY created_at, kind`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()
	var out []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanOptionalArtifact(row *sql.Row) (*Artifact, error) {
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return a, nil
}
