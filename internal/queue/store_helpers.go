package queue

import (
	"database/sql"
	"time"
)

const jobColumns = "id, input_path, client_key, stage, progress, progress_message, result_url, error_message, worker_id, created_at, updated_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              string
		inputPath       string
		clientKey       sql.NullString
		stage           string
		progress        float64
		progressMessage sql.NullString
		resultURL       sql.NullString
		errorMessage    sql.NullString
		workerID        sql.NullString
		createdAt       int64
		updatedAt       int64
		heartbeat       sql.NullInt64
	)
	if err := scanner.Scan(
		&id,
		&inputPath,
		&clientKey,
		&stage,
		&progress,
		&progressMessage,
		&resultURL,
		&errorMessage,
		&workerID,
		&createdAt,
		&updatedAt,
		&heartbeat,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		InputPath:       inputPath,
		ClientKey:       clientKey.String,
		Stage:           Stage(stage),
		Progress:        progress,
		ProgressMessage: progressMessage.String,
		ResultURL:       resultURL.String,
		ErrorMessage:    errorMessage.String,
		WorkerID:        workerID.String,
		CreatedAt:       fromMillis(createdAt),
		UpdatedAt:       fromMillis(updatedAt),
	}
	if heartbeat.Valid {
		hb := fromMillis(heartbeat.Int64)
		job.LastHeartbeat = &hb
	}
	return job, nil
}

const artifactColumns = "job_id, kind, object_key, name, url, size_bytes, content_type, created_at"

func scanArtifact(scanner interface{ Scan(dest ...any) error }) (*Artifact, error) {
	var (
		a           Artifact
		kind        string
		contentType sql.NullString
		createdAt   int64
	)
	if err := scanner.Scan(&a.JobID, &kind, &a.Key, &a.Name, &a.URL, &a.Size, &contentType, &createdAt); err != nil {
		return nil, err
	}
	a.Kind = ArtifactKind(kind)
	a.ContentType = contentType.String
	a.CreatedAt = fromMillis(createdAt)
	return &a, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func stageArgs(stages []Stage) []any {
	args := make([]any, 0, len(stages))
	for _, stage := range stages {
		args = append(args, string(stage))
	}
	return args
}
