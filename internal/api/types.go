package api

import "github.com/MayankTamakuwala/TranscriBelt/internal/summary"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SubmitResponse acknowledges an accepted upload.
type SubmitResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// JobStatus is the body of GET /status/{job_id}.
type JobStatus struct {
	JobID     string  `json:"job_id"`
	Status    string  `json:"status"`
	Stage     string  `json:"stage"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message,omitempty"`
	ResultURL string  `json:"result_url,omitempty"`
	Error     string  `json:"error,omitempty"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

// Terminal reports whether the job finished.
func (s JobStatus) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Coarse job states reported next to the fine-grained stage.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// JobRecord is the operator view of a queue row.
type JobRecord struct {
	JobStatus
	ClientKey string `json:"client_key,omitempty"`
	WorkerID  string `json:"worker_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status     string         `json:"status"`
	Roles      []string       `json:"roles"`
	Workers    int            `json:"workers,omitempty"`
	ActiveJobs int            `json:"active_jobs"`
	QueueStats map[string]int `json:"queue_stats,omitempty"`
	Stages     []StageHealth  `json:"stages,omitempty"`
	LastError  string         `json:"last_error,omitempty"`
}

// SummaryResponse is the body of GET /folders/{folder_id}/summary.
type SummaryResponse struct {
	FolderID string `json:"folderID"`
	Summary  string `json:"summary"`
	Format   string `json:"format"`
}

// CommentsResponse lists the comments on one summary.
type CommentsResponse struct {
	FolderID string            `json:"folderID"`
	Comments []summary.Comment `json:"comments"`
}

// CommentRequest is the body for creating or editing a comment.
type CommentRequest struct {
	CommentID string           `json:"commentId,omitempty"`
	Text      string           `json:"text"`
	RefText   *summary.RefText `json:"ref_text,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
}

// Summary formats accepted by the summary endpoint.
const (
	FormatHTML = "html"
	FormatRaw  = "raw"
)
