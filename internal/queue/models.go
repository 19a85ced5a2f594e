package queue

import "time"

// Job is a submitted video and its position in the pipeline.
type Job struct {
	ID              string
	InputPath       string
	ClientKey       string
	Stage           Stage
	Progress        float64
	ProgressMessage string
	ResultURL       string
	ErrorMessage    string
	WorkerID        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// IsTerminal reports whether the job reached completed or error.
func (j *Job) IsTerminal() bool {
	return j != nil && j.Stage.IsTerminal()
}

// IsClaimed reports whether a worker currently owns the job.
func (j *Job) IsClaimed() bool {
	return j != nil && j.WorkerID != "" && !j.Stage.IsTerminal()
}

// ArtifactKind distinguishes the two published outputs of a job.
type ArtifactKind string

const (
	ArtifactVideo ArtifactKind = "video"
	ArtifactText  ArtifactKind = "text"
)

// Artifact records a published output. At most one exists per job and kind,
// and Name is unique across all jobs.
type Artifact struct {
	JobID       string
	Kind        ArtifactKind
	Key         string
	Name        string
	URL         string
	Size        int64
	ContentType string
	CreatedAt   time.Time
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated job counts per lifecycle bucket.
type HealthSummary struct {
	Total     int
	Queued    int
	Running   int
	Completed int
	Failed    int
}
