package api

import (
	"slices"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/stage"
	"github.com/MayankTamakuwala/TranscriBelt/internal/status"
	"github.com/MayankTamakuwala/TranscriBelt/internal/workflow"
)

// CoarseStatus folds a pipeline stage into queued, processing, completed, or
// failed.
func CoarseStatus(s queue.Stage) string {
	switch s {
	case queue.StageQueued:
		return StatusQueued
	case queue.StageCompleted:
		return StatusCompleted
	case queue.StageError:
		return StatusFailed
	default:
		return StatusProcessing
	}
}

// FromSnapshot converts a status snapshot to the response body.
func FromSnapshot(snap *status.Snapshot) JobStatus {
	if snap == nil {
		return JobStatus{}
	}
	return JobStatus{
		JobID:     snap.JobID,
		Status:    CoarseStatus(snap.Stage),
		Stage:     string(snap.Stage),
		Progress:  snap.Progress,
		Message:   snap.Message,
		ResultURL: snap.ResultURL,
		Error:     snap.Error,
		UpdatedAt: formatTime(snap.UpdatedAt),
	}
}

// FromJob converts an authoritative queue row to the response body.
func FromJob(job *queue.Job) JobStatus {
	if job == nil {
		return JobStatus{}
	}
	snap := status.FromJob(job)
	return FromSnapshot(&snap)
}

// FromJobs converts queue rows into operator records.
func FromJobs(jobs []*queue.Job) []JobRecord {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]JobRecord, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, JobRecord{
			JobStatus: FromJob(job),
			ClientKey: job.ClientKey,
			WorkerID:  job.WorkerID,
			CreatedAt: formatTime(job.CreatedAt),
		})
	}
	return out
}

// FromStatusSummary converts worker diagnostics into the health body. Roles
// are filled in by the caller.
func FromStatusSummary(summary workflow.StatusSummary) HealthResponse {
	resp := HealthResponse{
		Status:     "degraded",
		Workers:    summary.Workers,
		ActiveJobs: len(summary.ActiveJobs),
		QueueStats: MergeQueueStats(summary.QueueStats),
		Stages:     StageHealthSlice(summary.StageHealth),
		LastError:  summary.LastError,
	}
	if summary.StageHealth.AllReady() {
		resp.Status = "ok"
	}
	return resp
}

// MergeQueueStats keys stats by stage name and fills in missing stages.
func MergeQueueStats(stats map[queue.Stage]int) map[string]int {
	out := make(map[string]int, len(queue.Stages()))
	for _, s := range queue.Stages() {
		out[string(s)] = stats[s]
	}
	return out
}

// StageHealthSlice orders stage health by name.
func StageHealthSlice(health stage.Report) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
