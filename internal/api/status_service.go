package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/status"
)

// ErrJobNotFound is returned for an unknown job id.
var ErrJobNotFound = fmt.Errorf("%w: job not found", services.ErrNotFound)

// SnapshotReader reads published snapshots. *status.Store satisfies it.
type SnapshotReader interface {
	Get(ctx context.Context, jobID string) (*status.Snapshot, error)
}

// JobReader reads authoritative job rows. *queue.Store satisfies it.
type JobReader interface {
	GetByID(ctx context.Context, id string) (*queue.Job, error)
	List(ctx context.Context, limit int, stages ...queue.Stage) ([]*queue.Job, error)
}

// StatusService answers job status queries from the snapshot store, falling
// back to the queue when a snapshot is missing, expired, or unreadable. A
// snapshot that is not terminal is checked against the queue row so a missed
// snapshot write cannot make progress appear to go backwards.
type StatusService struct {
	snapshots SnapshotReader
	jobs      JobReader
}

// NewStatusService builds a StatusService. snapshots may be nil.
func NewStatusService(snapshots SnapshotReader, jobs JobReader) *StatusService {
	return &StatusService{snapshots: snapshots, jobs: jobs}
}

// Get returns the current status of jobID.
func (s *StatusService) Get(ctx context.Context, jobID string) (JobStatus, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return JobStatus{}, ErrJobNotFound
	}
	var snap *status.Snapshot
	if s.snapshots != nil {
		if got, err := s.snapshots.Get(ctx, jobID); err == nil && got != nil {
			if got.Terminal() {
				return FromSnapshot(got), nil
			}
			snap = got
		}
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	switch {
	case err != nil && snap != nil:
		return FromSnapshot(snap), nil
	case err != nil:
		return JobStatus{}, services.Wrap(services.ErrTransient, "status", "lookup", "Could not read job", err)
	case job == nil && snap != nil:
		return FromSnapshot(snap), nil
	case job == nil:
		return JobStatus{}, ErrJobNotFound
	case snap != nil && !job.IsTerminal() && snap.Progress >= job.Progress:
		return FromSnapshot(snap), nil
	}
	return FromJob(job), nil
}

// JobService lists queue rows for operators.
type JobService struct {
	jobs JobReader
}

// NewJobService builds a JobService.
func NewJobService(jobs JobReader) *JobService {
	return &JobService{jobs: jobs}
}

// List returns up to limit jobs, newest first, optionally filtered by stage
// name.
func (s *JobService) List(ctx context.Context, limit int, stageNames ...string) ([]JobRecord, error) {
	stages := make([]queue.Stage, 0, len(stageNames))
	for _, name := range stageNames {
		st, ok := queue.ParseStage(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown stage %q", services.ErrValidation, name)
		}
		stages = append(stages, st)
	}
	jobs, err := s.jobs.List(ctx, limit, stages...)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "jobs", "list", "Could not list jobs", err)
	}
	return FromJobs(jobs), nil
}

// Get returns one job record.
func (s *JobService) Get(ctx context.Context, jobID string) (JobRecord, error) {
	job, err := s.jobs.GetByID(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return JobRecord{}, services.Wrap(services.ErrTransient, "jobs", "lookup", "Could not read job", err)
	}
	if job == nil {
		return JobRecord{}, ErrJobNotFound
	}
	return FromJobs([]*queue.Job{job})[0], nil
}
