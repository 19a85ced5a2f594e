package queue

import "errors"

var (
	// ErrJobNotFound is returned when a write targets an unknown job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotOwner is returned when a worker writes a job it did not claim.
	ErrNotOwner = errors.New("job is owned by another worker")
	// ErrTerminal is returned when a write targets a completed or failed job.
	ErrTerminal = errors.New("job already terminal")
	// ErrInvalidTransition is returned for a stage change outside the transition table.
	ErrInvalidTransition = errors.New("invalid stage transition")
)

// Failure messages recorded by the store itself rather than by a stage.
const (
	WorkerLostReason      = "worker lost"
	DaemonRestartedReason = "daemon restarted before the job finished"
)
