// Package workflow drains the job queue through the caption pipeline.
//
// The Manager runs a fixed pool of workers. Each worker claims one queued job
// at a time and runs every pipeline step in order until the job is completed
// or failed; a job never changes hands. After each checkpoint step the queue
// row is advanced first and the status snapshot second, so pollers never see
// progress the queue has not recorded.
//
// A heartbeat loop keeps the claimed row fresh while a job runs, and a reaper
// fails jobs whose heartbeat went stale. Reaped jobs are terminal and are not
// retried. Panics inside a step are recovered per job and recorded as a
// failure of that step.
//
// Cancelling the context passed to Start stops new claims. A step already in
// progress runs to completion; the job is then failed rather than left
// half-finished.
package workflow
