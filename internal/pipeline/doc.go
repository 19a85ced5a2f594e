// Package pipeline implements the caption stages a worker runs for each job:
// audio extraction, transcription, SRT generation, caption rendering, muxing,
// and artifact publication.
//
// Stages communicate through a per-job Workspace under paths.work_dir; each
// handler reads the files its predecessor wrote. Build wires the standard set
// from configuration, and Set.Steps pairs each handler with the queue
// checkpoint the workflow manager persists after it succeeds.
package pipeline
