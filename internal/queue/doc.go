// Package queue persists transcription jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages the database connection, schema initialization, the atomic
// claim that hands a queued job to exactly one worker, heartbeat tracking, and
// the checkpoint writes that advance a job through the stage table in
// stages.go. Only the worker recorded on a job may write its checkpoints, and
// terminal jobs are never updated again.
//
// Published artifacts are recorded alongside their job so the ingress can
// resolve download names without consulting the object store.
//
// Treat this package as the single source of truth for job semantics; when you
// add stages or columns, update schema.sql and bump schemaVersion.
package queue
