// Package services defines shared utilities consumed by the pipeline stage
// handlers, the ingress, and the downstream consumer.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, worker slots, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper and StageError type that
//     map failures onto the client-visible taxonomy (validation, throttle,
//     stage failure, configuration, transient I/O).
//   - UserMessage, which strips internal markers before a failure is stored on
//     a job's status.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
