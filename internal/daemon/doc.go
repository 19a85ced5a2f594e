// Package daemon runs the long-lived TranscriBelt process.
//
// One Daemon hosts any subset of three roles. Ingress serves the HTTP API
// (uploads, status, downloads, and the summary review routes). Worker holds
// the state-directory flock, fails jobs orphaned by a previous run, and drives
// the workflow pool. Consumer long-polls the downstream queue and stores
// summaries. Every role shares the state database and runs the periodic
// maintenance sweep that purges expired status snapshots and rate-limit
// windows.
//
// Keep orchestration here: request handling delegates to internal/api and job
// execution to internal/workflow.
package daemon
