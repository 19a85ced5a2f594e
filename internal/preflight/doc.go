// Package preflight provides readiness checks for the directories, binaries,
// and external services each daemon role depends on.
//
// These checks run in two contexts:
//   - The daemon runs the checks for its roles before serving. A worker that
//     cannot find ffmpeg refuses to claim jobs instead of failing each one.
//   - The CLI "config validate" command runs RunAll to report everything at
//     once.
//
// Checks are gated by configuration; a backend that is not selected is
// skipped.
package preflight
