// Package logs reads the daemon's log file for the CLI: the last N lines,
// then optionally every line appended afterwards. Lines can be narrowed to a
// single job so one upload's path through the pipeline reads top to bottom.
package logs
