// Package statedb opens the database shared by every daemon role: status
// snapshots, rate-limit windows, the local message queue, and local summary
// records. SQLite (modernc) is the default; Postgres (lib/pq) lets several
// ingress hosts share one store. Schema changes ship as goose migrations, one
// directory per dialect.
package statedb
