// Package status is the shared key-value view of job progress that status
// polls read before falling back to the queue database. Entries expire after
// a TTL, and the upsert guard keeps progress non-decreasing per job.
package status
