// Package api holds the ingress services and the wire-format types the HTTP
// server and the CLI share.
//
// # Services
//
// Submitter: rate-limit, validate, stage, and enqueue an uploaded video.
// StatusService: snapshot lookup with a fallback to the authoritative queue.
// DownloadService: stream a published artifact by file name.
// ReviewService: folder listing, summaries, and summary comments.
// JobService: queue listing for operators.
//
// # Design Notes
//
// DTOs use snake_case JSON for the job endpoints, matching the response body
// clients already parse, and camelCase where the review UI defined the shape
// (comments, folder listings). Timestamps are RFC3339 with milliseconds.
// Errors carry services markers; the HTTP layer maps them with StatusCode.
package api
