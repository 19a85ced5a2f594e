// Package messaging carries the artifact-ready notification from the worker
// to the summary consumer.
//
// Delivery is at-least-once. A message stays in the queue until its current
// receipt is deleted; receipts that are never deleted come back after the
// visibility timeout. Backends:
//
//   - sqlite: a table in the state database (works on Postgres too)
//   - sqs: Amazon SQS through aws-sdk-go
//   - none: discards every message
package messaging
