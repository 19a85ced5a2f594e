// Package summary is the downstream consumer: it turns published transcript
// artifacts into LLM summaries and keeps the reviewer comments attached to
// them.
//
// Consumer.HandleBatch processes each queue delivery on its own. Malformed
// messages and missing objects are skipped; summarizer or storage failures
// abandon the message so the queue redelivers it. The batch result is always
// 200 "Processing complete".
//
// Poller drives a Consumer from a messaging.Queue and deletes every receipt
// that was not abandoned.
//
// Records live in the state database (SQLStore) or DynamoDB (DynamoStore).
// PutSummary is last-write-wins and resets comments.
package summary
