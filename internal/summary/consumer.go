package summary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/messaging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/metrics"
	"github.com/MayankTamakuwala/TranscriBelt/internal/notifications"
	"github.com/MayankTamakuwala/TranscriBelt/internal/objectstore"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

// maxTextBytes is the largest transcript summarized. Larger ones are skipped
// rather than summarized from a prefix.
const maxTextBytes = 4 << 20

var (
	errForeignBucket = services.Wrap(services.ErrValidation, "summary", "fetch", "message names a bucket this store cannot read", nil)
	errTextTooLarge  = services.Wrap(services.ErrValidation, "summary", "fetch", fmt.Sprintf("transcript exceeds %d bytes", maxTextBytes), nil)
)

// Summarizer turns transcript text into a summary. *llm.Client satisfies it.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// BatchResult is what HandleBatch reports. StatusCode and Body never vary:
// per-message failures are logged, not propagated.
type BatchResult struct {
	StatusCode int
	Body       string
	Processed  int
	Skipped    int
	// Abandoned lists receipts that must stay on the queue for redelivery.
	Abandoned []string
}

// Consumer summarizes text artifacts announced by the publisher.
type Consumer struct {
	objects    objectstore.Store
	summarizer Summarizer
	records    RecordStore
	notifier   notifications.Service
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// ConsumerOption customizes a Consumer.
type ConsumerOption func(*Consumer)

// WithNotifier sends a summary-ready notification after each stored summary.
func WithNotifier(n notifications.Service) ConsumerOption {
	return func(c *Consumer) { c.notifier = n }
}

// WithMetrics records per-message outcomes.
func WithMetrics(m *metrics.Metrics) ConsumerOption {
	return func(c *Consumer) { c.metrics = m }
}

// NewConsumer wires the object store, summarizer, and record store.
func NewConsumer(objects objectstore.Store, summarizer Summarizer, records RecordStore, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		objects:    objects,
		summarizer: summarizer,
		records:    records,
		logger:     logging.NewComponentLogger(logger, "summary"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeAbandoned
)

func (o outcome) String() string {
	switch o {
	case outcomeProcessed:
		return "processed"
	case outcomeSkipped:
		return "skipped"
	default:
		return "abandoned"
	}
}

// HandleBatch processes each delivery independently.
func (c *Consumer) HandleBatch(ctx context.Context, deliveries []messaging.Delivery) BatchResult {
	result := BatchResult{StatusCode: 200, Body: "Processing complete"}
	for _, d := range deliveries {
		out := c.handleOne(ctx, d)
		c.metrics.SummaryMessage(out.String())
		switch out {
		case outcomeProcessed:
			result.Processed++
		case outcomeSkipped:
			result.Skipped++
		case outcomeAbandoned:
			result.Abandoned = append(result.Abandoned, d.Receipt)
		}
	}
	return result
}

func (c *Consumer) handleOne(ctx context.Context, d messaging.Delivery) (out outcome) {
	logger := c.logger.With(logging.String(logging.FieldMessageID, d.ID))
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "summary message panicked", "summary_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldErrorHint, "message left on queue for redelivery"),
			)
			out = outcomeAbandoned
		}
	}()

	msg, err := messaging.Decode(d.Body)
	if err != nil {
		logging.WarnWithContext(logger, "skipping malformed message", "summary_message_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "message must carry bucket, key, url, and folder_id"),
		)
		return outcomeSkipped
	}
	logger = logger.With(logging.String(logging.FieldFolderID, msg.FolderID))

	text, err := c.fetch(ctx, msg)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			// Redelivery cannot change the bucket or the transcript size.
			logging.ErrorWithContext(logger, "transcript unreadable; skipping", "summary_fetch_rejected",
				logging.String("bucket", msg.Bucket),
				logging.String("key", msg.Key),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that publisher and consumer share a storage config"),
			)
			return outcomeSkipped
		}
		if errors.Is(err, services.ErrNotFound) {
			logging.WarnWithContext(logger, "transcript object missing; skipping", "summary_fetch_missing",
				logging.String("key", msg.Key),
				logging.Error(err),
			)
			return outcomeSkipped
		}
		logging.WarnWithContext(logger, "transcript fetch failed", "summary_fetch_failed",
			logging.String("key", msg.Key),
			logging.Error(err),
		)
		return outcomeAbandoned
	}

	started := time.Now()
	summary, err := c.summarizer.Summarize(ctx, text)
	if errors.Is(err, services.ErrValidation) {
		// Redelivery cannot fix an empty or rejected transcript.
		logging.WarnWithContext(logger, "summarizer rejected transcript; skipping", "summary_llm_rejected", logging.Error(err))
		return outcomeSkipped
	}
	if err != nil {
		logging.WarnWithContext(logger, "summarizer failed", "summary_llm_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "message left on queue for redelivery"),
		)
		return outcomeAbandoned
	}

	if err := c.records.PutSummary(ctx, msg.FolderID, summary); err != nil {
		logging.WarnWithContext(logger, "summary store failed", "summary_store_failed", logging.Error(err))
		return outcomeAbandoned
	}
	logger.Info("summary stored",
		logging.String(logging.FieldEventType, "summary_stored"),
		logging.Int("summary_chars", len(summary)),
		logging.Duration("elapsed", time.Since(started)),
	)

	if c.notifier != nil {
		payload := notifications.Payload{"folderID": msg.FolderID}
		if err := c.notifier.Publish(ctx, notifications.EventSummaryReady, payload); err != nil {
			logger.Debug("summary notification failed", logging.Error(err))
		}
	}
	return outcomeProcessed
}

// fetch reads the transcript named by msg. A store that can address other
// buckets reads from msg.Bucket; any other store only serves its own.
func (c *Consumer) fetch(ctx context.Context, msg messaging.Message) (string, error) {
	var (
		body io.ReadCloser
		err  error
	)
	if reader, ok := c.objects.(objectstore.BucketReader); ok {
		body, _, err = reader.GetFrom(ctx, msg.Bucket, msg.Key)
	} else if msg.Bucket != c.objects.Bucket() {
		return "", errForeignBucket
	} else {
		body, _, err = c.objects.Get(ctx, msg.Key)
	}
	if err != nil {
		return "", err
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, maxTextBytes+1))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "summary", "fetch", "Could not read transcript", err)
	}
	if len(data) > maxTextBytes {
		return "", errTextTooLarge
	}
	return strings.TrimSpace(string(data)), nil
}
