package summary

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/messaging"
)

// Poller long-polls a queue and feeds batches to a Consumer.
type Poller struct {
	queue     messaging.Queue
	consumer  *Consumer
	batchSize int
	wait      time.Duration
	idle      time.Duration
	logger    *slog.Logger
}

// NewPoller builds a Poller. batchSize is clamped to 1..10.
func NewPoller(queue messaging.Queue, consumer *Consumer, batchSize int, wait time.Duration, logger *slog.Logger) *Poller {
	if batchSize <= 0 || batchSize > 10 {
		batchSize = 10
	}
	return &Poller{
		queue:     queue,
		consumer:  consumer,
		batchSize: batchSize,
		wait:      wait,
		idle:      time.Second,
		logger:    logging.NewComponentLogger(logger, "summary-poller"),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("summary poller started",
		logging.Int("batch_size", p.batchSize),
		logging.Duration("wait", p.wait),
	)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := p.PollOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			logging.WarnWithContext(p.logger, "queue receive failed", "summary_receive_failed", logging.Error(err))
		}
		if n == 0 && p.wait <= 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.idle):
			}
		}
	}
}

// PollOnce receives one batch, handles it, and deletes every receipt that was
// not abandoned. It returns the number of deliveries received.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	deliveries, err := p.queue.Receive(ctx, p.batchSize, p.wait)
	if err != nil {
		return 0, err
	}
	if len(deliveries) == 0 {
		return 0, nil
	}
	result := p.consumer.HandleBatch(ctx, deliveries)
	abandoned := make(map[string]struct{}, len(result.Abandoned))
	for _, receipt := range result.Abandoned {
		abandoned[receipt] = struct{}{}
	}
	for _, d := range deliveries {
		if _, keep := abandoned[d.Receipt]; keep {
			continue
		}
		if err := p.queue.Delete(ctx, d.Receipt); err != nil {
			logging.WarnWithContext(p.logger, "queue delete failed", "summary_delete_failed",
				logging.String(logging.FieldMessageID, d.ID),
				logging.Error(err),
			)
		}
	}
	p.logger.Debug("batch handled",
		logging.Int("received", len(deliveries)),
		logging.Int("processed", result.Processed),
		logging.Int("skipped", result.Skipped),
		logging.Int("abandoned", len(result.Abandoned)),
	)
	return len(deliveries), nil
}
