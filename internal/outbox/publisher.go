package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/clinicboard/clinicboard/libs/kafkax"
)

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher drains unpublished outbox rows to Kafka on a fixed interval.
// Rows are locked with SKIP LOCKED so multiple instances can run it safely.
type Publisher struct {
	repo     *Repository
	writer   Writer
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewPublisher(repo *Repository, writer Writer, logger *slog.Logger, interval time.Duration, batch int) *Publisher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Publisher{repo: repo, writer: writer, logger: logger, interval: interval, batch: batch}
}

// Run loops until ctx is cancelled. Publish failures are logged and the rows
// stay unpublished for the next tick.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.drain(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox drain failed", "error", err)
			}
		}
	}
}

func (p *Publisher) drain(ctx context.Context) error {
	tx, err := p.repo.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	records, err := p.repo.FetchUnpublished(ctx, tx, p.batch)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return tx.Commit(ctx)
	}

	msgs := make([]kafka.Message, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, rcd := range records {
		headers := []kafka.Header{
			{Key: kafkax.HeaderEventID, Value: []byte(rcd.EventID)},
			{Key: kafkax.HeaderEventType, Value: []byte(rcd.EventType)},
			{Key: kafkax.HeaderAggregateType, Value: []byte(rcd.AggregateType)},
		}
		headers = append(headers, kafkax.TraceHeaders(rcd.Traceparent, rcd.Tracestate)...)
		msgs = append(msgs, kafka.Message{
			Key:     []byte(rcd.AggregateID),
			Value:   rcd.Payload,
			Headers: headers,
		})
		ids = append(ids, rcd.ID)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	p.logger.Debug("outbox published", "count", len(ids))
	return nil
}
