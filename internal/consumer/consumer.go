// Package consumer reads clinic change events off Kafka and invalidates the
// availability cache, keeping instances that did not perform the write in
// sync. Events are deduplicated through the inbox before the handler runs.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinicboard/clinicboard/internal/availability"
	"github.com/clinicboard/clinicboard/internal/outbox"
	"github.com/clinicboard/clinicboard/libs/kafkax"
)

// Reader is the subset of kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Deduper is the inbox: it reports whether an event id is fresh.
type Deduper interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
}

type Consumer struct {
	reader      Reader
	inbox       Deduper
	invalidator availability.Invalidator
	logger      *slog.Logger
	tracer      trace.Tracer
}

func New(reader Reader, ib Deduper, inv availability.Invalidator, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:      reader,
		inbox:       ib,
		invalidator: inv,
		logger:      logger,
		tracer:      otel.Tracer("clinicboard/consumer"),
	}
}

// Run fetches and processes messages until ctx is cancelled. A message is
// committed even when its handler is skipped as a duplicate; it is not
// committed on inbox or decode errors, so Kafka redelivers it.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.handle(ctx, msg); err != nil {
			c.logger.Error("event handling failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	ctx = kafkax.ExtractTraceContext(ctx, msg)
	meta := kafkax.ExtractEventMeta(msg)

	ctx, span := c.tracer.Start(ctx, "consume "+meta.EventType)
	span.SetAttributes(
		attribute.String("messaging.kafka.topic", msg.Topic),
		attribute.String("event.id", meta.EventID),
	)
	defer span.End()

	fresh, err := c.inbox.Record(ctx, meta.EventID, meta.EventType)
	if err != nil {
		return err
	}
	if !fresh {
		c.logger.Debug("duplicate event skipped", "event_id", meta.EventID)
		return nil
	}

	var payload outbox.ChangePayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return err
	}
	if payload.Date == "" {
		c.logger.Warn("event missing date, skipped", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}

	switch meta.EventType {
	case outbox.EventReservationChanged:
		c.invalidator.OnReservationChanged(ctx, payload.ServiceCode, payload.Date)
	case outbox.EventClosureChanged:
		c.invalidator.OnManualClosureChanged(ctx, payload.Date, payload.ServiceCode)
	default:
		c.logger.Debug("unhandled event type", "event_type", meta.EventType)
	}
	return nil
}
