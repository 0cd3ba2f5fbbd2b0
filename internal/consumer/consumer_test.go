package consumer

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	msgs      []kafka.Message
	committed int
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := f.msgs[0]
	f.msgs = f.msgs[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.committed += len(msgs)
	return nil
}

func (f *fakeReader) Close() error { return nil }

type fakeDeduper struct {
	seen map[string]bool
}

func (f *fakeDeduper) Record(_ context.Context, eventID, _ string) (bool, error) {
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}

type recordingInvalidator struct {
	reservations []string
	closures     []string
}

func (r *recordingInvalidator) OnReservationChanged(_ context.Context, serviceCode, date string) {
	r.reservations = append(r.reservations, serviceCode+"|"+date)
}

func (r *recordingInvalidator) OnManualClosureChanged(_ context.Context, date, serviceCode string) {
	r.closures = append(r.closures, serviceCode+"|"+date)
}

func message(eventID, eventType, payload string) kafka.Message {
	return kafka.Message{
		Topic: "clinic.changes",
		Value: []byte(payload),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
}

func TestConsumer_InvalidatesOnReservationChange(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		message("evt-1", "clinic.reservation.changed.v1", `{"date":"2026-09-15","service_code":"CLEANING"}`),
	}}
	inv := &recordingInvalidator{}
	c := New(reader, &fakeDeduper{seen: map[string]bool{}}, inv, slog.New(slog.DiscardHandler))

	if err := c.Run(context.Background()); err != io.EOF {
		t.Fatalf("expected EOF after draining, got %v", err)
	}
	if len(inv.reservations) != 1 || inv.reservations[0] != "CLEANING|2026-09-15" {
		t.Fatalf("expected one reservation invalidation, got %v", inv.reservations)
	}
	if reader.committed != 1 {
		t.Fatalf("expected 1 commit, got %d", reader.committed)
	}
}

func TestConsumer_ClosureChangeAllServices(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		message("evt-2", "clinic.closure.changed.v1", `{"date":"2026-09-15"}`),
	}}
	inv := &recordingInvalidator{}
	c := New(reader, &fakeDeduper{seen: map[string]bool{}}, inv, slog.New(slog.DiscardHandler))

	_ = c.Run(context.Background())
	if len(inv.closures) != 1 || inv.closures[0] != "|2026-09-15" {
		t.Fatalf("expected whole-date closure invalidation, got %v", inv.closures)
	}
}

func TestConsumer_DuplicateEventSkipsHandler(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		message("evt-3", "clinic.reservation.changed.v1", `{"date":"2026-09-15","service_code":"CLEANING"}`),
		message("evt-3", "clinic.reservation.changed.v1", `{"date":"2026-09-15","service_code":"CLEANING"}`),
	}}
	inv := &recordingInvalidator{}
	c := New(reader, &fakeDeduper{seen: map[string]bool{}}, inv, slog.New(slog.DiscardHandler))

	_ = c.Run(context.Background())
	if len(inv.reservations) != 1 {
		t.Fatalf("duplicate must run the handler once, got %d", len(inv.reservations))
	}
	if reader.committed != 2 {
		t.Fatalf("duplicates still commit, got %d commits", reader.committed)
	}
}

func TestConsumer_BadPayloadNotCommitted(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		message("evt-4", "clinic.reservation.changed.v1", `{broken`),
	}}
	inv := &recordingInvalidator{}
	c := New(reader, &fakeDeduper{seen: map[string]bool{}}, inv, slog.New(slog.DiscardHandler))

	_ = c.Run(context.Background())
	if len(inv.reservations) != 0 {
		t.Fatal("broken payload must not invalidate")
	}
	if reader.committed != 0 {
		t.Fatalf("broken payload must not be committed, got %d", reader.committed)
	}
}
