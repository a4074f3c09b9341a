package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func outboxColumns() []string {
	return []string{"id", "event_id", "aggregate_type", "aggregate_id", "event_type", "payload", "traceparent", "tracestate", "created_at"}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishBatch_WritesAndMarks(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(outboxColumns()).
			AddRow(int64(1), "evt-1", AggregateAppointment, "appt-1", EventAppointmentBooked, []byte(`{"id":"appt-1"}`), "", "", now).
			AddRow(int64(2), "evt-2", AggregateAppointment, "appt-2", EventAppointmentDeleted, []byte(`{"id":"appt-2"}`), "", "", now))
	mock.ExpectExec("UPDATE outbox_events").
		WithArgs([]int64{1, 2}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	p := NewPublisher(mock, NewRepository(), quietLogger(), PublisherConfig{Brokers: "localhost:9092"})
	w := &fakeWriter{}
	n, err := p.PublishBatch(context.Background(), w)
	if err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if n != 2 || len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages, got n=%d written=%d", n, len(w.msgs))
	}
	if w.msgs[0].Topic != EventAppointmentBooked || string(w.msgs[0].Key) != "appt-1" {
		t.Fatalf("unexpected first message: %+v", w.msgs[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPublishBatch_WriteFailureLeavesRowsPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM outbox_events").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(outboxColumns()).
			AddRow(int64(7), "evt-7", AggregateAppointment, "appt-7", EventAppointmentBooked, []byte(`{}`), "", "", time.Now()))
	mock.ExpectRollback()

	p := NewPublisher(mock, NewRepository(), quietLogger(), PublisherConfig{Brokers: "localhost:9092"})
	if _, err := p.PublishBatch(context.Background(), &fakeWriter{err: errors.New("broker down")}); err == nil {
		t.Fatal("expected write error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPublisherDisabledWithoutBrokers(t *testing.T) {
	p := NewPublisher(nil, NewRepository(), quietLogger(), PublisherConfig{})
	if p.Enabled() {
		t.Fatal("expected publisher to be disabled")
	}
	// Run returns immediately when disabled.
	p.Run(context.Background())
}

func TestRepositoryInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(AggregateAppointment, "appt-1", EventAppointmentBooked, []byte(`{}`), "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	evt := Event{AggregateType: AggregateAppointment, AggregateID: "appt-1", EventType: EventAppointmentBooked, Payload: []byte(`{}`)}
	if err := NewRepository().Insert(context.Background(), mock, evt); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
