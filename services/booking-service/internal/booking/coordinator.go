// Package booking owns the booking transaction: the only place that enforces that no two
// appointments overlap.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

const DefaultTimeout = 5 * time.Second

const (
	MsgMissingFields      = "please provide all required fields"
	MsgServiceNotFound    = "service not found"
	MsgSlotUnavailable    = "this time slot is no longer available"
	MsgAppointmentMissing = "appointment not found"
	MsgInvalidDuration    = "service has an invalid duration"
)

type Customer struct {
	Name      string
	Phone     string
	Instagram string
}

type Request struct {
	Customer  Customer
	ServiceID string
	StartTime time.Time
}

type Options struct {
	// Timeout bounds each storage transaction. Zero means DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *metrics.BookingMetrics
}

type Coordinator struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.BookingMetrics
	tracer  trace.Tracer
	timeout time.Duration
}

func NewCoordinator(store storage.Store, opts Options) *Coordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{
		store:   store,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		tracer:  otel.Tracer("salonbook/booking"),
		timeout: opts.Timeout,
	}
}

func (r Request) normalize() Request {
	r.Customer.Name = strings.TrimSpace(r.Customer.Name)
	r.Customer.Phone = strings.TrimSpace(r.Customer.Phone)
	r.Customer.Instagram = strings.TrimSpace(r.Customer.Instagram)
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	return r
}

func (r Request) validate() error {
	if r.Customer.Name == "" || r.Customer.Phone == "" || r.ServiceID == "" || r.StartTime.IsZero() {
		return apperr.BadRequest(MsgMissingFields)
	}
	return nil
}

// Book creates an appointment for req. Either the customer upsert, the appointment and its
// outbox event are all committed, or nothing is.
func (c *Coordinator) Book(ctx context.Context, req Request) (model.Appointment, error) {
	started := time.Now()
	req = req.normalize()

	ctx, span := c.tracer.Start(ctx, "booking.book", trace.WithAttributes(
		attribute.String("booking.service_id", req.ServiceID),
		attribute.String("booking.start_time", req.StartTime.UTC().Format(time.RFC3339)),
	))
	defer span.End()

	if err := req.validate(); err != nil {
		c.finishBook(span, started, err)
		return model.Appointment{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var created model.Appointment
	err := c.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		svc, err := tx.GetService(ctx, req.ServiceID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.NotFound(MsgServiceNotFound)
			}
			return apperr.Storage("load service", err)
		}

		start := req.StartTime
		end := start.Add(svc.Duration())
		if !end.After(start) || svc.DurationMinutes > model.MaxDurationMinutes {
			return apperr.BadRequest(MsgInvalidDuration)
		}

		if err := tx.LockSchedule(ctx); err != nil {
			return apperr.Storage("lock schedule", err)
		}
		existing, clash, err := tx.FindOverlapping(ctx, start, end)
		if err != nil {
			return apperr.Storage("check overlap", err)
		}
		if clash {
			c.logger.Info("booking rejected, slot taken",
				"service_id", svc.ID,
				"start_time", start.UTC().Format(time.RFC3339),
				"existing_appointment_id", existing.ID,
			)
			return apperr.Conflict(MsgSlotUnavailable)
		}

		customer, err := tx.UpsertCustomer(ctx, model.Customer{
			Name:      req.Customer.Name,
			Phone:     req.Customer.Phone,
			Instagram: req.Customer.Instagram,
		})
		if err != nil {
			return apperr.Storage("upsert customer", err)
		}

		created, err = tx.InsertAppointment(ctx, model.Appointment{
			CustomerID: customer.ID,
			ServiceID:  svc.ID,
			StartTime:  start,
			EndTime:    end,
		})
		if err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return apperr.Conflict(MsgSlotUnavailable)
			}
			return apperr.Storage("insert appointment", err)
		}

		payload, err := json.Marshal(map[string]any{
			"appointment_id": created.ID,
			"customer_id":    customer.ID,
			"customer_name":  customer.Name,
			"customer_phone": customer.Phone,
			"service_id":     svc.ID,
			"service_name":   svc.Name,
			"start_time":     created.StartTime.UTC().Format(time.RFC3339),
			"end_time":       created.EndTime.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return apperr.Storage("build event payload", err)
		}
		if err := tx.EnqueueEvent(ctx, outbox.Event{
			AggregateType: outbox.AggregateAppointment,
			AggregateID:   created.ID,
			EventType:     outbox.EventAppointmentBooked,
			Payload:       payload,
		}); err != nil {
			return apperr.Storage("write outbox event", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) && apperr.KindOf(err) == apperr.KindStorage {
			err = apperr.Conflict(MsgSlotUnavailable)
		}
		err = apperr.Storage("booking transaction", err)
		c.finishBook(span, started, err)
		return model.Appointment{}, err
	}

	span.SetAttributes(attribute.String("booking.appointment_id", created.ID))
	c.finishBook(span, started, nil)
	return created, nil
}

func (c *Coordinator) finishBook(span trace.Span, started time.Time, err error) {
	outcome := outcomeOf(err)
	c.metrics.ObserveBooking(outcome, time.Since(started))
	span.SetAttributes(attribute.String("booking.outcome", outcome))
	if err != nil && apperr.KindOf(err) == apperr.KindStorage {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failure")
	}
}

// Delete removes an appointment. Unknown ids are NotFound.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	ctx, span := c.tracer.Start(ctx, "booking.delete", trace.WithAttributes(
		attribute.String("booking.appointment_id", id),
	))
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		c.metrics.ObserveDeletion(outcomeOf(apperr.NotFound(MsgAppointmentMissing)))
		return apperr.NotFound(MsgAppointmentMissing)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		removed, err := tx.DeleteAppointment(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.NotFound(MsgAppointmentMissing)
			}
			return apperr.Storage("delete appointment", err)
		}
		payload, err := json.Marshal(map[string]any{
			"appointment_id": removed.ID,
			"service_id":     removed.ServiceID,
			"customer_id":    removed.CustomerID,
			"start_time":     removed.StartTime.UTC().Format(time.RFC3339),
			"end_time":       removed.EndTime.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return apperr.Storage("build event payload", err)
		}
		if err := tx.EnqueueEvent(ctx, outbox.Event{
			AggregateType: outbox.AggregateAppointment,
			AggregateID:   removed.ID,
			EventType:     outbox.EventAppointmentDeleted,
			Payload:       payload,
		}); err != nil {
			return apperr.Storage("write outbox event", err)
		}
		return nil
	})
	err = apperr.Storage("delete transaction", err)
	c.metrics.ObserveDeletion(outcomeOf(err))
	if err != nil && apperr.KindOf(err) == apperr.KindStorage {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failure")
	}
	return err
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	return apperr.KindOf(err).String()
}
