package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

func newMockStore(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPostgres(mock, outbox.NewRepository()), mock
}

func serviceRow(id string) *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows([]string{"id", "name", "duration_minutes", "price", "created_at", "updated_at"}).
		AddRow(id, "Corte", 30, 50.0, now, now)
}

func TestPostgresInTx_BookingStatements(t *testing.T) {
	store, mock := newMockStore(t)
	serviceID := uuid.NewString()
	customerID := uuid.NewString()
	start := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM services WHERE id").WithArgs(serviceID).WillReturnRows(serviceRow(serviceID))
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(scheduleLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("FROM appointments").WithArgs(start, end).
		WillReturnRows(pgxmock.NewRows([]string{"id", "customer_id", "service_id", "start_time", "end_time", "created_at"}))
	mock.ExpectQuery("INSERT INTO customers").WithArgs("Ana", "11999990000", "").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone", "instagram"}).AddRow(customerID, "Ana", "11999990000", ""))
	mock.ExpectQuery("INSERT INTO appointments").WithArgs(customerID, serviceID, start, end).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.NewString(), time.Now()))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		svc, err := tx.GetService(ctx, serviceID)
		if err != nil {
			return err
		}
		if err := tx.LockSchedule(ctx); err != nil {
			return err
		}
		if _, clash, err := tx.FindOverlapping(ctx, start, start.Add(svc.Duration())); err != nil || clash {
			t.Fatalf("FindOverlapping: clash=%v err=%v", clash, err)
		}
		c, err := tx.UpsertCustomer(ctx, model.Customer{Name: "Ana", Phone: "11999990000"})
		if err != nil {
			return err
		}
		_, err = tx.InsertAppointment(ctx, model.Appointment{CustomerID: c.ID, ServiceID: svc.ID, StartTime: start, EndTime: end})
		return err
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresInTx_ErrorAfterLockRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	serviceID := uuid.NewString()
	start := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	upsertErr := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectQuery("FROM services WHERE id").WithArgs(serviceID).WillReturnRows(serviceRow(serviceID))
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(scheduleLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("FROM appointments").WithArgs(start, end).
		WillReturnRows(pgxmock.NewRows([]string{"id", "customer_id", "service_id", "start_time", "end_time", "created_at"}))
	mock.ExpectQuery("INSERT INTO customers").WithArgs("Ana", "11999990000", "").WillReturnError(upsertErr)
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		svc, err := tx.GetService(ctx, serviceID)
		if err != nil {
			return err
		}
		if err := tx.LockSchedule(ctx); err != nil {
			return err
		}
		if _, _, err := tx.FindOverlapping(ctx, start, start.Add(svc.Duration())); err != nil {
			return err
		}
		_, err = tx.UpsertCustomer(ctx, model.Customer{Name: "Ana", Phone: "11999990000"})
		return err
	})
	if !errors.Is(err, upsertErr) {
		t.Fatalf("expected upsert error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expected rollback without commit: %v", err)
	}
}

func TestPostgresInsertAppointment_ExclusionViolationIsConflict(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"})
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.InsertAppointment(ctx, model.Appointment{CustomerID: "c", ServiceID: "s", StartTime: start, EndTime: start.Add(time.Hour)})
		return err
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresGetService_MalformedIDIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	if _, err := store.GetService(context.Background(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expected no queries: %v", err)
	}
}

func TestPostgresDeleteService(t *testing.T) {
	store, mock := newMockStore(t)
	inUse := uuid.NewString()
	missing := uuid.NewString()

	mock.ExpectExec("DELETE FROM services").WithArgs(inUse).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "appointments_service_id_fkey"})
	mock.ExpectExec("DELETE FROM services").WithArgs(missing).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := store.DeleteService(context.Background(), inUse); !errors.Is(err, ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}
	if err := store.DeleteService(context.Background(), missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresListAppointments_AppliesFilters(t *testing.T) {
	store, mock := newMockStore(t)
	serviceID := uuid.NewString()
	from := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)
	start := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)

	mock.ExpectQuery("ORDER BY a.start_time DESC").WithArgs(serviceID, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"id", "customer_id", "service_id", "start_time", "end_time", "created_at", "c_name", "phone", "s_name", "price"}).
			AddRow("a1", "c1", serviceID, start, start.Add(30*time.Minute), start, "Ana", "11999990000", "Corte", 50.0))

	out, err := store.ListAppointments(context.Background(), model.AppointmentFilter{ServiceID: serviceID, From: from, To: to})
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	if len(out) != 1 || out[0].CustomerName != "Ana" || out[0].ServicePrice != 50 {
		t.Fatalf("unexpected rows: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
