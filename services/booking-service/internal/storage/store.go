package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an appointment would overlap an existing one.
	ErrConflict = errors.New("appointment overlaps an existing appointment")
	// ErrInUse is returned when a service is still referenced by appointments.
	ErrInUse = errors.New("still referenced")
)

// Tx is the set of operations available inside one booking transaction.
type Tx interface {
	GetService(ctx context.Context, id string) (model.Service, error)
	// LockSchedule serialises writers of the appointment calendar until the transaction ends.
	LockSchedule(ctx context.Context) error
	FindOverlapping(ctx context.Context, start, end time.Time) (model.Appointment, bool, error)
	UpsertCustomer(ctx context.Context, c model.Customer) (model.Customer, error)
	InsertAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error)
	DeleteAppointment(ctx context.Context, id string) (model.Appointment, error)
	EnqueueEvent(ctx context.Context, evt outbox.Event) error
}

// Store is implemented by Postgres and Memory.
type Store interface {
	// InTx runs fn in a transaction. It commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListServices(ctx context.Context) ([]model.Service, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	CreateService(ctx context.Context, s model.Service) (model.Service, error)
	UpdateService(ctx context.Context, id string, patch model.ServicePatch) (model.Service, error)
	DeleteService(ctx context.Context, id string) error

	// ListAppointmentsBetween returns appointments intersecting [start, end) ordered by start.
	ListAppointmentsBetween(ctx context.Context, start, end time.Time) ([]model.Appointment, error)
	ListAppointments(ctx context.Context, filter model.AppointmentFilter) ([]model.AppointmentDetail, error)

	GetAdmin(ctx context.Context) (model.AdminUser, error)
	CreateAdmin(ctx context.Context, passwordHash string) (model.AdminUser, error)
	UpdateAdminPassword(ctx context.Context, id, passwordHash string) error
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
