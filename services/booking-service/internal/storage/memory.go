package storage

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

// Memory is a process-local Store. A transaction holds the store mutex for its whole duration
// and restores a snapshot when it fails.
type Memory struct {
	mu sync.Mutex

	services     map[string]model.Service
	customers    map[string]model.Customer
	phones       map[string]string
	appointments map[string]model.Appointment
	admin        *model.AdminUser
	events       []outbox.Event

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		services:     map[string]model.Service{},
		customers:    map[string]model.Customer{},
		phones:       map[string]string{},
		appointments: map[string]model.Appointment{},
		now:          time.Now,
	}
}

type memSnapshot struct {
	services     map[string]model.Service
	customers    map[string]model.Customer
	phones       map[string]string
	appointments map[string]model.Appointment
	events       int
}

func (m *Memory) snapshot() memSnapshot {
	return memSnapshot{
		services:     maps.Clone(m.services),
		customers:    maps.Clone(m.customers),
		phones:       maps.Clone(m.phones),
		appointments: maps.Clone(m.appointments),
		events:       len(m.events),
	}
}

func (m *Memory) restore(s memSnapshot) {
	m.services = s.services
	m.customers = s.customers
	m.phones = s.phones
	m.appointments = s.appointments
	m.events = m.events[:s.events]
}

func (m *Memory) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snap := m.snapshot()
	if err := fn(ctx, &memTx{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	if err := ctx.Err(); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// Events returns a copy of the events enqueued by committed transactions.
func (m *Memory) Events() []outbox.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]outbox.Event(nil), m.events...)
}

// memTx runs with Memory.mu held.
type memTx struct {
	m *Memory
}

func (t *memTx) GetService(ctx context.Context, id string) (model.Service, error) {
	if err := ctx.Err(); err != nil {
		return model.Service{}, err
	}
	s, ok := t.m.services[id]
	if !ok {
		return model.Service{}, ErrNotFound
	}
	return s, nil
}

func (t *memTx) LockSchedule(ctx context.Context) error {
	return ctx.Err()
}

func (t *memTx) FindOverlapping(ctx context.Context, start, end time.Time) (model.Appointment, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, false, err
	}
	candidate := availability.Interval{Start: start, End: end}
	for _, a := range sortedAppointments(t.m.appointments) {
		if candidate.Overlaps(availability.Interval{Start: a.StartTime, End: a.EndTime}) {
			return a, true, nil
		}
	}
	return model.Appointment{}, false, nil
}

func (t *memTx) UpsertCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	if err := ctx.Err(); err != nil {
		return model.Customer{}, err
	}
	if id, ok := t.m.phones[c.Phone]; ok {
		c.ID = id
	} else {
		c.ID = uuid.NewString()
		t.m.phones[c.Phone] = c.ID
	}
	t.m.customers[c.ID] = c
	return c, nil
}

func (t *memTx) InsertAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, err
	}
	if _, ok := t.m.customers[a.CustomerID]; !ok {
		return model.Appointment{}, ErrNotFound
	}
	if _, ok := t.m.services[a.ServiceID]; !ok {
		return model.Appointment{}, ErrNotFound
	}
	if _, clash, _ := t.FindOverlapping(ctx, a.StartTime, a.EndTime); clash {
		return model.Appointment{}, ErrConflict
	}
	a.ID = uuid.NewString()
	a.CreatedAt = t.m.now().UTC()
	t.m.appointments[a.ID] = a
	return a, nil
}

func (t *memTx) DeleteAppointment(ctx context.Context, id string) (model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return model.Appointment{}, err
	}
	a, ok := t.m.appointments[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	delete(t.m.appointments, id)
	return a, nil
}

func (t *memTx) EnqueueEvent(ctx context.Context, evt outbox.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.m.events = append(t.m.events, evt)
	return nil
}

func (m *Memory) GetService(ctx context.Context, id string) (model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).GetService(ctx, id)
}

func (m *Memory) ListServices(ctx context.Context) ([]model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Service, 0, len(m.services))
	for _, s := range m.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Memory) CreateService(ctx context.Context, s model.Service) (model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	s.ID = uuid.NewString()
	s.CreatedAt = now
	s.UpdatedAt = now
	m.services[s.ID] = s
	return s, nil
}

func (m *Memory) UpdateService(ctx context.Context, id string, patch model.ServicePatch) (model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.services[id]
	if !ok {
		return model.Service{}, ErrNotFound
	}
	s = patch.Apply(s)
	s.UpdatedAt = m.now().UTC()
	m.services[id] = s
	return s, nil
}

func (m *Memory) DeleteService(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.services[id]; !ok {
		return ErrNotFound
	}
	for _, a := range m.appointments {
		if a.ServiceID == id {
			return ErrInUse
		}
	}
	delete(m.services, id)
	return nil
}

func (m *Memory) ListAppointmentsBetween(ctx context.Context, start, end time.Time) ([]model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	window := availability.Interval{Start: start, End: end}
	var out []model.Appointment
	for _, a := range sortedAppointments(m.appointments) {
		if window.Overlaps(availability.Interval{Start: a.StartTime, End: a.EndTime}) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) ListAppointments(ctx context.Context, filter model.AppointmentFilter) ([]model.AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.AppointmentDetail
	for _, a := range sortedAppointments(m.appointments) {
		if filter.ServiceID != "" && a.ServiceID != filter.ServiceID {
			continue
		}
		if !filter.From.IsZero() && a.StartTime.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !a.StartTime.Before(filter.To) {
			continue
		}
		c := m.customers[a.CustomerID]
		s := m.services[a.ServiceID]
		out = append(out, model.AppointmentDetail{
			Appointment:   a,
			CustomerName:  c.Name,
			CustomerPhone: c.Phone,
			ServiceName:   s.Name,
			ServicePrice:  s.Price,
		})
	}
	// Newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (m *Memory) GetAdmin(ctx context.Context) (model.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.admin == nil {
		return model.AdminUser{}, ErrNotFound
	}
	return *m.admin, nil
}

func (m *Memory) CreateAdmin(ctx context.Context, passwordHash string) (model.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := model.AdminUser{ID: uuid.NewString(), PasswordHash: passwordHash}
	m.admin = &u
	return u, nil
}

func (m *Memory) UpdateAdminPassword(ctx context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.admin == nil || m.admin.ID != id {
		return ErrNotFound
	}
	m.admin.PasswordHash = passwordHash
	return nil
}

func sortedAppointments(in map[string]model.Appointment) []model.Appointment {
	out := make([]model.Appointment, 0, len(in))
	for _, a := range in {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)
