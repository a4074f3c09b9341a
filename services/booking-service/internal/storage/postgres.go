package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

// scheduleLockKey identifies the transaction-scoped advisory lock that serialises bookings.
const scheduleLockKey int64 = 0x5a10b00c

// Pool is the subset of pgxpool.Pool used by Postgres.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Postgres struct {
	pool   Pool
	outbox *outbox.Repository
}

func NewPostgres(pool Pool, events *outbox.Repository) *Postgres {
	if events == nil {
		events = outbox.NewRepository()
	}
	return &Postgres{pool: pool, outbox: events}
}

func (p *Postgres) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx, outbox: p.outbox}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	return nil
}

type pgTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *pgTx) GetService(ctx context.Context, id string) (model.Service, error) {
	return getService(ctx, t.tx, id)
}

func (t *pgTx) LockSchedule(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, scheduleLockKey)
	return err
}

func (t *pgTx) FindOverlapping(ctx context.Context, start, end time.Time) (model.Appointment, bool, error) {
	var a model.Appointment
	err := t.tx.QueryRow(ctx, `
		SELECT id::text, customer_id::text, service_id::text, start_time, end_time, created_at
		FROM appointments
		WHERE start_time < $2 AND end_time > $1
		ORDER BY start_time
		LIMIT 1
	`, start, end).Scan(&a.ID, &a.CustomerID, &a.ServiceID, &a.StartTime, &a.EndTime, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, false, nil
	}
	if err != nil {
		return model.Appointment{}, false, err
	}
	return a, true, nil
}

func (t *pgTx) UpsertCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	var out model.Customer
	err := t.tx.QueryRow(ctx, `
		INSERT INTO customers (name, phone, instagram)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE
		SET name = EXCLUDED.name, instagram = EXCLUDED.instagram, updated_at = now()
		RETURNING id::text, name, phone, instagram
	`, c.Name, c.Phone, c.Instagram).Scan(&out.ID, &out.Name, &out.Phone, &out.Instagram)
	if err != nil {
		return model.Customer{}, err
	}
	return out, nil
}

func (t *pgTx) InsertAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO appointments (customer_id, service_id, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at
	`, a.CustomerID, a.ServiceID, a.StartTime, a.EndTime).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return model.Appointment{}, classify(err)
	}
	return a, nil
}

func (t *pgTx) DeleteAppointment(ctx context.Context, id string) (model.Appointment, error) {
	if !validID(id) {
		return model.Appointment{}, ErrNotFound
	}
	var a model.Appointment
	err := t.tx.QueryRow(ctx, `
		DELETE FROM appointments
		WHERE id = $1
		RETURNING id::text, customer_id::text, service_id::text, start_time, end_time, created_at
	`, id).Scan(&a.ID, &a.CustomerID, &a.ServiceID, &a.StartTime, &a.EndTime, &a.CreatedAt)
	if err != nil {
		return model.Appointment{}, classify(err)
	}
	return a, nil
}

func (t *pgTx) EnqueueEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const serviceColumns = `id::text, name, duration_minutes, price, created_at, updated_at`

func scanService(row pgx.Row) (model.Service, error) {
	var s model.Service
	err := row.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.Price, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func getService(ctx context.Context, q queryRower, id string) (model.Service, error) {
	if !validID(id) {
		return model.Service{}, ErrNotFound
	}
	s, err := scanService(q.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if err != nil {
		return model.Service{}, classify(err)
	}
	return s, nil
}

func (p *Postgres) GetService(ctx context.Context, id string) (model.Service, error) {
	return getService(ctx, p.pool, id)
}

func (p *Postgres) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (p *Postgres) CreateService(ctx context.Context, s model.Service) (model.Service, error) {
	return scanService(p.pool.QueryRow(ctx, `
		INSERT INTO services (name, duration_minutes, price)
		VALUES ($1, $2, $3)
		RETURNING `+serviceColumns, s.Name, s.DurationMinutes, s.Price))
}

func (p *Postgres) UpdateService(ctx context.Context, id string, patch model.ServicePatch) (model.Service, error) {
	if !validID(id) {
		return model.Service{}, ErrNotFound
	}
	s, err := scanService(p.pool.QueryRow(ctx, `
		UPDATE services
		SET name = COALESCE($2, name),
			duration_minutes = COALESCE($3, duration_minutes),
			price = COALESCE($4, price),
			updated_at = now()
		WHERE id = $1
		RETURNING `+serviceColumns, id, patch.Name, patch.DurationMinutes, patch.Price))
	if err != nil {
		return model.Service{}, classify(err)
	}
	return s, nil
}

func (p *Postgres) DeleteService(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListAppointmentsBetween(ctx context.Context, start, end time.Time) ([]model.Appointment, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, customer_id::text, service_id::text, start_time, end_time, created_at
		FROM appointments
		WHERE start_time < $2 AND end_time > $1
		ORDER BY start_time ASC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.ServiceID, &a.StartTime, &a.EndTime, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (p *Postgres) ListAppointments(ctx context.Context, filter model.AppointmentFilter) ([]model.AppointmentDetail, error) {
	var (
		where []string
		args  []any
	)
	if filter.ServiceID != "" {
		if !validID(filter.ServiceID) {
			return nil, nil
		}
		args = append(args, filter.ServiceID)
		where = append(where, fmt.Sprintf("a.service_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("a.start_time >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("a.start_time < $%d", len(args)))
	}

	sql := `
		SELECT a.id::text, a.customer_id::text, a.service_id::text, a.start_time, a.end_time, a.created_at,
			c.name, c.phone, s.name, s.price
		FROM appointments a
		JOIN customers c ON c.id = a.customer_id
		JOIN services s ON s.id = a.service_id`
	if len(where) > 0 {
		sql += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	sql += "\n\t\tORDER BY a.start_time DESC"

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AppointmentDetail
	for rows.Next() {
		var d model.AppointmentDetail
		if err := rows.Scan(
			&d.ID,
			&d.CustomerID,
			&d.ServiceID,
			&d.StartTime,
			&d.EndTime,
			&d.CreatedAt,
			&d.CustomerName,
			&d.CustomerPhone,
			&d.ServiceName,
			&d.ServicePrice,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (p *Postgres) GetAdmin(ctx context.Context) (model.AdminUser, error) {
	var u model.AdminUser
	err := p.pool.QueryRow(ctx, `
		SELECT id::text, password_hash
		FROM admin_users
		ORDER BY created_at ASC
		LIMIT 1
	`).Scan(&u.ID, &u.PasswordHash)
	if err != nil {
		return model.AdminUser{}, classify(err)
	}
	return u, nil
}

func (p *Postgres) CreateAdmin(ctx context.Context, passwordHash string) (model.AdminUser, error) {
	u := model.AdminUser{PasswordHash: passwordHash}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO admin_users (password_hash)
		VALUES ($1)
		RETURNING id::text
	`, passwordHash).Scan(&u.ID)
	if err != nil {
		return model.AdminUser{}, err
	}
	return u, nil
}

func (p *Postgres) UpdateAdminPassword(ctx context.Context, id, passwordHash string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE admin_users
		SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// classify maps driver errors onto the package sentinels.
func classify(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23P01":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", ErrInUse, pgErr.ConstraintName)
		}
	}
	return err
}
