package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

type Owner struct {
	ID        string
	Name      string
	Email     sql.NullString
	Timezone  string
	CreatedAt time.Time
}

type APIKey struct {
	ID         string
	OwnerID    string
	SecretHash string
	Label      sql.NullString
	CreatedAt  time.Time
	RevokedAt  sql.NullTime
}

type WorkingHour struct {
	OwnerID   string
	DayOfWeek int64
	StartTime string
	EndTime   string
	IsActive  bool
	UpdatedAt time.Time
}

type Appointment struct {
	ID              string
	OwnerID         string
	ClientName      sql.NullString
	ClientPhone     sql.NullString
	ClientEmail     sql.NullString
	ServiceName     sql.NullString
	AppointmentDate string
	AppointmentTime string
	Duration        int64
	Status          string
	Notes           sql.NullString
	ReminderSentAt  sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Owners

type CreateOwnerParams struct {
	ID       string
	Name     string
	Email    sql.NullString
	Timezone string
}

func (q *Queries) CreateOwner(ctx context.Context, arg CreateOwnerParams) (Owner, error) {
	timezone := strings.TrimSpace(arg.Timezone)
	if timezone == "" {
		timezone = "America/Sao_Paulo"
	}
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO owners (id, name, email, timezone)
		VALUES (?, ?, ?, ?)
		RETURNING id, name, email, timezone, created_at`,
		arg.ID, arg.Name, arg.Email, timezone,
	)
	var o Owner
	err := row.Scan(&o.ID, &o.Name, &o.Email, &o.Timezone, &o.CreatedAt)
	return o, err
}

func (q *Queries) GetOwner(ctx context.Context, id string) (Owner, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, email, timezone, created_at
		FROM owners
		WHERE id = ?`, id)
	var o Owner
	err := row.Scan(&o.ID, &o.Name, &o.Email, &o.Timezone, &o.CreatedAt)
	return o, err
}

func (q *Queries) ListOwners(ctx context.Context) ([]Owner, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, email, timezone, created_at
		FROM owners
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []Owner
	for rows.Next() {
		var o Owner
		if err := rows.Scan(&o.ID, &o.Name, &o.Email, &o.Timezone, &o.CreatedAt); err != nil {
			return nil, err
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

// API keys

type CreateAPIKeyParams struct {
	ID         string
	OwnerID    string
	SecretHash string
	Label      sql.NullString
}

func (q *Queries) CreateAPIKey(ctx context.Context, arg CreateAPIKeyParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, owner_id, secret_hash, label)
		VALUES (?, ?, ?, ?)`,
		arg.ID, arg.OwnerID, arg.SecretHash, arg.Label,
	)
	return err
}

func (q *Queries) GetAPIKey(ctx context.Context, id string) (APIKey, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, owner_id, secret_hash, label, created_at, revoked_at
		FROM api_keys
		WHERE id = ?`, id)
	var k APIKey
	err := row.Scan(&k.ID, &k.OwnerID, &k.SecretHash, &k.Label, &k.CreatedAt, &k.RevokedAt)
	return k, err
}

func (q *Queries) RevokeAPIKey(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE api_keys
		SET revoked_at = CURRENT_TIMESTAMP
		WHERE id = ? AND revoked_at IS NULL`, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Working hours

func (q *Queries) ListWorkingHours(ctx context.Context, ownerID string) ([]WorkingHour, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT owner_id, day_of_week, start_time, end_time, is_active, updated_at
		FROM working_hours
		WHERE owner_id = ?
		ORDER BY day_of_week`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hours []WorkingHour
	for rows.Next() {
		var h WorkingHour
		if err := rows.Scan(&h.OwnerID, &h.DayOfWeek, &h.StartTime, &h.EndTime, &h.IsActive, &h.UpdatedAt); err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

type UpsertWorkingHoursParams struct {
	OwnerID   string
	DayOfWeek int64
	StartTime string
	EndTime   string
	IsActive  bool
}

func (q *Queries) UpsertWorkingHours(ctx context.Context, arg UpsertWorkingHoursParams) (WorkingHour, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO working_hours (owner_id, day_of_week, start_time, end_time, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, day_of_week) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			is_active = excluded.is_active,
			updated_at = CURRENT_TIMESTAMP
		RETURNING owner_id, day_of_week, start_time, end_time, is_active, updated_at`,
		arg.OwnerID, arg.DayOfWeek, arg.StartTime, arg.EndTime, arg.IsActive,
	)
	var h WorkingHour
	err := row.Scan(&h.OwnerID, &h.DayOfWeek, &h.StartTime, &h.EndTime, &h.IsActive, &h.UpdatedAt)
	return h, err
}

func (q *Queries) DeleteWorkingHours(ctx context.Context, ownerID string, dayOfWeek int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, `
		DELETE FROM working_hours
		WHERE owner_id = ? AND day_of_week = ?`, ownerID, dayOfWeek)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Appointments

const appointmentColumns = `id, owner_id, client_name, client_phone, client_email, service_name,
	appointment_date, appointment_time, duration, status, notes, reminder_sent_at, created_at, updated_at`

func scanAppointment(scanner interface{ Scan(...any) error }) (Appointment, error) {
	var a Appointment
	err := scanner.Scan(
		&a.ID, &a.OwnerID, &a.ClientName, &a.ClientPhone, &a.ClientEmail, &a.ServiceName,
		&a.AppointmentDate, &a.AppointmentTime, &a.Duration, &a.Status, &a.Notes,
		&a.ReminderSentAt, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func (q *Queries) listAppointments(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}

// ListAppointmentsForDate returns every appointment of the owner on date,
// including cancelled ones, ordered by start time.
func (q *Queries) ListAppointmentsForDate(ctx context.Context, ownerID, date string) ([]Appointment, error) {
	return q.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE owner_id = ? AND appointment_date = ?
		ORDER BY appointment_time, id`, ownerID, date)
}

func (q *Queries) GetAppointment(ctx context.Context, ownerID, id string) (Appointment, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE owner_id = ? AND id = ?`, ownerID, id)
	return scanAppointment(row)
}

type CreateAppointmentParams struct {
	ID              string
	OwnerID         string
	ClientName      sql.NullString
	ClientPhone     sql.NullString
	ClientEmail     sql.NullString
	ServiceName     sql.NullString
	AppointmentDate string
	AppointmentTime string
	Duration        int64
	Status          string
	Notes           sql.NullString
}

func (q *Queries) CreateAppointment(ctx context.Context, arg CreateAppointmentParams) (Appointment, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO appointments (
			id, owner_id, client_name, client_phone, client_email, service_name,
			appointment_date, appointment_time, duration, status, notes
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+appointmentColumns,
		arg.ID, arg.OwnerID, arg.ClientName, arg.ClientPhone, arg.ClientEmail, arg.ServiceName,
		arg.AppointmentDate, arg.AppointmentTime, arg.Duration, arg.Status, arg.Notes,
	)
	return scanAppointment(row)
}

type UpdateAppointmentScheduleParams struct {
	ID              string
	OwnerID         string
	AppointmentDate string
	AppointmentTime string
	Duration        int64
}

// UpdateAppointmentSchedule moves an appointment and clears its reminder marker.
func (q *Queries) UpdateAppointmentSchedule(ctx context.Context, arg UpdateAppointmentScheduleParams) (Appointment, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE appointments
		SET appointment_date = ?,
			appointment_time = ?,
			duration = ?,
			reminder_sent_at = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE owner_id = ? AND id = ?
		RETURNING `+appointmentColumns,
		arg.AppointmentDate, arg.AppointmentTime, arg.Duration, arg.OwnerID, arg.ID,
	)
	return scanAppointment(row)
}

func (q *Queries) UpdateAppointmentStatus(ctx context.Context, ownerID, id, status string) (Appointment, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE appointments
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE owner_id = ? AND id = ?
		RETURNING `+appointmentColumns,
		status, ownerID, id,
	)
	return scanAppointment(row)
}

// ListAppointmentsByStatusOnOrBefore returns appointments of every owner in
// the given status dated on or before date.
func (q *Queries) ListAppointmentsByStatusOnOrBefore(ctx context.Context, status, date string) ([]Appointment, error) {
	return q.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = ? AND appointment_date <= ?
		ORDER BY owner_id, appointment_date, appointment_time`, status, date)
}

// ListRemindableAppointments returns non-cancelled appointments on date that
// have a client email and no reminder yet.
func (q *Queries) ListRemindableAppointments(ctx context.Context, date string) ([]Appointment, error) {
	return q.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_date = ?
			AND status IN ('pendente', 'confirmado')
			AND client_email IS NOT NULL AND client_email != ''
			AND reminder_sent_at IS NULL
		ORDER BY owner_id, appointment_time`, date)
}

func (q *Queries) MarkReminderSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE appointments
		SET reminder_sent_at = ?
		WHERE id = ?`, sentAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}
