// Package booking loads availability snapshots from storage and applies the
// availability rules when appointments are created, moved or transitioned.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"

	"github.com/codr1/agendabeleza/internal/availability"
	"github.com/codr1/agendabeleza/internal/db"
)

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// RejectionError is returned by writes whose slot failed validation.
type RejectionError struct {
	Result availability.ValidationResult
}

func (e *RejectionError) Error() string {
	return e.Result.Message
}

// Snapshot is the data one validation reads.
type Snapshot struct {
	WorkingHours []availability.WorkingHoursWindow
	Candidates   []availability.ExistingAppointment
}

// AppointmentInput is a new booking.
type AppointmentInput struct {
	Request     availability.AppointmentRequest
	ClientName  string
	ClientPhone string
	ClientEmail string
	ServiceName string
	Notes       string
	Status      availability.Status
}

type Service struct {
	db          *db.DB
	phoneRegion string
	now         func() time.Time
}

func NewService(database *db.DB, phoneRegion string) *Service {
	return &Service{
		db:          database,
		phoneRegion: strings.ToUpper(strings.TrimSpace(phoneRegion)),
		now:         time.Now,
	}
}

// LoadSnapshot reads the owner's working hours and the appointments on date.
// Failures are returned as availability.UpstreamError.
func LoadSnapshot(ctx context.Context, q *db.Queries, ownerID string, date time.Time) (Snapshot, error) {
	hourRows, err := q.ListWorkingHours(ctx, ownerID)
	if err != nil {
		return Snapshot{}, availability.UpstreamError{Source: "working hours", Err: err}
	}
	hours := make([]availability.WorkingHoursWindow, 0, len(hourRows))
	for _, row := range hourRows {
		window, err := WindowFromRow(row)
		if err != nil {
			return Snapshot{}, availability.UpstreamError{Source: "working hours", Err: err}
		}
		hours = append(hours, window)
	}

	apptRows, err := q.ListAppointmentsForDate(ctx, ownerID, availability.FormatDate(date))
	if err != nil {
		return Snapshot{}, availability.UpstreamError{Source: "appointments", Err: err}
	}
	candidates := make([]availability.ExistingAppointment, 0, len(apptRows))
	for _, row := range apptRows {
		candidate, err := CandidateFromRow(row)
		if err != nil {
			return Snapshot{}, availability.UpstreamError{Source: "appointments", Err: err}
		}
		candidates = append(candidates, candidate)
	}

	return Snapshot{WorkingHours: hours, Candidates: candidates}, nil
}

// Check validates req against the current stored state without writing.
func (s *Service) Check(ctx context.Context, req availability.AppointmentRequest) (availability.ValidationResult, error) {
	snapshot, err := LoadSnapshot(ctx, s.db.Queries, req.OwnerID, req.Date)
	if err != nil {
		return availability.ValidationResult{}, err
	}
	return availability.Validate(req, snapshot.WorkingHours, snapshot.Candidates), nil
}

// Book validates and stores a new appointment in one transaction.
func (s *Service) Book(ctx context.Context, in AppointmentInput) (db.Appointment, error) {
	phone, err := NormalizePhone(in.ClientPhone, s.phoneRegion)
	if err != nil {
		return db.Appointment{}, err
	}
	email, err := normalizeEmail(in.ClientEmail)
	if err != nil {
		return db.Appointment{}, err
	}
	status := in.Status
	if status == "" {
		status = availability.StatusPending
	}
	if status != availability.StatusPending && status != availability.StatusConfirmed {
		return db.Appointment{}, availability.InputError{Field: "status", Reason: "must be pendente or confirmado"}
	}

	req := in.Request
	req.ExcludeID = ""

	var created db.Appointment
	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		snapshot, err := LoadSnapshot(ctx, tx.Queries, req.OwnerID, req.Date)
		if err != nil {
			return err
		}
		result := availability.Validate(req, snapshot.WorkingHours, snapshot.Candidates)
		if !result.Valid {
			return &RejectionError{Result: result}
		}

		created, err = tx.Queries.CreateAppointment(ctx, db.CreateAppointmentParams{
			ID:              uuid.New().String(),
			OwnerID:         req.OwnerID,
			ClientName:      nullString(in.ClientName),
			ClientPhone:     nullString(phone),
			ClientEmail:     nullString(email),
			ServiceName:     nullString(in.ServiceName),
			AppointmentDate: availability.FormatDate(req.Date),
			AppointmentTime: req.Start.String(),
			Duration:        int64(req.DurationMinutes),
			Status:          string(status),
			Notes:           nullString(in.Notes),
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return db.Appointment{}, err
	}

	log.Ctx(ctx).Info().
		Str("owner_id", created.OwnerID).
		Str("appointment_id", created.ID).
		Str("date", created.AppointmentDate).
		Str("time", created.AppointmentTime).
		Int64("duration", created.Duration).
		Msg("Appointment booked")
	return created, nil
}

// Reschedule moves an existing appointment, excluding it from its own
// conflict check.
func (s *Service) Reschedule(ctx context.Context, appointmentID string, req availability.AppointmentRequest) (db.Appointment, error) {
	req.ExcludeID = appointmentID

	var updated db.Appointment
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		current, err := tx.Queries.GetAppointment(ctx, req.OwnerID, appointmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return availability.UpstreamError{Source: "appointments", Err: err}
		}
		status := availability.Status(strings.ToLower(current.Status))
		if status == availability.StatusCancelled || status == availability.StatusCompleted {
			return fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, status)
		}

		snapshot, err := LoadSnapshot(ctx, tx.Queries, req.OwnerID, req.Date)
		if err != nil {
			return err
		}
		result := availability.Validate(req, snapshot.WorkingHours, snapshot.Candidates)
		if !result.Valid {
			return &RejectionError{Result: result}
		}

		updated, err = tx.Queries.UpdateAppointmentSchedule(ctx, db.UpdateAppointmentScheduleParams{
			ID:              appointmentID,
			OwnerID:         req.OwnerID,
			AppointmentDate: availability.FormatDate(req.Date),
			AppointmentTime: req.Start.String(),
			Duration:        int64(req.DurationMinutes),
		})
		if err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return db.Appointment{}, err
	}

	log.Ctx(ctx).Info().
		Str("owner_id", updated.OwnerID).
		Str("appointment_id", updated.ID).
		Str("date", updated.AppointmentDate).
		Str("time", updated.AppointmentTime).
		Msg("Appointment rescheduled")
	return updated, nil
}

// CanTransition reports whether an appointment may move from one status to another.
func CanTransition(from, to availability.Status) bool {
	switch from {
	case availability.StatusPending:
		return to == availability.StatusConfirmed || to == availability.StatusCancelled
	case availability.StatusConfirmed:
		return to == availability.StatusCompleted || to == availability.StatusCancelled
	default:
		return false
	}
}

// Transition moves an appointment through its lifecycle.
func (s *Service) Transition(ctx context.Context, ownerID, appointmentID string, to availability.Status) (db.Appointment, error) {
	var updated db.Appointment
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		current, err := tx.Queries.GetAppointment(ctx, ownerID, appointmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return availability.UpstreamError{Source: "appointments", Err: err}
		}
		from := availability.Status(strings.ToLower(current.Status))
		if !CanTransition(from, to) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
		}
		updated, err = tx.Queries.UpdateAppointmentStatus(ctx, ownerID, appointmentID, string(to))
		if err != nil {
			return fmt.Errorf("update appointment status: %w", err)
		}
		return nil
	})
	if err != nil {
		return db.Appointment{}, err
	}

	log.Ctx(ctx).Info().
		Str("owner_id", ownerID).
		Str("appointment_id", appointmentID).
		Str("status", updated.Status).
		Msg("Appointment status changed")
	return updated, nil
}

// Owner loads the owner record.
func (s *Service) Owner(ctx context.Context, ownerID string) (db.Owner, error) {
	owner, err := s.db.Queries.GetOwner(ctx, ownerID)
	if err != nil {
		return db.Owner{}, fmt.Errorf("load owner %s: %w", ownerID, err)
	}
	return owner, nil
}

// ListDay returns every appointment of the owner on date.
func (s *Service) ListDay(ctx context.Context, ownerID string, date time.Time) ([]db.Appointment, error) {
	rows, err := s.db.Queries.ListAppointmentsForDate(ctx, ownerID, availability.FormatDate(date))
	if err != nil {
		return nil, availability.UpstreamError{Source: "appointments", Err: err}
	}
	return rows, nil
}

// WindowFromRow converts a stored working-hours row.
func WindowFromRow(row db.WorkingHour) (availability.WorkingHoursWindow, error) {
	start, err := availability.ParseTimeOfDay(row.StartTime)
	if err != nil {
		return availability.WorkingHoursWindow{}, fmt.Errorf("working hours day %d start: %w", row.DayOfWeek, err)
	}
	end, err := availability.ParseTimeOfDay(row.EndTime)
	if err != nil {
		return availability.WorkingHoursWindow{}, fmt.Errorf("working hours day %d end: %w", row.DayOfWeek, err)
	}
	return availability.WorkingHoursWindow{
		OwnerID:   row.OwnerID,
		DayOfWeek: int(row.DayOfWeek),
		Start:     start,
		End:       end,
		IsActive:  row.IsActive,
	}, nil
}

// CandidateFromRow converts a stored appointment.
func CandidateFromRow(row db.Appointment) (availability.ExistingAppointment, error) {
	start, err := availability.ParseTimeOfDay(row.AppointmentTime)
	if err != nil {
		return availability.ExistingAppointment{}, fmt.Errorf("appointment %s time: %w", row.ID, err)
	}
	if row.Duration <= 0 || row.Duration > availability.MaxDurationMinutes {
		return availability.ExistingAppointment{}, fmt.Errorf("appointment %s duration %d out of range", row.ID, row.Duration)
	}
	return availability.ExistingAppointment{
		ID:              row.ID,
		OwnerID:         row.OwnerID,
		Start:           start,
		DurationMinutes: int(row.Duration),
		Status:          availability.Status(strings.ToLower(strings.TrimSpace(row.Status))),
		ClientName:      row.ClientName.String,
		ServiceName:     row.ServiceName.String,
	}, nil
}

// NormalizePhone formats a client phone number as E.164. Blank input is allowed.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", availability.InputError{Field: "client_phone", Reason: "must be a valid phone number"}
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", availability.InputError{Field: "client_email", Reason: "must be a valid email address"}
	}
	return strings.ToLower(addr.Address), nil
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}
