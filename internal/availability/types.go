// Package availability decides whether a proposed appointment can be booked
// against an owner's working hours and existing appointments for the day.
package availability

import (
	"fmt"
	"strings"
	"time"
)

const (
	minutesPerDay = 24 * 60
	dateLayout    = "2006-01-02"
)

// MaxDurationMinutes bounds a request's duration. Longer requests cannot fit
// in any working-hours window.
const MaxDurationMinutes = minutesPerDay

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay accepts HH:MM and the HH:MM:SS form used by stored rows.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("time is empty")
	}
	for _, layout := range []string{"15:04", "15:04:05"} {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			return TimeOfDay(parsed.Hour()*60 + parsed.Minute()), nil
		}
	}
	return 0, fmt.Errorf("time %q must be in HH:MM format", raw)
}

// MustTimeOfDay is ParseTimeOfDay for literals known to be valid.
func MustTimeOfDay(raw string) TimeOfDay {
	t, err := ParseTimeOfDay(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Add returns t shifted by the given number of minutes. The result is not
// wrapped at midnight.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

func (t TimeOfDay) valid() bool {
	return t >= 0 && t < minutesPerDay
}

// ParseDate parses a YYYY-MM-DD civil date into UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	parsed, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be in YYYY-MM-DD format", raw)
	}
	return parsed, nil
}

// FormatDate renders a civil date as YYYY-MM-DD.
func FormatDate(date time.Time) string {
	return date.Format(dateLayout)
}

// Status is the lifecycle state of a stored appointment.
type Status string

const (
	StatusPending   Status = "pendente"
	StatusConfirmed Status = "confirmado"
	StatusCompleted Status = "concluido"
	StatusCancelled Status = "cancelado"
)

// ParseStatus maps a stored or submitted status onto a known value.
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, true
	case StatusConfirmed:
		return StatusConfirmed, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusCancelled:
		return StatusCancelled, true
	default:
		return "", false
	}
}

// BlocksSchedule reports whether an appointment in this status occupies its slot.
func (s Status) BlocksSchedule() bool {
	return s != StatusCancelled
}

// AppointmentRequest is a proposed booking. Build it with NewAppointmentRequest.
type AppointmentRequest struct {
	OwnerID         string
	Date            time.Time
	Start           TimeOfDay
	DurationMinutes int
	ExcludeID       string
}

// NewAppointmentRequest validates raw request fields. Any failure is an
// InputError wrapping ErrInvalidInput.
func NewAppointmentRequest(ownerID, date, start string, durationMinutes int, excludeID string) (AppointmentRequest, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return AppointmentRequest{}, InputError{Field: "user_id", Reason: "is required"}
	}

	parsedDate, err := ParseDate(date)
	if err != nil {
		return AppointmentRequest{}, InputError{Field: "appointment_date", Reason: "must be a valid YYYY-MM-DD date"}
	}

	startTime, err := ParseTimeOfDay(start)
	if err != nil || !startTime.valid() {
		return AppointmentRequest{}, InputError{Field: "appointment_time", Reason: "must be a valid HH:MM time"}
	}

	if durationMinutes <= 0 {
		return AppointmentRequest{}, InputError{Field: "duration", Reason: "must be greater than 0"}
	}
	if durationMinutes > MaxDurationMinutes {
		return AppointmentRequest{}, InputError{Field: "duration", Reason: "must not exceed 1440 minutes"}
	}

	return AppointmentRequest{
		OwnerID:         ownerID,
		Date:            parsedDate,
		Start:           startTime,
		DurationMinutes: durationMinutes,
		ExcludeID:       strings.TrimSpace(excludeID),
	}, nil
}

// End is the exclusive end of the requested interval.
func (r AppointmentRequest) End() TimeOfDay {
	return r.Start.Add(r.DurationMinutes)
}

// Weekday is the 0=Sunday..6=Saturday index of the requested date.
func (r AppointmentRequest) Weekday() int {
	return int(r.Date.Weekday())
}

// WorkingHoursWindow is the bookable interval an owner configured for a weekday.
type WorkingHoursWindow struct {
	OwnerID   string
	DayOfWeek int
	Start     TimeOfDay
	End       TimeOfDay
	IsActive  bool
}

// ExistingAppointment is a stored appointment considered as a conflict candidate.
type ExistingAppointment struct {
	ID              string
	OwnerID         string
	Start           TimeOfDay
	DurationMinutes int
	Status          Status
	ClientName      string
	ServiceName     string
}

// End is the exclusive end of the stored appointment.
func (a ExistingAppointment) End() TimeOfDay {
	return a.Start.Add(a.DurationMinutes)
}

// Reason classifies a rejection. The zero value means accepted.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonNoWorkingHours      Reason = "no_working_hours"
	ReasonOutsideWorkingHours Reason = "outside_working_hours"
	ReasonSchedulingConflict  Reason = "scheduling_conflict"
)

// Human-readable messages returned with each Reason.
const (
	MessageAccepted            = "time slot is available"
	MessageNoWorkingHours      = "no working hours configured for this weekday"
	MessageOutsideWorkingHours = "outside working hours"
	MessageSchedulingConflict  = "time slot conflicts with existing appointment(s)"
)

// ValidationResult is the outcome of Validate. Conflicts is never nil.
type ValidationResult struct {
	Valid        bool
	Reason       Reason
	Message      string
	WorkingHours *WorkingHoursWindow
	Conflicts    []ExistingAppointment
}
