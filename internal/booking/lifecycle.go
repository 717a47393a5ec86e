package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/agendabeleza/internal/availability"
	"github.com/codr1/agendabeleza/internal/db"
)

// AppointmentStart returns the absolute start of a stored appointment in loc.
func AppointmentStart(row db.Appointment, loc *time.Location) (time.Time, error) {
	date, err := availability.ParseDate(row.AppointmentDate)
	if err != nil {
		return time.Time{}, err
	}
	start, err := availability.ParseTimeOfDay(row.AppointmentTime)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(time.Duration(start) * time.Minute), nil
}

// AppointmentEnd returns the absolute end of a stored appointment in loc.
func AppointmentEnd(row db.Appointment, loc *time.Location) (time.Time, error) {
	start, err := AppointmentStart(row, loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(row.Duration) * time.Minute), nil
}

// OwnerLocation resolves an owner's timezone, falling back to UTC.
func OwnerLocation(owner db.Owner) *time.Location {
	loc, err := time.LoadLocation(owner.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CompletePast marks confirmed appointments whose end has passed, in each
// owner's timezone, as completed. It returns how many rows changed.
func (s *Service) CompletePast(ctx context.Context) (int, error) {
	now := s.now()
	// Widen by a day so owners east of UTC are included.
	cutoff := availability.FormatDate(now.UTC().AddDate(0, 0, 1))

	rows, err := s.db.Queries.ListAppointmentsByStatusOnOrBefore(ctx, string(availability.StatusConfirmed), cutoff)
	if err != nil {
		return 0, availability.UpstreamError{Source: "appointments", Err: err}
	}

	logger := log.Ctx(ctx)
	locations := make(map[string]*time.Location)
	completed := 0
	for _, row := range rows {
		loc, ok := locations[row.OwnerID]
		if !ok {
			owner, err := s.db.Queries.GetOwner(ctx, row.OwnerID)
			if err != nil {
				return completed, fmt.Errorf("load owner %s: %w", row.OwnerID, err)
			}
			loc = OwnerLocation(owner)
			locations[row.OwnerID] = loc
		}

		end, err := AppointmentEnd(row, loc)
		if err != nil {
			logger.Warn().Err(err).Str("appointment_id", row.ID).Msg("Skipping appointment with unreadable schedule")
			continue
		}
		if end.After(now) {
			continue
		}

		if _, err := s.db.Queries.UpdateAppointmentStatus(ctx, row.OwnerID, row.ID, string(availability.StatusCompleted)); err != nil {
			return completed, fmt.Errorf("complete appointment %s: %w", row.ID, err)
		}
		completed++
	}
	return completed, nil
}
