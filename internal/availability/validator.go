package availability

// Interval is a half-open [Start, End) span within a single day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Overlaps reports whether a and b share at least one minute. Touching
// endpoints do not overlap.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// Overlaps reports whether [aStart, aStart+aMinutes) and [bStart, bStart+bMinutes) overlap.
func Overlaps(aStart TimeOfDay, aMinutes int, bStart TimeOfDay, bMinutes int) bool {
	return Interval{Start: aStart, End: aStart.Add(aMinutes)}.Overlaps(Interval{Start: bStart, End: bStart.Add(bMinutes)})
}

// SelectWindow returns the first active window for the weekday, if any.
func SelectWindow(workingHours []WorkingHoursWindow, weekday int) (WorkingHoursWindow, bool) {
	for _, window := range workingHours {
		if window.DayOfWeek == weekday && window.IsActive {
			return window, true
		}
	}
	return WorkingHoursWindow{}, false
}

// Validate decides whether req can be booked. candidates must already be
// limited to the request's owner and date. Validate never mutates its inputs
// and is safe for concurrent use.
//
// A successful result is a pre-check only: callers must re-run it inside the
// transaction that writes the appointment.
func Validate(req AppointmentRequest, workingHours []WorkingHoursWindow, candidates []ExistingAppointment) ValidationResult {
	window, ok := SelectWindow(workingHours, req.Weekday())
	if !ok {
		return ValidationResult{
			Reason:    ReasonNoWorkingHours,
			Message:   MessageNoWorkingHours,
			Conflicts: []ExistingAppointment{},
		}
	}

	requested := Interval{Start: req.Start, End: req.End()}
	if requested.Start < window.Start || requested.End > window.End {
		return ValidationResult{
			Reason:       ReasonOutsideWorkingHours,
			Message:      MessageOutsideWorkingHours,
			WorkingHours: &window,
			Conflicts:    []ExistingAppointment{},
		}
	}

	conflicts := FindConflicts(requested, req.ExcludeID, candidates)
	if len(conflicts) > 0 {
		return ValidationResult{
			Reason:       ReasonSchedulingConflict,
			Message:      MessageSchedulingConflict,
			WorkingHours: &window,
			Conflicts:    conflicts,
		}
	}

	return ValidationResult{
		Valid:        true,
		Message:      MessageAccepted,
		WorkingHours: &window,
		Conflicts:    []ExistingAppointment{},
	}
}

// FindConflicts returns every non-cancelled candidate, other than excludeID,
// whose interval overlaps requested. Input order is preserved.
func FindConflicts(requested Interval, excludeID string, candidates []ExistingAppointment) []ExistingAppointment {
	conflicts := []ExistingAppointment{}
	for _, candidate := range candidates {
		if !candidate.Status.BlocksSchedule() {
			continue
		}
		if excludeID != "" && candidate.ID == excludeID {
			continue
		}
		if requested.Overlaps(Interval{Start: candidate.Start, End: candidate.End()}) {
			conflicts = append(conflicts, candidate)
		}
	}
	return conflicts
}
