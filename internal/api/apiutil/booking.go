package apiutil

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/agendabeleza/internal/availability"
	"github.com/codr1/agendabeleza/internal/booking"
)

type WorkingHoursPayload struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type ConflictPayload struct {
	ID              string  `json:"id"`
	ClientName      *string `json:"client_name,omitempty"`
	ServiceName     *string `json:"service_name,omitempty"`
	AppointmentTime string  `json:"appointment_time"`
	Duration        int     `json:"duration"`
}

// ValidationPayload is the wire form of an availability decision.
type ValidationPayload struct {
	Valid        bool                 `json:"valid"`
	Message      string               `json:"message,omitempty"`
	Error        string               `json:"error,omitempty"`
	Reason       string               `json:"reason,omitempty"`
	WorkingHours *WorkingHoursPayload `json:"working_hours,omitempty"`
	Conflicts    []ConflictPayload    `json:"conflicts"`
}

func NewValidationPayload(result availability.ValidationResult) ValidationPayload {
	payload := ValidationPayload{
		Valid:     result.Valid,
		Conflicts: make([]ConflictPayload, 0, len(result.Conflicts)),
	}
	if result.Valid {
		payload.Message = result.Message
	} else {
		payload.Error = result.Message
		payload.Reason = string(result.Reason)
	}
	if result.WorkingHours != nil {
		payload.WorkingHours = &WorkingHoursPayload{
			StartTime: result.WorkingHours.Start.String(),
			EndTime:   result.WorkingHours.End.String(),
		}
	}
	for _, conflict := range result.Conflicts {
		payload.Conflicts = append(payload.Conflicts, ConflictPayload{
			ID:              conflict.ID,
			ClientName:      NullableString(conflict.ClientName, true),
			ServiceName:     NullableString(conflict.ServiceName, true),
			AppointmentTime: conflict.Start.String(),
			Duration:        conflict.DurationMinutes,
		})
	}
	return payload
}

// WriteInputError writes a 400 naming the offending field.
func WriteInputError(w http.ResponseWriter, r *http.Request, err error) {
	payload := map[string]string{"error": err.Error()}
	var inputErr availability.InputError
	if errors.As(err, &inputErr) {
		payload["field"] = inputErr.Field
	}
	if writeErr := WriteJSON(w, http.StatusBadRequest, payload); writeErr != nil {
		log.Ctx(r.Context()).Error().Err(writeErr).Msg("Failed to write error response")
	}
}

// WriteBookingError maps booking service failures onto HTTP responses.
func WriteBookingError(w http.ResponseWriter, r *http.Request, err error, action string) {
	logger := log.Ctx(r.Context())

	var rejection *booking.RejectionError
	switch {
	case errors.As(err, &rejection):
		if writeErr := WriteJSON(w, http.StatusConflict, NewValidationPayload(rejection.Result)); writeErr != nil {
			logger.Error().Err(writeErr).Msg("Failed to write rejection response")
		}
	case errors.Is(err, availability.ErrInvalidInput):
		WriteInputError(w, r, err)
	case errors.Is(err, booking.ErrNotFound):
		WriteJSONError(w, r, http.StatusNotFound, "Appointment not found")
	case errors.Is(err, booking.ErrInvalidTransition):
		WriteJSONError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, availability.ErrUpstreamData):
		logger.Error().Err(err).Msg("Failed to load availability data")
		WriteJSONError(w, r, http.StatusInternalServerError, "Failed to load availability data")
	default:
		logger.Error().Err(err).Msgf("Failed to %s", action)
		WriteJSONError(w, r, http.StatusInternalServerError, "Failed to "+action)
	}
}
