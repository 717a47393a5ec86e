// internal/api/validation/handlers.go
package validation

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/agendabeleza/internal/api/apiutil"
	"github.com/codr1/agendabeleza/internal/availability"
	"github.com/codr1/agendabeleza/internal/booking"
)

const defaultQueryTimeout = 5 * time.Second

var (
	service      *booking.Service
	queryTimeout = defaultQueryTimeout
	serviceOnce  sync.Once
)

type validateRequest struct {
	UserID               string `json:"user_id"`
	AppointmentDate      string `json:"appointment_date"`
	AppointmentTime      string `json:"appointment_time"`
	Duration             int    `json:"duration"`
	ExcludeAppointmentID string `json:"exclude_appointment_id"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(svc *booking.Service, timeout time.Duration) {
	if svc == nil {
		return
	}
	serviceOnce.Do(func() {
		service = svc
		if timeout > 0 {
			queryTimeout = timeout
		}
	})
}

// POST /api/v1/appointments/validate
func HandleValidate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Booking service not initialized")
		apiutil.WriteJSONError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var body validateRequest
	if err := apiutil.DecodeJSON(w, r, &body); err != nil {
		apiutil.WriteJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	owner, ok := apiutil.RequireOwner(w, r, body.UserID)
	if !ok {
		return
	}

	req, err := availability.NewAppointmentRequest(
		apiutil.FirstNonEmpty(body.UserID, owner.ID),
		body.AppointmentDate,
		body.AppointmentTime,
		body.Duration,
		body.ExcludeAppointmentID,
	)
	if err != nil {
		apiutil.WriteInputError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	result, err := svc.Check(ctx, req)
	if err != nil {
		apiutil.WriteBookingError(w, r, err, "validate appointment")
		return
	}

	logger.Debug().
		Str("owner_id", req.OwnerID).
		Str("date", availability.FormatDate(req.Date)).
		Str("time", req.Start.String()).
		Int("duration", req.DurationMinutes).
		Bool("valid", result.Valid).
		Str("reason", string(result.Reason)).
		Int("conflicts", len(result.Conflicts)).
		Msg("Validated appointment slot")

	if err := apiutil.WriteJSON(w, http.StatusOK, apiutil.NewValidationPayload(result)); err != nil {
		logger.Error().Err(err).Str("owner_id", req.OwnerID).Msg("Failed to write validation response")
	}
}

func loadService() *booking.Service {
	return service
}
