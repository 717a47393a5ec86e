// internal/api/appointments/handlers.go
package appointments

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/agendabeleza/internal/api/apiutil"
	"github.com/codr1/agendabeleza/internal/availability"
	"github.com/codr1/agendabeleza/internal/booking"
	"github.com/codr1/agendabeleza/internal/db"
	"github.com/codr1/agendabeleza/internal/email"
)

const (
	defaultQueryTimeout = 5 * time.Second
	appointmentIDParam  = "id"
)

var (
	service      *booking.Service
	notifier     email.Sender
	queryTimeout = defaultQueryTimeout
	serviceOnce  sync.Once
)

type scheduleRequest struct {
	UserID          string `json:"user_id"`
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	Duration        int    `json:"duration"`
}

type createRequest struct {
	scheduleRequest
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
	ClientEmail string `json:"client_email"`
	ServiceName string `json:"service_name"`
	Notes       string `json:"notes"`
	Status      string `json:"status"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type appointmentResponse struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	ClientName      *string `json:"client_name,omitempty"`
	ClientPhone     *string `json:"client_phone,omitempty"`
	ClientEmail     *string `json:"client_email,omitempty"`
	ServiceName     *string `json:"service_name,omitempty"`
	AppointmentDate string  `json:"appointment_date"`
	AppointmentTime string  `json:"appointment_time"`
	Duration        int64   `json:"duration"`
	Status          string  `json:"status"`
	Notes           *string `json:"notes,omitempty"`
}

// InitHandlers must be called during server startup before handling requests.
// sender may be nil, in which case clients are not emailed.
func InitHandlers(svc *booking.Service, timeout time.Duration, sender email.Sender) {
	if svc == nil {
		return
	}
	serviceOnce.Do(func() {
		service = svc
		notifier = sender
		if timeout > 0 {
			queryTimeout = timeout
		}
	})
}

// GET /api/v1/appointments?date=YYYY-MM-DD
func HandleAppointmentsList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Booking service not initialized")
		apiutil.WriteJSONError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	owner, ok := apiutil.RequireOwner(w, r, "")
	if !ok {
		return
	}

	date, err := availability.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		apiutil.WriteInputError(w, r, availability.InputError{Field: "date", Reason: "must be a valid YYYY-MM-DD date"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	rows, err := svc.ListDay(ctx, owner.ID, date)
	if err != nil {
		apiutil.WriteBookingError(w, r, err, "list appointments")
		return
	}

	items := make([]appointmentResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, newAppointmentResponse(row))
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"appointments": items}); err != nil {
		logger.Error().Err(err).Str("owner_id", owner.ID).Msg("Failed to write appointments response")
	}
}

// POST /api/v1/appointments
func HandleAppointmentCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Booking service not initialized")
		apiutil.WriteJSONError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var body createRequest
	if err := apiutil.DecodeJSON(w, r, &body); err != nil {
		apiutil.WriteJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	owner, ok := apiutil.RequireOwner(w, r, body.UserID)
	if !ok {
		return
	}

	req, err := body.toRequest(owner.ID, "")
	if err != nil {
		apiutil.WriteInputError(w, r, err)
		return
	}

	var status availability.Status
	if strings.TrimSpace(body.Status) != "" {
		parsed, ok := availability.ParseStatus(body.Status)
		if !ok {
			apiutil.WriteInputError(w, r, availability.InputError{Field: "status", Reason: "is not a known status"})
			return
		}
		status = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	created, err := svc.Book(ctx, booking.AppointmentInput{
		Request:     req,
		ClientName:  body.ClientName,
		ClientPhone: body.ClientPhone,
		ClientEmail: body.ClientEmail,
		ServiceName: body.ServiceName,
		Notes:       body.Notes,
		Status:      status,
	})
	if err != nil {
		logRejection(r, req, err)
		apiutil.WriteBookingError(w, r, err, "create appointment")
		return
	}

	notifyClient(r, svc, created, email.BuildConfirmationEmail)

	if err := apiutil.WriteJSON(w, http.StatusCreated, newAppointmentResponse(created)); err != nil {
		logger.Error().Err(err).Str("appointment_id", created.ID).Msg("Failed to write appointment response")
	}
}

// PUT /api/v1/appointments/{id}
func HandleAppointmentReschedule(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Booking service not initialized")
		apiutil.WriteJSONError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	appointmentID := strings.TrimSpace(r.PathValue(appointmentIDParam))
	if appointmentID == "" {
		apiutil.WriteJSONError(w, r, http.StatusBadRequest, "invalid appointment id")
		return
	}

	var body scheduleRequest
	if err := apiutil.DecodeJSON(w, r, &body); err != nil {
		apiutil.WriteJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	owner, ok := apiutil.RequireOwner(w, r, body.UserID)
	if !ok {
		return
	}

	req, err := body.toRequest(owner.ID, appointmentID)
	if err != nil {
		apiutil.WriteInputError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	updated, err := svc.Reschedule(ctx, appointmentID, req)
	if err != nil {
		logRejection(r, req, err)
		apiutil.WriteBookingError(w, r, err, "reschedule appointment")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, newAppointmentResponse(updated)); err != nil {
		logger.Error().Err(err).Str("appointment_id", updated.ID).Msg("Failed to write appointment response")
	}
}

// PATCH /api/v1/appointments/{id}/status
func HandleAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	svc := loadService()
	if svc == nil {
		logger.Error().Msg("Booking service not initialized")
		apiutil.WriteJSONError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	appointmentID := strings.TrimSpace(r.PathValue(appointmentIDParam))
	if appointmentID == "" {
		apiutil.WriteJSONError(w, r, http.StatusBadRequest, "invalid appointment id")
		return
	}

	var body statusRequest
	if err := apiutil.DecodeJSON(w, r, &body); err != nil {
		apiutil.WriteJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	owner, ok := apiutil.RequireOwner(w, r, "")
	if !ok {
		return
	}

	status, ok := availability.ParseStatus(body.Status)
	if !ok {
		apiutil.WriteInputError(w, r, availability.InputError{Field: "status", Reason: "is not a known status"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	updated, err := svc.Transition(ctx, owner.ID, appointmentID, status)
	if err != nil {
		apiutil.WriteBookingError(w, r, err, "update appointment status")
		return
	}
	if status == availability.StatusCancelled {
		notifyClient(r, svc, updated, email.BuildCancellationEmail)
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, newAppointmentResponse(updated)); err != nil {
		logger.Error().Err(err).Str("appointment_id", updated.ID).Msg("Failed to write appointment response")
	}
}

func (s scheduleRequest) toRequest(ownerID, excludeID string) (availability.AppointmentRequest, error) {
	return availability.NewAppointmentRequest(
		apiutil.FirstNonEmpty(s.UserID, ownerID),
		s.AppointmentDate,
		s.AppointmentTime,
		s.Duration,
		excludeID,
	)
}

func logRejection(r *http.Request, req availability.AppointmentRequest, err error) {
	var rejection *booking.RejectionError
	if !errors.As(err, &rejection) {
		return
	}
	log.Ctx(r.Context()).Info().
		Str("owner_id", req.OwnerID).
		Str("date", availability.FormatDate(req.Date)).
		Str("time", req.Start.String()).
		Str("reason", string(rejection.Result.Reason)).
		Int("conflicts", len(rejection.Result.Conflicts)).
		Msg("Appointment slot rejected")
}

// notifyClient emails the client when a sender is configured and the
// appointment has an address. Failures are logged, never returned.
func notifyClient(r *http.Request, svc *booking.Service, appt db.Appointment, build func(email.AppointmentDetails) (email.Message, error)) {
	if notifier == nil || !appt.ClientEmail.Valid {
		return
	}
	logger := log.Ctx(r.Context()).With().Str("appointment_id", appt.ID).Logger()

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	owner, err := svc.Owner(ctx, appt.OwnerID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load owner for client email")
		return
	}
	msg, err := build(email.DetailsFor(owner, appt))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to render client email")
		return
	}
	email.SendAsync(r.Context(), notifier, appt.ClientEmail.String, msg, &logger)
}

func newAppointmentResponse(row db.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              row.ID,
		UserID:          row.OwnerID,
		ClientName:      apiutil.NullableString(row.ClientName.String, row.ClientName.Valid),
		ClientPhone:     apiutil.NullableString(row.ClientPhone.String, row.ClientPhone.Valid),
		ClientEmail:     apiutil.NullableString(row.ClientEmail.String, row.ClientEmail.Valid),
		ServiceName:     apiutil.NullableString(row.ServiceName.String, row.ServiceName.Valid),
		AppointmentDate: row.AppointmentDate,
		AppointmentTime: row.AppointmentTime,
		Duration:        row.Duration,
		Status:          row.Status,
		Notes:           apiutil.NullableString(row.Notes.String, row.Notes.Valid),
	}
}

func loadService() *booking.Service {
	return service
}
