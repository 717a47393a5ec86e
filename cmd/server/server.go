// cmd/server/server.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/agendabeleza/internal/api"
	"github.com/codr1/agendabeleza/internal/api/apiutil"
	"github.com/codr1/agendabeleza/internal/api/appointments"
	"github.com/codr1/agendabeleza/internal/api/auth"
	"github.com/codr1/agendabeleza/internal/api/validation"
	"github.com/codr1/agendabeleza/internal/api/workinghours"
	"github.com/codr1/agendabeleza/internal/booking"
	"github.com/codr1/agendabeleza/internal/config"
	"github.com/codr1/agendabeleza/internal/db"
	"github.com/codr1/agendabeleza/internal/email"
	"github.com/codr1/agendabeleza/internal/ratelimit"
)

const healthCheckTimeout = 2 * time.Second

// app holds the long-lived dependencies shared by handlers and jobs.
type app struct {
	db            *db.DB
	booking       *booking.Service
	authenticator *auth.Authenticator
	limiter       *ratelimit.Limiter
	sender        email.Sender

	closeOnce sync.Once
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{
		db:            database,
		booking:       booking.NewService(database, cfg.Booking.DefaultPhoneRegion),
		authenticator: auth.NewAuthenticator(database.Queries),
	}

	if cfg.RateLimit.Enabled {
		a.limiter = ratelimit.New(&ratelimit.Config{
			PerMinute: cfg.RateLimit.PerMinute,
			Burst:     cfg.RateLimit.Burst,
		})
	}

	sesClient, err := email.NewSESClientFromConfig(ctx, cfg.Email)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("init email: %w", err)
	}
	if sesClient != nil {
		a.sender = sesClient
		log.Info().Str("region", cfg.Email.Region).Msg("Email delivery enabled")
	} else {
		log.Warn().Msg("Email delivery disabled: SES credentials not configured")
	}

	validation.InitHandlers(a.booking, cfg.QueryTimeout())
	appointments.InitHandlers(a.booking, cfg.QueryTimeout(), a.sender)
	workinghours.InitHandlers(database.Queries, cfg.QueryTimeout())

	return a, nil
}

func (a *app) Close() {
	a.closeOnce.Do(func() {
		if a.limiter != nil {
			a.limiter.Close()
		}
		if err := a.db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	})
}

func newServer(cfg *config.Config, a *app) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithCORS(cfg.App.AllowedOrigins),
	)

	// Register routes
	registerRoutes(router, cfg, a)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, cfg *config.Config, a *app) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := a.db.PingContext(ctx); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("Health check failed")
			apiutil.WriteJSONError(w, r, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		if err := apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write health response")
		}
	})

	apiMux := http.NewServeMux()

	// Availability
	apiMux.HandleFunc("POST /api/v1/appointments/validate", validation.HandleValidate)

	// Appointments
	apiMux.HandleFunc("GET /api/v1/appointments", appointments.HandleAppointmentsList)
	apiMux.HandleFunc("POST /api/v1/appointments", appointments.HandleAppointmentCreate)
	apiMux.HandleFunc("PUT /api/v1/appointments/{id}", appointments.HandleAppointmentReschedule)
	apiMux.HandleFunc("PATCH /api/v1/appointments/{id}/status", appointments.HandleAppointmentStatus)

	// Working hours
	apiMux.HandleFunc("GET /api/v1/working-hours", workinghours.HandleWorkingHoursList)
	apiMux.HandleFunc("PUT /api/v1/working-hours/{day_of_week}", workinghours.HandleWorkingHoursUpdate)
	apiMux.HandleFunc("DELETE /api/v1/working-hours/{day_of_week}", workinghours.HandleWorkingHoursDelete)

	mux.Handle("/api/v1/", api.WithAPIAccess(a.authenticator, a.limiter, cfg.RateLimit.TrustProxy)(apiMux))
}
