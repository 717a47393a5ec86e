// internal/api/workinghours/handlers.go
package workinghours

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/agendabeleza/internal/api/apiutil"
	"github.com/codr1/agendabeleza/internal/availability"
	"github.com/codr1/agendabeleza/internal/db"
)

const (
	defaultQueryTimeout = 5 * time.Second
	dayOfWeekParam      = "day_of_week"
	defaultStartTime    = "09:00"
	defaultEndTime      = "18:00"
)

var (
	queries      *db.Queries
	queryTimeout = defaultQueryTimeout
	queriesOnce  sync.Once
)

type workingHoursRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsActive  *bool  `json:"is_active"`
}

type dayResponse struct {
	DayOfWeek int64  `json:"day_of_week"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	IsActive  bool   `json:"is_active"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *db.Queries, timeout time.Duration) {
	if q == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
		if timeout > 0 {
			queryTimeout = timeout
		}
	})
}

// GET /api/v1/working-hours
func HandleWorkingHoursList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteJSONError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	owner, ok := apiutil.RequireOwner(w, r, "")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	rows, err := q.ListWorkingHours(ctx, owner.ID)
	if err != nil {
		logger.Error().Err(err).Str("owner_id", owner.ID).Msg("Failed to fetch working hours")
		apiutil.WriteJSONError(w, r, http.StatusInternalServerError, "Failed to load working hours")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"working_hours": weekResponse(rows)}); err != nil {
		logger.Error().Err(err).Str("owner_id", owner.ID).Msg("Failed to write working hours response")
	}
}

// PUT /api/v1/working-hours/{day_of_week}
func HandleWorkingHoursUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteJSONError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	dayOfWeek, err := apiutil.ParseDayOfWeek(r.PathValue(dayOfWeekParam))
	if err != nil {
		apiutil.WriteJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req workingHoursRequest
	if err := apiutil.DecodeJSON(w, r, &req); err != nil {
		apiutil.WriteJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	owner, ok := apiutil.RequireOwner(w, r, "")
	if !ok {
		return
	}

	isActive := req.IsActive == nil || *req.IsActive
	startRaw := strings.TrimSpace(req.StartTime)
	endRaw := strings.TrimSpace(req.EndTime)
	if !isActive && startRaw == "" && endRaw == "" {
		startRaw = defaultStartTime
		endRaw = defaultEndTime
	}

	start, err := parseWindowTime(startRaw, "start_time")
	if err != nil {
		apiutil.WriteInputError(w, r, err)
		return
	}
	end, err := parseWindowTime(endRaw, "end_time")
	if err != nil {
		apiutil.WriteInputError(w, r, err)
		return
	}
	if start >= end {
		apiutil.WriteInputError(w, r, availability.InputError{Field: "start_time", Reason: "must be before end_time"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	updated, err := q.UpsertWorkingHours(ctx, db.UpsertWorkingHoursParams{
		OwnerID:   owner.ID,
		DayOfWeek: dayOfWeek,
		StartTime: start.String(),
		EndTime:   end.String(),
		IsActive:  isActive,
	})
	if err != nil {
		logger.Error().Err(err).Str("owner_id", owner.ID).Int64("day_of_week", dayOfWeek).Msg("Failed to upsert working hours")
		apiutil.WriteJSONError(w, r, http.StatusInternalServerError, "Failed to update working hours")
		return
	}

	logger.Info().
		Str("owner_id", owner.ID).
		Int64("day_of_week", dayOfWeek).
		Str("start_time", updated.StartTime).
		Str("end_time", updated.EndTime).
		Bool("is_active", updated.IsActive).
		Msg("Working hours updated")

	if err := apiutil.WriteJSON(w, http.StatusOK, newDayResponse(updated)); err != nil {
		logger.Error().Err(err).Str("owner_id", owner.ID).Int64("day_of_week", dayOfWeek).Msg("Failed to write working hours response")
	}
}

// DELETE /api/v1/working-hours/{day_of_week}
func HandleWorkingHoursDelete(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteJSONError(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	dayOfWeek, err := apiutil.ParseDayOfWeek(r.PathValue(dayOfWeekParam))
	if err != nil {
		apiutil.WriteJSONError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	owner, ok := apiutil.RequireOwner(w, r, "")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	deleted, err := q.DeleteWorkingHours(ctx, owner.ID, dayOfWeek)
	if err != nil {
		logger.Error().Err(err).Str("owner_id", owner.ID).Int64("day_of_week", dayOfWeek).Msg("Failed to delete working hours")
		apiutil.WriteJSONError(w, r, http.StatusInternalServerError, "Failed to update working hours")
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": deleted > 0}); err != nil {
		logger.Error().Err(err).Str("owner_id", owner.ID).Int64("day_of_week", dayOfWeek).Msg("Failed to write working hours response")
	}
}

func parseWindowTime(raw, field string) (availability.TimeOfDay, error) {
	if raw == "" {
		return 0, availability.InputError{Field: field, Reason: "is required"}
	}
	value, err := availability.ParseTimeOfDay(raw)
	if err != nil {
		return 0, availability.InputError{Field: field, Reason: "must be in HH:MM format"}
	}
	return value, nil
}

func weekResponse(rows []db.WorkingHour) []dayResponse {
	byDay := make(map[int64]db.WorkingHour, len(rows))
	for _, row := range rows {
		if _, seen := byDay[row.DayOfWeek]; !seen {
			byDay[row.DayOfWeek] = row
		}
	}

	days := make([]dayResponse, 0, 7)
	for day := int64(0); day < 7; day++ {
		row, ok := byDay[day]
		if !ok {
			days = append(days, dayResponse{DayOfWeek: day})
			continue
		}
		days = append(days, newDayResponse(row))
	}
	return days
}

func newDayResponse(row db.WorkingHour) dayResponse {
	return dayResponse{
		DayOfWeek: row.DayOfWeek,
		StartTime: row.StartTime,
		EndTime:   row.EndTime,
		IsActive:  row.IsActive,
	}
}

func loadQueries() *db.Queries {
	return queries
}
