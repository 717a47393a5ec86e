package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/codr1/agendabeleza/internal/db"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// SeedOwner inserts an owner row and returns its id.
func SeedOwner(t *testing.T, database *db.DB, id string) string {
	t.Helper()

	_, err := database.Queries.CreateOwner(context.Background(), db.CreateOwnerParams{
		ID:       id,
		Name:     "Studio " + id,
		Email:    sql.NullString{String: id + "@example.com", Valid: true},
		Timezone: "UTC",
	})
	if err != nil {
		t.Fatalf("insert owner: %v", err)
	}
	return id
}

// SeedWorkingHours stores an active window for the given weekday.
func SeedWorkingHours(t *testing.T, database *db.DB, ownerID string, dayOfWeek int64, start, end string) {
	t.Helper()

	_, err := database.Queries.UpsertWorkingHours(context.Background(), db.UpsertWorkingHoursParams{
		OwnerID:   ownerID,
		DayOfWeek: dayOfWeek,
		StartTime: start,
		EndTime:   end,
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("seed working hours: %v", err)
	}
}

// SeedAppointment stores an appointment and returns it.
func SeedAppointment(t *testing.T, database *db.DB, ownerID, id, date, start string, duration int64, status string) db.Appointment {
	t.Helper()

	appt, err := database.Queries.CreateAppointment(context.Background(), db.CreateAppointmentParams{
		ID:              id,
		OwnerID:         ownerID,
		ClientName:      sql.NullString{String: "Cliente " + id, Valid: true},
		ServiceName:     sql.NullString{String: "Limpeza de pele", Valid: true},
		AppointmentDate: date,
		AppointmentTime: start,
		Duration:        duration,
		Status:          status,
	})
	if err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	return appt
}
