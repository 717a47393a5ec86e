package appointments

// NOTE: Tests cannot use t.Parallel() due to shared package state.

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codr1/agendabeleza/internal/api/apiutil"
	"github.com/codr1/agendabeleza/internal/api/authz"
	"github.com/codr1/agendabeleza/internal/booking"
	"github.com/codr1/agendabeleza/internal/db"
	"github.com/codr1/agendabeleza/internal/testutil"
)

const monday = "2024-01-15"

func setupAppointmentsTest(t *testing.T) (*db.DB, string) {
	t.Helper()

	database := testutil.NewTestDB(t)
	owner := testutil.SeedOwner(t, database, "owner-1")
	testutil.SeedWorkingHours(t, database, owner, 1, "09:00", "18:00")

	service = nil
	serviceOnce = sync.Once{}
	InitHandlers(booking.NewService(database, "BR"), 0, nil)

	t.Cleanup(func() {
		service = nil
		notifier = nil
		serviceOnce = sync.Once{}
	})

	return database, owner
}

func jsonRequest(t *testing.T, method, target, ownerID string, body any) *http.Request {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(authz.ContextWithOwner(req.Context(), &authz.Owner{ID: ownerID}))
}

func TestHandleAppointmentCreate(t *testing.T) {
	database, owner := setupAppointmentsTest(t)

	req := jsonRequest(t, http.MethodPost, "/api/v1/appointments", owner, map[string]any{
		"appointment_date": monday,
		"appointment_time": "10:00",
		"duration":         60,
		"client_name":      "Ana",
		"client_phone":     "11 98765-4321",
		"service_name":     "Design de sobrancelhas",
	})
	recorder := httptest.NewRecorder()

	HandleAppointmentCreate(recorder, req)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
	}
	var created appointmentResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Status != "pendente" || created.UserID != owner {
		t.Fatalf("unexpected appointment: %+v", created)
	}
	if created.ClientPhone == nil || *created.ClientPhone != "+5511987654321" {
		t.Fatalf("client phone: %v", created.ClientPhone)
	}

	stored, err := database.Queries.GetAppointment(context.Background(), owner, created.ID)
	if err != nil {
		t.Fatalf("load stored appointment: %v", err)
	}
	if stored.AppointmentTime != "10:00" || stored.Duration != 60 {
		t.Fatalf("stored appointment: %+v", stored)
	}
}

func TestHandleAppointmentCreate_Conflict(t *testing.T) {
	database, owner := setupAppointmentsTest(t)
	testutil.SeedAppointment(t, database, owner, "a1", monday, "10:00", 60, "confirmado")

	req := jsonRequest(t, http.MethodPost, "/api/v1/appointments", owner, map[string]any{
		"appointment_date": monday,
		"appointment_time": "10:30",
		"duration":         30,
	})
	recorder := httptest.NewRecorder()

	HandleAppointmentCreate(recorder, req)

	if recorder.Code != http.StatusConflict {
		t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
	}
	var payload apiutil.ValidationPayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Valid || payload.Reason != "scheduling_conflict" || len(payload.Conflicts) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleAppointmentCreate_InvalidInput(t *testing.T) {
	_, owner := setupAppointmentsTest(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing time", map[string]any{"appointment_date": monday, "duration": 30}},
		{"bad status", map[string]any{"appointment_date": monday, "appointment_time": "10:00", "duration": 30, "status": "agendado"}},
		{"bad phone", map[string]any{"appointment_date": monday, "appointment_time": "10:00", "duration": 30, "client_phone": "123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			HandleAppointmentCreate(recorder, jsonRequest(t, http.MethodPost, "/api/v1/appointments", owner, tt.body))
			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestHandleAppointmentCreate_ForeignOwner(t *testing.T) {
	_, owner := setupAppointmentsTest(t)

	req := jsonRequest(t, http.MethodPost, "/api/v1/appointments", owner, map[string]any{
		"user_id":          "owner-2",
		"appointment_date": monday,
		"appointment_time": "10:00",
		"duration":         30,
	})
	recorder := httptest.NewRecorder()

	HandleAppointmentCreate(recorder, req)

	if recorder.Code != http.StatusForbidden {
		t.Fatalf("status: %d", recorder.Code)
	}
}

func TestHandleAppointmentReschedule(t *testing.T) {
	database, owner := setupAppointmentsTest(t)
	testutil.SeedAppointment(t, database, owner, "a1", monday, "10:00", 60, "confirmado")
	testutil.SeedAppointment(t, database, owner, "a2", monday, "12:00", 60, "pendente")

	tests := []struct {
		name   string
		id     string
		time   string
		status int
	}{
		{"overlaps itself only", "a1", "10:30", http.StatusOK},
		{"overlaps another", "a1", "11:30", http.StatusConflict},
		{"unknown appointment", "missing", "15:00", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := jsonRequest(t, http.MethodPut, "/api/v1/appointments/"+tt.id, owner, map[string]any{
				"appointment_date": monday,
				"appointment_time": tt.time,
				"duration":         60,
			})
			req.SetPathValue("id", tt.id)
			recorder := httptest.NewRecorder()

			HandleAppointmentReschedule(recorder, req)

			if recorder.Code != tt.status {
				t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestHandleAppointmentStatus(t *testing.T) {
	database, owner := setupAppointmentsTest(t)
	testutil.SeedAppointment(t, database, owner, "a1", monday, "10:00", 60, "pendente")

	steps := []struct {
		status string
		code   int
	}{
		{"confirmado", http.StatusOK},
		{"pendente", http.StatusConflict},
		{"concluido", http.StatusOK},
		{"cancelado", http.StatusConflict},
		{"desconhecido", http.StatusBadRequest},
	}

	for _, step := range steps {
		req := jsonRequest(t, http.MethodPatch, "/api/v1/appointments/a1/status", owner, map[string]any{"status": step.status})
		req.SetPathValue("id", "a1")
		recorder := httptest.NewRecorder()

		HandleAppointmentStatus(recorder, req)

		if recorder.Code != step.code {
			t.Fatalf("%s: status %d body: %s", step.status, recorder.Code, recorder.Body.String())
		}
	}
}

func TestHandleAppointmentsList(t *testing.T) {
	database, owner := setupAppointmentsTest(t)
	testutil.SeedAppointment(t, database, owner, "a2", monday, "14:00", 30, "cancelado")
	testutil.SeedAppointment(t, database, owner, "a1", monday, "10:00", 60, "confirmado")
	testutil.SeedOwner(t, database, "owner-2")
	testutil.SeedAppointment(t, database, "owner-2", "b1", monday, "10:00", 60, "confirmado")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?date="+monday, nil)
	req = req.WithContext(authz.ContextWithOwner(req.Context(), &authz.Owner{ID: owner}))
	recorder := httptest.NewRecorder()

	HandleAppointmentsList(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
	}
	var body struct {
		Appointments []appointmentResponse `json:"appointments"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Appointments) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(body.Appointments))
	}
	if body.Appointments[0].ID != "a1" || body.Appointments[1].ID != "a2" {
		t.Fatalf("unexpected order: %+v", body.Appointments)
	}
}

func TestHandleAppointmentsList_BadDate(t *testing.T) {
	_, owner := setupAppointmentsTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?date=tomorrow", nil)
	req = req.WithContext(authz.ContextWithOwner(req.Context(), &authz.Owner{ID: owner}))
	recorder := httptest.NewRecorder()

	HandleAppointmentsList(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", recorder.Code)
	}
}

type recordingSender struct {
	subjects chan string
}

func (s *recordingSender) Send(ctx context.Context, recipient, subject, body string) error {
	s.subjects <- subject
	return nil
}

func TestHandleAppointmentCreate_EmailsClient(t *testing.T) {
	database, owner := setupAppointmentsTest(t)
	sender := &recordingSender{subjects: make(chan string, 2)}
	service = nil
	serviceOnce = sync.Once{}
	InitHandlers(booking.NewService(database, "BR"), 0, sender)

	req := jsonRequest(t, http.MethodPost, "/api/v1/appointments", owner, map[string]any{
		"appointment_date": monday,
		"appointment_time": "10:00",
		"duration":         60,
		"client_email":     "ana@example.com",
	})
	recorder := httptest.NewRecorder()
	HandleAppointmentCreate(recorder, req)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
	}
	select {
	case subject := <-sender.subjects:
		if !strings.HasPrefix(subject, "Agendamento recebido") {
			t.Fatalf("subject: %q", subject)
		}
	case <-time.After(time.Second):
		t.Fatal("expected confirmation email")
	}
}
