package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codr1/agendabeleza/internal/api/auth"
	"github.com/codr1/agendabeleza/internal/api/authz"
	"github.com/codr1/agendabeleza/internal/ratelimit"
	"github.com/codr1/agendabeleza/internal/testutil"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestWithRequestID(t *testing.T) {
	var seen string
	handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("expected request id in context")
	}
	if recorder.Header().Get("X-Request-ID") != seen {
		t.Fatalf("header %q does not match context %q", recorder.Header().Get("X-Request-ID"), seen)
	}
}

func TestWithLoggingWithoutRequestID(t *testing.T) {
	recorder := httptest.NewRecorder()
	WithLogging(okHandler()).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d", recorder.Code)
	}
}

func TestWithRecovery(t *testing.T) {
	handler := WithRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("status: %d", recorder.Code)
	}
}

func TestWithCORS(t *testing.T) {
	handler := WithCORS([]string{"https://app.example.com/"})(okHandler())

	preflight := httptest.NewRequest(http.MethodOptions, "/api/v1/appointments/validate", nil)
	preflight.Header.Set("Origin", "https://app.example.com")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, preflight)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("preflight status: %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("allow origin: %q", recorder.Header().Get("Access-Control-Allow-Origin"))
	}

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.Header.Set("Origin", "https://evil.example.com")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, other)

	if recorder.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unexpected CORS header for unknown origin")
	}
	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d", recorder.Code)
	}
}

func TestWithAuth(t *testing.T) {
	database := testutil.NewTestDB(t)
	owner := testutil.SeedOwner(t, database, "owner-1")
	issued, err := auth.IssueKey(context.Background(), database.Queries, owner, "")
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}

	var resolved string
	handler := WithAuth(auth.NewAuthenticator(database.Queries))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = authz.OwnerIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"bad key", "X-API-Key", "ak_nope.nope", http.StatusUnauthorized},
		{"api key header", "X-API-Key", issued.Plaintext, http.StatusOK},
		{"bearer", "Authorization", "Bearer " + issued.Plaintext, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved = ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/working-hours", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)

			if recorder.Code != tt.status {
				t.Fatalf("status: %d", recorder.Code)
			}
			if tt.status == http.StatusOK && resolved != owner {
				t.Fatalf("owner in context: %q", resolved)
			}
		})
	}
}

func TestWithOwnerRateLimit(t *testing.T) {
	limiter := ratelimit.New(&ratelimit.Config{PerMinute: 1, Burst: 1})
	defer limiter.Close()

	handler := WithOwnerRateLimit(limiter, false)(okHandler())
	newRequest := func(ownerID string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)
		req.RemoteAddr = "198.51.100.20:4000"
		return req.WithContext(authz.ContextWithOwner(req.Context(), &authz.Owner{ID: ownerID}))
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, newRequest("owner-1"))
	if recorder.Code != http.StatusOK {
		t.Fatalf("first request status: %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, newRequest("owner-1"))
	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status: %d", recorder.Code)
	}
	if recorder.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, newRequest("owner-2"))
	if recorder.Code != http.StatusOK {
		t.Fatalf("other owner status: %d", recorder.Code)
	}
}

func TestWithAPIAccess_ThrottlesFailedKeys(t *testing.T) {
	database := testutil.NewTestDB(t)
	limiter := ratelimit.New(&ratelimit.Config{PerMinute: 1, Burst: 1})
	defer limiter.Close()

	handler := WithAPIAccess(auth.NewAuthenticator(database.Queries), limiter, false)(okHandler())

	codes := map[int]int{}
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/working-hours", nil)
		req.RemoteAddr = "198.51.100.30:4000"
		req.Header.Set("Authorization", "Bearer ak_guess.secret")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		codes[recorder.Code]++
	}

	if codes[http.StatusUnauthorized] != 1 || codes[http.StatusTooManyRequests] != 4 {
		t.Fatalf("codes: %v", codes)
	}
}

func TestWithAPIAccess_LimitsOwner(t *testing.T) {
	database := testutil.NewTestDB(t)
	owner := testutil.SeedOwner(t, database, "owner-1")
	issued, err := auth.IssueKey(context.Background(), database.Queries, owner, "")
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}
	limiter := ratelimit.New(&ratelimit.Config{PerMinute: 1, Burst: 1})
	defer limiter.Close()

	handler := WithAPIAccess(auth.NewAuthenticator(database.Queries), limiter, false)(okHandler())

	// Distinct IPs so only the owner bucket can run dry.
	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/working-hours", nil)
		req.RemoteAddr = fmt.Sprintf("198.51.100.%d:4000", 40+i)
		req.Header.Set("X-API-Key", issued.Plaintext)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != want {
			t.Fatalf("request %d: status %d, want %d", i, recorder.Code, want)
		}
	}
}

func TestWithAPIAccess_NoLimiter(t *testing.T) {
	database := testutil.NewTestDB(t)
	handler := WithAPIAccess(auth.NewAuthenticator(database.Queries), nil, false)(okHandler())

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/working-hours", nil))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status: %d", recorder.Code)
	}
}

func TestChainMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	ChainMiddleware(okHandler(), mark("inner"), mark("outer")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Fatalf("order: %v", order)
	}
}
