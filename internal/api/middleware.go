// internal/api/middleware.go
package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/agendabeleza/internal/api/apiutil"
	"github.com/codr1/agendabeleza/internal/api/auth"
	"github.com/codr1/agendabeleza/internal/api/authz"
	"github.com/codr1/agendabeleza/internal/ratelimit"
)

type Middleware func(http.Handler) http.Handler

type requestIDKey struct{}

func ChainMiddleware(h http.Handler, middleware ...Middleware) http.Handler {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

// RequestIDFromContext returns the id assigned by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create response wrapper to capture status code
		wrapped := wrapResponseWriter(w)

		next.ServeHTTP(wrapped, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Str("request_id", RequestIDFromContext(r.Context())).
			Msg("Request completed")
	})
}

func WithRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger := log.Ctx(r.Context())
				// Log the full stack trace
				stack := debug.Stack()
				logger.Error().
					Interface("error", err).
					Str("stack", string(stack)).
					Msg("Panic recovered")

				apiutil.WriteJSONError(w, r, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		// Create a logger with the request ID
		logger := log.With().Str("request_id", requestID).Logger()

		// Add both the request ID and logger to context
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx = logger.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithCORS answers preflight requests and tags responses for allowed
// origins. "*" in allowedOrigins allows any origin.
func WithCORS(allowedOrigins []string) Middleware {
	allowAny := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			allowAny = true
			continue
		}
		if origin != "" {
			allowed[strings.ToLower(origin)] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				_, ok := allowed[strings.ToLower(origin)]
				if allowAny || ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
					w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+auth.APIKeyHeader())
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithAuth resolves the API key on the request into an owner. Requests
// without a valid key are rejected.
func WithAuth(authenticator *auth.Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := log.Ctx(r.Context())
			credential := auth.CredentialFromHeaders(r.Header.Get("Authorization"), r.Header.Get(auth.APIKeyHeader()))

			owner, err := authenticator.Authenticate(r.Context(), credential)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrMissingCredentials):
					logger.Debug().Msg("Request without credentials")
					apiutil.WriteJSONError(w, r, http.StatusUnauthorized, "Unauthorized")
				case errors.Is(err, auth.ErrInvalidCredentials):
					logger.Warn().Msg("Request with invalid API key")
					apiutil.WriteJSONError(w, r, http.StatusUnauthorized, "Unauthorized")
				default:
					logger.Error().Err(err).Msg("Failed to authenticate request")
					apiutil.WriteJSONError(w, r, http.StatusInternalServerError, "Failed to authenticate request")
				}
				return
			}

			ctx := authz.ContextWithOwner(r.Context(), owner)
			ctx = log.Ctx(ctx).With().Str("owner_id", owner.ID).Logger().WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIPRateLimit spends a token from the client IP bucket. It runs before
// authentication so failed key checks are throttled too.
func WithIPRateLimit(limiter *ratelimit.Limiter, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ratelimit.GetClientIP(r, trustProxy)
			if result := limiter.AllowIP(ip); !result.Allowed {
				ratelimit.LogRateLimitExceeded(r, "", ip, result)
				writeTooManyRequests(w, r, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithOwnerRateLimit spends a token from the authenticated owner's bucket.
// Requests without an owner pass through.
func WithOwnerRateLimit(limiter *ratelimit.Limiter, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID := authz.OwnerIDFromContext(r.Context())
			if ownerID != "" {
				if result := limiter.AllowOwner(ownerID); !result.Allowed {
					ratelimit.LogRateLimitExceeded(r, ownerID, ratelimit.GetClientIP(r, trustProxy), result)
					writeTooManyRequests(w, r, result)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithAPIAccess guards the API: IP limit, then key authentication, then the
// owner limit. A nil limiter only authenticates.
func WithAPIAccess(authenticator *auth.Authenticator, limiter *ratelimit.Limiter, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return WithAuth(authenticator)(next)
		}
		return ChainMiddleware(next,
			WithOwnerRateLimit(limiter, trustProxy),
			WithAuth(authenticator),
			WithIPRateLimit(limiter, trustProxy),
		)
	}
}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request, result ratelimit.LimitResult) {
	seconds := int(math.Ceil(result.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	apiutil.WriteJSONError(w, r, http.StatusTooManyRequests, "Too many requests")
}

// responseWriter wrapper to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
