package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codr1/agendabeleza/internal/api/authz"
)

const maxBodyBytes = 1 << 20

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

func IsJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json")
}

func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("missing request body")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteJSONError writes {"error": message} with the given status.
func WriteJSONError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if err := WriteJSON(w, status, map[string]string{"error": message}); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("Failed to write error response")
	}
}

// RequireOwner resolves the authenticated owner and, when ownerID is
// non-empty, checks that it matches. It writes the error response itself.
func RequireOwner(w http.ResponseWriter, r *http.Request, ownerID string) (*authz.Owner, bool) {
	logger := log.Ctx(r.Context())
	owner := authz.OwnerFromContext(r.Context())
	if err := authz.RequireOwner(r.Context(), ownerID); err != nil {
		switch {
		case errors.Is(err, authz.ErrUnauthenticated):
			logger.Warn().Str("owner_id", ownerID).Msg("Owner access denied: unauthenticated")
			WriteJSONError(w, r, http.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, authz.ErrForbidden):
			logEvent := logger.Warn().Str("owner_id", ownerID)
			if owner != nil {
				logEvent = logEvent.Str("authenticated_owner_id", owner.ID)
			}
			logEvent.Msg("Owner access denied: forbidden")
			WriteJSONError(w, r, http.StatusForbidden, "Forbidden")
		default:
			logger.Error().Err(err).Str("owner_id", ownerID).Msg("Owner access denied: error")
			WriteJSONError(w, r, http.StatusInternalServerError, "Failed to authorize request")
		}
		return nil, false
	}
	return owner, true
}
