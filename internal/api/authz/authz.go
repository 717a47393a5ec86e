package authz

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// Owner is the authenticated professional whose calendar a request acts on.
type Owner struct {
	ID    string
	KeyID string
}

type ownerContextKey struct{}

func ContextWithOwner(ctx context.Context, owner *Owner) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, owner)
}

// OwnerFromContext retrieves the Owner stored in ctx.
// It returns nil if ctx is nil, if no owner is stored, or if the stored value has a different type.
func OwnerFromContext(ctx context.Context) *Owner {
	if ctx == nil {
		return nil
	}

	owner, ok := ctx.Value(ownerContextKey{}).(*Owner)
	if !ok {
		return nil
	}

	return owner
}

// OwnerIDFromContext returns the owner id, or empty if unauthenticated.
func OwnerIDFromContext(ctx context.Context) string {
	if owner := OwnerFromContext(ctx); owner != nil {
		return owner.ID
	}
	return ""
}

// RequireOwner checks that a request is authenticated and, when
// requestedOwnerID is non-empty, that it targets the caller's own calendar.
func RequireOwner(ctx context.Context, requestedOwnerID string) error {
	owner := OwnerFromContext(ctx)
	if owner == nil || owner.ID == "" {
		return ErrUnauthenticated
	}

	requestedOwnerID = strings.TrimSpace(requestedOwnerID)
	if requestedOwnerID != "" && requestedOwnerID != owner.ID {
		return ErrForbidden
	}

	return nil
}
