package authz

import (
	"context"
	"errors"
	"testing"
)

func TestRequireOwnerUnauthenticated(t *testing.T) {
	err := RequireOwner(context.Background(), "owner-1")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRequireOwnerForbidden(t *testing.T) {
	ctx := ContextWithOwner(context.Background(), &Owner{ID: "owner-2"})

	err := RequireOwner(ctx, "owner-1")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRequireOwnerAllowed(t *testing.T) {
	ctx := ContextWithOwner(context.Background(), &Owner{ID: "owner-1"})

	if err := RequireOwner(ctx, "owner-1"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := RequireOwner(ctx, ""); err != nil {
		t.Fatalf("expected nil for implicit owner, got %v", err)
	}
	if OwnerIDFromContext(ctx) != "owner-1" {
		t.Fatalf("owner id: %q", OwnerIDFromContext(ctx))
	}
}
