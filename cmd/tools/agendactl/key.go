package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/codr1/agendabeleza/internal/api/auth"
)

type KeyIssueCmd struct {
	Owner string `arg:"" help:"Owner id the key acts for."`
	Label string `help:"Free-form label to recognise the key later."`
}

func (c *KeyIssueCmd) Run(app *Context) error {
	database, err := app.openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if _, err := database.Queries.GetOwner(ctx, c.Owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("owner %q not found", c.Owner)
		}
		return fmt.Errorf("load owner: %w", err)
	}

	issued, err := auth.IssueKey(ctx, database.Queries, c.Owner, c.Label)
	if err != nil {
		return err
	}

	fmt.Printf("Key id: %s\n", issued.ID)
	fmt.Printf("API key (shown once): %s\n", issued.Plaintext)
	return nil
}

type KeyRevokeCmd struct {
	ID string `arg:"" help:"Key id, or the full key."`
}

func (c *KeyRevokeCmd) Run(app *Context) error {
	keyID := strings.TrimPrefix(strings.TrimSpace(c.ID), "ak_")
	if i := strings.IndexByte(keyID, '.'); i >= 0 {
		keyID = keyID[:i]
	}

	database, err := app.openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	revoked, err := database.Queries.RevokeAPIKey(context.Background(), keyID)
	if err != nil {
		return fmt.Errorf("revoke key: %w", err)
	}
	if revoked == 0 {
		return fmt.Errorf("key %q not found or already revoked", keyID)
	}

	fmt.Printf("Revoked key %s\n", keyID)
	return nil
}
