package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/codr1/agendabeleza/internal/db"
)

type OwnerCreateCmd struct {
	Name     string `arg:"" help:"Business name shown to clients."`
	ID       string `help:"Owner id. Generated when empty."`
	Email    string `help:"Contact email."`
	Timezone string `help:"IANA timezone of the business." default:"America/Sao_Paulo"`
}

func (c *OwnerCreateCmd) Run(app *Context) error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	id := strings.TrimSpace(c.ID)
	if id == "" {
		id = uuid.NewString()
	}

	database, err := app.openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	email := strings.TrimSpace(c.Email)
	owner, err := database.Queries.CreateOwner(context.Background(), db.CreateOwnerParams{
		ID:       id,
		Name:     strings.TrimSpace(c.Name),
		Email:    sql.NullString{String: email, Valid: email != ""},
		Timezone: c.Timezone,
	})
	if err != nil {
		return fmt.Errorf("create owner: %w", err)
	}

	fmt.Printf("Created owner %s (%s)\n", owner.ID, owner.Name)
	return nil
}

type OwnerListCmd struct{}

func (c *OwnerListCmd) Run(app *Context) error {
	database, err := app.openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	owners, err := database.Queries.ListOwners(context.Background())
	if err != nil {
		return fmt.Errorf("list owners: %w", err)
	}
	if len(owners) == 0 {
		fmt.Println("No owners registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIMEZONE\tEMAIL")
	for _, owner := range owners {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", owner.ID, owner.Name, owner.Timezone, owner.Email.String)
	}
	return w.Flush()
}
