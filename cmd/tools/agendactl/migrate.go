package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrateCmd drives golang-migrate directly. The server applies the embedded
// migrations on start; this is for rollbacks and inspecting a database file.
type MigrateCmd struct {
	Command    string `arg:"" enum:"up,down,version" help:"One of up, down, version."`
	DB         string `required:"" help:"Path to SQLite database." type:"path"`
	Migrations string `help:"Path to migrations directory." type:"path" default:"internal/db/migrations"`
}

func (c *MigrateCmd) Run(app *Context) error {
	if _, err := os.Stat(c.Migrations); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", c.Migrations)
	}
	if err := os.MkdirAll(filepath.Dir(c.DB), 0755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}

	m, err := migrate.New("file://"+c.Migrations, "sqlite3://"+c.DB)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	switch c.Command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
		fmt.Println("Successfully ran migrations up")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
		fmt.Println("Successfully ran migrations down")
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return fmt.Errorf("get version: %w", err)
		}
		fmt.Printf("Current version: %d, Dirty: %v\n", version, dirty)
	}
	return nil
}
