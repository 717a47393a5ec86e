package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalConfig = `app:
  name: "Agenda"
  port: 8080
database:
  driver: "sqlite"
  filename: "data/agenda.db"
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.App.Environment != "development" {
		t.Fatalf("environment: %s", cfg.App.Environment)
	}
	if cfg.Booking.DefaultPhoneRegion != "BR" {
		t.Fatalf("phone region: %s", cfg.Booking.DefaultPhoneRegion)
	}
	if cfg.QueryTimeout().Seconds() != 5 {
		t.Fatalf("query timeout: %v", cfg.QueryTimeout())
	}
	if cfg.Jobs.CompletionCron == "" || cfg.Jobs.ReminderCron == "" {
		t.Fatalf("expected default cron expressions")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing name", func(c *Config) { c.App.Name = "" }, "app name"},
		{"missing port", func(c *Config) { c.App.Port = 0 }, "app port"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "postgres" }, "unsupported database driver"},
		{"missing filename", func(c *Config) { c.Database.Filename = "" }, "filename"},
		{"bad region", func(c *Config) { c.Booking.DefaultPhoneRegion = "BRA" }, "default_phone_region"},
		{"bad cron", func(c *Config) { c.Jobs.ReminderCron = "every day" }, "reminder_cron"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(minimalConfig))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadReadsSecretsFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	body := minimalConfig + `email:
  region: "us-east-1"
  sender: "agenda@example.com"
`
	if err := os.WriteFile(configPath, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AWS_SES_ACCESS_KEY_ID", "AKIATEST")
	t.Setenv("AWS_SES_SECRET_ACCESS_KEY", "secret")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Email.Enabled() {
		t.Fatalf("expected email enabled")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
