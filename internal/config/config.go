// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultQueryTimeoutSeconds    = 5
	defaultShutdownTimeoutSeconds = 30
	defaultPhoneRegion            = "BR"
	defaultCompletionCron         = "*/10 * * * *"
	defaultReminderCron           = "0 18 * * *"
	defaultRateLimitPerMinute     = 60
	defaultRateLimitBurst         = 20
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type BookingConfig struct {
	QueryTimeoutSeconds int    `yaml:"query_timeout_seconds"`
	DefaultPhoneRegion  string `yaml:"default_phone_region"`
}

type RateLimitConfig struct {
	Enabled    bool `yaml:"enabled"`
	PerMinute  int  `yaml:"per_minute"`
	Burst      int  `yaml:"burst"`
	TrustProxy bool `yaml:"trust_proxy"`
}

type JobsConfig struct {
	CompletionCron string `yaml:"completion_cron"`
	ReminderCron   string `yaml:"reminder_cron"`
}

type EmailConfig struct {
	Region          string `yaml:"region"`
	Sender          string `yaml:"sender"`
	AccessKeyID     string `yaml:"-"` // Loaded from environment
	SecretAccessKey string `yaml:"-"` // Loaded from environment
}

// Enabled reports whether SES credentials are present.
func (e EmailConfig) Enabled() bool {
	return e.AccessKeyID != "" && e.SecretAccessKey != "" && e.Region != "" && e.Sender != ""
}

type Config struct {
	App struct {
		Name                   string   `yaml:"name"`
		Environment            string   `yaml:"environment"`
		Port                   int      `yaml:"port"`
		ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
		AllowedOrigins         []string `yaml:"allowed_origins"`
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Booking   BookingConfig   `yaml:"booking"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Email     EmailConfig     `yaml:"email"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Load sensitive values from environment
	cfg.Email.AccessKeyID = os.Getenv("AWS_SES_ACCESS_KEY_ID")
	cfg.Email.SecretAccessKey = os.Getenv("AWS_SES_SECRET_ACCESS_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and fills defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.ShutdownTimeoutSeconds <= 0 {
		c.App.ShutdownTimeoutSeconds = defaultShutdownTimeoutSeconds
	}
	if c.Booking.QueryTimeoutSeconds <= 0 {
		c.Booking.QueryTimeoutSeconds = defaultQueryTimeoutSeconds
	}
	if strings.TrimSpace(c.Booking.DefaultPhoneRegion) == "" {
		c.Booking.DefaultPhoneRegion = defaultPhoneRegion
	}
	if c.RateLimit.PerMinute <= 0 {
		c.RateLimit.PerMinute = defaultRateLimitPerMinute
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultRateLimitBurst
	}
	if c.Jobs.CompletionCron == "" {
		c.Jobs.CompletionCron = defaultCompletionCron
	}
	if c.Jobs.ReminderCron == "" {
		c.Jobs.ReminderCron = defaultReminderCron
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if len(c.Booking.DefaultPhoneRegion) != 2 {
		return fmt.Errorf("booking default_phone_region must be a two-letter region code")
	}

	if _, err := cron.ParseStandard(c.Jobs.CompletionCron); err != nil {
		return fmt.Errorf("jobs completion_cron: %w", err)
	}
	if _, err := cron.ParseStandard(c.Jobs.ReminderCron); err != nil {
		return fmt.Errorf("jobs reminder_cron: %w", err)
	}

	return nil
}

func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Booking.QueryTimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.App.ShutdownTimeoutSeconds) * time.Second
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
