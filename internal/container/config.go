// Package container provides dependency injection and lifecycle management
// for the tutoring back-office service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Payroll  PayrollConfig
	Webhook  WebhookConfig
	SMS      SMSConfig
	Notifier NotifierConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PayrollConfig holds payroll engine settings.
type PayrollConfig struct {
	// PeriodAnchor is the Monday that fixes bi-weekly period parity
	PeriodAnchor    time.Time
	BulkConcurrency int
	CompanyName     string

	// Scheduled generation of the default-period draft run
	AutoGenerate bool
	Schedule     string
	Location     *time.Location
}

// WebhookConfig holds payment webhook settings. An empty URL disables delivery.
type WebhookConfig struct {
	PaymentURL string
	Secret     string
	Timeout    time.Duration
}

// SMSConfig holds carrier settings.
type SMSConfig struct {
	// Provider is "log" or "twilio"
	Provider    string
	APIURL      string
	AccountSID  string
	AuthToken   string
	FromNumber  string
	Timeout     time.Duration
	Concurrency int
	CompanyName string
	Templates   map[string]string
}

// NotifierConfig selects the ops chat adapter.
type NotifierConfig struct {
	// Kind is "log" or "lark"
	Kind          string
	LarkAppID     string
	LarkAppSecret string
	LarkChatID    string
	LarkBaseURL   string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/backoffice.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         "release",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Payroll: PayrollConfig{
			PeriodAnchor:    time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			BulkConcurrency: 4,
			CompanyName:     "Tutoring Center",
			Schedule:        "0 6 * * *",
			Location:        time.UTC,
		},
		Webhook: WebhookConfig{
			Timeout: 10 * time.Second,
		},
		SMS: SMSConfig{
			Provider:    "log",
			Timeout:     15 * time.Second,
			Concurrency: 5,
			CompanyName: "Tutoring Center",
		},
		Notifier: NotifierConfig{
			Kind: "log",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.SMS.Provider {
	case "log":
	case "twilio":
		if c.SMS.AccountSID == "" || c.SMS.AuthToken == "" || c.SMS.FromNumber == "" {
			return fmt.Errorf("twilio provider requires account sid, auth token and from number")
		}
	default:
		return fmt.Errorf("unknown sms provider %q", c.SMS.Provider)
	}

	switch c.Notifier.Kind {
	case "log":
	case "lark":
		if c.Notifier.LarkAppID == "" || c.Notifier.LarkAppSecret == "" || c.Notifier.LarkChatID == "" {
			return fmt.Errorf("lark notifier requires app id, app secret and chat id")
		}
	default:
		return fmt.Errorf("unknown notifier kind %q", c.Notifier.Kind)
	}

	return nil
}
