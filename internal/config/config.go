package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/tutoring-backoffice/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Payroll  PayrollConfig  `mapstructure:"payroll"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	SMS      SMSConfig      `mapstructure:"sms"`
	Notifier NotifierConfig `mapstructure:"notifier"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // gin mode: debug, release or test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// PayrollConfig holds pay period and generation settings
type PayrollConfig struct {
	PeriodAnchor    string `mapstructure:"period_anchor"` // YYYY-MM-DD, must be a Monday
	AutoGenerate    bool   `mapstructure:"auto_generate"`
	Schedule        string `mapstructure:"schedule"`
	Timezone        string `mapstructure:"timezone"`
	BulkConcurrency int    `mapstructure:"bulk_concurrency"`
	CompanyName     string `mapstructure:"company_name"`
}

// WebhookConfig holds the payment webhook settings. An empty URL disables delivery.
type WebhookConfig struct {
	PaymentURL string        `mapstructure:"payment_url"`
	Secret     string        `mapstructure:"secret"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// SMSConfig holds carrier and template settings
type SMSConfig struct {
	Provider    string            `mapstructure:"provider"` // log or twilio
	APIURL      string            `mapstructure:"api_url"`
	AccountSID  string            `mapstructure:"account_sid"`
	AuthToken   string            `mapstructure:"auth_token"`
	FromNumber  string            `mapstructure:"from_number"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	Concurrency int               `mapstructure:"concurrency"`
	CompanyName string            `mapstructure:"company_name"`
	Templates   map[string]string `mapstructure:"templates"`
}

// NotifierConfig selects where ops announcements go
type NotifierConfig struct {
	Kind string         `mapstructure:"kind"` // log or lark
	Lark LarkChatConfig `mapstructure:"lark"`
}

// LarkChatConfig holds Lark app credentials and the ops chat
type LarkChatConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	ChatID    string `mapstructure:"chat_id"`
	BaseURL   string `mapstructure:"base_url"`
}

// Load reads an optional .env file, then the YAML config at configPath, then
// environment overrides. A missing config file is allowed when configPath is empty.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs without overriding the real environment
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/backoffice.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Payroll defaults
	v.SetDefault("payroll.period_anchor", "2024-01-01")
	v.SetDefault("payroll.auto_generate", false)
	v.SetDefault("payroll.schedule", "0 6 * * *")
	v.SetDefault("payroll.timezone", "UTC")
	v.SetDefault("payroll.bulk_concurrency", 4)
	v.SetDefault("payroll.company_name", "Tutoring Center")

	// Webhook defaults
	v.SetDefault("webhook.timeout", 10*time.Second)

	// SMS defaults
	v.SetDefault("sms.provider", "log")
	v.SetDefault("sms.api_url", "https://api.twilio.com")
	v.SetDefault("sms.timeout", 15*time.Second)
	v.SetDefault("sms.concurrency", 5)
	v.SetDefault("sms.company_name", "Tutoring Center")

	// Notifier defaults
	v.SetDefault("notifier.kind", "log")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.mode", "GIN_MODE")
	v.BindEnv("database.path", "DATABASE_PATH")
	v.BindEnv("logger.level", "LOG_LEVEL")

	// Sensitive credentials from environment
	v.BindEnv("webhook.payment_url", "PAYMENT_WEBHOOK_URL")
	v.BindEnv("webhook.secret", "PAYMENT_WEBHOOK_SECRET")
	v.BindEnv("sms.provider", "SMS_PROVIDER")
	v.BindEnv("sms.account_sid", "TWILIO_ACCOUNT_SID")
	v.BindEnv("sms.auth_token", "TWILIO_AUTH_TOKEN")
	v.BindEnv("sms.from_number", "TWILIO_FROM_NUMBER")
	v.BindEnv("notifier.kind", "NOTIFIER_KIND")
	v.BindEnv("notifier.lark.app_id", "LARK_APP_ID")
	v.BindEnv("notifier.lark.app_secret", "LARK_APP_SECRET")
	v.BindEnv("notifier.lark.chat_id", "LARK_CHAT_ID")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	anchor, err := c.Payroll.Anchor()
	if err != nil {
		return err
	}
	if anchor.Weekday() != time.Monday {
		return fmt.Errorf("payroll.period_anchor must be a Monday, got %s", anchor.Weekday())
	}
	if _, err := c.Payroll.Location(); err != nil {
		return err
	}
	if c.Payroll.AutoGenerate && strings.TrimSpace(c.Payroll.Schedule) == "" {
		return fmt.Errorf("payroll.schedule is required when auto_generate is on")
	}

	if c.Webhook.PaymentURL != "" {
		u, err := url.Parse(c.Webhook.PaymentURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook.payment_url must be an http(s) URL")
		}
	}

	switch c.SMS.Provider {
	case "log":
	case "twilio":
		if c.SMS.AccountSID == "" {
			return fmt.Errorf("sms.account_sid is required for the twilio provider")
		}
		if c.SMS.AuthToken == "" {
			return fmt.Errorf("sms.auth_token is required for the twilio provider")
		}
		if err := utils.ValidatePhone(c.SMS.FromNumber); err != nil {
			return fmt.Errorf("sms.from_number: %w", err)
		}
	default:
		return fmt.Errorf("sms.provider must be log or twilio, got %q", c.SMS.Provider)
	}

	switch c.Notifier.Kind {
	case "log":
	case "lark":
		if c.Notifier.Lark.AppID == "" {
			return fmt.Errorf("notifier.lark.app_id is required")
		}
		if c.Notifier.Lark.AppSecret == "" {
			return fmt.Errorf("notifier.lark.app_secret is required")
		}
		if c.Notifier.Lark.ChatID == "" {
			return fmt.Errorf("notifier.lark.chat_id is required")
		}
	default:
		return fmt.Errorf("notifier.kind must be log or lark, got %q", c.Notifier.Kind)
	}

	return nil
}

// Anchor parses the period anchor date
func (p PayrollConfig) Anchor() (time.Time, error) {
	anchor, err := time.Parse(time.DateOnly, p.PeriodAnchor)
	if err != nil {
		return time.Time{}, fmt.Errorf("payroll.period_anchor must be YYYY-MM-DD: %w", err)
	}
	return anchor, nil
}

// Location resolves the scheduler timezone
func (p PayrollConfig) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("payroll.timezone: %w", err)
	}
	return loc, nil
}
