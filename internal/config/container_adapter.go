package config

import (
	"github.com/garyjia/tutoring-backoffice/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// It expects a validated Config.
func (c *Config) ToContainerConfig() (*container.Config, error) {
	anchor, err := c.Payroll.Anchor()
	if err != nil {
		return nil, err
	}
	location, err := c.Payroll.Location()
	if err != nil {
		return nil, err
	}

	templates := make(map[string]string, len(c.SMS.Templates))
	for kind, tmpl := range c.SMS.Templates {
		templates[kind] = tmpl
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			Mode:         c.Server.Mode,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Payroll: container.PayrollConfig{
			PeriodAnchor:    anchor,
			BulkConcurrency: c.Payroll.BulkConcurrency,
			CompanyName:     c.Payroll.CompanyName,
			AutoGenerate:    c.Payroll.AutoGenerate,
			Schedule:        c.Payroll.Schedule,
			Location:        location,
		},
		Webhook: container.WebhookConfig{
			PaymentURL: c.Webhook.PaymentURL,
			Secret:     c.Webhook.Secret,
			Timeout:    c.Webhook.Timeout,
		},
		SMS: container.SMSConfig{
			Provider:    c.SMS.Provider,
			APIURL:      c.SMS.APIURL,
			AccountSID:  c.SMS.AccountSID,
			AuthToken:   c.SMS.AuthToken,
			FromNumber:  c.SMS.FromNumber,
			Timeout:     c.SMS.Timeout,
			Concurrency: c.SMS.Concurrency,
			CompanyName: c.SMS.CompanyName,
			Templates:   templates,
		},
		Notifier: container.NotifierConfig{
			Kind:          c.Notifier.Kind,
			LarkAppID:     c.Notifier.Lark.AppID,
			LarkAppSecret: c.Notifier.Lark.AppSecret,
			LarkChatID:    c.Notifier.Lark.ChatID,
			LarkBaseURL:   c.Notifier.Lark.BaseURL,
		},
	}, nil
}
