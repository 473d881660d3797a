package app

import (
	"github.com/charlesng35/authcore/internal/notifications"
	"github.com/charlesng35/authcore/pkg/mail"
)

// SMTPSettings converts EmailConfig to the mail package representation.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// DispatcherConfig combines the notification pool settings with the product details
// rendered into outbound links.
func (c *Config) DispatcherConfig() notifications.Config {
	return notifications.Config{
		Workers:     c.Notifications.Workers,
		QueueSize:   c.Notifications.QueueSize,
		MaxAttempts: c.Notifications.MaxAttempts,
		Backoff:     c.Notifications.Backoff,
		AppName:     c.App.Name,
		FrontendURL: c.App.FrontendURL,
	}
}
