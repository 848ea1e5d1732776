package handlers

import (
	"log/slog"

	"github.com/dmitrymomot/certy/pkg/mailer"
	"github.com/dmitrymomot/certy/pkg/mailer/smtp"
)

// Credentials are the SMTP settings typed into the send form. Empty
// fields fall back to the server configuration.
type Credentials struct {
	Email    string
	Password string
	Host     string
	Port     int
}

func (c Credentials) empty() bool {
	return c.Email == "" && c.Password == "" && c.Host == "" && c.Port == 0
}

// LogValue implements slog.LogValuer without the password.
func (c Credentials) LogValue() slog.Value {
	password := ""
	if c.Password != "" {
		password = "[REDACTED]"
	}
	return slog.GroupValue(
		slog.String("email", c.Email),
		slog.String("password", password),
		slog.String("host", c.Host),
		slog.Int("port", c.Port),
	)
}

// MailerFactory builds a mailer for one batch from form credentials.
type MailerFactory func(Credentials) (*mailer.Mailer, error)

// SMTPMailerFactory overlays form credentials on base. The sender address
// doubles as the SMTP username, the way most providers expect.
func SMTPMailerFactory(base smtp.Config, renderer *mailer.Renderer, cfg mailer.Config) MailerFactory {
	return func(c Credentials) (*mailer.Mailer, error) {
		conf := base
		if c.Host != "" {
			conf.Host = c.Host
		}
		if c.Port > 0 {
			conf.Port = c.Port
			conf.SSL = c.Port == 465
		}
		if c.Email != "" {
			conf.Username = c.Email
			conf.From = c.Email
		}
		if c.Password != "" {
			conf.Password = c.Password
		}

		sender, err := smtp.New(conf)
		if err != nil {
			return nil, err
		}
		if c.Email != "" {
			cfg.From = c.Email
		}
		return mailer.New(sender, renderer, cfg), nil
	}
}
