package smtp

import (
	"errors"
	"log/slog"
	"strings"
	"time"
)

// TLS policies accepted by Config.TLS.
const (
	TLSMandatory     = "mandatory"
	TLSOpportunistic = "opportunistic"
	TLSNone          = "none"
)

// Config holds SMTP connection parameters. Embed in app config for env
// parsing with caarlos0/env.
type Config struct {
	Host     string        `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	Username string        `env:"SMTP_USERNAME"`
	Password string        `env:"SMTP_PASSWORD"`
	From     string        `env:"SMTP_FROM"`
	TLS      string        `env:"SMTP_TLS" envDefault:"mandatory"`
	Port     int           `env:"SMTP_PORT" envDefault:"587"`
	Timeout  time.Duration `env:"SMTP_TIMEOUT" envDefault:"30s"`
	SSL      bool          `env:"SMTP_SSL" envDefault:"false"`
}

var (
	ErrMissingHost     = errors.New("smtp: host is required")
	ErrInvalidPort     = errors.New("smtp: port must be between 1 and 65535")
	ErrInvalidTLS      = errors.New("smtp: tls must be one of mandatory, opportunistic, none")
	ErrMissingPassword = errors.New("smtp: password is required when username is set")
)

// Validate checks the configuration without contacting the server.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, ErrMissingHost)
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	switch c.TLS {
	case "", TLSMandatory, TLSOpportunistic, TLSNone:
	default:
		errs = append(errs, ErrInvalidTLS)
	}
	if c.Username != "" && c.Password == "" {
		errs = append(errs, ErrMissingPassword)
	}
	return errors.Join(errs...)
}

// LogValue implements slog.LogValuer. The password never leaves this method.
func (c Config) LogValue() slog.Value {
	password := ""
	if c.Password != "" {
		password = "[REDACTED]"
	}
	return slog.GroupValue(
		slog.String("host", c.Host),
		slog.Int("port", c.Port),
		slog.String("username", c.Username),
		slog.String("password", password),
		slog.String("tls", c.TLS),
		slog.Bool("ssl", c.SSL),
		slog.Duration("timeout", c.Timeout),
	)
}

// String keeps %v and %+v from printing the password.
func (c Config) String() string {
	return c.LogValue().String()
}

// GoString keeps %#v from printing the password.
func (c Config) GoString() string {
	return "smtp.Config" + c.String()
}
