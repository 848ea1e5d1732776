// Package config loads the certy runtime configuration from environment
// variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/certy/pkg/logger"
	"github.com/dmitrymomot/certy/pkg/mailer"
	"github.com/dmitrymomot/certy/pkg/mailer/resend"
	"github.com/dmitrymomot/certy/pkg/mailer/smtp"
	"github.com/dmitrymomot/certy/pkg/storage"
	"github.com/dmitrymomot/certy/pkg/validator"
)

// Retention drivers.
const (
	RetentionNone  = "none"
	RetentionLocal = "local"
	RetentionS3    = "s3"
)

// Mail providers.
const (
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"
)

// ErrInvalid wraps every configuration validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the full runtime configuration.
type Config struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:","`

	// WorkDir is the parent of every directory left unset below.
	WorkDir    string `env:"WORK_DIR" envDefault:"./data"`
	UploadDir  string `env:"UPLOAD_DIR"`
	OutputDir  string `env:"OUTPUT_DIR"`
	LayoutPath string `env:"LAYOUT_PATH"`
	FontDir    string `env:"FONT_DIR"`

	RetentionDriver string         `env:"RETENTION_DRIVER" envDefault:"local"`
	RetentionDir    string         `env:"RETENTION_DIR"`
	S3              storage.Config `envPrefix:"S3_"`

	BatchWorkers      int           `env:"BATCH_WORKERS" envDefault:"4"`
	ConcurrentBatches int           `env:"CONCURRENT_BATCHES" envDefault:"2"`
	TaskTTL           time.Duration `env:"TASK_TTL" envDefault:"24h"`
	MaxUploadBytes    int64         `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`

	MailProvider string `env:"MAIL_PROVIDER" envDefault:"smtp"`
	// FormCredentials lets the upload form supply its own SMTP account.
	FormCredentials bool `env:"MAIL_FORM_CREDENTIALS" envDefault:"true"`
	Mail            mailer.Config
	SMTP            smtp.Config
	Resend          resend.Config

	Log    logger.Config
	Sentry logger.SentryConfig
}

// Load reads the process environment.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return finish(cfg)
}

// LoadFrom reads vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return finish(cfg)
}

func finish(cfg Config) (Config, error) {
	cfg.resolve()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolve() {
	dir := func(v *string, name string) {
		if *v == "" {
			*v = filepath.Join(c.WorkDir, name)
		}
	}
	dir(&c.UploadDir, "uploads")
	dir(&c.OutputDir, "certificates")
	dir(&c.RetentionDir, "retained")
	dir(&c.FontDir, "fonts")
	dir(&c.LayoutPath, "layout.json")

	if c.Mail.From == "" {
		c.Mail.From = c.SMTP.From
	}
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	err := validator.Apply(
		validator.RequiredString("HTTP_ADDR", c.Addr),
		validator.OneOf("RETENTION_DRIVER", c.RetentionDriver, RetentionNone, RetentionLocal, RetentionS3),
		validator.OneOf("MAIL_PROVIDER", c.MailProvider, ProviderSMTP, ProviderResend),
		validator.RangeNum("BATCH_WORKERS", c.BatchWorkers, 1, 32),
		validator.PositiveNum("CONCURRENT_BATCHES", c.ConcurrentBatches),
		validator.PositiveNum("MAX_UPLOAD_BYTES", c.MaxUploadBytes),
		validator.Custom("TASK_TTL", "must be positive", "validation.positive", func() bool { return c.TaskTTL > 0 }),
		validator.Custom("S3_BUCKET", "is required for the s3 retention driver", "validation.required", func() bool {
			return c.RetentionDriver != RetentionS3 || c.S3.Bucket != ""
		}),
		validator.Custom("RESEND_API_KEY", "is required for the resend provider", "validation.required", func() bool {
			return c.MailProvider != ProviderResend || c.Resend.APIKey != ""
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.MailProvider == ProviderSMTP && c.SMTP.Username != "" {
		if err := c.SMTP.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	return nil
}

// HasMailAccount reports whether a default sending account is configured.
// Without one, batches need credentials from the form.
func (c Config) HasMailAccount() bool {
	switch c.MailProvider {
	case ProviderResend:
		return c.Resend.APIKey != ""
	default:
		return c.SMTP.Username != "" && c.SMTP.Password != ""
	}
}
