package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmitrymomot/certy/internal/config"
	"github.com/dmitrymomot/certy/pkg/health"
	"github.com/dmitrymomot/certy/pkg/job"
	"github.com/dmitrymomot/certy/pkg/logger"
	"github.com/dmitrymomot/certy/pkg/mailer"
	"github.com/dmitrymomot/certy/pkg/mailer/resend"
	"github.com/dmitrymomot/certy/pkg/mailer/smtp"
	"github.com/dmitrymomot/certy/pkg/storage"
)

func newLogger(cfg config.Config) *slog.Logger {
	return logger.NewWithSentry(cfg.Log, cfg.Sentry,
		logger.RequestIDExtractor(),
		logger.TaskIDExtractor(),
	)
}

// ensureDirs creates the working directories the server writes into.
func ensureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// newRetention opens the storage that keeps certificates which could not
// be delivered. It returns nil storage for the "none" driver.
func newRetention(cfg config.Config) (storage.Storage, health.CheckFunc, error) {
	switch cfg.RetentionDriver {
	case config.RetentionS3:
		st, err := storage.New(cfg.S3)
		if err != nil {
			return nil, nil, fmt.Errorf("s3 retention: %w", err)
		}
		return st, st.Healthcheck(), nil
	case config.RetentionLocal:
		st, err := storage.NewLocal(cfg.RetentionDir)
		if err != nil {
			return nil, nil, fmt.Errorf("local retention: %w", err)
		}
		return st, st.Healthcheck(), nil
	default:
		return nil, nil, nil
	}
}

// newDefaultMailer builds the mailer used when a batch brings no
// credentials of its own. It returns nil when no account is configured.
func newDefaultMailer(cfg config.Config, renderer *mailer.Renderer, log *slog.Logger) (*mailer.Mailer, error) {
	if !cfg.HasMailAccount() {
		log.Info("no default mail account configured; batches must supply credentials")
		return nil, nil
	}

	var (
		sender mailer.Sender
		err    error
	)
	switch cfg.MailProvider {
	case config.ProviderResend:
		log.Info("using resend mail provider", slog.Any("resend", cfg.Resend))
		sender, err = resend.New(cfg.Resend)
	default:
		log.Info("using smtp mail provider", slog.Any("smtp", cfg.SMTP))
		sender, err = smtp.New(cfg.SMTP)
	}
	if err != nil {
		return nil, err
	}
	mcfg := cfg.Mail
	if mcfg.From == "" && cfg.MailProvider == config.ProviderSMTP {
		mcfg.From = cfg.SMTP.Username
	}
	return mailer.New(sender, renderer, mcfg), nil
}

func healthChecks(cfg config.Config, jobs *job.Manager, retention health.CheckFunc) health.Checks {
	checks := health.Checks{
		"upload_dir": health.DirWritable(cfg.UploadDir),
		"output_dir": health.DirWritable(cfg.OutputDir),
		"jobs":       job.Healthcheck(jobs),
	}
	if retention != nil {
		checks["retention"] = retention
	}
	return checks
}

func shutdownHook(name string, log *slog.Logger, fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			log.ErrorContext(ctx, "shutdown failed", slog.String("component", name), slog.Any("error", err))
			return err
		}
		return nil
	}
}
