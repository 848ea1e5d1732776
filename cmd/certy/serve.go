package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/certy/internal/batch"
	"github.com/dmitrymomot/certy/internal/certificate"
	"github.com/dmitrymomot/certy/internal/config"
	"github.com/dmitrymomot/certy/internal/handlers"
	"github.com/dmitrymomot/certy/internal/layout"
	"github.com/dmitrymomot/certy/internal/server"
	"github.com/dmitrymomot/certy/internal/views"
	"github.com/dmitrymomot/certy/middlewares"
	"github.com/dmitrymomot/certy/pkg/mailer"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web interface and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	log := newLogger(cfg)

	if err := ensureDirs(cfg.UploadDir, cfg.OutputDir, cfg.FontDir); err != nil {
		return err
	}
	retention, retentionCheck, err := newRetention(cfg)
	if err != nil {
		return err
	}

	layouts := layout.NewStore(cfg.LayoutPath)
	if _, err := layouts.Load(); err != nil {
		return err
	}

	renderer := certificate.NewRenderer(
		certificate.WithFontDir(cfg.FontDir),
		certificate.WithOutputDir(cfg.OutputDir),
		certificate.WithLogger(log),
	)

	mailRenderer := mailer.NewRenderer(nil)
	defaultMailer, err := newDefaultMailer(cfg, mailRenderer, log)
	if err != nil {
		return err
	}

	orchOpts := []batch.OrchestratorOption{
		batch.WithLogger(log),
		batch.WithWorkers(cfg.BatchWorkers),
	}
	if defaultMailer != nil {
		orchOpts = append(orchOpts, batch.WithMailer(defaultMailer))
	}
	if retention != nil {
		orchOpts = append(orchOpts, batch.WithRetention(retention))
	}
	orch := batch.NewOrchestrator(batch.NewRegistry(), renderer, orchOpts...)

	svcOpts := []batch.ServiceOption{
		batch.WithUploadDir(cfg.UploadDir),
		batch.WithTTL(cfg.TaskTTL),
		batch.WithConcurrentBatches(cfg.ConcurrentBatches),
		batch.WithServiceLogger(log),
	}
	if retention != nil {
		svcOpts = append(svcOpts, batch.WithServiceRetention(retention))
	}
	svc, err := batch.NewService(orch, svcOpts...)
	if err != nil {
		return err
	}

	var factory handlers.MailerFactory
	if cfg.FormCredentials {
		factory = handlers.SMTPMailerFactory(cfg.SMTP, mailRenderer, cfg.Mail)
	}

	middleware := []server.Middleware{
		middlewares.RequestID(),
		middlewares.Recover(),
	}
	if len(cfg.CORSOrigins) > 0 {
		middleware = append(middleware, middlewares.CORS(middlewares.WithAllowOrigins(cfg.CORSOrigins...)))
	}

	srv := server.New(
		server.WithLogger(log),
		server.WithMiddleware(middleware...),
		server.WithErrorHandler(middlewares.ErrorHandler(
			middlewares.WithErrorFragment("#flash", func(msg string) server.Component {
				return views.ErrorAlert(msg)
			}),
		)),
		server.WithStaticFiles("/static/", views.Static, "static"),
		server.WithHealthChecks(healthChecks(cfg, svc.Jobs(), retentionCheck)),
		server.WithHandlers(
			handlers.NewPageHandler(svc, layouts),
			handlers.NewUploadHandler(svc, cfg.UploadDir, cfg.MaxUploadBytes, views.MailDefaults{
				Host:           cfg.SMTP.Host,
				Port:           cfg.SMTP.Port,
				HasCredentials: defaultMailer != nil,
			}),
			handlers.NewBatchHandler(svc, layouts, factory),
			handlers.NewLayoutHandler(layouts, renderer),
		),
	)

	log.Info("starting certy",
		slog.String("version", version),
		slog.String("addr", cfg.Addr),
		slog.String("retention", cfg.RetentionDriver),
		slog.String("mail_provider", cfg.MailProvider),
	)
	err = srv.Run(cfg.Addr,
		server.WithContext(ctx),
		server.Logger(log),
		server.ShutdownTimeout(cfg.ShutdownTimeout),
		server.StartupHook(svc.Start),
		server.ShutdownHook(shutdownHook("batch service", log, svc.Stop)),
	)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
