package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/certy/internal/batch"
	"github.com/dmitrymomot/certy/internal/certificate"
	"github.com/dmitrymomot/certy/internal/config"
	"github.com/dmitrymomot/certy/internal/layout"
	"github.com/dmitrymomot/certy/pkg/logger"
	"github.com/dmitrymomot/certy/pkg/mailer"
)

type runFlags struct {
	input    string
	template string
	layout   string
	output   string
	subject  string
	body     string
	workers  int
	dryRun   bool
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate and send certificates for one roster",
		Long: `Run renders a certificate for every valid roster row and emails it.
The JSON summary is printed on stdout. The exit code is 0 when every
certificate was sent, 1 when the batch failed, 2 when some records failed
and 3 when the batch was interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runBatch(ctx, cfg, f, cmd.OutOrStdout())
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "roster file (.csv, .xlsx or .xls)")
	fl.StringVarP(&f.template, "template", "t", "", "certificate template (.pdf, .png or .jpg); defaults to the layout's template_path")
	fl.StringVarP(&f.layout, "layout", "l", "", "layout file; defaults to LAYOUT_PATH")
	fl.StringVarP(&f.output, "output", "o", "", "directory for generated certificates; defaults to OUTPUT_DIR")
	fl.StringVar(&f.subject, "subject", "", "email subject, may contain {name}, {branch} and {year}")
	fl.StringVar(&f.body, "body", "", "email body, may contain {name}, {branch} and {year}")
	fl.IntVarP(&f.workers, "workers", "w", 0, "records processed concurrently; defaults to BATCH_WORKERS")
	fl.BoolVar(&f.dryRun, "dry-run", false, "render certificates without sending any email")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runBatch(ctx context.Context, cfg config.Config, f runFlags, stdout io.Writer) error {
	// stdout carries the summary only.
	cfg.Log.Output = os.Stderr
	log := newLogger(cfg)

	layoutPath := cfg.LayoutPath
	if f.layout != "" {
		layoutPath = f.layout
	}
	lcfg, err := layout.NewStore(layoutPath).Load()
	if err != nil {
		return err
	}
	tpl, err := certificate.ResolveTemplate(f.template, lcfg.TemplatePath)
	if err != nil {
		return err
	}

	outputDir := cfg.OutputDir
	if f.output != "" {
		outputDir = f.output
	}
	if err := ensureDirs(outputDir); err != nil {
		return err
	}

	var m *mailer.Mailer
	if f.dryRun {
		m = mailer.New(&mailer.NopSender{}, nil, cfg.Mail)
	} else {
		m, err = newDefaultMailer(cfg, mailer.NewRenderer(nil), log)
		if err != nil {
			return err
		}
		if m == nil {
			return errors.New("no mail account configured: set SMTP_USERNAME and SMTP_PASSWORD, RESEND_API_KEY, or use --dry-run")
		}
	}

	opts := []batch.OrchestratorOption{
		batch.WithMailer(m),
		batch.WithLogger(log),
		batch.WithWorkers(cfg.BatchWorkers),
	}
	if !f.dryRun {
		retention, _, err := newRetention(cfg)
		if err != nil {
			return err
		}
		if retention != nil {
			opts = append(opts, batch.WithRetention(retention))
		}
	}

	renderer := certificate.NewRenderer(
		certificate.WithFontDir(cfg.FontDir),
		certificate.WithOutputDir(outputDir),
		certificate.WithLogger(log),
	)
	reg := batch.NewRegistry()
	orch := batch.NewOrchestrator(reg, renderer, opts...)

	task := reg.Create(f.input, tpl.Path)
	summary, runErr := orch.Run(logger.WithTaskID(ctx, task.TaskID), batch.Job{
		TaskID:        task.TaskID,
		Input:         f.input,
		Template:      tpl,
		Layout:        lcfg,
		Workers:       f.workers,
		Message:       batch.Message{Subject: f.subject, Body: f.body},
		KeepArtifacts: f.dryRun,
	})
	if summary.TaskID == "" {
		if runErr != nil {
			return runErr
		}
		return errors.New("batch produced no summary")
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "error:", runErr)
	}
	if code := summary.State.ExitCode(); code != 0 {
		return exitError{code: code}
	}
	return nil
}
