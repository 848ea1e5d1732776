package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/certy/internal/certificate"
	"github.com/dmitrymomot/certy/internal/layout"
	"github.com/dmitrymomot/certy/internal/roster"
	"github.com/dmitrymomot/certy/pkg/mailer"
	"github.com/dmitrymomot/certy/pkg/storage"
)

// DefaultWorkers is the record concurrency when a job does not set one.
const DefaultWorkers = 4

const causeSessionUnavailable = "mail session unavailable"

// Message is the operator-supplied email for a batch. An empty Body uses
// mailer.DefaultBody.
type Message struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
	From    string `json:"from,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// Job describes one batch run.
type Job struct {
	// Mailer overrides the orchestrator's mailer, e.g. with credentials
	// taken from the request.
	Mailer   *mailer.Mailer       `json:"-"`
	Template certificate.Template `json:"template"`
	Layout   layout.Config        `json:"layout"`
	Message  Message              `json:"message"`
	TaskID   string               `json:"task_id"`
	Input    string               `json:"input"`
	Workers  int                  `json:"workers,omitempty"`
	// KeepArtifacts leaves rendered certificates in the output directory
	// after the send step. Dry runs use it.
	KeepArtifacts bool `json:"keep_artifacts,omitempty"`
}

// Renderer produces the certificate for one record.
type Renderer interface {
	Render(ctx context.Context, rec roster.Record, cfg layout.Config, tpl certificate.Template) (certificate.Artifact, error)
}

// Orchestrator runs the normalize, render and send pipeline for a task.
type Orchestrator struct {
	registry  *Registry
	renderer  Renderer
	mailer    *mailer.Mailer
	retention storage.Storage
	logger    *slog.Logger
	workers   int
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMailer sets the mailer used by jobs that do not carry their own.
func WithMailer(m *mailer.Mailer) OrchestratorOption {
	return func(o *Orchestrator) { o.mailer = m }
}

// WithRetention sets where certificates that failed to send are kept.
func WithRetention(s storage.Storage) OrchestratorOption {
	return func(o *Orchestrator) { o.retention = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithWorkers sets the default record concurrency.
func WithWorkers(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(reg *Registry, renderer Renderer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry: reg,
		renderer: renderer,
		logger:   slog.Default(),
		workers:  DefaultWorkers,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry returns the registry the orchestrator reports to.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// run carries the mutable state of one Run call.
type run struct {
	job      Job
	mail     *mailer.Mailer
	message  *mailer.Template
	logger   *slog.Logger
	fatalErr error
	mu       sync.Mutex
}

func (r *run) fatal() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatalErr
}

func (r *run) setFatal(err error) {
	r.mu.Lock()
	if r.fatalErr == nil {
		r.fatalErr = err
	}
	r.mu.Unlock()
}

// Run processes the task described by job and returns its summary. The
// error is non-nil only when the batch failed as a whole.
func (o *Orchestrator) Run(ctx context.Context, job Job) (Summary, error) {
	logger := o.logger.With(slog.String("task_id", job.TaskID))

	if _, err := o.registry.transition(job.TaskID, StateRunning, ""); err != nil {
		return Summary{}, err
	}
	logger.InfoContext(ctx, "batch started", slog.String("input", job.Input))

	r := &run{job: job, mail: job.Mailer, logger: logger}
	if r.mail == nil {
		r.mail = o.mailer
	}
	if r.mail == nil {
		return o.fail(ctx, r, ErrNoSender.Error(), ErrNoSender)
	}

	result, err := roster.Normalize(ctx, job.Input)
	if err != nil {
		if ctx.Err() != nil {
			return o.finish(ctx, r)
		}
		return o.fail(ctx, r, err.Error(), err)
	}
	o.registry.update(job.TaskID, func(p *Progress) {
		p.Total = result.Total
		p.Valid = len(result.Records)
		p.Skipped = len(result.Skipped)
		p.Records = initialStatuses(result)
	})

	if job.Template.Kind != "" && job.Template.Kind != certificate.KindNone {
		tpl, err := certificate.ValidateTemplate(job.Template.Path)
		if err != nil {
			return o.fail(ctx, r, err.Error(), err)
		}
		r.job.Template = tpl
	}

	if job.Message.Body != "" {
		tmpl, err := mailer.ParseTemplate([]byte(job.Message.Body))
		if err != nil {
			return o.fail(ctx, r, err.Error(), err)
		}
		r.message = tmpl
	}

	if len(result.Records) == 0 {
		return o.fail(ctx, r, ErrNoValidRecords.Error(), ErrNoValidRecords)
	}

	if err := r.mail.Open(ctx); err != nil {
		if ctx.Err() != nil {
			return o.finish(ctx, r)
		}
		o.failPending(job.TaskID, causeSessionUnavailable, StageSend)
		return o.fail(ctx, r, fmt.Sprintf("%s: %v", causeSessionUnavailable, err), err)
	}
	defer func() {
		if err := r.mail.Close(); err != nil {
			logger.WarnContext(ctx, "closing mail session", slog.Any("error", err))
		}
	}()

	workers := job.Workers
	if workers <= 0 {
		workers = o.workers
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, rec := range result.Records {
		if o.stopped(ctx, r) {
			break
		}
		g.Go(func() error {
			if o.stopped(ctx, r) {
				return nil
			}
			o.process(ctx, r, rec)
			return nil
		})
	}
	_ = g.Wait()

	if err := r.fatal(); err != nil {
		o.failPending(job.TaskID, err.Error(), StageSend)
		if snapshot, _ := o.registry.Get(job.TaskID); snapshot.Succeeded > 0 {
			return o.stop(ctx, r, StatePartiallyFailed, err)
		}
		return o.fail(ctx, r, err.Error(), err)
	}
	return o.finish(ctx, r)
}

func (o *Orchestrator) stopped(ctx context.Context, r *run) bool {
	return ctx.Err() != nil || r.fatal() != nil || o.registry.isCancelled(r.job.TaskID)
}

// process renders and sends one record. The rendered file never outlives
// this call; a certificate that could not be delivered is copied to
// retention storage first.
func (o *Orchestrator) process(ctx context.Context, r *run, rec roster.Record) {
	logger := r.logger.With(slog.Int("row", rec.Row))

	art, err := o.renderer.Render(ctx, rec, r.job.Layout, r.job.Template)
	if err != nil {
		o.recordResult(r, rec.Index, OutcomeFailed, StageRender, err.Error(), "")
		logger.WarnContext(ctx, "certificate not rendered",
			slog.String("outcome", string(OutcomeFailed)),
			slog.Any("error", err))
		return
	}
	kept := ""
	if r.job.KeepArtifacts {
		kept = art.Path
	} else {
		defer func() {
			if err := os.Remove(art.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.WarnContext(ctx, "removing certificate", slog.String("path", art.Path), slog.Any("error", err))
			}
		}()
	}

	content, err := os.ReadFile(art.Path)
	if err != nil {
		o.recordResult(r, rec.Index, OutcomeFailed, StageRender, err.Error(), "")
		logger.WarnContext(ctx, "certificate unreadable",
			slog.String("outcome", string(OutcomeFailed)),
			slog.Any("error", err))
		return
	}

	err = r.mail.Send(ctx, mailer.SendParams{
		To:       rec.Email,
		Template: r.message,
		Data:     rec.Data(),
		Subject:  r.job.Message.Subject,
		From:     r.job.Message.From,
		ReplyTo:  r.job.Message.ReplyTo,
		Attachments: []mailer.Attachment{{
			Filename:    art.FileName,
			ContentType: storage.MIMEPDF,
			Content:     content,
		}},
	})
	if err != nil {
		if errors.Is(err, mailer.ErrAuth) {
			r.setFatal(err)
		}
		key := o.retain(ctx, r, art, content)
		if key == "" {
			key = kept
		}
		o.recordResult(r, rec.Index, OutcomeFailed, StageSend, err.Error(), key)
		logger.WarnContext(ctx, "certificate not sent",
			slog.String("outcome", string(OutcomeFailed)),
			slog.String("artifact", key),
			slog.Any("error", err))
		return
	}

	o.recordResult(r, rec.Index, OutcomeSucceeded, StageSend, "", kept)
	logger.InfoContext(ctx, "certificate sent", slog.String("outcome", string(OutcomeSucceeded)))
}

// retain stores an undelivered certificate under <task_id>/<file> and
// returns its key, or "" when there is no retention storage.
func (o *Orchestrator) retain(ctx context.Context, r *run, art certificate.Artifact, content []byte) string {
	if o.retention == nil {
		return ""
	}
	info, err := o.retention.Put(context.WithoutCancel(ctx), bytes.NewReader(content), int64(len(content)),
		storage.WithPrefix(r.job.TaskID),
		storage.WithKey(art.FileName),
		storage.WithContentType(storage.MIMEPDF))
	if err != nil {
		r.logger.ErrorContext(ctx, "retaining certificate", slog.String("file", art.FileName), slog.Any("error", err))
		return ""
	}
	return info.Key
}

func (o *Orchestrator) recordResult(r *run, index int, outcome Outcome, stage Stage, reason, artifact string) {
	o.registry.update(r.job.TaskID, func(p *Progress) {
		i := slices.IndexFunc(p.Records, func(s RecordStatus) bool { return s.Index == index })
		if i < 0 {
			return
		}
		p.Records[i].Outcome = outcome
		p.Records[i].Stage = stage
		p.Records[i].Reason = reason
		p.Records[i].Artifact = artifact
		p.Completed++
		if outcome == OutcomeSucceeded {
			p.Succeeded++
		} else {
			p.Failed++
		}
	})
}

// failPending marks every record that has not been processed as failed.
func (o *Orchestrator) failPending(id, cause string, stage Stage) {
	o.registry.update(id, func(p *Progress) {
		for i := range p.Records {
			if p.Records[i].Outcome != "" {
				continue
			}
			p.Records[i].Outcome = OutcomeFailed
			p.Records[i].Stage = stage
			p.Records[i].Reason = cause
			p.Completed++
			p.Failed++
		}
	})
}

func (o *Orchestrator) fail(ctx context.Context, r *run, cause string, err error) (Summary, error) {
	p, terr := o.registry.transition(r.job.TaskID, StateFailed, cause)
	if terr != nil {
		return Summary{}, errors.Join(err, terr)
	}
	r.logger.ErrorContext(ctx, "batch failed", slog.String("cause", cause))
	return summarize(p), err
}

// stop ends a batch that lost its mail session after some deliveries.
// The state reflects the records; the cause and err carry the reason.
func (o *Orchestrator) stop(ctx context.Context, r *run, state State, err error) (Summary, error) {
	p, terr := o.registry.transition(r.job.TaskID, state, err.Error())
	if terr != nil {
		return Summary{}, errors.Join(err, terr)
	}
	r.logger.ErrorContext(ctx, "batch stopped",
		slog.String("state", string(p.State)),
		slog.String("cause", p.Cause),
		slog.Int("succeeded", p.Succeeded),
		slog.Int("failed", p.Failed))
	return summarize(p), err
}

func (o *Orchestrator) finish(ctx context.Context, r *run) (Summary, error) {
	snapshot, _ := o.registry.Get(r.job.TaskID)

	state, cause := StateCompleted, ""
	switch {
	case ctx.Err() != nil || o.registry.isCancelled(r.job.TaskID):
		state, cause = StateCancelled, "cancelled"
	case snapshot.Failed > 0:
		state = StatePartiallyFailed
	}

	p, err := o.registry.transition(r.job.TaskID, state, cause)
	if err != nil {
		return Summary{}, err
	}
	r.logger.InfoContext(ctx, "batch finished",
		slog.String("state", string(p.State)),
		slog.Int("total", p.Total),
		slog.Int("succeeded", p.Succeeded),
		slog.Int("failed", p.Failed),
		slog.Int("skipped", p.Skipped))
	return summarize(p), nil
}

func initialStatuses(res *roster.Result) []RecordStatus {
	out := make([]RecordStatus, 0, res.Total)
	for _, rec := range res.Records {
		out = append(out, RecordStatus{Index: rec.Index, Row: rec.Row, Name: rec.Name, Email: rec.Email})
	}
	for _, s := range res.Skipped {
		out = append(out, RecordStatus{Index: -1, Row: s.Row, Outcome: OutcomeSkipped, Stage: StageNormalize, Reason: s.Reason})
	}
	slices.SortFunc(out, func(a, b RecordStatus) int { return a.Row - b.Row })
	return out
}
