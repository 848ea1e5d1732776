package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/certy/internal/batch"
	"github.com/dmitrymomot/certy/internal/certificate"
	"github.com/dmitrymomot/certy/internal/layout"
	"github.com/dmitrymomot/certy/internal/server"
	"github.com/dmitrymomot/certy/internal/views"
	"github.com/dmitrymomot/certy/pkg/htmx"
	"github.com/dmitrymomot/certy/pkg/validator"
)

// MaxWorkers bounds the per-batch worker count a client may request.
const MaxWorkers = 32

// TaskResponse acknowledges an action on a task.
type TaskResponse struct {
	TaskID string      `json:"task_id"`
	Status batch.State `json:"status,omitempty"`
}

// BatchHandler starts, observes, cancels and cleans up batches.
type BatchHandler struct {
	svc     *batch.Service
	layouts *layout.Store
	mailers MailerFactory
}

// NewBatchHandler creates the batch handler. mailers builds per-batch
// mailers from form credentials; when nil, forms with credentials are
// rejected and every batch uses the service's mailer.
func NewBatchHandler(svc *batch.Service, layouts *layout.Store, mailers MailerFactory) *BatchHandler {
	return &BatchHandler{svc: svc, layouts: layouts, mailers: mailers}
}

func (h *BatchHandler) Routes(r server.Router) {
	r.POST("/process-certificates", h.process)
	r.GET("/status/{id}", h.status)
	r.GET("/tasks", h.list)
	r.POST("/tasks/{id}/cancel", h.cancel)
	r.DELETE("/cleanup/{id}", h.cleanup)
}

type processForm struct {
	TaskID  string
	Subject string
	Body    string
	Creds   Credentials
	Workers int
}

func (f processForm) validate() error {
	rules := []validator.Rule{validator.RequiredString("task_id", f.TaskID)}
	if f.Creds.Email != "" {
		rules = append(rules, validator.Email("sender_email", f.Creds.Email))
	}
	if f.Creds.Port != 0 {
		rules = append(rules, validator.RangeNum("smtp_port", f.Creds.Port, 1, 65535))
	}
	if f.Workers != 0 {
		rules = append(rules, validator.RangeNum("workers", f.Workers, 1, MaxWorkers))
	}
	return validator.Apply(rules...)
}

func (h *BatchHandler) process(c server.Context) error {
	form := processForm{
		TaskID:  strings.TrimSpace(c.Form("task_id")),
		Subject: strings.TrimSpace(c.Form("email_subject")),
		Body:    c.Form("email_body"),
		Workers: server.FormInt(c, "workers", 0),
		Creds: Credentials{
			Email:    strings.TrimSpace(c.Form("sender_email")),
			Password: c.Form("sender_password"),
			Host:     strings.TrimSpace(c.Form("smtp_server")),
			Port:     server.FormInt(c, "smtp_port", 0),
		},
	}
	if err := form.validate(); err != nil {
		return err
	}

	task, err := h.svc.Status(form.TaskID)
	if err != nil {
		return err
	}
	cfg := h.layouts.Current()
	tpl, err := certificate.ResolveTemplate(task.TemplateFile, cfg.TemplatePath)
	if err != nil {
		return err
	}

	job := batch.Job{
		TaskID:   form.TaskID,
		Template: tpl,
		Layout:   cfg,
		Workers:  form.Workers,
		Message:  batch.Message{Subject: form.Subject, Body: form.Body},
	}
	if !form.Creds.empty() {
		if h.mailers == nil {
			return server.ErrUnprocessable("this server does not accept SMTP credentials from the form")
		}
		m, err := h.mailers(form.Creds)
		if err != nil {
			return server.ErrUnprocessable("invalid mail server settings: "+err.Error(),
				server.WithErrorCode("validation_failed"), server.WithError(err))
		}
		job.Mailer = m
	}

	if _, err := h.svc.Submit(c.Context(), job); err != nil {
		return err
	}
	c.LogInfo("batch submitted", slog.String("task_id", form.TaskID), slog.Any("smtp", form.Creds))

	p, err := h.svc.Status(form.TaskID)
	if err != nil {
		return err
	}
	if c.IsHTMX() {
		return c.Render(http.StatusAccepted, views.Progress(p), htmx.WithTrigger("refresh-tasks"))
	}
	return c.JSON(http.StatusAccepted, TaskResponse{TaskID: p.TaskID, Status: p.State})
}

func (h *BatchHandler) status(c server.Context) error {
	p, err := h.svc.Status(c.Param("id"))
	if err != nil {
		return err
	}
	if c.IsHTMX() {
		return c.Render(http.StatusOK, views.Progress(p))
	}
	return c.JSON(http.StatusOK, p)
}

func (h *BatchHandler) list(c server.Context) error {
	tasks := h.svc.List()
	if c.IsHTMX() {
		return c.Render(http.StatusOK, views.Tasks(tasks))
	}
	return c.JSON(http.StatusOK, map[string]any{"tasks": tasks})
}

func (h *BatchHandler) cancel(c server.Context) error {
	id := c.Param("id")
	if err := h.svc.Cancel(id); err != nil {
		return err
	}
	p, err := h.svc.Status(id)
	if err != nil {
		return err
	}
	c.LogInfo("batch cancellation requested", slog.String("task_id", id))
	if c.IsHTMX() {
		return c.Render(http.StatusAccepted, views.Alert("ok", "Cancellation requested."), htmx.WithTrigger("refresh-tasks"))
	}
	return c.JSON(http.StatusAccepted, TaskResponse{TaskID: id, Status: p.State})
}

func (h *BatchHandler) cleanup(c server.Context) error {
	id := c.Param("id")
	if err := h.svc.Cleanup(c.Context(), id); err != nil {
		return err
	}
	c.LogInfo("task cleaned up", slog.String("task_id", id))
	if c.IsHTMX() {
		return c.Render(http.StatusOK, views.Alert("ok", "Task removed."), htmx.WithTrigger("refresh-tasks"))
	}
	return c.JSON(http.StatusOK, TaskResponse{TaskID: id})
}
