// Package views renders the operator UI. Pages and HTMX fragments are
// templ components backed by embedded html/template files.
package views

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/certy/internal/batch"
	"github.com/dmitrymomot/certy/internal/layout"
)

//go:embed templates/*.html
var templateFS embed.FS

// Static holds the stylesheet served under /static/.
//
//go:embed static
var Static embed.FS

var templates = template.Must(template.New("views").Funcs(template.FuncMap{
	"since": since,
	"stamp": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05") },
}).ParseFS(templateFS, "templates/*.html"))

// IndexData is everything the main page shows.
type IndexData struct {
	Layout string
	Tasks  []batch.Progress
}

// UploadData describes a freshly uploaded roster.
type UploadData struct {
	TaskID   string
	Skipped  []batch.RecordStatus
	Template string
	Mail     MailDefaults
	Total    int
	Valid    int
}

// MailDefaults describes the server-side SMTP account the send form falls
// back to.
type MailDefaults struct {
	Host           string
	Port           int
	HasCredentials bool
}

// Index is the full operator page.
func Index(data IndexData) templ.Component {
	return execute("index", data)
}

// Progress is the live status fragment for one task. Non-terminal tasks
// poll themselves.
func Progress(p batch.Progress) templ.Component {
	return execute("progress", p)
}

// Tasks is the task table fragment.
func Tasks(tasks []batch.Progress) templ.Component {
	return execute("tasks", tasks)
}

// Uploaded confirms an upload and offers the send form.
func Uploaded(data UploadData) templ.Component {
	return execute("uploaded", data)
}

// Alert is a one-line message fragment. Kind is "error" or "ok".
func Alert(kind, message string) templ.Component {
	return execute("alert", struct{ Kind, Message string }{kind, message})
}

// ErrorAlert is Alert("error", message).
func ErrorAlert(message string) templ.Component {
	return Alert("error", message)
}

// LayoutJSON formats a layout for the editor textarea.
func LayoutJSON(cfg layout.Config) string {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func execute(name string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if err := templates.ExecuteTemplate(w, name, data); err != nil {
			return fmt.Errorf("views: render %s: %w", name, err)
		}
		return nil
	})
}

func since(p batch.Progress) string {
	if p.StartedAt.IsZero() {
		return "-"
	}
	end := p.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(p.StartedAt).Round(time.Second).String()
}
