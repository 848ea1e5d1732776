package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/certy/pkg/htmx"
)

// Component renders HTML. templ.Component satisfies it.
type Component interface {
	Render(ctx context.Context, w io.Writer) error
}

// Context wraps one request/response pair. It is also the request's
// context.Context, so it can be passed straight to services.
type Context interface {
	context.Context

	Request() *http.Request
	Response() http.ResponseWriter
	Context() context.Context
	SetContext(ctx context.Context)

	// Set and Get store values on the request context.
	Set(key, value any)
	Get(key any) any

	Param(name string) string
	Query(name string) string
	Form(name string) string
	FormFile(name string) (multipart.File, *multipart.FileHeader, error)
	Header(name string) string
	SetHeader(name, value string)

	// BindJSON decodes the body into v and rejects unknown fields.
	BindJSON(v any) error

	JSON(code int, v any) error
	String(code int, s string) error
	Blob(code int, contentType string, data []byte) error
	NoContent(code int) error
	// Redirect sets HX-Redirect for HTMX requests instead of a 3xx.
	Redirect(code int, url string) error
	// Render writes component, then any out-of-band fragments when the
	// request came from HTMX.
	Render(code int, component Component, opts ...htmx.RenderOption) error

	IsHTMX() bool
	Written() bool

	LogDebug(msg string, attrs ...any)
	LogInfo(msg string, attrs ...any)
	LogWarn(msg string, attrs ...any)
	LogError(msg string, attrs ...any)
}

type requestContext struct {
	w   *ResponseWriter
	r   *http.Request
	log *slog.Logger
}

func newContext(w http.ResponseWriter, r *http.Request, log *slog.Logger) *requestContext {
	rw, ok := w.(*ResponseWriter)
	if !ok {
		rw = NewResponseWriter(w, htmx.IsHTMX(r))
	}
	return &requestContext{w: rw, r: r, log: log}
}

func (c *requestContext) Request() *http.Request         { return c.r }
func (c *requestContext) Response() http.ResponseWriter  { return c.w }
func (c *requestContext) Context() context.Context       { return c.r.Context() }
func (c *requestContext) SetContext(ctx context.Context) { c.r = c.r.WithContext(ctx) }

func (c *requestContext) Deadline() (time.Time, bool) { return c.r.Context().Deadline() }
func (c *requestContext) Done() <-chan struct{}       { return c.r.Context().Done() }
func (c *requestContext) Err() error                  { return c.r.Context().Err() }
func (c *requestContext) Value(key any) any           { return c.r.Context().Value(key) }

func (c *requestContext) Set(key, value any) {
	c.SetContext(context.WithValue(c.r.Context(), key, value))
}

func (c *requestContext) Get(key any) any { return c.r.Context().Value(key) }

func (c *requestContext) Param(name string) string { return chi.URLParam(c.r, name) }
func (c *requestContext) Query(name string) string { return c.r.URL.Query().Get(name) }
func (c *requestContext) Form(name string) string  { return c.r.FormValue(name) }
func (c *requestContext) Header(name string) string {
	return c.r.Header.Get(name)
}

func (c *requestContext) FormFile(name string) (multipart.File, *multipart.FileHeader, error) {
	return c.r.FormFile(name)
}

func (c *requestContext) SetHeader(name, value string) { c.w.Header().Set(name, value) }

func (c *requestContext) BindJSON(v any) error {
	dec := json.NewDecoder(c.r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("bind json: %w", err)
	}
	return nil
}

func (c *requestContext) write(code int, contentType string, body func(io.Writer) error) error {
	if contentType != "" {
		c.w.Header().Set("Content-Type", contentType)
	}
	c.w.WriteHeader(code)
	if body == nil {
		return nil
	}
	return body(c.w)
}

func (c *requestContext) JSON(code int, v any) error {
	return c.write(code, "application/json; charset=utf-8", func(w io.Writer) error {
		return json.NewEncoder(w).Encode(v)
	})
}

func (c *requestContext) String(code int, s string) error {
	return c.write(code, "text/plain; charset=utf-8", func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func (c *requestContext) Blob(code int, contentType string, data []byte) error {
	c.w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	return c.write(code, contentType, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func (c *requestContext) NoContent(code int) error { return c.write(code, "", nil) }

func (c *requestContext) Redirect(code int, url string) error {
	htmx.RedirectWithStatus(c.w, c.r, url, code)
	return nil
}

func (c *requestContext) Render(code int, component Component, opts ...htmx.RenderOption) error {
	hx := c.IsHTMX()
	var cfg *htmx.Config
	if hx && len(opts) > 0 {
		cfg = htmx.NewConfig(opts...)
		cfg.ApplyHeaders(c.w)
	}

	return c.write(code, "text/html; charset=utf-8", func(w io.Writer) error {
		if err := component.Render(c.r.Context(), w); err != nil {
			return err
		}
		if cfg == nil {
			return nil
		}
		for _, oob := range cfg.OOBComponents {
			if err := oob.Render(c.r.Context(), w); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *requestContext) IsHTMX() bool  { return htmx.IsHTMX(c.r) }
func (c *requestContext) Written() bool { return c.w.Written() }

func (c *requestContext) LogDebug(msg string, attrs ...any) {
	c.log.DebugContext(c.r.Context(), msg, attrs...)
}

func (c *requestContext) LogInfo(msg string, attrs ...any) {
	c.log.InfoContext(c.r.Context(), msg, attrs...)
}

func (c *requestContext) LogWarn(msg string, attrs ...any) {
	c.log.WarnContext(c.r.Context(), msg, attrs...)
}

func (c *requestContext) LogError(msg string, attrs ...any) {
	c.log.ErrorContext(c.r.Context(), msg, attrs...)
}
