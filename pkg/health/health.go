package health

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// Aggregate and per-check status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

const defaultTimeout = 5 * time.Second

// CheckFunc probes one dependency and returns nil when it is usable.
type CheckFunc func(ctx context.Context) error

// Checks maps a check name to its probe.
type Checks map[string]CheckFunc

// Response is the JSON body served by the readiness endpoint.
type Response struct {
	Checks map[string]Check `json:"checks,omitempty"`
	Status string           `json:"status"`
}

// Check is the outcome of a single probe.
type Check struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Healthy reports whether every probe passed.
func (r *Response) Healthy() bool { return r.Status == StatusHealthy }

type runner struct {
	log     *slog.Logger
	timeout time.Duration
}

// Option tunes Run.
type Option func(*runner)

// WithTimeout bounds the whole probe round. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(r *runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger receives a warning per failing probe.
func WithLogger(l *slog.Logger) Option {
	return func(r *runner) {
		if l != nil {
			r.log = l
		}
	}
}

func newRunner(opts ...Option) *runner {
	r := &runner{
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run probes every check concurrently under one shared deadline.
// A failing probe never stops the others.
func Run(ctx context.Context, checks Checks, opts ...Option) *Response {
	return newRunner(opts...).run(ctx, checks)
}

func (r *runner) run(ctx context.Context, checks Checks) *Response {
	if len(checks) == 0 {
		return &Response{Status: StatusHealthy}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	slices.Sort(names)

	errs := make([]error, len(names))
	var g errgroup.Group
	for i, name := range names {
		probe := checks[name]
		g.Go(func() error {
			errs[i] = probe(ctx)
			return nil
		})
	}
	_ = g.Wait()

	resp := &Response{Status: StatusHealthy, Checks: make(map[string]Check, len(names))}
	for i, name := range names {
		if errs[i] == nil {
			resp.Checks[name] = Check{Status: StatusHealthy}
			continue
		}
		resp.Status = StatusUnhealthy
		resp.Checks[name] = Check{Status: StatusUnhealthy, Error: errs[i].Error()}
		r.log.WarnContext(ctx, "health check failed",
			slog.String("check", name),
			slog.Any("error", errs[i]),
		)
	}
	return resp
}
