package server

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/certy/pkg/health"
)

// Option configures the server.
type Option func(*Server)

// WithLogger sets the server logger. Nil keeps the no-op default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMiddleware adds global middleware, applied in the order given.
func WithMiddleware(mw ...Middleware) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, mw...)
	}
}

// WithHandlers registers handlers whose Routes are called during setup.
func WithHandlers(h ...Handler) Option {
	return func(s *Server) {
		s.handlers = append(s.handlers, h...)
	}
}

// WithErrorHandler sets the handler for errors returned by handlers.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Server) {
		s.errorHandler = h
	}
}

// WithNotFoundHandler sets the handler for unmatched routes.
func WithNotFoundHandler(h HandlerFunc) Option {
	return func(s *Server) {
		s.notFoundHandler = h
	}
}

// WithMethodNotAllowedHandler sets the handler for a wrong method on a known route.
func WithMethodNotAllowedHandler(h HandlerFunc) Option {
	return func(s *Server) {
		s.methodNotAllowedHandler = h
	}
}

// WithHealthChecks enables /health, /health/live and /health/ready.
// Readiness fails when any check returns an error.
//
// Example:
//
//	server.WithHealthChecks(health.Checks{
//	    "output_dir": health.DirWritable(cfg.OutputDir),
//	})
func WithHealthChecks(checks health.Checks) Option {
	return func(s *Server) {
		if s.health == nil {
			s.health = &healthConfig{checks: make(health.Checks)}
		}
		for name, fn := range checks {
			s.health.checks[name] = fn
		}
	}
}

// WithHealthTimeout bounds the time the readiness checks may take.
func WithHealthTimeout(d time.Duration) Option {
	return func(s *Server) {
		if s.health == nil {
			s.health = &healthConfig{checks: make(health.Checks)}
		}
		s.health.timeout = d
	}
}

// WithStaticFiles mounts fsys/subDir at pattern. Directory listings are disabled.
func WithStaticFiles(pattern string, fsys fs.FS, subDir string) Option {
	return func(s *Server) {
		sub, err := fs.Sub(fsys, subDir)
		if err != nil {
			panic(err)
		}
		files := http.FileServerFS(sub)
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/") {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Cache-Control", "public, max-age=3600")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			files.ServeHTTP(w, r)
		})
		s.staticRoutes = append(s.staticRoutes, staticRoute{
			pattern: pattern,
			handler: http.StripPrefix(strings.TrimSuffix(pattern, "/"), h),
		})
	}
}
