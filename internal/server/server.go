package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/certy/pkg/health"
	"github.com/dmitrymomot/certy/pkg/logger"
)

// Default server timeouts.
const (
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 60 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultMaxHeaderBytes    = 1 << 20 // 1MB
	defaultShutdownTimeout   = 30 * time.Second
)

// Default health check paths.
const (
	defaultHealthPath    = "/health"
	defaultLivenessPath  = "/health/live"
	defaultReadinessPath = "/health/ready"
)

// Server owns the router, middleware chain and error handling.
// It is immutable after New returns.
type Server struct {
	router                  chi.Router
	errorHandler            ErrorHandler
	notFoundHandler         HandlerFunc
	methodNotAllowedHandler HandlerFunc
	health                  *healthConfig
	logger                  *slog.Logger
	middlewares             []Middleware
	handlers                []Handler
	staticRoutes            []staticRoute
}

type staticRoute struct {
	handler http.Handler
	pattern string
}

type healthConfig struct {
	checks  health.Checks
	timeout time.Duration
}

// New creates a server with the given options.
func New(opts ...Option) *Server {
	s := &Server{
		router: chi.NewRouter(),
		logger: logger.NewNope(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr and blocks until the process is signalled or the
// base context is cancelled.
func (s *Server) Run(addr string, opts ...RunOption) error {
	cfg := buildRunConfig(opts...)
	if cfg.logger == nil {
		cfg.logger = s.logger
	}
	if cfg.address == "" {
		cfg.address = addr
	}
	return runServer(s.router, cfg)
}

func (s *Server) setupRoutes() {
	if s.notFoundHandler != nil {
		s.router.NotFound(s.wrapHandler(s.notFoundHandler))
	}
	if s.methodNotAllowedHandler != nil {
		s.router.MethodNotAllowed(s.wrapHandler(s.methodNotAllowedHandler))
	}

	for _, mw := range s.middlewares {
		s.router.Use(s.adaptMiddleware(mw))
	}

	for _, sr := range s.staticRoutes {
		s.router.Mount(sr.pattern, sr.handler)
	}

	if s.health != nil {
		opts := []health.Option{health.WithLogger(s.logger)}
		if s.health.timeout > 0 {
			opts = append(opts, health.WithTimeout(s.health.timeout))
		}
		ready := health.ReadinessHandler(s.health.checks, opts...)
		s.router.Get(defaultHealthPath, ready)
		s.router.Get(defaultReadinessPath, ready)
		s.router.Get(defaultLivenessPath, health.LivenessHandler())
	}

	r := s.routerFor(s.router)
	for _, h := range s.handlers {
		h.Routes(r)
	}
}

func (s *Server) wrapHandler(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := newContext(w, r, s.logger)
		if err := h(c); err != nil {
			s.handleError(c, err)
		}
	}
}

// adaptMiddleware turns a Middleware into chi's http.Handler form.
func (s *Server) adaptMiddleware(mw Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := mw(func(c Context) error {
				next.ServeHTTP(c.Response(), c.Request())
				return nil
			})
			c := newContext(w, r, s.logger)
			if err := wrapped(c); err != nil {
				s.handleError(c, err)
			}
		})
	}
}

func (s *Server) handleError(c Context, err error) {
	if c.Written() {
		return
	}
	if s.errorHandler != nil {
		if herr := s.errorHandler(c, err); herr != nil {
			s.logger.ErrorContext(c.Context(), "error handler failed", slog.Any("error", herr))
		}
		return
	}
	http.Error(c.Response(), http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
