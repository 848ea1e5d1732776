package middlewares

import (
	"github.com/google/uuid"

	"github.com/dmitrymomot/certy/internal/server"
	"github.com/dmitrymomot/certy/pkg/logger"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 128
)

// Upstream headers trusted for an existing ID, in order.
var upstreamIDHeaders = []string{requestIDHeader, "X-Correlation-ID"}

// RequestIDOption configures RequestID.
type RequestIDOption func(*func() string)

// WithRequestIDGenerator replaces the UUIDv7 generator.
func WithRequestIDGenerator(gen func() string) RequestIDOption {
	return func(g *func() string) {
		if gen != nil {
			*g = gen
		}
	}
}

func newRequestID() string { return uuid.Must(uuid.NewV7()).String() }

// RequestID tags every request with an ID, reusing a sane upstream one.
// The ID is echoed as X-Request-ID and attached to log records through
// logger.RequestIDExtractor.
func RequestID(opts ...RequestIDOption) server.Middleware {
	gen := newRequestID
	for _, opt := range opts {
		opt(&gen)
	}

	return func(next server.HandlerFunc) server.HandlerFunc {
		return func(c server.Context) error {
			id := upstreamRequestID(c)
			if id == "" {
				id = gen()
			}
			c.SetContext(logger.WithRequestID(c.Context(), id))
			c.SetHeader(requestIDHeader, id)
			return next(c)
		}
	}
}

func upstreamRequestID(c server.Context) string {
	for _, h := range upstreamIDHeaders {
		if v := c.Header(h); v != "" && len(v) <= maxRequestIDLength {
			return v
		}
	}
	return ""
}

// GetRequestID returns the current request ID or "".
func GetRequestID(c server.Context) string {
	return logger.RequestID(c.Context())
}
