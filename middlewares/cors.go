package middlewares

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/certy/internal/server"
)

const corsMaxAge = 12 * time.Hour

var (
	corsMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}, ", ")
	corsHeaders = strings.Join([]string{
		"Origin", "Content-Type", "Accept", "HX-Request", "HX-Target", "HX-Current-URL",
	}, ", ")
)

type corsPolicy struct {
	origins     []string
	expose      string
	credentials bool
}

// CORSOption configures CORS.
type CORSOption func(*corsPolicy)

// WithAllowOrigins limits CORS to the listed origins. "*" allows any.
func WithAllowOrigins(origins ...string) CORSOption {
	return func(p *corsPolicy) { p.origins = origins }
}

// WithExposeHeaders lets browser scripts read the listed response headers.
func WithExposeHeaders(headers ...string) CORSOption {
	return func(p *corsPolicy) { p.expose = strings.Join(headers, ", ") }
}

// WithAllowCredentials permits cookies and auth headers. The request
// origin is echoed back instead of "*".
func WithAllowCredentials() CORSOption {
	return func(p *corsPolicy) { p.credentials = true }
}

// CORS lets the status API be polled from another origin. Preflights from
// allowed origins get 204; requests from other origins pass through
// without CORS headers.
func CORS(opts ...CORSOption) server.Middleware {
	p := &corsPolicy{origins: []string{"*"}}
	for _, opt := range opts {
		opt(p)
	}
	wildcard := slices.Contains(p.origins, "*")
	maxAge := strconv.Itoa(int(corsMaxAge.Seconds()))

	return func(next server.HandlerFunc) server.HandlerFunc {
		return func(c server.Context) error {
			origin := c.Header("Origin")
			if origin == "" || !(wildcard || slices.Contains(p.origins, origin)) {
				return next(c)
			}

			h := c.Response().Header()
			h.Add("Vary", "Origin")
			allowOrigin := "*"
			if p.credentials || !wildcard {
				allowOrigin = origin
			}
			h.Set("Access-Control-Allow-Origin", allowOrigin)
			if p.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if p.expose != "" {
				h.Set("Access-Control-Expose-Headers", p.expose)
			}

			if c.Request().Method != http.MethodOptions {
				return next(c)
			}
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", maxAge)
			return c.NoContent(http.StatusNoContent)
		}
	}
}
