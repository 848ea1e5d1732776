package htmx

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// Renderable is anything that renders itself, such as templ.Component.
type Renderable interface {
	Render(ctx context.Context, w io.Writer) error
}

// Config collects the HTMX response settings for one render.
type Config struct {
	// OOBComponents are rendered after the main component. Each must carry
	// its own id and hx-swap-oob attribute.
	OOBComponents []Renderable
	Retarget      string
	Reswap        SwapStrategy
	Triggers      []string
	Refresh       bool
}

// RenderOption configures a render.
type RenderOption func(*Config)

// NewConfig applies opts to an empty Config.
func NewConfig(opts ...RenderOption) *Config {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// ApplyHeaders writes the HX-* response headers. It must run before
// WriteHeader.
func (c *Config) ApplyHeaders(w http.ResponseWriter) {
	if c == nil {
		return
	}
	h := w.Header()
	if c.Retarget != "" {
		h.Set(HeaderHXRetarget, c.Retarget)
	}
	if c.Reswap != "" {
		h.Set(HeaderHXReswap, string(c.Reswap))
	}
	if len(c.Triggers) > 0 {
		h.Set(HeaderHXTrigger, strings.Join(c.Triggers, ", "))
	}
	if c.Refresh {
		h.Set(HeaderHXRefresh, "true")
	}
}

// WithOOB appends out-of-band components.
func WithOOB(components ...Renderable) RenderOption {
	return func(c *Config) {
		c.OOBComponents = append(c.OOBComponents, components...)
	}
}

// WithRetarget swaps the response into selector instead of the
// requesting element's target.
func WithRetarget(selector string) RenderOption {
	return func(c *Config) {
		c.Retarget = selector
	}
}

// WithReswap overrides the swap strategy.
func WithReswap(strategy SwapStrategy) RenderOption {
	return func(c *Config) {
		c.Reswap = strategy
	}
}

// WithTrigger fires client-side events once the response arrives.
func WithTrigger(events ...string) RenderOption {
	return func(c *Config) {
		c.Triggers = append(c.Triggers, events...)
	}
}

// WithRefresh forces a full page reload.
func WithRefresh() RenderOption {
	return func(c *Config) {
		c.Refresh = true
	}
}
