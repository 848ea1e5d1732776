package handlers

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/dmitrymomot/certy/internal/certificate"
	"github.com/dmitrymomot/certy/internal/layout"
	"github.com/dmitrymomot/certy/internal/server"
	"github.com/dmitrymomot/certy/internal/views"
	"github.com/dmitrymomot/certy/middlewares"
	"github.com/dmitrymomot/certy/pkg/storage"
)

// PreviewTimeout bounds rendering of a layout preview.
const PreviewTimeout = 30 * time.Second

// maxLayoutBytes caps a layout document.
const maxLayoutBytes = 1 << 20

// LayoutHandler reads, saves and previews the certificate layout.
type LayoutHandler struct {
	store    *layout.Store
	renderer *certificate.Renderer
}

// NewLayoutHandler creates the layout handler.
func NewLayoutHandler(store *layout.Store, renderer *certificate.Renderer) *LayoutHandler {
	return &LayoutHandler{store: store, renderer: renderer}
}

func (h *LayoutHandler) Routes(r server.Router) {
	r.Route("/layout", func(r server.Router) {
		r.GET("/", h.show)
		r.PUT("/", h.save)
		r.GET("/preview", h.preview, middlewares.Timeout(PreviewTimeout))
	})
}

func (h *LayoutHandler) show(c server.Context) error {
	return c.JSON(http.StatusOK, h.store.Current())
}

// save accepts the layout as a JSON body or, from the UI, as the JSON text
// of the "layout" form field.
func (h *LayoutHandler) save(c server.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxLayoutBytes)

	var cfg layout.Config
	mediaType, _, _ := mime.ParseMediaType(c.Header("Content-Type"))
	if mediaType == "application/json" {
		if err := c.BindJSON(&cfg); err != nil {
			return server.ErrBadRequest("layout is not valid JSON", server.WithError(err))
		}
	} else {
		raw := c.Form("layout")
		if raw == "" {
			return server.ErrBadRequest("layout is required")
		}
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return server.ErrBadRequest("layout is not valid JSON", server.WithError(err))
		}
	}

	if err := h.store.Save(cfg); err != nil {
		return err
	}
	c.LogInfo("layout saved", "fields", len(cfg.Fields))

	if c.IsHTMX() {
		return c.Render(http.StatusOK, views.Alert("ok", "Layout saved."))
	}
	return c.JSON(http.StatusOK, h.store.Current())
}

func (h *LayoutHandler) preview(c server.Context) error {
	cfg := h.store.Current()
	tpl, err := certificate.ResolveTemplate("", cfg.TemplatePath)
	if err != nil {
		return err
	}
	pdf, err := h.renderer.Preview(c.Context(), cfg, tpl)
	if err != nil {
		return fmt.Errorf("render preview: %w", err)
	}
	c.SetHeader("Content-Disposition", `inline; filename="preview.pdf"`)
	c.SetHeader("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, storage.MIMEPDF, pdf)
}
