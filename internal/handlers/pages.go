package handlers

import (
	"net/http"

	"github.com/dmitrymomot/certy/internal/batch"
	"github.com/dmitrymomot/certy/internal/layout"
	"github.com/dmitrymomot/certy/internal/server"
	"github.com/dmitrymomot/certy/internal/views"
)

// PageHandler serves the operator UI.
type PageHandler struct {
	svc     *batch.Service
	layouts *layout.Store
}

// NewPageHandler creates the UI handler.
func NewPageHandler(svc *batch.Service, layouts *layout.Store) *PageHandler {
	return &PageHandler{svc: svc, layouts: layouts}
}

func (h *PageHandler) Routes(r server.Router) {
	r.GET("/", h.index)
}

func (h *PageHandler) index(c server.Context) error {
	return c.Render(http.StatusOK, views.Index(views.IndexData{
		Layout: views.LayoutJSON(h.layouts.Current()),
		Tasks:  h.svc.List(),
	}))
}
