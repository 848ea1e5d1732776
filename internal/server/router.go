package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router declares routes. Route-level middleware runs in the order given,
// inside the server-wide stack.
type Router interface {
	GET(path string, h HandlerFunc, mw ...Middleware)
	POST(path string, h HandlerFunc, mw ...Middleware)
	PUT(path string, h HandlerFunc, mw ...Middleware)
	DELETE(path string, h HandlerFunc, mw ...Middleware)

	// Group shares middleware between routes without a path prefix.
	Group(fn func(r Router))
	// Route mounts a sub-router under pattern.
	Route(pattern string, fn func(r Router))
	Use(mw ...Middleware)
}

type chiRouter struct {
	mux chi.Router
	srv *Server
}

func (s *Server) routerFor(mux chi.Router) Router {
	return &chiRouter{mux: mux, srv: s}
}

func (r *chiRouter) GET(path string, h HandlerFunc, mw ...Middleware) {
	r.handle(http.MethodGet, path, h, mw)
}

func (r *chiRouter) POST(path string, h HandlerFunc, mw ...Middleware) {
	r.handle(http.MethodPost, path, h, mw)
}

func (r *chiRouter) PUT(path string, h HandlerFunc, mw ...Middleware) {
	r.handle(http.MethodPut, path, h, mw)
}

func (r *chiRouter) DELETE(path string, h HandlerFunc, mw ...Middleware) {
	r.handle(http.MethodDelete, path, h, mw)
}

func (r *chiRouter) handle(method, path string, h HandlerFunc, mw []Middleware) {
	r.mux.Method(method, path, r.srv.wrapHandler(chain(h, mw)))
}

func (r *chiRouter) Group(fn func(Router)) {
	r.mux.Group(func(mux chi.Router) { fn(r.srv.routerFor(mux)) })
}

func (r *chiRouter) Route(pattern string, fn func(Router)) {
	r.mux.Route(pattern, func(mux chi.Router) { fn(r.srv.routerFor(mux)) })
}

func (r *chiRouter) Use(mw ...Middleware) {
	for _, m := range mw {
		r.mux.Use(r.srv.adaptMiddleware(m))
	}
}

// chain wraps h so that mw[0] is the outermost layer.
func chain(h HandlerFunc, mw []Middleware) HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
