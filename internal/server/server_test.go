package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/certy/internal/server"
	"github.com/dmitrymomot/certy/pkg/health"
)

type routes func(r server.Router)

func (f routes) Routes(r server.Router) { f(r) }

func jsonErrors(c server.Context, err error) error {
	code := http.StatusInternalServerError
	if he := server.AsHTTPError(err); he != nil {
		code = he.Code
	}
	return c.JSON(code, map[string]string{"error": err.Error()})
}

func TestServerRouting(t *testing.T) {
	t.Parallel()

	srv := server.New(
		server.WithErrorHandler(jsonErrors),
		server.WithHandlers(routes(func(r server.Router) {
			r.GET("/tasks/{id}", func(c server.Context) error {
				return c.String(http.StatusOK, "task "+c.Param("id"))
			})
			r.POST("/tasks", func(c server.Context) error {
				return c.JSON(http.StatusAccepted, map[string]int{"limit": server.QueryInt(c, "limit", 10)})
			})
			r.DELETE("/tasks/{id}", func(c server.Context) error {
				return server.ErrConflict("task is running")
			})
			r.GET("/boom", func(c server.Context) error {
				return errors.New("boom")
			})
		})),
	)

	t.Run("path param", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/abc", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "task abc", rec.Body.String())
	})

	t.Run("query int", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tasks?limit=3", nil))
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t, `{"limit":3}`, rec.Body.String())
	})

	t.Run("malformed query int falls back", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tasks?limit=x", nil))
		assert.JSONEq(t, `{"limit":10}`, rec.Body.String())
	})

	t.Run("http error", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/tasks/abc", nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.JSONEq(t, `{"error":"task is running"}`, rec.Body.String())
	})

	t.Run("plain error", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("htmx errors answer 200", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodDelete, "/tasks/abc", nil)
		req.Header.Set("HX-Request", "true")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestServerDefaultErrorHandler(t *testing.T) {
	t.Parallel()

	srv := server.New(server.WithHandlers(routes(func(r server.Router) {
		r.GET("/", func(c server.Context) error { return errors.New("hidden detail") })
		r.GET("/written", func(c server.Context) error {
			_ = c.String(http.StatusCreated, "partial")
			return errors.New("late")
		})
	})))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hidden detail")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
}

func TestServerMiddlewareOrder(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		trace []string
	)
	mark := func(name string) server.Middleware {
		return func(next server.HandlerFunc) server.HandlerFunc {
			return func(c server.Context) error {
				mu.Lock()
				trace = append(trace, name)
				mu.Unlock()
				return next(c)
			}
		}
	}

	type key struct{}
	srv := server.New(
		server.WithMiddleware(mark("global1"), mark("global2"), func(next server.HandlerFunc) server.HandlerFunc {
			return func(c server.Context) error {
				c.Set(key{}, "from middleware")
				return next(c)
			}
		}),
		server.WithHandlers(routes(func(r server.Router) {
			r.Group(func(r server.Router) {
				r.Use(mark("group"))
				r.GET("/", func(c server.Context) error {
					return c.String(http.StatusOK, c.Get(key{}).(string))
				}, mark("route1"), mark("route2"))
			})
		})),
	)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "from middleware", rec.Body.String())
	assert.Equal(t, []string{"global1", "global2", "group", "route1", "route2"}, trace)
}

func TestServerNotFoundAndMethod(t *testing.T) {
	t.Parallel()

	srv := server.New(
		server.WithNotFoundHandler(func(c server.Context) error {
			return c.String(http.StatusNotFound, "nothing here")
		}),
		server.WithMethodNotAllowedHandler(func(c server.Context) error {
			return c.String(http.StatusMethodNotAllowed, "wrong method")
		}),
		server.WithHandlers(routes(func(r server.Router) {
			r.Route("/layout", func(r server.Router) {
				r.GET("/", func(c server.Context) error { return c.NoContent(http.StatusNoContent) })
			})
		})),
	)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "nothing here", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/layout/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/layout/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServerHealth(t *testing.T) {
	t.Parallel()

	var fail bool
	var mu sync.Mutex
	srv := server.New(server.WithHealthChecks(health.Checks{
		"output_dir": func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			if fail {
				return errors.New("read-only")
			}
			return nil
		},
	}))

	for _, path := range []string{"/health", "/health/ready", "/health/live"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	mu.Lock()
	fail = true
	mu.Unlock()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health?format=json", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp health.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, health.StatusUnhealthy, resp.Status)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerRun(t *testing.T) {
	t.Parallel()

	srv := server.New(server.WithHandlers(routes(func(r server.Router) {
		r.GET("/", func(c server.Context) error { return c.String(http.StatusOK, "up") })
	})))

	ctx, cancel := context.WithCancel(t.Context())
	ready := make(chan net.Addr, 1)
	var started, stopped bool
	done := make(chan error, 1)
	go func() {
		done <- srv.Run("127.0.0.1:0",
			server.WithContext(ctx),
			server.NotifyReady(ready),
			server.StartupHook(func(context.Context) error { started = true; return nil }),
			server.ShutdownHook(func(context.Context) error { stopped = true; return nil }),
		)
	}()

	var addr net.Addr
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr.String() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "up", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, started)
	assert.True(t, stopped)
}

func TestServerRunStartupHookError(t *testing.T) {
	t.Parallel()

	srv := server.New()
	err := srv.Run("127.0.0.1:0",
		server.WithContext(t.Context()),
		server.StartupHook(func(context.Context) error { return errors.New("queue unavailable") }),
	)
	require.EqualError(t, err, "queue unavailable")
}
