// Package server is the HTTP layer of certy: a chi router behind a small
// Context interface, structured HTTP errors, health endpoints and a
// signal-aware run loop with startup and shutdown hooks.
//
// Handlers declare their routes through the Router interface and return
// errors instead of writing failure responses themselves:
//
//	type Tasks struct{ svc *batch.Service }
//
//	func (h *Tasks) Routes(r server.Router) {
//	    r.GET("/tasks", h.list)
//	}
//
//	func (h *Tasks) list(c server.Context) error {
//	    return c.JSON(http.StatusOK, h.svc.List())
//	}
//
//	srv := server.New(
//	    server.WithLogger(log),
//	    server.WithMiddleware(middlewares.RequestID(), middlewares.Recover()),
//	    server.WithErrorHandler(middlewares.ErrorHandler()),
//	    server.WithHandlers(&Tasks{svc: svc}),
//	)
//	err := srv.Run(":8080", server.StartupHook(svc.Start), server.ShutdownHook(svc.Stop))
package server
