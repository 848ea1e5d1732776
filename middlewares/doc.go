// Package middlewares provides the HTTP middleware used by the certy server.
//
// # Request ID
//
// RequestID keeps an upstream X-Request-ID or generates a UUIDv7, echoes it
// in the response and stores it in the request context so that loggers
// built with logger.RequestIDExtractor tag every line with request_id.
//
// # Recover
//
// Recover turns handler panics into *PanicError values for the error handler.
//
// # Timeout
//
// Timeout returns *TimeoutError when a handler overruns. The handler
// goroutine keeps running and should watch its context.
//
// # CORS
//
// CORS answers preflight requests for allowed origins.
//
// # Error handler
//
// ErrorHandler maps domain errors to status codes and writes
// {"error", "code", "request_id"}:
//
//	srv := server.New(
//	    server.WithMiddleware(middlewares.RequestID(), middlewares.Recover()),
//	    server.WithErrorHandler(middlewares.ErrorHandler()),
//	)
package middlewares
