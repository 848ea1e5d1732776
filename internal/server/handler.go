package server

// Handler declares routes on a router.
type Handler interface {
	Routes(r Router)
}

// HandlerFunc is the signature for route handlers. A returned error is
// passed to the server's ErrorHandler.
type HandlerFunc func(c Context) error

// Middleware wraps a HandlerFunc.
//
// Example:
//
//	func MaxBody(n int64) server.Middleware {
//	    return func(next server.HandlerFunc) server.HandlerFunc {
//	        return func(c server.Context) error {
//	            c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, n)
//	            return next(c)
//	        }
//	    }
//	}
type Middleware func(next HandlerFunc) HandlerFunc

// ErrorHandler renders errors returned from handlers.
type ErrorHandler func(Context, error) error
