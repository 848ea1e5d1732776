package middlewares

import (
	"runtime"

	"github.com/dmitrymomot/certy/internal/server"
)

const stackSize = 4 << 10

// RecoverOption configures Recover.
type RecoverOption func(*bool)

// WithRecoverDisablePrintStack skips stack capture.
func WithRecoverDisablePrintStack() RecoverOption {
	return func(withStack *bool) { *withStack = false }
}

// Recover turns a handler panic into a *PanicError so the ErrorHandler
// answers 500 and the batch service keeps running.
func Recover(opts ...RecoverOption) server.Middleware {
	withStack := true
	for _, opt := range opts {
		opt(&withStack)
	}

	return func(next server.HandlerFunc) server.HandlerFunc {
		return func(c server.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				pe := &PanicError{Value: r}
				attrs := []any{"panic", r}
				if withStack {
					buf := make([]byte, stackSize)
					pe.Stack = buf[:runtime.Stack(buf, false)]
					attrs = append(attrs, "stack", string(pe.Stack))
				}
				c.LogError("panic recovered", attrs...)
				err = pe
			}()
			return next(c)
		}
	}
}
