package middlewares

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/certy/internal/server"
)

// DefaultTimeout applies when Timeout gets a non-positive duration.
const DefaultTimeout = 30 * time.Second

// Timeout returns *TimeoutError once d elapses. The handler goroutine is
// not killed; it sees the cancelled context through c.Done().
func Timeout(d time.Duration) server.Middleware {
	if d <= 0 {
		d = DefaultTimeout
	}

	return func(next server.HandlerFunc) server.HandlerFunc {
		return func(c server.Context) error {
			ctx, cancel := context.WithTimeout(c.Context(), d)
			defer cancel()
			c.SetContext(ctx)

			result := make(chan error, 1)
			go func() { result <- next(c) }()

			select {
			case err := <-result:
				return err
			case <-ctx.Done():
				if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return ctx.Err()
				}
				c.LogWarn("handler timed out", "timeout", d.String())
				return &TimeoutError{Duration: d}
			}
		}
	}
}
