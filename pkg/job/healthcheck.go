package job

import (
	"context"
	"fmt"
)

// Healthcheck reports whether m is accepting work. It satisfies
// health.CheckFunc.
func Healthcheck(m *Manager) func(context.Context) error {
	return func(context.Context) error {
		if m == nil {
			return fmt.Errorf("%w: no manager", ErrHealthcheckFailed)
		}
		m.mu.Lock()
		started, stopped := m.started, m.stopped
		m.mu.Unlock()
		switch {
		case stopped:
			return fmt.Errorf("%w: %w", ErrHealthcheckFailed, ErrStopped)
		case !started:
			return fmt.Errorf("%w: %w", ErrHealthcheckFailed, ErrNotStarted)
		}
		return nil
	}
}
