package job

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// taskExecutor runs one invocation of a task from its encoded payload.
type taskExecutor interface {
	Execute(ctx context.Context, payload json.RawMessage) error
}

type executorFunc func(context.Context, json.RawMessage) error

func (f executorFunc) Execute(ctx context.Context, payload json.RawMessage) error {
	return f(ctx, payload)
}

// typedExecutor decodes the payload into P before calling handle.
// An empty payload yields the zero P.
func typedExecutor[P any](handle func(context.Context, P) error) taskExecutor {
	return executorFunc(func(ctx context.Context, raw json.RawMessage) error {
		var payload P
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
			}
		}
		return handle(ctx, payload)
	})
}

type taskRegistry struct {
	mu        sync.RWMutex
	executors map[string]taskExecutor
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{executors: make(map[string]taskExecutor)}
}

func (r *taskRegistry) register(name string, e taskExecutor) {
	r.mu.Lock()
	r.executors[name] = e
	r.mu.Unlock()
}

func (r *taskRegistry) get(name string) (taskExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[name]
	return e, ok
}

// names returns the registered task names in sorted order.
func (r *taskRegistry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.executors))
}
