package batch

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	mu        sync.Mutex
	progress  Progress
	cancelled bool
	// deleted entries refuse further transitions.
	deleted bool
}

// Registry holds the progress of every known task in memory. Readers get
// copies; only the Orchestrator mutates a running task.
type Registry struct {
	tasks map[string]*entry
	now   func() time.Time
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]*entry),
		now:   time.Now,
	}
}

// Create registers a pending task for the given uploaded files.
func (r *Registry) Create(input, template string) Progress {
	p := Progress{
		TaskID:       uuid.NewString(),
		State:        StatePending,
		CreatedAt:    r.now(),
		InputFile:    input,
		TemplateFile: template,
		Records:      []RecordStatus{},
	}

	r.mu.Lock()
	r.tasks[p.TaskID] = &entry{progress: p}
	r.mu.Unlock()

	return p.clone()
}

// Get returns a snapshot of the task.
func (r *Registry) Get(id string) (Progress, bool) {
	e, ok := r.entry(id)
	if !ok {
		return Progress{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress.clone(), true
}

// List returns snapshots of all tasks, newest first.
func (r *Registry) List() []Progress {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.tasks))
	for _, e := range r.tasks {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]Progress, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.progress.clone())
		e.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b Progress) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.TaskID, b.TaskID)
	})
	return out
}

// Cancel stops a task. A pending task is cancelled at once; a running task
// is flagged and stops before its next record.
func (r *Registry) Cancel(id string) error {
	e, ok := r.entry(id)
	if !ok {
		return ErrTaskNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.progress.State {
	case StatePending:
		e.progress.State = StateCancelled
		e.progress.Cause = "cancelled before start"
		e.progress.FinishedAt = r.now()
		e.cancelled = true
		return nil
	case StateRunning:
		e.cancelled = true
		return nil
	default:
		return e.progress.State.transition(StateCancelled)
	}
}

// Delete drops a task that is not running.
func (r *Registry) Delete(id string) error {
	e, ok := r.entry(id)
	if !ok {
		return ErrTaskNotFound
	}
	e.mu.Lock()
	if e.progress.State == StateRunning {
		e.mu.Unlock()
		return ErrTaskActive
	}
	e.deleted = true
	e.mu.Unlock()

	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
	return nil
}

// Sweep drops finished tasks, and pending tasks nobody started, that are
// older than olderThan. It returns the dropped snapshots.
func (r *Registry) Sweep(olderThan time.Duration) []Progress {
	cutoff := r.now().Add(-olderThan)

	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped []Progress
	for id, e := range r.tasks {
		e.mu.Lock()
		p := e.progress
		stale := false
		switch {
		case p.State.IsTerminal():
			stale = p.FinishedAt.Before(cutoff)
		case p.State == StatePending:
			stale = p.CreatedAt.Before(cutoff)
		}
		if stale {
			e.deleted = true
			dropped = append(dropped, p.clone())
		}
		e.mu.Unlock()
		if stale {
			delete(r.tasks, id)
		}
	}
	return dropped
}

func (r *Registry) entry(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tasks[id]
	return e, ok
}

// transition moves a task to next, stamping start and finish times.
func (r *Registry) transition(id string, next State, cause string) (Progress, error) {
	e, ok := r.entry(id)
	if !ok {
		return Progress{}, ErrTaskNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return Progress{}, ErrTaskNotFound
	}
	if err := e.progress.State.transition(next); err != nil {
		return Progress{}, err
	}
	e.progress.State = next
	if cause != "" {
		e.progress.Cause = cause
	}
	switch {
	case next == StateRunning:
		e.progress.StartedAt = r.now()
	case next.IsTerminal():
		e.progress.FinishedAt = r.now()
	}
	return e.progress.clone(), nil
}

// update applies fn to the task under its lock.
func (r *Registry) update(id string, fn func(*Progress)) {
	e, ok := r.entry(id)
	if !ok {
		return
	}
	e.mu.Lock()
	fn(&e.progress)
	e.mu.Unlock()
}

func (r *Registry) isCancelled(id string) bool {
	e, ok := r.entry(id)
	if !ok {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}
