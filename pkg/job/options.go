package job

import (
	"context"
	"log/slog"
)

// DefaultQueue receives jobs enqueued without InQueue.
const DefaultQueue = "default"

const (
	defaultMaxWorkers = 4
	defaultBufferSize = 1024
)

type config struct {
	registry   *taskRegistry
	queues     map[string]int
	logger     *slog.Logger
	schedules  []scheduleConfig
	maxWorkers int
	bufferSize int
}

func newConfig() *config {
	return &config{
		registry: newTaskRegistry(),
		queues:   make(map[string]int),
	}
}

type scheduleConfig struct {
	handler  func(context.Context) error
	name     string
	schedule string
}

// Option configures a Manager.
type Option func(*config)

// WithTask registers a handler under task.Name(). The payload type is
// inferred from Handle, so the batch runner registers as
//
//	job.WithTask(&runBatch{svc: svc})
func WithTask[P any, T interface {
	Name() string
	Handle(context.Context, P) error
}](task T) Option {
	return func(c *config) {
		c.registry.register(task.Name(), typedExecutor(task.Handle))
	}
}

// WithScheduledTask runs task.Handle on a cron schedule ("*/15 * * * *",
// "@every 1h"). An invalid schedule makes Start fail.
func WithScheduledTask[T interface {
	Name() string
	Schedule() string
	Handle(context.Context) error
}](task T) Option {
	return func(c *config) {
		c.schedules = append(c.schedules, scheduleConfig{
			name:     task.Name(),
			schedule: task.Schedule(),
			handler:  task.Handle,
		})
	}
}

// WithQueue adds a named queue served by its own workers.
func WithQueue(name string, workers int) Option {
	return func(c *config) {
		if name != "" && workers > 0 {
			c.queues[name] = workers
		}
	}
}

// WithLogger sets the manager logger. Output is discarded otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxWorkers sizes the default queue.
func WithMaxWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}

// WithBufferSize caps pending jobs per queue; past it Enqueue returns ErrQueueFull.
func WithBufferSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

type enqueueConfig struct {
	queue       string
	uniqueKey   string
	maxAttempts int
}

// EnqueueOption configures a single Enqueue call.
type EnqueueOption func(*enqueueConfig)

// InQueue routes the job to a queue added with WithQueue.
func InQueue(name string) EnqueueOption {
	return func(c *enqueueConfig) {
		if name != "" {
			c.queue = name
		}
	}
}

// MaxAttempts is the total number of executions for a failing job. Default 1.
func MaxAttempts(n int) EnqueueOption {
	return func(c *enqueueConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// UniqueKey makes Enqueue return ErrDuplicate while a job with the same
// task name and key is pending or running.
func UniqueKey(key string) EnqueueOption {
	return func(c *enqueueConfig) {
		c.uniqueKey = key
	}
}
