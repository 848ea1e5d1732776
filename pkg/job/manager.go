package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Manager runs registered tasks on in-process worker pools and fires
// scheduled tasks from a cron scheduler. Jobs live in memory only.
type Manager struct {
	registry *taskRegistry
	queues   map[string]*queue
	cron     *cron.Cron
	logger   *slog.Logger

	// ctx is cancelled when Stop gives up waiting for running jobs.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	unique  map[string]struct{}
	started bool
	stopped bool
}

type queue struct {
	jobs    chan *envelope
	name    string
	workers int
}

type envelope struct {
	name        string
	uniqueKey   string
	payload     json.RawMessage
	maxAttempts int
}

// NewManager creates a new job manager with the given options.
// Jobs can be enqueued before Start; they are processed once it is called.
func NewManager(opts ...Option) (*Manager, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.maxWorkers == 0 {
		cfg.maxWorkers = defaultMaxWorkers
	}
	if cfg.bufferSize == 0 {
		cfg.bufferSize = defaultBufferSize
	}

	queues := map[string]*queue{
		DefaultQueue: {name: DefaultQueue, workers: cfg.maxWorkers, jobs: make(chan *envelope, cfg.bufferSize)},
	}
	for name, workers := range cfg.queues {
		queues[name] = &queue{name: name, workers: workers, jobs: make(chan *envelope, cfg.bufferSize)}
	}

	scheduler := cron.New(cron.WithParser(cronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		registry: cfg.registry,
		queues:   queues,
		cron:     scheduler,
		logger:   cfg.logger,
		ctx:      ctx,
		cancel:   cancel,
		unique:   make(map[string]struct{}),
	}

	for _, sched := range cfg.schedules {
		if _, err := scheduler.AddFunc(sched.schedule, m.scheduledRunner(sched)); err != nil {
			cancel()
			return nil, fmt.Errorf("job: invalid cron schedule %q: %w", sched.schedule, err)
		}
		cfg.registry.register(sched.name, scheduledExecutor(sched.handler))
	}

	return m, nil
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func parseCronSchedule(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// Start launches the worker pools and the scheduler.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	if m.stopped {
		return ErrStopped
	}

	workers := 0
	for _, q := range m.queues {
		for range q.workers {
			m.wg.Go(func() { m.work(q) })
		}
		workers += q.workers
	}
	m.cron.Start()

	m.started = true
	m.logger.InfoContext(ctx, "job manager started",
		slog.Int("tasks", len(m.registry.names())),
		slog.Int("queues", len(m.queues)),
		slog.Int("workers", workers),
	)

	return nil
}

// Stop stops the scheduler, lets workers drain their current job and
// waits for them. When ctx expires first, running jobs are cancelled.
// Jobs still queued are dropped.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return ErrNotStarted
	}
	m.started = false
	m.stopped = true
	for _, q := range m.queues {
		close(q.jobs)
	}
	m.mu.Unlock()

	cronDone := m.cron.Stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		<-cronDone.Done()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		m.logger.InfoContext(ctx, "job manager stopped")
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		m.logger.WarnContext(ctx, "job manager stopped after cancelling running jobs")
		return fmt.Errorf("job: stop: %w", ctx.Err())
	}
}

// Enqueue adds a job to its queue. The payload is marshaled to JSON and
// decoded into the task's payload type on execution.
func (m *Manager) Enqueue(ctx context.Context, name string, payload any, opts ...EnqueueOption) error {
	if _, ok := m.registry.get(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	cfg := enqueueConfig{queue: DefaultQueue, maxAttempts: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	q, ok := m.queues[cfg.queue]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQueue, cfg.queue)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}

	env := &envelope{name: name, payload: raw, maxAttempts: cfg.maxAttempts}
	if cfg.uniqueKey != "" {
		env.uniqueKey = name + ":" + cfg.uniqueKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrStopped
	}
	if env.uniqueKey != "" {
		if _, dup := m.unique[env.uniqueKey]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicate, env.uniqueKey)
		}
	}

	select {
	case q.jobs <- env:
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, q.name)
	}
	if env.uniqueKey != "" {
		m.unique[env.uniqueKey] = struct{}{}
	}

	m.logger.DebugContext(ctx, "job enqueued",
		slog.String("task", name),
		slog.String("queue", q.name),
	)
	return nil
}

func (m *Manager) work(q *queue) {
	for env := range q.jobs {
		m.execute(env, q.name)
	}
}

func (m *Manager) execute(env *envelope, queueName string) {
	defer m.release(env)

	executor, ok := m.registry.get(env.name)
	if !ok || executor == nil {
		m.logger.Error("job dropped", slog.String("task", env.name), slog.Any("error", ErrUnknownTask))
		return
	}

	for attempt := 1; attempt <= env.maxAttempts; attempt++ {
		m.logger.Debug("executing task",
			slog.String("task", env.name),
			slog.String("queue", queueName),
			slog.Int("attempt", attempt),
		)

		err := runSafely(m.ctx, executor, env.payload)
		if err == nil {
			m.logger.Debug("task completed", slog.String("task", env.name))
			return
		}

		m.logger.Error("task failed",
			slog.String("task", env.name),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		if errors.Is(err, ErrInvalidPayload) || m.ctx.Err() != nil {
			return
		}
		if attempt < env.maxAttempts {
			select {
			case <-time.After(backoff(attempt)):
			case <-m.ctx.Done():
				return
			}
		}
	}
}

func (m *Manager) release(env *envelope) {
	if env.uniqueKey == "" {
		return
	}
	m.mu.Lock()
	delete(m.unique, env.uniqueKey)
	m.mu.Unlock()
}

func (m *Manager) scheduledRunner(sched scheduleConfig) func() {
	return func() {
		if err := runSafely(m.ctx, scheduledExecutor(sched.handler), nil); err != nil {
			m.logger.Error("scheduled task failed",
				slog.String("task", sched.name),
				slog.Any("error", err),
			)
		}
	}
}

// runSafely executes a task and turns a panic into an error.
func runSafely(ctx context.Context, executor taskExecutor, payload json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job: task panicked: %v", r)
		}
	}()
	return executor.Execute(ctx, payload)
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt*attempt) * 100 * time.Millisecond
}

func scheduledExecutor(handle func(context.Context) error) taskExecutor {
	return executorFunc(func(ctx context.Context, _ json.RawMessage) error {
		return handle(ctx)
	})
}

// Shutdown returns a shutdown function for the job manager.
func (m *Manager) Shutdown() func(context.Context) error {
	return func(ctx context.Context) error {
		return m.Stop(ctx)
	}
}

// StartFunc returns a startup function for the job manager.
func (m *Manager) StartFunc() func(context.Context) error {
	return func(ctx context.Context) error {
		return m.Start(ctx)
	}
}
