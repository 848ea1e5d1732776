package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/certy/pkg/job"
	"github.com/dmitrymomot/certy/pkg/storage"
)

// Task names registered with the job manager.
const (
	TaskRunBatch   = "run_batch"
	TaskSweepTasks = "sweep_tasks"
)

const (
	DefaultTTL           = 24 * time.Hour
	DefaultSweepSchedule = "@every 1h"
)

// RunPayload is the job payload for TaskRunBatch.
type RunPayload struct {
	TaskID string `json:"task_id"`
}

// Service runs batches in the background on top of pkg/job and keeps their
// uploads and retained certificates tidy.
type Service struct {
	orchestrator  *Orchestrator
	registry      *Registry
	jobs          *job.Manager
	retention     storage.Storage
	logger        *slog.Logger
	queued        map[string]Job
	uploadDir     string
	sweepSchedule string
	ttl           time.Duration
	concurrency   int
	mu            sync.Mutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTTL sets how long finished tasks are kept.
func WithTTL(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithSweepSchedule sets the cron expression of the cleanup sweep.
func WithSweepSchedule(expr string) ServiceOption {
	return func(s *Service) {
		if expr != "" {
			s.sweepSchedule = expr
		}
	}
}

// WithUploadDir sets the directory uploads live in. Cleanup only removes
// files inside it.
func WithUploadDir(dir string) ServiceOption {
	return func(s *Service) { s.uploadDir = dir }
}

// WithServiceRetention sets the storage that holds undelivered certificates.
func WithServiceRetention(st storage.Storage) ServiceOption {
	return func(s *Service) { s.retention = st }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConcurrentBatches sets how many batches may run at once.
func WithConcurrentBatches(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService creates a Service and its job manager.
func NewService(o *Orchestrator, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		orchestrator:  o,
		registry:      o.Registry(),
		retention:     o.retention,
		logger:        slog.Default(),
		queued:        make(map[string]Job),
		sweepSchedule: DefaultSweepSchedule,
		ttl:           DefaultTTL,
		concurrency:   2,
	}
	for _, opt := range opts {
		opt(s)
	}

	jobs, err := job.NewManager(
		job.WithTask[RunPayload](&runBatchTask{svc: s}),
		job.WithScheduledTask(&sweepTask{svc: s}),
		job.WithMaxWorkers(s.concurrency),
		job.WithLogger(s.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("batch: creating job manager: %w", err)
	}
	s.jobs = jobs
	return s, nil
}

// Registry returns the task registry.
func (s *Service) Registry() *Registry { return s.registry }

// Jobs returns the underlying job manager.
func (s *Service) Jobs() *job.Manager { return s.jobs }

// Start starts the workers and the sweep schedule.
func (s *Service) Start(ctx context.Context) error { return s.jobs.Start(ctx) }

// Stop waits for running batches until ctx expires.
func (s *Service) Stop(ctx context.Context) error { return s.jobs.Stop(ctx) }

// Submit queues a pending task for processing and returns at once.
func (s *Service) Submit(ctx context.Context, j Job) (string, error) {
	p, ok := s.registry.Get(j.TaskID)
	if !ok {
		return "", ErrTaskNotFound
	}
	if p.State != StatePending {
		return "", fmt.Errorf("%w: task is %s", ErrInvalidTransition, p.State)
	}
	if j.Input == "" {
		j.Input = p.InputFile
	}

	s.mu.Lock()
	if _, dup := s.queued[j.TaskID]; dup {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: task already submitted", ErrInvalidTransition)
	}
	s.queued[j.TaskID] = j
	s.mu.Unlock()

	err := s.jobs.Enqueue(ctx, TaskRunBatch, RunPayload{TaskID: j.TaskID}, job.UniqueKey(j.TaskID))
	if err != nil {
		s.mu.Lock()
		delete(s.queued, j.TaskID)
		s.mu.Unlock()
		if errors.Is(err, job.ErrDuplicate) {
			return "", fmt.Errorf("%w: task already submitted", ErrInvalidTransition)
		}
		return "", err
	}

	s.logger.InfoContext(ctx, "batch queued", slog.String("task_id", j.TaskID))
	return j.TaskID, nil
}

// Cancel requests cancellation of a task.
func (s *Service) Cancel(id string) error { return s.registry.Cancel(id) }

// Status returns a snapshot of a task.
func (s *Service) Status(id string) (Progress, error) {
	p, ok := s.registry.Get(id)
	if !ok {
		return Progress{}, ErrTaskNotFound
	}
	return p, nil
}

// List returns all tasks, newest first.
func (s *Service) List() []Progress { return s.registry.List() }

// Cleanup removes a task's uploads and retained certificates and forgets
// the task. Running tasks are left alone.
func (s *Service) Cleanup(ctx context.Context, id string) error {
	p, ok := s.registry.Get(id)
	if !ok {
		return ErrTaskNotFound
	}
	// Delete re-checks the state under the task lock, so a task that
	// started after Get is never cleaned up mid-run.
	if err := s.registry.Delete(id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.queued, id)
	s.mu.Unlock()

	s.removeUploads(ctx, p)
	if s.retention != nil {
		n, err := storage.DeletePrefix(ctx, s.retention, id+"/")
		if err != nil {
			return fmt.Errorf("batch: removing retained certificates: %w", err)
		}
		if n > 0 {
			s.logger.InfoContext(ctx, "retained certificates removed", slog.String("task_id", id), slog.Int("count", n))
		}
	}
	return nil
}

// Sweep drops tasks older than the TTL and removes their uploads.
func (s *Service) Sweep(ctx context.Context) int {
	dropped := s.registry.Sweep(s.ttl)
	for _, p := range dropped {
		s.removeUploads(ctx, p)
	}
	if len(dropped) > 0 {
		s.logger.InfoContext(ctx, "expired tasks swept", slog.Int("count", len(dropped)))
	}
	return len(dropped)
}

func (s *Service) removeUploads(ctx context.Context, p Progress) {
	for _, path := range []string{p.InputFile, p.TemplateFile} {
		if path == "" || !s.owns(path) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.WarnContext(ctx, "removing upload", slog.String("path", path), slog.Any("error", err))
		}
		// Each upload gets its own directory; drop it once empty.
		if dir := filepath.Dir(path); s.owns(dir) {
			_ = os.Remove(dir)
		}
	}
}

// owns reports whether path lies strictly inside the upload directory.
func (s *Service) owns(path string) bool {
	if s.uploadDir == "" {
		return false
	}
	rel, err := filepath.Rel(s.uploadDir, path)
	if err != nil || rel == "." {
		return false
	}
	return !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}

func (s *Service) execute(ctx context.Context, id string) error {
	s.mu.Lock()
	j, ok := s.queued[id]
	delete(s.queued, id)
	s.mu.Unlock()
	if !ok {
		s.logger.WarnContext(ctx, "queued batch vanished", slog.String("task_id", id))
		return nil
	}

	_, err := s.orchestrator.Run(ctx, j)
	switch {
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrTaskNotFound):
		// Cancelled or cleaned up while queued.
		s.logger.InfoContext(ctx, "batch skipped", slog.String("task_id", id), slog.Any("reason", err))
	case err != nil:
		// The failure is recorded on the task; retrying would resend.
		s.logger.ErrorContext(ctx, "batch failed", slog.String("task_id", id), slog.Any("error", err))
	}
	return nil
}

type runBatchTask struct{ svc *Service }

func (t *runBatchTask) Name() string { return TaskRunBatch }

func (t *runBatchTask) Handle(ctx context.Context, p RunPayload) error {
	return t.svc.execute(ctx, p.TaskID)
}

type sweepTask struct{ svc *Service }

func (t *sweepTask) Name() string     { return TaskSweepTasks }
func (t *sweepTask) Schedule() string { return t.svc.sweepSchedule }

func (t *sweepTask) Handle(ctx context.Context) error {
	t.svc.Sweep(ctx)
	return nil
}
