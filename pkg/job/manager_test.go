package job

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runPayload struct {
	ID string `json:"id"`
}

// recordTask records the IDs it handled and can block until released.
type recordTask struct {
	release chan struct{}
	fail    atomic.Int32
	mu      sync.Mutex
	seen    []string
	calls   atomic.Int32
}

func (t *recordTask) Name() string { return "record" }

func (t *recordTask) Handle(ctx context.Context, p runPayload) error {
	t.calls.Add(1)
	if t.release != nil {
		select {
		case <-t.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if t.fail.Load() > 0 {
		t.fail.Add(-1)
		return errors.New("transient")
	}
	t.mu.Lock()
	t.seen = append(t.seen, p.ID)
	t.mu.Unlock()
	return nil
}

func (t *recordTask) handled() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.seen...)
}

type tickTask struct {
	ticks atomic.Int32
}

func (t *tickTask) Name() string                 { return "tick" }
func (t *tickTask) Schedule() string             { return "@every 1s" }
func (t *tickTask) Handle(context.Context) error { t.ticks.Add(1); return nil }

func startManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(opts...)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	})
	return m
}

func TestManager_Enqueue(t *testing.T) {
	t.Parallel()

	t.Run("executes enqueued jobs", func(t *testing.T) {
		t.Parallel()

		task := &recordTask{}
		m := startManager(t, WithTask[runPayload](task))

		require.NoError(t, m.Enqueue(context.Background(), "record", runPayload{ID: "a"}))
		require.NoError(t, m.Enqueue(context.Background(), "record", runPayload{ID: "b"}))

		require.Eventually(t, func() bool { return len(task.handled()) == 2 }, 2*time.Second, 10*time.Millisecond)
		assert.ElementsMatch(t, []string{"a", "b"}, task.handled())
	})

	t.Run("jobs enqueued before start run after start", func(t *testing.T) {
		t.Parallel()

		task := &recordTask{}
		m, err := NewManager(WithTask[runPayload](task))
		require.NoError(t, err)
		require.NoError(t, m.Enqueue(context.Background(), "record", runPayload{ID: "early"}))

		require.NoError(t, m.Start(context.Background()))
		t.Cleanup(func() { _ = m.Stop(context.Background()) })

		require.Eventually(t, func() bool { return len(task.handled()) == 1 }, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("unknown task", func(t *testing.T) {
		t.Parallel()

		m := startManager(t)
		err := m.Enqueue(context.Background(), "missing", nil)
		require.ErrorIs(t, err, ErrUnknownTask)
	})

	t.Run("unknown queue", func(t *testing.T) {
		t.Parallel()

		m := startManager(t, WithTask[runPayload](&recordTask{}))
		err := m.Enqueue(context.Background(), "record", runPayload{}, InQueue("nope"))
		require.ErrorIs(t, err, ErrUnknownQueue)
	})

	t.Run("unmarshalable payload", func(t *testing.T) {
		t.Parallel()

		m := startManager(t, WithTask[runPayload](&recordTask{}))
		err := m.Enqueue(context.Background(), "record", make(chan int))
		require.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("unique key rejects duplicates while running", func(t *testing.T) {
		t.Parallel()

		task := &recordTask{release: make(chan struct{})}
		m := startManager(t, WithTask[runPayload](task))

		require.NoError(t, m.Enqueue(context.Background(), "record", runPayload{ID: "x"}, UniqueKey("x")))
		err := m.Enqueue(context.Background(), "record", runPayload{ID: "x"}, UniqueKey("x"))
		require.ErrorIs(t, err, ErrDuplicate)

		close(task.release)
		require.Eventually(t, func() bool { return len(task.handled()) == 1 }, 2*time.Second, 10*time.Millisecond)
		require.Eventually(t, func() bool {
			return m.Enqueue(context.Background(), "record", runPayload{ID: "x"}, UniqueKey("x")) == nil
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("full queue", func(t *testing.T) {
		t.Parallel()

		m, err := NewManager(WithTask[runPayload](&recordTask{}), WithBufferSize(1))
		require.NoError(t, err)

		require.NoError(t, m.Enqueue(context.Background(), "record", runPayload{ID: "1"}))
		err = m.Enqueue(context.Background(), "record", runPayload{ID: "2"})
		require.ErrorIs(t, err, ErrQueueFull)
	})
}

func TestManager_Retries(t *testing.T) {
	t.Parallel()

	task := &recordTask{}
	task.fail.Store(2)
	m := startManager(t, WithTask[runPayload](task))

	require.NoError(t, m.Enqueue(context.Background(), "record", runPayload{ID: "r"}, MaxAttempts(3)))

	require.Eventually(t, func() bool { return len(task.handled()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(3), task.calls.Load())
}

func TestManager_QueueConcurrency(t *testing.T) {
	t.Parallel()

	task := &recordTask{release: make(chan struct{})}
	m := startManager(t, WithTask[runPayload](task), WithQueue("batches", 1))

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, m.Enqueue(context.Background(), "record", runPayload{ID: id}, InQueue("batches")))
	}

	require.Eventually(t, func() bool { return task.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), task.calls.Load(), "single worker queue runs one job at a time")

	close(task.release)
	require.Eventually(t, func() bool { return len(task.handled()) == 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestManager_ScheduledTask(t *testing.T) {
	t.Parallel()

	tick := &tickTask{}
	startManager(t, WithScheduledTask(tick))

	require.Eventually(t, func() bool { return tick.ticks.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestManager_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("start twice", func(t *testing.T) {
		t.Parallel()

		m := startManager(t)
		require.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)
	})

	t.Run("stop before start", func(t *testing.T) {
		t.Parallel()

		m, err := NewManager()
		require.NoError(t, err)
		require.ErrorIs(t, m.Stop(context.Background()), ErrNotStarted)
	})

	t.Run("enqueue after stop", func(t *testing.T) {
		t.Parallel()

		m, err := NewManager(WithTask[runPayload](&recordTask{}))
		require.NoError(t, err)
		require.NoError(t, m.Start(context.Background()))
		require.NoError(t, m.Stop(context.Background()))

		err = m.Enqueue(context.Background(), "record", runPayload{})
		require.ErrorIs(t, err, ErrStopped)
	})

	t.Run("stop deadline cancels running jobs", func(t *testing.T) {
		t.Parallel()

		task := &recordTask{release: make(chan struct{})}
		m, err := NewManager(WithTask[runPayload](task))
		require.NoError(t, err)
		require.NoError(t, m.Start(context.Background()))
		require.NoError(t, m.Enqueue(context.Background(), "record", runPayload{ID: "slow"}))
		require.Eventually(t, func() bool { return task.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		err = m.Stop(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Empty(t, task.handled())
	})
}

func TestNewManager_InvalidSchedule(t *testing.T) {
	t.Parallel()

	_, err := NewManager(WithScheduledTask(&badSchedule{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron schedule")
}

type badSchedule struct{}

func (badSchedule) Name() string                 { return "bad" }
func (badSchedule) Schedule() string             { return "not a cron expression" }
func (badSchedule) Handle(context.Context) error { return nil }

func TestParseCronSchedule(t *testing.T) {
	t.Parallel()

	valid := []string{"* * * * *", "0 * * * *", "*/15 * * * *", "30 14 * * *", "@hourly", "@every 10m"}
	for _, expr := range valid {
		_, err := parseCronSchedule(expr)
		assert.NoError(t, err, expr)
	}

	invalid := []string{"", "* * *", "* * * * * *", "60 * * * *", "* 25 * * *", "garbage"}
	for _, expr := range invalid {
		_, err := parseCronSchedule(expr)
		assert.Error(t, err, expr)
	}

	schedule, err := parseCronSchedule("0 * * * *")
	require.NoError(t, err)
	base := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), schedule.Next(base))
}
