package job

import "errors"

// Job errors.
var (
	// ErrUnknownTask is returned when attempting to execute a task
	// that has not been registered.
	ErrUnknownTask = errors.New("job: unknown task")

	// ErrUnknownQueue is returned when a job targets a queue that was
	// not configured.
	ErrUnknownQueue = errors.New("job: unknown queue")

	// ErrInvalidPayload is returned when a task payload cannot be
	// marshaled or unmarshaled.
	ErrInvalidPayload = errors.New("job: invalid payload")

	// ErrQueueFull is returned when a queue's buffer is exhausted.
	ErrQueueFull = errors.New("job: queue is full")

	// ErrDuplicate is returned when a job with the same unique key is
	// already pending or running.
	ErrDuplicate = errors.New("job: duplicate job")

	// ErrAlreadyStarted is returned when attempting to start a manager
	// that is already running.
	ErrAlreadyStarted = errors.New("job: already started")

	// ErrNotStarted is returned when attempting to stop a manager
	// that is not running.
	ErrNotStarted = errors.New("job: not started")

	// ErrStopped is returned when enqueueing on a manager that was stopped.
	ErrStopped = errors.New("job: manager stopped")

	ErrHealthcheckFailed = errors.New("job: healthcheck failed")
)
