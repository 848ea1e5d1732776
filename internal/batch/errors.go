package batch

import "errors"

var (
	ErrTaskNotFound      = errors.New("batch: task not found")
	ErrInvalidTransition = errors.New("batch: invalid state transition")
	ErrTaskActive        = errors.New("batch: task is still running")
	ErrNoSender          = errors.New("batch: no mail sender configured")
	ErrNoValidRecords    = errors.New("batch: no valid records")
)
