package health

import "errors"

// ErrCheckFailed wraps the error of a failing built-in check.
var ErrCheckFailed = errors.New("health: check failed")
