package queue

import "errors"

// Sentinel errors for queue operations.
var (
	ErrFull   = errors.New("queue full")
	ErrClosed = errors.New("queue closed")
)
