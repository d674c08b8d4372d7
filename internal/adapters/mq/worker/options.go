package worker

import (
	"errors"
	"time"

	"github.com/okian/skillcalc/pkg/logger"
)

// ErrUnknownKind is returned for jobs of a kind the worker cannot run.
var ErrUnknownKind = errors.New("unknown job kind")

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithJobTimeout bounds how long one job may run.
func WithJobTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithForgetter lets failed jobs release their dedupe key.
func WithForgetter(f Forgetter) Option {
	return func(w *InMemoryWorker) {
		w.forget = f
	}
}
