// Package worker defines worker contracts for asynchronous event evaluation.
package worker

import (
	"github.com/offsidezero/varcore/internal/domain/types"
	"github.com/offsidezero/varcore/pkg/logger"
)

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
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithEvaluator sets the evaluator for one event type, replacing the
// default for that type.
func WithEvaluator(t types.EventType, e Evaluator) Option {
	return func(w *InMemoryWorker) {
		if e != nil {
			w.evaluators[t] = e
		}
	}
}

// WithComposer sets a custom confidence composer.
func WithComposer(c Composer) Option {
	return func(w *InMemoryWorker) {
		if c != nil {
			w.composer = c
		}
	}
}
