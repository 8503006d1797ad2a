package animator

import (
	"log/slog"
)

// AnimatorBuilderOption is a functional option for configuring an Animator during construction.
type AnimatorBuilderOption func(*animator)

// WithWorkers is an option builder that sets the maximum number of pool workers used by Update.
// Defaults to runtime.NumCPU(). Values below 1 are ignored.
//
// Parameters:
//   - workers: the worker count
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the worker count to an animator
func WithWorkers(workers int) AnimatorBuilderOption {
	return func(a *animator) {
		if workers > 0 {
			a.workers = workers
		}
	}
}

// WithQueueSize is an option builder that sets the worker pool's task queue length. Defaults to 256.
//
// Parameters:
//   - size: the queue length
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the queue size to an animator
func WithQueueSize(size int) AnimatorBuilderOption {
	return func(a *animator) {
		if size > 0 {
			a.queueSize = size
		}
	}
}

// WithBatchSize is an option builder that sets how many instances one pool task evaluates. Defaults to 16.
//
// Parameters:
//   - size: instances per task
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the batch size to an animator
func WithBatchSize(size int) AnimatorBuilderOption {
	return func(a *animator) {
		if size > 0 {
			a.batchSize = size
		}
	}
}

// WithMaxInstances is an option builder that preallocates state for the given number of instances.
// The animator still grows past it as instances are added.
//
// Parameters:
//   - maxInstances: the number of instances to preallocate
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the capacity to an animator
func WithMaxInstances(maxInstances int) AnimatorBuilderOption {
	return func(a *animator) {
		if maxInstances > 0 {
			a.capacity = maxInstances
		}
	}
}

// WithLogger is an option builder that sets the logger for playback and update diagnostics.
//
// Parameters:
//   - logger: the structured logger; nil keeps the default no-op logger
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the logger to an animator
func WithLogger(logger *slog.Logger) AnimatorBuilderOption {
	return func(a *animator) {
		if logger != nil {
			a.logger = logger
		}
	}
}
