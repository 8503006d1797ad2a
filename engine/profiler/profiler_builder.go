package profiler

import (
	"log/slog"
	"time"
)

// ProfilerBuilderOption is a functional option for configuring a Profiler via NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithUpdateInterval is an option builder that sets how often statistics are logged.
//
// Parameters:
//   - interval: the logging interval; non-positive values keep the default
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the interval to a profiler
func WithUpdateInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if interval > 0 {
			p.updateInterval = interval
		}
	}
}

// WithLogger is an option builder that sets the logger receiving the periodic statistics.
//
// Parameters:
//   - logger: the structured logger; nil keeps the default no-op logger
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the logger to a profiler
func WithLogger(logger *slog.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock is an option builder that replaces the time source.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}
