package loader

import (
	"log/slog"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithLogger is an option builder that sets the logger used by the Loader.
//
// Parameters:
//   - logger: the structured logger; nil keeps the default no-op logger
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger option to a loader
func WithLogger(logger *slog.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithRig is an option builder that pre-populates the rig cache with a rig.
//
// Parameters:
//   - key: the cache key for the rig
//   - rig: the rig to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the rig option to a loader
func WithRig(key string, rig *Rig) LoaderBuilderOption {
	return func(l *loader) {
		l.rigCache[key] = rig
	}
}
