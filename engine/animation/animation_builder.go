package animation

import (
	"log/slog"
)

// AnimationBuilderOption is a functional option for configuring an Animation during construction.
type AnimationBuilderOption func(*animation)

// WithDuplicatePolicy is an option builder that sets how duplicate clip names are handled.
// The default is DuplicateReject.
//
// Parameters:
//   - policy: the duplicate name policy
//
// Returns:
//   - AnimationBuilderOption: a function that applies the policy to an animation
func WithDuplicatePolicy(policy DuplicatePolicy) AnimationBuilderOption {
	return func(a *animation) {
		a.duplicatePolicy = policy
	}
}

// WithMatrixBlend is an option builder that sets the interpolation used by matrix-track clips.
// The default is MatrixBlendLinear.
//
// Parameters:
//   - blend: the matrix interpolation mode
//
// Returns:
//   - AnimationBuilderOption: a function that applies the blend mode to an animation
func WithMatrixBlend(blend MatrixBlend) AnimationBuilderOption {
	return func(a *animation) {
		a.matrixBlend = blend
	}
}

// WithLogger is an option builder that sets the logger used for clip registration diagnostics.
//
// Parameters:
//   - logger: the structured logger; nil keeps the default no-op logger
//
// Returns:
//   - AnimationBuilderOption: a function that applies the logger to an animation
func WithLogger(logger *slog.Logger) AnimationBuilderOption {
	return func(a *animation) {
		if logger != nil {
			a.logger = logger
		}
	}
}
