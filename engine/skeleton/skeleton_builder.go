package skeleton

import (
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
)

// SkeletonBuilderOption is a functional option for configuring a Skeleton during construction.
type SkeletonBuilderOption func(*skeleton)

// WithName is an option builder that sets the skeleton's identifier.
//
// Parameters:
//   - name: the identifier, used in log output
//
// Returns:
//   - SkeletonBuilderOption: a function that applies the name option to a skeleton
func WithName(name string) SkeletonBuilderOption {
	return func(s *skeleton) {
		s.name = name
	}
}

// WithInverseBindMatrices is an option builder that supplies explicit inverse bind matrices,
// one per bone, as found in skinned asset files. When omitted, the inverse of the absolute
// bind pose is used. A length mismatch makes New fail with ErrConstruction.
//
// Parameters:
//   - matrices: one inverse bind matrix per bone, in bone order
//
// Returns:
//   - SkeletonBuilderOption: a function that applies the inverse bind matrices to a skeleton
func WithInverseBindMatrices(matrices []mgl32.Mat4) SkeletonBuilderOption {
	return func(s *skeleton) {
		s.inverseBinds = make([]mgl32.Mat4, len(matrices))
		copy(s.inverseBinds, matrices)
	}
}

// WithLogger is an option builder that sets the logger used for construction diagnostics.
//
// Parameters:
//   - logger: the structured logger; nil keeps the default no-op logger
//
// Returns:
//   - SkeletonBuilderOption: a function that applies the logger option to a skeleton
func WithLogger(logger *slog.Logger) SkeletonBuilderOption {
	return func(s *skeleton) {
		if logger != nil {
			s.logger = logger
		}
	}
}
