// Package skeleton owns the bone hierarchy used by pose evaluation. Bones live in a flat array
// where each bone refers to its parent by index, and parents always precede their children.
package skeleton

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// NoParent is the parent index of a root bone.
	NoParent int32 = -1

	// BoneNotFound is returned by FindBone when no bone carries the requested name.
	BoneNotFound = -1
)

var (
	// ErrConstruction is returned when a bone list cannot form a valid skeleton.
	ErrConstruction = errors.New("skeleton: invalid bone list")

	// ErrRange is returned when a requested bone count exceeds the stored bone count
	// or the destination buffer is too small.
	ErrRange = errors.New("skeleton: count is out of range")
)

// Bone describes a single bone as supplied by a loader.
type Bone struct {
	// Name is the bone's identifier used by FindBone.
	Name string

	// Parent is the index of the parent bone, or NoParent for root bones.
	// It must be lower than the bone's own index.
	Parent int32

	// Transform is the bind (rest) transform relative to the parent.
	Transform mgl32.Mat4
}

// skeleton is the implementation of the Skeleton interface.
type skeleton struct {
	name   string
	logger *slog.Logger

	names   []string
	parents []int32
	binds   []mgl32.Mat4
	locals  []mgl32.Mat4
	roots   []int32

	inverseBinds []mgl32.Mat4

	nameToIndex map[string]int
}

// Skeleton defines the public interface for an immutable bone hierarchy.
//
// The hierarchy is fixed at construction. The only mutable state is the local-transform
// storage, which starts out as the bind pose and can be overwritten in bulk by an animation
// driver through CopyBoneTransformsFrom. Writers must be serialized by the caller; all
// read-only methods are safe for concurrent use while no writer is active.
type Skeleton interface {
	// Name returns the skeleton's identifier, or an empty string if none was set.
	Name() string

	// BoneCount returns the number of bones stored in the skeleton.
	BoneCount() int

	// Bone returns the descriptor of the bone at index i with its bind transform.
	//
	// Parameters:
	//   - i: the bone index
	//
	// Returns:
	//   - Bone: the bone descriptor
	//   - bool: false if i is out of range
	Bone(i int) (Bone, bool)

	// ParentIndex returns the parent of bone i, or NoParent for roots and out-of-range indices.
	ParentIndex(i int) int32

	// BindTransform returns the bind transform of bone i, or identity if i is out of range.
	BindTransform(i int) mgl32.Mat4

	// InverseBindMatrix returns the inverse bind matrix of bone i used for skinning,
	// or identity if i is out of range.
	InverseBindMatrix(i int) mgl32.Mat4

	// RootBoneIndices returns the indices of all bones without a parent.
	RootBoneIndices() []int32

	// FindBone returns the index of the bone with the given name.
	//
	// Parameters:
	//   - name: the exact bone name
	//
	// Returns:
	//   - int: the bone index, or BoneNotFound
	FindBone(name string) int

	// CopyAbsoluteBoneTransformsTo composes the stored local transforms into absolute transforms.
	// Root bones copy their local transform; every other bone is its parent's absolute transform
	// multiplied by its own local transform, computed in a single forward pass.
	//
	// Parameters:
	//   - dest: the destination for absolute transforms, at least count long
	//   - count: the number of leading bones to compose
	//
	// Returns:
	//   - error: ErrRange if count exceeds the bone count or len(dest)
	CopyAbsoluteBoneTransformsTo(dest []mgl32.Mat4, count int) error

	// ComposeAbsolute performs the same pass as CopyAbsoluteBoneTransformsTo but reads local
	// transforms from locals instead of the skeleton's storage. No skeleton state is touched,
	// so concurrent calls with distinct buffers are safe.
	//
	// Parameters:
	//   - locals: local transforms, at least count long
	//   - dest: the destination for absolute transforms, at least count long
	//   - count: the number of leading bones to compose
	//
	// Returns:
	//   - error: ErrRange if count exceeds the bone count, len(locals), or len(dest)
	ComposeAbsolute(locals, dest []mgl32.Mat4, count int) error

	// CopyBoneTransformsTo copies the stored local transforms into dest.
	//
	// Parameters:
	//   - dest: the destination, at least count long
	//   - count: the number of leading bones to copy
	//
	// Returns:
	//   - error: ErrRange if count exceeds the bone count or len(dest)
	CopyBoneTransformsTo(dest []mgl32.Mat4, count int) error

	// CopyBoneTransformsFrom overwrites the stored local transforms with source.
	//
	// Parameters:
	//   - source: the new local transforms, at least count long
	//   - count: the number of leading bones to overwrite
	//
	// Returns:
	//   - error: ErrRange if count exceeds the bone count or len(source)
	CopyBoneTransformsFrom(source []mgl32.Mat4, count int) error

	// ResetToBind restores every local transform to its bind transform.
	ResetToBind()
}

var _ Skeleton = &skeleton{}

// New creates a Skeleton from a bone list. The bones are copied; the caller keeps ownership of the slice.
// Construction fails when the list is empty, when any bone's parent index is not lower than its own
// index, or when a builder option supplies inconsistent data.
//
// Parameters:
//   - bones: the bone descriptors, ordered so that parents precede children
//   - options: variadic list of SkeletonBuilderOption functions to configure the Skeleton
//
// Returns:
//   - Skeleton: the constructed skeleton
//   - error: an error wrapping ErrConstruction if the bone list is invalid
func New(bones []Bone, options ...SkeletonBuilderOption) (Skeleton, error) {
	if len(bones) == 0 {
		return nil, fmt.Errorf("%w: no bones", ErrConstruction)
	}

	count := len(bones)
	s := &skeleton{
		logger:      slog.New(slog.DiscardHandler),
		names:       make([]string, count),
		parents:     make([]int32, count),
		binds:       make([]mgl32.Mat4, count),
		locals:      make([]mgl32.Mat4, count),
		nameToIndex: make(map[string]int, count),
	}

	for j, b := range bones {
		if b.Parent != NoParent && (b.Parent < 0 || int(b.Parent) >= j) {
			return nil, fmt.Errorf("%w: bone %d (%q) has parent %d; bones must be sorted parents first", ErrConstruction, j, b.Name, b.Parent)
		}

		s.names[j] = b.Name
		s.parents[j] = b.Parent
		s.binds[j] = b.Transform
		s.locals[j] = b.Transform
		if b.Parent == NoParent {
			s.roots = append(s.roots, int32(j))
		}
		s.nameToIndex[b.Name] = j
	}

	for _, opt := range options {
		opt(s)
	}

	if s.inverseBinds == nil {
		s.inverseBinds = s.bindPoseInverse()
	} else if len(s.inverseBinds) != count {
		return nil, fmt.Errorf("%w: %d inverse bind matrices for %d bones", ErrConstruction, len(s.inverseBinds), count)
	}

	if dups := count - len(s.nameToIndex); dups > 0 {
		s.logger.Warn("skeleton has duplicate bone names; FindBone resolves to the last match",
			"skeleton", s.name, "duplicates", dups)
	}
	s.logger.Debug("skeleton constructed", "skeleton", s.name, "bones", count, "roots", len(s.roots))

	return s, nil
}

// bindPoseInverse inverts the absolute bind pose so skinning works for rigs that carry no
// explicit inverse bind matrices.
func (s *skeleton) bindPoseInverse() []mgl32.Mat4 {
	abs := make([]mgl32.Mat4, len(s.binds))
	_ = s.compose(s.binds, abs, len(abs))
	for i := range abs {
		abs[i] = abs[i].Inv()
	}
	return abs
}

func (s *skeleton) Name() string {
	return s.name
}

func (s *skeleton) BoneCount() int {
	return len(s.parents)
}

func (s *skeleton) Bone(i int) (Bone, bool) {
	if i < 0 || i >= len(s.parents) {
		return Bone{}, false
	}
	return Bone{Name: s.names[i], Parent: s.parents[i], Transform: s.binds[i]}, true
}

func (s *skeleton) ParentIndex(i int) int32 {
	if i < 0 || i >= len(s.parents) {
		return NoParent
	}
	return s.parents[i]
}

func (s *skeleton) BindTransform(i int) mgl32.Mat4 {
	if i < 0 || i >= len(s.binds) {
		return mgl32.Ident4()
	}
	return s.binds[i]
}

func (s *skeleton) InverseBindMatrix(i int) mgl32.Mat4 {
	if i < 0 || i >= len(s.inverseBinds) {
		return mgl32.Ident4()
	}
	return s.inverseBinds[i]
}

func (s *skeleton) RootBoneIndices() []int32 {
	out := make([]int32, len(s.roots))
	copy(out, s.roots)
	return out
}

func (s *skeleton) FindBone(name string) int {
	if i, ok := s.nameToIndex[name]; ok {
		return i
	}
	return BoneNotFound
}

func (s *skeleton) CopyAbsoluteBoneTransformsTo(dest []mgl32.Mat4, count int) error {
	return s.compose(s.locals, dest, count)
}

func (s *skeleton) ComposeAbsolute(locals, dest []mgl32.Mat4, count int) error {
	if count > len(locals) {
		return fmt.Errorf("%w: %d locals for count %d", ErrRange, len(locals), count)
	}
	return s.compose(locals, dest, count)
}

// compose is the forward pass shared by CopyAbsoluteBoneTransformsTo and ComposeAbsolute.
// It relies on parents preceding children, which New guarantees.
func (s *skeleton) compose(locals, dest []mgl32.Mat4, count int) error {
	if err := s.checkCount(len(dest), count); err != nil {
		return err
	}

	for j := 0; j < count; j++ {
		parent := s.parents[j]
		if parent == NoParent {
			dest[j] = locals[j]
			continue
		}
		dest[j] = dest[parent].Mul4(locals[j])
	}
	return nil
}

func (s *skeleton) CopyBoneTransformsTo(dest []mgl32.Mat4, count int) error {
	if err := s.checkCount(len(dest), count); err != nil {
		return err
	}
	copy(dest[:count], s.locals[:count])
	return nil
}

func (s *skeleton) CopyBoneTransformsFrom(source []mgl32.Mat4, count int) error {
	if err := s.checkCount(len(source), count); err != nil {
		return err
	}
	copy(s.locals[:count], source[:count])
	return nil
}

func (s *skeleton) ResetToBind() {
	copy(s.locals, s.binds)
}

func (s *skeleton) checkCount(bufLen, count int) error {
	if count < 0 || count > len(s.parents) {
		return fmt.Errorf("%w: count %d, bone count %d", ErrRange, count, len(s.parents))
	}
	if count > bufLen {
		return fmt.Errorf("%w: buffer holds %d transforms, count %d", ErrRange, bufLen, count)
	}
	return nil
}
