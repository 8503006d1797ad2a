// Package animation stores keyframe clips for a skeleton and samples them into poses.
//
// A clip is either a matrix-track clip, where each key carries a full local transform, or an SRT-track
// clip, where each key carries a decomposed scale, rotation and translation. Both kinds live in the same
// store and are evaluated through the same methods; the clip's kind selects the interpolation.
package animation

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
)

// ClipNotFound is returned by FindClip when no clip carries the requested name.
const ClipNotFound = -1

var (
	// ErrInvalidArgument is returned when clip data is malformed: unordered keys, a bone index
	// outside the skeleton, a degenerate rotation, or an end time before the start time.
	ErrInvalidArgument = errors.New("animation: invalid argument")

	// ErrDuplicateClip is returned by AddClip and AddSRTClip when a clip with the same name exists
	// and the store uses DuplicateReject.
	ErrDuplicateClip = errors.New("animation: duplicate clip name")

	// ErrClipNotFound is returned by evaluation methods when the clip index does not refer to a stored clip.
	ErrClipNotFound = errors.New("animation: clip not found")
)

// ClipKind identifies how a clip's keys are represented and interpolated.
type ClipKind int

const (
	// ClipKindMatrix is a clip whose keys carry full 4x4 local transforms.
	ClipKindMatrix ClipKind = iota

	// ClipKindSRT is a clip whose keys carry scale, rotation and translation.
	ClipKindSRT
)

// String returns the lowercase name of the clip kind.
func (k ClipKind) String() string {
	switch k {
	case ClipKindMatrix:
		return "matrix"
	case ClipKindSRT:
		return "srt"
	default:
		return "unknown"
	}
}

// DuplicatePolicy decides what AddClip does when a clip with the same name is already stored.
type DuplicatePolicy int

const (
	// DuplicateReject fails the registration with ErrDuplicateClip.
	DuplicateReject DuplicatePolicy = iota

	// DuplicateReplace overwrites the stored clip in place, keeping its index.
	DuplicateReplace
)

// MatrixBlend selects how matrix-track keys are interpolated.
type MatrixBlend int

const (
	// MatrixBlendLinear blends the 16 matrix components linearly.
	MatrixBlendLinear MatrixBlend = iota

	// MatrixBlendDecomposed decomposes both keys into scale, rotation and translation,
	// interpolates those, and recomposes. Slower but keeps rotations rigid.
	MatrixBlendDecomposed
)

// Key is a single matrix-track keyframe for one bone.
type Key struct {
	// Bone is the index of the animated bone in the skeleton.
	Bone int

	// Time is the keyframe timestamp.
	Time float32

	// Value is the bone's local transform at Time.
	Value mgl32.Mat4
}

// SRTKey is a single SRT-track keyframe for one bone.
type SRTKey struct {
	// Bone is the index of the animated bone in the skeleton.
	Bone int

	// Time is the keyframe timestamp.
	Time float32

	// Scale is the local scale at Time.
	Scale mgl32.Vec3

	// Rotation is the local orientation at Time. It is normalized on registration.
	Rotation mgl32.Quat

	// Translation is the local translation at Time.
	Translation mgl32.Vec3
}

// ClipInfo summarizes a stored clip.
type ClipInfo struct {
	// Name is the clip's identifier.
	Name string

	// Start and End bound the clip's time range.
	Start, End float32

	// Kind is the clip's track representation.
	Kind ClipKind

	// TrackCount is the number of bones animated by the clip.
	TrackCount int

	// KeyCount is the total number of keys across all tracks.
	KeyCount int
}

// Duration returns End - Start.
func (c ClipInfo) Duration() float32 {
	return c.End - c.Start
}

// animation is the implementation of the Animation interface.
type animation struct {
	mu sync.RWMutex

	skel   skeleton.Skeleton
	logger *slog.Logger

	duplicatePolicy DuplicatePolicy
	matrixBlend     MatrixBlend

	clips       []*clip
	nameToIndex map[string]int

	scratch sync.Pool
}

// Animation defines the public interface for a clip store bound to a skeleton and the pose evaluator
// that samples it.
//
// Clip registration must not race with itself; evaluation may run concurrently with other evaluations
// because sampled local transforms go to pooled or caller-owned buffers rather than the skeleton.
// Apply is the exception: it writes into the skeleton's local storage and must be serialized by the caller.
type Animation interface {
	// Skeleton returns the skeleton this animation is bound to.
	Skeleton() skeleton.Skeleton

	// AddClip registers a matrix-track clip spanning [start, end].
	// Keys may interleave bones, but the keys of any one bone must be strictly increasing in time.
	//
	// Parameters:
	//   - name: the clip's identifier
	//   - start: the first sampled time
	//   - end: the last sampled time, not before start
	//   - keys: the keyframes; the slice is copied
	//
	// Returns:
	//   - int: the index of the registered clip
	//   - error: ErrInvalidArgument for malformed data, ErrDuplicateClip under DuplicateReject
	AddClip(name string, start, end float32, keys []Key) (int, error)

	// AddSRTClip registers an SRT-track clip spanning [start, end]. Validation follows AddClip, and
	// additionally rejects zero-length rotations.
	//
	// Parameters:
	//   - name: the clip's identifier
	//   - start: the first sampled time
	//   - end: the last sampled time, not before start
	//   - keys: the keyframes; the slice is copied
	//
	// Returns:
	//   - int: the index of the registered clip
	//   - error: ErrInvalidArgument for malformed data, ErrDuplicateClip under DuplicateReject
	AddSRTClip(name string, start, end float32, keys []SRTKey) (int, error)

	// FindClip returns the index of the clip with the given name, or ClipNotFound.
	FindClip(name string) int

	// ClipCount returns the number of stored clips.
	ClipCount() int

	// Clip returns a summary of the clip at index i.
	//
	// Parameters:
	//   - i: the clip index
	//
	// Returns:
	//   - ClipInfo: the clip summary
	//   - bool: false if i does not refer to a stored clip
	Clip(i int) (ClipInfo, bool)

	// Evaluate samples a clip and writes the absolute transforms of the first count bones into dest.
	// Periodic evaluation wraps time into [start, end); otherwise time is clamped to [start, end].
	// Bones without a track in the clip keep their bind transform.
	//
	// Parameters:
	//   - clipIndex: the clip to sample
	//   - time: the sample time
	//   - periodic: whether time wraps over the clip duration
	//   - dest: the destination pose, at least count long
	//   - count: the number of leading bones to produce
	//
	// Returns:
	//   - error: ErrClipNotFound for an invalid clip index, skeleton.ErrRange for an invalid count
	Evaluate(clipIndex int, time float32, periodic bool, dest []mgl32.Mat4, count int) error

	// EvaluateLocal samples a clip and writes every bone's local transform into locals.
	//
	// Parameters:
	//   - clipIndex: the clip to sample
	//   - time: the sample time
	//   - periodic: whether time wraps over the clip duration
	//   - locals: the destination, at least BoneCount long
	//
	// Returns:
	//   - error: ErrClipNotFound for an invalid clip index, skeleton.ErrRange if locals is too short
	EvaluateLocal(clipIndex int, time float32, periodic bool, locals []mgl32.Mat4) error

	// Apply samples a clip and overwrites the skeleton's local-transform storage with the result, so a
	// following CopyAbsoluteBoneTransformsTo on the skeleton reflects the sampled pose.
	//
	// Parameters:
	//   - clipIndex: the clip to sample
	//   - time: the sample time
	//   - periodic: whether time wraps over the clip duration
	//
	// Returns:
	//   - error: ErrClipNotFound for an invalid clip index
	Apply(clipIndex int, time float32, periodic bool) error
}

var _ Animation = &animation{}

// NewAnimation creates an empty clip store bound to skel.
//
// Parameters:
//   - skel: the skeleton whose bone indices the clips refer to
//   - options: variadic list of AnimationBuilderOption functions to configure the Animation
//
// Returns:
//   - Animation: a new, empty Animation
func NewAnimation(skel skeleton.Skeleton, options ...AnimationBuilderOption) Animation {
	a := &animation{
		skel:        skel,
		logger:      slog.New(slog.DiscardHandler),
		nameToIndex: make(map[string]int),
	}
	boneCount := skel.BoneCount()
	a.scratch.New = func() any {
		buf := make([]mgl32.Mat4, boneCount)
		return &buf
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

func (a *animation) Skeleton() skeleton.Skeleton {
	return a.skel
}
