package animator

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrInstanceRange is returned when an instance index does not refer to a registered instance.
	ErrInstanceRange = errors.New("animator: instance index out of range")
	// ErrClosed is returned by Update after Close.
	ErrClosed = errors.New("animator: closed")
)

const (
	defaultQueueSize = 256
	defaultBatchSize = 16
	defaultCapacity  = 8
)

// instanceState holds the playback state of a single instance. PrepareFrame advances it and Update
// samples it into the instance's pose.
type instanceState struct {
	clipIndex int

	time, speed    float32
	loop, blending bool

	blendTo                     int
	blendToTime                 float32
	blendDuration, blendElapsed float32
}

// animator is the implementation of the Animator interface.
type animator struct {
	mu sync.Mutex

	anim   animation.Animation
	skel   skeleton.Skeleton
	logger *slog.Logger

	pool                  worker.DynamicWorkerPool
	closed                bool
	workers, queueSize    int
	batchSize, capacity   int
	boneCount             int
	bindPose, inverseBind []mgl32.Mat4

	states []instanceState
	poses  []mgl32.Mat4

	dirty                bool
	dirtyStart, dirtyEnd uint32
	staging              []mgl32.Mat4
}

// Animator drives many instances of one rig. Each instance plays a clip of the bound Animation with its
// own time, speed and looping, and can cross-fade into another clip.
//
// A frame is PrepareFrame (advance time), Update (sample every instance's absolute pose on the worker pool),
// then Flush (stage skinning matrices for upload). All methods are safe for concurrent use; Update holds
// the animator's lock while the pool runs.
type Animator interface {
	// Animation returns the clip store this animator samples.
	Animation() animation.Animation

	// BoneCount returns the number of bones in every instance's pose.
	BoneCount() int

	// AddInstance registers a new instance in the bind pose with no clip playing.
	//
	// Returns:
	//   - uint32: the index of the new instance
	AddInstance() uint32

	// RemoveInstance removes the instance at the given index using a swap-remove strategy.
	// The last instance is moved into the removed slot, so callers holding the old last index must
	// update it to index when a swap occurred.
	//
	// Parameters:
	//   - index: the instance index to remove
	//
	// Returns:
	//   - uint32: the old last index that was swapped into the removed slot (only meaningful when bool is true)
	//   - bool: true if the last instance was swapped into the removed slot
	RemoveInstance(index uint32) (uint32, bool)

	// InstanceCount returns the current number of registered instances.
	InstanceCount() uint32

	// PlayAnimation starts a clip on an instance from the clip's start time at normal speed,
	// cancelling any blend in progress.
	//
	// Parameters:
	//   - instanceIndex: the instance to animate
	//   - clipIndex: the clip to play
	//   - loop: whether playback wraps at the clip's end
	//
	// Returns:
	//   - error: ErrInstanceRange or animation.ErrClipNotFound
	PlayAnimation(instanceIndex uint32, clipIndex int, loop bool) error

	// BlendToAnimation cross-fades an instance from its current clip to a target clip over blendDuration seconds.
	// The target starts at its own start time and inherits the instance's speed and looping. When nothing is
	// playing or blendDuration is not positive, the target starts immediately.
	//
	// Parameters:
	//   - instanceIndex: the instance to blend
	//   - targetClipIndex: the clip to blend to
	//   - blendDuration: the transition time in seconds
	//
	// Returns:
	//   - error: ErrInstanceRange or animation.ErrClipNotFound
	BlendToAnimation(instanceIndex uint32, targetClipIndex int, blendDuration float32) error

	// CancelBlend stops an in-progress blend and keeps the current primary clip.
	CancelBlend(instanceIndex uint32)

	// IsBlending reports whether an instance is cross-fading.
	IsBlending(instanceIndex uint32) bool

	// BlendProgress returns the blend progress of an instance from 0 to 1, or 0 if it is not blending.
	BlendProgress(instanceIndex uint32) float32

	// SetAnimationTime sets the playback position of an instance's primary clip.
	SetAnimationTime(instanceIndex uint32, time float32)

	// SetAnimationSpeed sets the playback speed multiplier of an instance (1 is normal speed).
	SetAnimationSpeed(instanceIndex uint32, speed float32)

	// AnimationTime returns the playback position of an instance's primary clip.
	AnimationTime(instanceIndex uint32) float32

	// PrepareFrame advances every instance by deltaTime seconds scaled by its speed. Looping clips wrap,
	// non-looping clips hold at their ends, and completed blends promote the target clip.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the last frame in seconds
	PrepareFrame(deltaTime float32)

	// Update samples the absolute pose of every instance on the worker pool and marks the poses for Flush.
	// Cancelling ctx stops further batches from being submitted; batches already running complete.
	//
	// Parameters:
	//   - ctx: the context bounding the update
	//
	// Returns:
	//   - error: ctx.Err() if cancelled, otherwise the joined evaluation errors
	Update(ctx context.Context) error

	// Pose returns a copy of an instance's absolute bone transforms from the last Update,
	// or nil if the index is out of range.
	Pose(instanceIndex uint32) []mgl32.Mat4

	// SkinningMatrices writes absolute × inverse bind for every bone of an instance into dst.
	//
	// Parameters:
	//   - instanceIndex: the instance to read
	//   - dst: the destination, at least BoneCount long
	//
	// Returns:
	//   - error: ErrInstanceRange, or skeleton.ErrRange if dst is too short
	SkinningMatrices(instanceIndex uint32, dst []mgl32.Mat4) error

	// Flush stages the skinning matrices of every instance updated since the last Flush.
	// The returned Data slices are reused by the next Flush; upload or copy them before calling it again.
	//
	// Returns:
	//   - []PoseWrite: the pending writes, nil when nothing changed
	Flush() []PoseWrite

	// Close waits for the worker pool to drain and exit. Update fails with ErrClosed afterwards;
	// playback state and poses stay readable. Calling Close again is a no-op.
	//
	// Returns:
	//   - error: always nil, present to satisfy io.Closer
	Close() error
}

var _ Animator = &animator{}

// NewAnimator creates an Animator over the given clip store, configured by the provided options.
// The worker pool is created after options are applied so WithWorkers and WithQueueSize take effect.
//
// Parameters:
//   - anim: the clip store to sample; its skeleton defines the pose layout
//   - options: variadic list of AnimatorBuilderOption functions to configure the Animator
//
// Returns:
//   - Animator: a new Animator with no instances
func NewAnimator(anim animation.Animation, options ...AnimatorBuilderOption) Animator {
	skel := anim.Skeleton()
	a := &animator{
		anim:      anim,
		skel:      skel,
		logger:    slog.New(slog.DiscardHandler),
		workers:   runtime.NumCPU(),
		queueSize: defaultQueueSize,
		batchSize: defaultBatchSize,
		capacity:  defaultCapacity,
		boneCount: skel.BoneCount(),
	}
	for _, opt := range options {
		opt(a)
	}

	a.bindPose = make([]mgl32.Mat4, a.boneCount)
	a.inverseBind = make([]mgl32.Mat4, a.boneCount)
	binds := make([]mgl32.Mat4, a.boneCount)
	for i := range binds {
		binds[i] = skel.BindTransform(i)
		a.inverseBind[i] = skel.InverseBindMatrix(i)
	}
	// cannot fail: both buffers hold exactly boneCount transforms
	_ = skel.ComposeAbsolute(binds, a.bindPose, a.boneCount)

	a.states = make([]instanceState, 0, a.capacity)
	a.poses = make([]mgl32.Mat4, 0, a.capacity*a.boneCount)
	a.pool = worker.NewDynamicWorkerPool(a.workers, a.queueSize, time.Second)
	return a
}

func (a *animator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	// blocks until the idle workers exit
	a.pool.Wait()
	a.logger.Debug("animator closed", "instances", len(a.states))
	return nil
}

func (a *animator) Animation() animation.Animation {
	return a.anim
}

func (a *animator) BoneCount() int {
	return a.boneCount
}

func (a *animator) AddInstance() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx := uint32(len(a.states))
	a.states = append(a.states, instanceState{clipIndex: animation.ClipNotFound, speed: 1})
	a.poses = append(a.poses, a.bindPose...)
	a.markDirty(idx, idx+1)
	return idx
}

func (a *animator) RemoveInstance(index uint32) (uint32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	count := uint32(len(a.states))
	if index >= count {
		return 0, false
	}

	last := count - 1
	swapped := index != last
	if swapped {
		a.states[index] = a.states[last]
		copy(a.pose(index), a.pose(last))
		a.markDirty(index, index+1)
	}

	a.states = a.states[:last]
	a.poses = a.poses[:int(last)*a.boneCount]
	if a.dirty && a.dirtyEnd > last {
		a.dirtyEnd = last
		if a.dirtyStart >= a.dirtyEnd {
			a.clearDirty()
		}
	}
	return last, swapped
}

func (a *animator) InstanceCount() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return uint32(len(a.states))
}

func (a *animator) Pose(instanceIndex uint32) []mgl32.Mat4 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instanceIndex >= uint32(len(a.states)) {
		return nil
	}
	out := make([]mgl32.Mat4, a.boneCount)
	copy(out, a.pose(instanceIndex))
	return out
}

// pose returns the live pose slice of an instance. Callers hold a.mu.
func (a *animator) pose(i uint32) []mgl32.Mat4 {
	lo := int(i) * a.boneCount
	return a.poses[lo : lo+a.boneCount]
}
