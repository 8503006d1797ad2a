package animator

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
)

// matrixBytes is the size of one column-major 4x4 float32 matrix.
const matrixBytes = 64

// PoseWrite describes a contiguous run of instance skinning matrices ready for upload into a buffer
// laid out as instance-major, bone-minor 4x4 column-major float32 matrices.
type PoseWrite struct {
	// Instance is the first instance covered by the write.
	Instance uint32

	// Count is the number of instances covered.
	Count uint32

	// Offset is the destination byte offset of the first instance.
	Offset uint64

	// Data holds Count × BoneCount matrices.
	Data []byte
}

func (a *animator) SkinningMatrices(instanceIndex uint32, dst []mgl32.Mat4) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if instanceIndex >= uint32(len(a.states)) {
		return fmt.Errorf("%w: %d of %d", ErrInstanceRange, instanceIndex, len(a.states))
	}
	if len(dst) < a.boneCount {
		return fmt.Errorf("%w: buffer holds %d matrices, bone count %d", skeleton.ErrRange, len(dst), a.boneCount)
	}
	a.skin(a.pose(instanceIndex), dst)
	return nil
}

func (a *animator) Flush() []PoseWrite {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.dirty {
		return nil
	}

	count := a.dirtyEnd - a.dirtyStart
	total := int(count) * a.boneCount
	if cap(a.staging) < total {
		a.staging = make([]mgl32.Mat4, total)
	}
	staged := a.staging[:total]
	for i := uint32(0); i < count; i++ {
		lo := int(i) * a.boneCount
		a.skin(a.pose(a.dirtyStart+i), staged[lo:lo+a.boneCount])
	}

	write := PoseWrite{
		Instance: a.dirtyStart,
		Count:    count,
		Offset:   uint64(a.dirtyStart) * uint64(a.boneCount) * matrixBytes,
		Data:     common.SliceToBytes(staged),
	}
	a.clearDirty()
	return []PoseWrite{write}
}

// skin writes pose[b] × inverseBind[b] into dst. Callers hold a.mu.
func (a *animator) skin(pose, dst []mgl32.Mat4) {
	for b := range pose {
		dst[b] = pose[b].Mul4(a.inverseBind[b])
	}
}

// markDirty extends the pending flush range to cover [start, end). Callers hold a.mu.
func (a *animator) markDirty(start, end uint32) {
	if !a.dirty {
		a.dirtyStart = start
		a.dirtyEnd = end
		a.dirty = true
		return
	}
	a.dirtyStart = min(a.dirtyStart, start)
	a.dirtyEnd = max(a.dirtyEnd, end)
}

func (a *animator) clearDirty() {
	a.dirty = false
	a.dirtyStart = 0
	a.dirtyEnd = 0
}
