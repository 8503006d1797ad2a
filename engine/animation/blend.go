package animation

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/go-gl/mathgl/mgl32"
)

// BlendLocals cross-fades two sets of local transforms bone by bone. Each pair is decomposed,
// scale and translation are interpolated linearly and rotation spherically, then recomposed.
// Weight 0 copies from, weight 1 copies to. Only the common prefix of the three slices is written.
//
// Parameters:
//   - from: the outgoing local transforms
//   - to: the incoming local transforms
//   - weight: the blend factor toward to, clamped to [0, 1]
//   - dst: the destination; may alias from or to
func BlendLocals(from, to []mgl32.Mat4, weight float32, dst []mgl32.Mat4) {
	n := min(len(from), len(to), len(dst))
	switch {
	case weight <= 0:
		copy(dst[:n], from[:n])
		return
	case weight >= 1:
		copy(dst[:n], to[:n])
		return
	}

	for i := 0; i < n; i++ {
		if from[i] == to[i] {
			dst[i] = from[i]
			continue
		}
		s0, r0, t0 := common.DecomposeSRT(from[i])
		s1, r1, t1 := common.DecomposeSRT(to[i])
		dst[i] = common.ComposeSRT(
			common.LerpVec3(s0, s1, weight),
			common.SlerpShortest(r0, r1, weight),
			common.LerpVec3(t0, t1, weight),
		)
	}
}
