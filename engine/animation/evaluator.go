package animation

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
)

func (a *animation) Evaluate(clipIndex int, time float32, periodic bool, dest []mgl32.Mat4, count int) error {
	if count < 0 || count > a.skel.BoneCount() {
		return fmt.Errorf("%w: count %d, bone count %d", skeleton.ErrRange, count, a.skel.BoneCount())
	}

	c, err := a.lookup(clipIndex)
	if err != nil {
		return err
	}

	bufPtr := a.scratch.Get().(*[]mgl32.Mat4)
	defer a.scratch.Put(bufPtr)
	locals := (*bufPtr)[:count]

	a.sample(c, time, periodic, locals)
	return a.skel.ComposeAbsolute(locals, dest, count)
}

func (a *animation) EvaluateLocal(clipIndex int, time float32, periodic bool, locals []mgl32.Mat4) error {
	n := a.skel.BoneCount()
	if len(locals) < n {
		return fmt.Errorf("%w: buffer holds %d transforms, bone count %d", skeleton.ErrRange, len(locals), n)
	}

	c, err := a.lookup(clipIndex)
	if err != nil {
		return err
	}

	a.sample(c, time, periodic, locals[:n])
	return nil
}

func (a *animation) Apply(clipIndex int, time float32, periodic bool) error {
	c, err := a.lookup(clipIndex)
	if err != nil {
		return err
	}

	bufPtr := a.scratch.Get().(*[]mgl32.Mat4)
	defer a.scratch.Put(bufPtr)
	locals := *bufPtr

	a.sample(c, time, periodic, locals)
	return a.skel.CopyBoneTransformsFrom(locals, len(locals))
}

func (a *animation) lookup(clipIndex int) (*clip, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if clipIndex < 0 || clipIndex >= len(a.clips) {
		return nil, fmt.Errorf("%w: index %d, %d clips stored", ErrClipNotFound, clipIndex, len(a.clips))
	}
	return a.clips[clipIndex], nil
}

// sample writes the local transforms of the first len(locals) bones for c at the normalized time.
// Untracked bones receive their bind transform.
func (a *animation) sample(c *clip, time float32, periodic bool, locals []mgl32.Mat4) {
	if periodic {
		time = common.WrapTime(time, c.start, c.end)
	} else {
		time = common.ClampTime(time, c.start, c.end)
	}

	for i := range locals {
		locals[i] = a.skel.BindTransform(i)
	}

	for ti := range c.tracks {
		tr := &c.tracks[ti]
		if tr.bone >= len(locals) {
			// tracks are sorted by bone, so the rest are out of range too
			break
		}

		k, alpha := tr.locate(time)
		switch c.kind {
		case ClipKindMatrix:
			locals[tr.bone] = a.sampleMatrix(tr, k, alpha)
		case ClipKindSRT:
			locals[tr.bone] = sampleSRT(tr, k, alpha)
		}
	}
}

// locate finds the key k with times[k] <= t < times[k+1] and the blend factor toward k+1.
// Times before the first key or at/after the last key pin to that key with alpha 0.
func (tr *track) locate(t float32) (int, float32) {
	n := len(tr.times)
	if n == 1 || t <= tr.times[0] {
		return 0, 0
	}
	if t >= tr.times[n-1] {
		return n - 1, 0
	}

	k := sort.Search(n, func(i int) bool { return tr.times[i] > t }) - 1
	if k < 0 || k >= n-1 {
		return max(k, 0), 0
	}
	t0 := tr.times[k]
	if t == t0 {
		return k, 0
	}
	return k, (t - t0) / (tr.times[k+1] - t0)
}

func (a *animation) sampleMatrix(tr *track, k int, alpha float32) mgl32.Mat4 {
	if alpha == 0 {
		return tr.matrices[k]
	}
	m0, m1 := tr.matrices[k], tr.matrices[k+1]
	if a.matrixBlend == MatrixBlendDecomposed {
		s0, r0, t0 := common.DecomposeSRT(m0)
		s1, r1, t1 := common.DecomposeSRT(m1)
		return common.ComposeSRT(
			common.LerpVec3(s0, s1, alpha),
			common.SlerpShortest(r0, r1, alpha),
			common.LerpVec3(t0, t1, alpha),
		)
	}
	return common.LerpMat4(m0, m1, alpha)
}

func sampleSRT(tr *track, k int, alpha float32) mgl32.Mat4 {
	if alpha == 0 {
		return common.ComposeSRT(tr.scales[k], tr.rotations[k], tr.translations[k])
	}
	return common.ComposeSRT(
		common.LerpVec3(tr.scales[k], tr.scales[k+1], alpha),
		common.SlerpShortest(tr.rotations[k], tr.rotations[k+1], alpha),
		common.LerpVec3(tr.translations[k], tr.translations[k+1], alpha),
	)
}
