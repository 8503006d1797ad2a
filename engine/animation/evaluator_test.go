package animation_test

import (
	"math"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateWaveScenario(t *testing.T) {
	a := animation.NewAnimation(handSkeleton(t))
	_, err := a.AddClip("wave", 0, 1, waveKeys())
	require.NoError(t, err)

	dest := make([]mgl32.Mat4, 2)
	require.NoError(t, a.Evaluate(a.FindClip("wave"), 0.5, false, dest, 2))
	assert.Equal(t, mgl32.Ident4(), dest[0])
	assert.Equal(t, mgl32.Translate3D(1, 0.5, 0), dest[1])
}

func TestEvaluateExactKeyTimes(t *testing.T) {
	a := animation.NewAnimation(handSkeleton(t))
	rot := mgl32.QuatRotate(0.9, mgl32.Vec3{0, 1, 0})
	i, err := a.AddSRTClip("turn", 0, 2, []animation.SRTKey{
		{Bone: 1, Time: 0, Scale: mgl32.Vec3{1, 1, 1}, Rotation: mgl32.QuatIdent(), Translation: mgl32.Vec3{1, 0, 0}},
		{Bone: 1, Time: 0.75, Scale: mgl32.Vec3{2, 2, 2}, Rotation: rot, Translation: mgl32.Vec3{1, 2, 3}},
		{Bone: 1, Time: 2, Scale: mgl32.Vec3{1, 1, 1}, Rotation: mgl32.QuatIdent(), Translation: mgl32.Vec3{0, 0, 0}},
	})
	require.NoError(t, err)

	locals := make([]mgl32.Mat4, 2)
	require.NoError(t, a.EvaluateLocal(i, 0.75, false, locals))

	want := mgl32.Translate3D(1, 2, 3).Mul4(rot.Normalize().Mat4()).Mul4(mgl32.Scale3D(2, 2, 2))
	assert.True(t, want.ApproxEqualThreshold(locals[1], 1e-6), "got %v want %v", locals[1], want)

	require.NoError(t, a.EvaluateLocal(i, 0, false, locals))
	assert.Equal(t, mgl32.Translate3D(1, 0, 0), locals[1])

	require.NoError(t, a.EvaluateLocal(i, 2, false, locals))
	assert.Equal(t, mgl32.Ident4(), locals[1])
}

func TestEvaluatePeriodicWraps(t *testing.T) {
	a := animation.NewAnimation(handSkeleton(t))
	i, err := a.AddClip("bob", 0, 2, []animation.Key{
		{Bone: 1, Time: 0, Value: mgl32.Translate3D(1, 0, 0)},
		{Bone: 1, Time: 1, Value: mgl32.Translate3D(1, 4, 0)},
		{Bone: 1, Time: 2, Value: mgl32.Translate3D(1, 0, 0)},
	})
	require.NoError(t, err)

	for _, delta := range []float32{0, 0.25, 0.5, 1, 1.5, 1.75} {
		base := make([]mgl32.Mat4, 2)
		wrapped := make([]mgl32.Mat4, 2)
		require.NoError(t, a.Evaluate(i, delta, true, base, 2))
		require.NoError(t, a.Evaluate(i, 2+delta, true, wrapped, 2))
		assert.True(t, base[1].ApproxEqual(wrapped[1]), "delta %g: %v vs %v", delta, base[1], wrapped[1])

		require.NoError(t, a.Evaluate(i, delta-2, true, wrapped, 2))
		assert.True(t, base[1].ApproxEqual(wrapped[1]), "negative delta %g", delta)
	}
}

func TestEvaluateClampsNonPeriodic(t *testing.T) {
	a := animation.NewAnimation(handSkeleton(t))
	i, err := a.AddClip("bob", 0.5, 2, []animation.Key{
		{Bone: 1, Time: 0, Value: mgl32.Translate3D(1, 0, 0)},
		{Bone: 1, Time: 1, Value: mgl32.Translate3D(1, 4, 0)},
		{Bone: 1, Time: 3, Value: mgl32.Translate3D(1, 8, 0)},
	})
	require.NoError(t, err)

	atEnd := make([]mgl32.Mat4, 2)
	beyond := make([]mgl32.Mat4, 2)
	require.NoError(t, a.Evaluate(i, 2, false, atEnd, 2))
	require.NoError(t, a.Evaluate(i, 10, false, beyond, 2))
	assert.Equal(t, atEnd, beyond)
	assert.Equal(t, mgl32.Translate3D(1, 6, 0), atEnd[1])

	atStart := make([]mgl32.Mat4, 2)
	before := make([]mgl32.Mat4, 2)
	require.NoError(t, a.Evaluate(i, 0.5, false, atStart, 2))
	require.NoError(t, a.Evaluate(i, -4, false, before, 2))
	assert.Equal(t, atStart, before)
	assert.Equal(t, mgl32.Translate3D(1, 2, 0), atStart[1])
}

func TestSingleKeyTrackIsConstant(t *testing.T) {
	a := animation.NewAnimation(handSkeleton(t))
	pose := mgl32.Translate3D(0, 3, 0)
	i, err := a.AddClip("hold", 0, 4, []animation.Key{{Bone: 0, Time: 1, Value: pose}})
	require.NoError(t, err)

	locals := make([]mgl32.Mat4, 2)
	for _, tm := range []float32{0, 1, 2.5, 4, 100} {
		require.NoError(t, a.EvaluateLocal(i, tm, false, locals))
		assert.Equal(t, pose, locals[0])
		assert.Equal(t, mgl32.Translate3D(1, 0, 0), locals[1], "untracked bone keeps bind")
	}
}

func TestEmptyClipYieldsBindPose(t *testing.T) {
	s := handSkeleton(t)
	a := animation.NewAnimation(s)
	i, err := a.AddClip("empty", 0, 0, nil)
	require.NoError(t, err)

	want := make([]mgl32.Mat4, 2)
	require.NoError(t, s.CopyAbsoluteBoneTransformsTo(want, 2))

	got := make([]mgl32.Mat4, 2)
	require.NoError(t, a.Evaluate(i, 3, true, got, 2))
	assert.Equal(t, want, got)
}

func TestEvaluateErrors(t *testing.T) {
	a := animation.NewAnimation(handSkeleton(t))
	i, err := a.AddClip("wave", 0, 1, waveKeys())
	require.NoError(t, err)

	dest := make([]mgl32.Mat4, 3)
	assert.ErrorIs(t, a.Evaluate(7, 0, false, dest, 2), animation.ErrClipNotFound)
	assert.ErrorIs(t, a.Evaluate(animation.ClipNotFound, 0, false, dest, 2), animation.ErrClipNotFound)
	assert.ErrorIs(t, a.Evaluate(i, 0, false, dest, 3), skeleton.ErrRange)
	assert.ErrorIs(t, a.Evaluate(i, 0, false, dest[:1], 2), skeleton.ErrRange)
	assert.ErrorIs(t, a.EvaluateLocal(i, 0, false, dest[:1]), skeleton.ErrRange)
	assert.ErrorIs(t, a.Apply(-1, 0, false), animation.ErrClipNotFound)

	assert.NoError(t, a.Evaluate(i, 0, false, nil, 0))
}

func TestEvaluatePartialCount(t *testing.T) {
	a := animation.NewAnimation(handSkeleton(t))
	i, err := a.AddClip("wave", 0, 1, []animation.Key{
		{Bone: 0, Time: 0, Value: mgl32.Translate3D(0, 0, 1)},
		{Bone: 1, Time: 0, Value: mgl32.Translate3D(1, 0, 0)},
	})
	require.NoError(t, err)

	dest := []mgl32.Mat4{{}, mgl32.Scale3D(9, 9, 9)}
	require.NoError(t, a.Evaluate(i, 0, false, dest, 1))
	assert.Equal(t, mgl32.Translate3D(0, 0, 1), dest[0])
	assert.Equal(t, mgl32.Scale3D(9, 9, 9), dest[1], "bones past count are untouched")
}

func TestMatrixAndSRTAgreeOnTranslation(t *testing.T) {
	a := animation.NewAnimation(handSkeleton(t))
	m, err := a.AddClip("m", 0, 1, []animation.Key{
		{Bone: 1, Time: 0, Value: mgl32.Translate3D(0, 0, 0)},
		{Bone: 1, Time: 1, Value: mgl32.Translate3D(2, 4, 8)},
	})
	require.NoError(t, err)
	s, err := a.AddSRTClip("s", 0, 1, []animation.SRTKey{
		{Bone: 1, Time: 0, Scale: mgl32.Vec3{1, 1, 1}, Rotation: mgl32.QuatIdent()},
		{Bone: 1, Time: 1, Scale: mgl32.Vec3{1, 1, 1}, Rotation: mgl32.QuatIdent(), Translation: mgl32.Vec3{2, 4, 8}},
	})
	require.NoError(t, err)

	for _, tm := range []float32{0, 0.25, 0.5, 0.75, 1} {
		pm := make([]mgl32.Mat4, 2)
		ps := make([]mgl32.Mat4, 2)
		require.NoError(t, a.Evaluate(m, tm, false, pm, 2))
		require.NoError(t, a.Evaluate(s, tm, false, ps, 2))
		assert.True(t, pm[1].ApproxEqual(ps[1]), "t=%g: %v vs %v", tm, pm[1], ps[1])
	}
}

func TestSRTSlerpMidpoint(t *testing.T) {
	a := animation.NewAnimation(handSkeleton(t))
	z := mgl32.Vec3{0, 0, 1}
	i, err := a.AddSRTClip("spin", 0, 1, []animation.SRTKey{
		{Bone: 0, Time: 0, Scale: mgl32.Vec3{1, 1, 1}, Rotation: mgl32.QuatIdent()},
		{Bone: 0, Time: 1, Scale: mgl32.Vec3{1, 1, 1}, Rotation: mgl32.QuatRotate(float32(math.Pi/2), z)},
	})
	require.NoError(t, err)

	locals := make([]mgl32.Mat4, 2)
	require.NoError(t, a.EvaluateLocal(i, 0.5, false, locals))
	want := mgl32.HomogRotate3DZ(float32(math.Pi / 4))
	assert.True(t, want.ApproxEqualThreshold(locals[0], 1e-5), "got %v want %v", locals[0], want)
}

func TestMatrixBlendDecomposedKeepsRotationRigid(t *testing.T) {
	from := mgl32.Ident4()
	to := mgl32.HomogRotate3DZ(float32(math.Pi / 2))
	keys := []animation.Key{{Bone: 0, Time: 0, Value: from}, {Bone: 0, Time: 1, Value: to}}

	linear := animation.NewAnimation(handSkeleton(t))
	li, err := linear.AddClip("rot", 0, 1, keys)
	require.NoError(t, err)

	decomposed := animation.NewAnimation(handSkeleton(t), animation.WithMatrixBlend(animation.MatrixBlendDecomposed))
	di, err := decomposed.AddClip("rot", 0, 1, keys)
	require.NoError(t, err)

	lin := make([]mgl32.Mat4, 2)
	dec := make([]mgl32.Mat4, 2)
	require.NoError(t, linear.EvaluateLocal(li, 0.5, false, lin))
	require.NoError(t, decomposed.EvaluateLocal(di, 0.5, false, dec))

	// the component-wise blend shrinks the basis vectors
	assert.InDelta(t, math.Sqrt2/2, float64(lin[0].Col(0).Vec3().Len()), 1e-5)
	assert.InDelta(t, 1, float64(dec[0].Col(0).Vec3().Len()), 1e-5)
	assert.True(t, mgl32.HomogRotate3DZ(float32(math.Pi/4)).ApproxEqualThreshold(dec[0], 1e-5))
}

func TestApplyWritesSkeletonStorage(t *testing.T) {
	s := handSkeleton(t)
	a := animation.NewAnimation(s)
	i, err := a.AddClip("wave", 0, 1, waveKeys())
	require.NoError(t, err)

	require.NoError(t, a.Apply(i, 0.5, false))

	fromSkeleton := make([]mgl32.Mat4, 2)
	require.NoError(t, s.CopyAbsoluteBoneTransformsTo(fromSkeleton, 2))

	evaluated := make([]mgl32.Mat4, 2)
	require.NoError(t, a.Evaluate(i, 0.5, false, evaluated, 2))
	assert.Equal(t, evaluated, fromSkeleton)
}

func TestEvaluateDoesNotTouchSkeletonStorage(t *testing.T) {
	s := handSkeleton(t)
	a := animation.NewAnimation(s)
	i, err := a.AddClip("wave", 0, 1, waveKeys())
	require.NoError(t, err)

	require.NoError(t, a.Evaluate(i, 1, false, make([]mgl32.Mat4, 2), 2))

	locals := make([]mgl32.Mat4, 2)
	require.NoError(t, s.CopyBoneTransformsTo(locals, 2))
	assert.Equal(t, mgl32.Translate3D(1, 0, 0), locals[1])
}

func TestConcurrentEvaluate(t *testing.T) {
	a := animation.NewAnimation(handSkeleton(t))
	i, err := a.AddClip("wave", 0, 1, waveKeys())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	poses := make([][]mgl32.Mat4, 16)
	for g := range errs {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			poses[g] = make([]mgl32.Mat4, 2)
			for n := 0; n < 200; n++ {
				if err := a.Evaluate(i, float32(g)/16, false, poses[g], 2); err != nil {
					errs[g] = err
					return
				}
			}
		}(g)
	}
	wg.Wait()

	for g := range errs {
		require.NoError(t, errs[g])
		assert.Equal(t, mgl32.Translate3D(1, float32(g)/16, 0), poses[g][1])
	}
}

func TestBlendLocals(t *testing.T) {
	from := []mgl32.Mat4{mgl32.Translate3D(0, 0, 0), mgl32.Ident4()}
	to := []mgl32.Mat4{mgl32.Translate3D(4, 0, 0), mgl32.Ident4()}
	dst := make([]mgl32.Mat4, 2)

	animation.BlendLocals(from, to, 0, dst)
	assert.Equal(t, from, dst)

	animation.BlendLocals(from, to, 1, dst)
	assert.Equal(t, to, dst)

	animation.BlendLocals(from, to, 0.25, dst)
	assert.True(t, mgl32.Translate3D(1, 0, 0).ApproxEqual(dst[0]))
	assert.Equal(t, mgl32.Ident4(), dst[1])
}

func TestEvaluateNonFiniteTimes(t *testing.T) {
	a := animation.NewAnimation(handSkeleton(t))
	i, err := a.AddClip("wave", 0, 1, waveKeys())
	require.NoError(t, err)

	start := mgl32.Translate3D(1, 0, 0)
	end := mgl32.Translate3D(1, 1, 0)
	cases := []struct {
		name     string
		time     float32
		periodic bool
		want     mgl32.Mat4
	}{
		{"nan clamped", float32(math.NaN()), false, start},
		{"nan periodic", float32(math.NaN()), true, start},
		{"positive infinity clamped", float32(math.Inf(1)), false, end},
		{"positive infinity periodic", float32(math.Inf(1)), true, end},
		{"negative infinity clamped", float32(math.Inf(-1)), false, start},
		{"negative infinity periodic", float32(math.Inf(-1)), true, start},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dest := make([]mgl32.Mat4, 2)
			require.NotPanics(t, func() {
				require.NoError(t, a.Evaluate(i, c.time, c.periodic, dest, 2))
			})
			assert.Equal(t, c.want, dest[1])

			locals := make([]mgl32.Mat4, 2)
			require.NoError(t, a.EvaluateLocal(i, c.time, c.periodic, locals))
			assert.Equal(t, c.want, locals[1])

			require.NoError(t, a.Apply(i, c.time, c.periodic))
		})
	}
}
