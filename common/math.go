package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// decomposeEpsilon guards the scale divisor when extracting a rotation from a degenerate axis.
const decomposeEpsilon = 0.0001

// ComposeSRT builds a column-major 4x4 matrix equivalent to T * R * S.
// The result is written directly so identity rotations and unit scales produce exact values.
//
// Parameters:
//   - scale: the scale factor along each axis
//   - rotation: the orientation quaternion (need not be normalized; it is normalized here)
//   - translation: the position offset
//
// Returns:
//   - mgl32.Mat4: the composed transform
func ComposeSRT(scale mgl32.Vec3, rotation mgl32.Quat, translation mgl32.Vec3) mgl32.Mat4 {
	if l := rotation.Len(); l != 0 && l != 1 {
		rotation = rotation.Scale(1 / l)
	}
	r := rotation.Mat4()

	m := mgl32.Mat4{}
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			m[col*4+row] = r[col*4+row] * scale[col]
		}
	}
	m[12], m[13], m[14], m[15] = translation[0], translation[1], translation[2], 1
	return m
}

// DecomposeSRT splits a column-major 4x4 matrix into scale, rotation, and translation.
// This is an approximation that assumes no shear and no negative scale.
//
// Parameters:
//   - m: the matrix to decompose
//
// Returns:
//   - mgl32.Vec3: the scale (length of each basis column)
//   - mgl32.Quat: the normalized rotation
//   - mgl32.Vec3: the translation (column 3)
func DecomposeSRT(m mgl32.Mat4) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	translation := mgl32.Vec3{m[12], m[13], m[14]}

	scale := mgl32.Vec3{
		vectorLength(m[0], m[1], m[2]),
		vectorLength(m[4], m[5], m[6]),
		vectorLength(m[8], m[9], m[10]),
	}

	div := scale
	for i := range div {
		if div[i] < decomposeEpsilon {
			div[i] = 1
		}
	}

	rot := mgl32.Mat4{
		m[0] / div[0], m[1] / div[0], m[2] / div[0], 0,
		m[4] / div[1], m[5] / div[1], m[6] / div[1], 0,
		m[8] / div[2], m[9] / div[2], m[10] / div[2], 0,
		0, 0, 0, 1,
	}

	return scale, mgl32.Mat4ToQuat(rot).Normalize(), translation
}

// LerpMat4 blends two matrices component-wise: a*(1-t) + b*t.
// t == 0 returns a and t == 1 returns b without arithmetic.
//
// Parameters:
//   - a: the matrix at t = 0
//   - b: the matrix at t = 1
//   - t: the interpolation factor
//
// Returns:
//   - mgl32.Mat4: the blended matrix
func LerpMat4(a, b mgl32.Mat4, t float32) mgl32.Mat4 {
	switch t {
	case 0:
		return a
	case 1:
		return b
	}
	var out mgl32.Mat4
	for i := range out {
		out[i] = a[i] + (b[i]-a[i])*t
	}
	return out
}

// LerpVec3 linearly interpolates two vectors.
//
// Parameters:
//   - a: the vector at t = 0
//   - b: the vector at t = 1
//   - t: the interpolation factor
//
// Returns:
//   - mgl32.Vec3: the interpolated vector
func LerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	switch t {
	case 0:
		return a
	case 1:
		return b
	}
	return mgl32.Vec3{
		a[0] + (b[0]-a[0])*t,
		a[1] + (b[1]-a[1])*t,
		a[2] + (b[2]-a[2])*t,
	}
}

// SlerpShortest spherically interpolates two rotations along the shortest arc.
// mgl32.QuatSlerp does not flip hemispheres, so b is negated when the quaternions
// point away from each other.
//
// Parameters:
//   - a: the rotation at t = 0
//   - b: the rotation at t = 1
//   - t: the interpolation factor
//
// Returns:
//   - mgl32.Quat: the interpolated, normalized rotation
func SlerpShortest(a, b mgl32.Quat, t float32) mgl32.Quat {
	switch t {
	case 0:
		return a
	case 1:
		return b
	}
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl32.QuatSlerp(a, b, t).Normalize()
}

// WrapTime folds t into [start, end) using the clip duration as the period.
// Negative offsets wrap forward. A non-positive duration or a NaN time returns start,
// and an infinite time is clamped to the nearer bound.
//
// Parameters:
//   - t: the requested time
//   - start: the period start
//   - end: the period end
//
// Returns:
//   - float32: the wrapped time
func WrapTime(t, start, end float32) float32 {
	duration := end - start
	if duration <= 0 || isNaN(t) {
		return start
	}
	if math.IsInf(float64(t), 0) {
		// no phase to recover from an infinite time
		return ClampTime(t, start, end)
	}
	off := float32(math.Mod(float64(t-start), float64(duration)))
	if off < 0 {
		off += duration
	}
	if off >= duration {
		off = 0
	}
	return start + off
}

// ClampTime limits t to [start, end]. A NaN time returns start.
//
// Parameters:
//   - t: the requested time
//   - start: the lower bound
//   - end: the upper bound
//
// Returns:
//   - float32: the clamped time
func ClampTime(t, start, end float32) float32 {
	if t < start || isNaN(t) {
		return start
	}
	if t > end {
		return end
	}
	return t
}

func isNaN(f float32) bool {
	return f != f
}

func vectorLength(x, y, z float32) float32 {
	return float32(math.Sqrt(float64(x*x + y*y + z*z)))
}
