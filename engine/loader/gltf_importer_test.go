package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gltfFixture assembles a glTF document with a single embedded float buffer.
type gltfFixture struct {
	buf       []byte
	views     []map[string]any
	accessors []map[string]any
}

func (f *gltfFixture) floats(accessorType string, values ...float32) int {
	offset := len(f.buf)
	for _, v := range values {
		f.buf = binary.LittleEndian.AppendUint32(f.buf, math.Float32bits(v))
	}
	f.views = append(f.views, map[string]any{
		"buffer":     0,
		"byteOffset": offset,
		"byteLength": len(values) * 4,
	})
	f.accessors = append(f.accessors, map[string]any{
		"bufferView":    len(f.views) - 1,
		"componentType": gltfComponentTypeFloat,
		"count":         len(values) / gltfAccessorTypeComponentCount(accessorType),
		"type":          accessorType,
	})
	return len(f.accessors) - 1
}

func (f *gltfFixture) json(t *testing.T, doc map[string]any, embed bool) []byte {
	t.Helper()
	buffer := map[string]any{"byteLength": len(f.buf)}
	if embed {
		buffer["uri"] = "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(f.buf)
	}
	doc["asset"] = map[string]any{"version": "2.0"}
	doc["buffers"] = []any{buffer}
	doc["bufferViews"] = f.views
	doc["accessors"] = f.accessors

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func (f *gltfFixture) glb(t *testing.T, doc map[string]any) []byte {
	t.Helper()
	jsonChunk := f.json(t, doc, false)
	for len(jsonChunk)%4 != 0 {
		jsonChunk = append(jsonChunk, ' ')
	}
	binChunk := append([]byte(nil), f.buf...)
	for len(binChunk)%4 != 0 {
		binChunk = append(binChunk, 0)
	}

	var out bytes.Buffer
	total := 12 + 8 + len(jsonChunk) + 8 + len(binChunk)
	require.NoError(t, binary.Write(&out, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: gltfGLBVersion, Length: uint32(total)}))
	require.NoError(t, binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(jsonChunk)), ChunkType: gltfGLBChunkJSON}))
	out.Write(jsonChunk)
	require.NoError(t, binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(binChunk)), ChunkType: gltfGLBChunkBIN}))
	out.Write(binChunk)
	return out.Bytes()
}

// armDocument describes root -> hand with the skin listing the child first, plus a mesh node
// that is not a joint. The hand's translation, the root's rotation and the hand's scale are animated.
func armDocument(f *gltfFixture) map[string]any {
	times := f.floats(gltfAccessorTypeScalar, 0, 1)
	translations := f.floats(gltfAccessorTypeVec3, 0, 1, 0, 0, 3, 0)
	halfTime := f.floats(gltfAccessorTypeScalar, 0.5)
	scales := f.floats(gltfAccessorTypeVec3, 2, 2, 2)
	s := float32(math.Sqrt2 / 2)
	rotations := f.floats(gltfAccessorTypeVec4, 0, 0, 0, 1, 0, 0, s, s)

	return map[string]any{
		"scene":  0,
		"scenes": []any{map[string]any{"name": "arm", "nodes": []int{0, 2}}},
		"nodes": []any{
			map[string]any{"name": "root", "children": []int{1}, "translation": []float32{0, 0, 1}},
			map[string]any{"name": "hand", "translation": []float32{0, 1, 0}},
			map[string]any{"name": "body", "mesh": 0, "skin": 0},
		},
		"skins": []any{map[string]any{"joints": []int{1, 0}}},
		"animations": []any{
			map[string]any{
				"name": "wave",
				"samplers": []any{
					map[string]any{"input": times, "output": translations},
					map[string]any{"input": halfTime, "output": scales, "interpolation": "STEP"},
					map[string]any{"input": times, "output": rotations},
				},
				"channels": []any{
					map[string]any{"sampler": 0, "target": map[string]any{"node": 1, "path": "translation"}},
					map[string]any{"sampler": 1, "target": map[string]any{"node": 1, "path": "scale"}},
					map[string]any{"sampler": 2, "target": map[string]any{"node": 0, "path": "rotation"}},
					map[string]any{"sampler": 0, "target": map[string]any{"node": 2, "path": "translation"}},
				},
			},
		},
	}
}

func importArm(t *testing.T) *Rig {
	t.Helper()
	f := &gltfFixture{}
	rig, err := newGLTFImporter().ImportReader(bytes.NewReader(f.json(t, armDocument(f), true)))
	require.NoError(t, err)
	return rig
}

func TestGLTFSortsJointsParentsFirst(t *testing.T) {
	rig := importArm(t)

	assert.Equal(t, "arm", rig.Name)
	require.Len(t, rig.Bones, 2)
	assert.Equal(t, "root", rig.Bones[0].Name)
	assert.Equal(t, skeleton.NoParent, rig.Bones[0].Parent)
	assert.Equal(t, mgl32.Translate3D(0, 0, 1), rig.Bones[0].Transform)
	assert.Equal(t, "hand", rig.Bones[1].Name)
	assert.Equal(t, int32(0), rig.Bones[1].Parent)
	assert.Equal(t, mgl32.Translate3D(0, 1, 0), rig.Bones[1].Transform)

	// No inverseBindMatrices accessor means identity.
	assert.Equal(t, []mgl32.Mat4{mgl32.Ident4(), mgl32.Ident4()}, rig.InverseBindMatrices)
}

func TestGLTFMergesChannelsOntoOneTimeline(t *testing.T) {
	rig := importArm(t)

	require.Len(t, rig.Clips, 1)
	clip := rig.Clips[0]
	assert.Equal(t, "wave", clip.Name)
	assert.Equal(t, animation.ClipKindSRT, clip.Kind)
	assert.Equal(t, float32(0), clip.Start)
	assert.Equal(t, float32(1), clip.End)

	// root: rotation keys at 0 and 1; hand: union of {0, 1} and {0.5}.
	require.Len(t, clip.SRTKeys, 5)

	root := clip.SRTKeys[:2]
	assert.Equal(t, 0, root[0].Bone)
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, root[0].Translation)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, root[0].Scale)
	assert.True(t, root[1].Rotation.ApproxEqualThreshold(mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1}), 1e-6))

	hand := clip.SRTKeys[2:]
	wantTimes := []float32{0, 0.5, 1}
	wantY := []float32{1, 2, 3}
	for i, k := range hand {
		assert.Equal(t, 1, k.Bone)
		assert.Equal(t, wantTimes[i], k.Time)
		assert.InDelta(t, wantY[i], k.Translation.Y(), 1e-6)
		// The scale channel has a single key, held across the whole clip.
		assert.Equal(t, mgl32.Vec3{2, 2, 2}, k.Scale)
		assert.Equal(t, mgl32.QuatIdent(), k.Rotation)
	}
}

func TestGLTFRigBuildsWorkingAnimation(t *testing.T) {
	anim, err := importArm(t).Build()
	require.NoError(t, err)

	clip := anim.FindClip("wave")
	require.NotEqual(t, animation.ClipNotFound, clip)

	dest := make([]mgl32.Mat4, 2)
	require.NoError(t, anim.Evaluate(clip, 0, false, dest, 2))
	want := mgl32.Translate3D(0, 0, 1).Mul4(mgl32.Translate3D(0, 1, 0)).Mul4(mgl32.Scale3D(2, 2, 2))
	assert.True(t, want.ApproxEqualThreshold(dest[1], 1e-6), "got %v want %v", dest[1], want)
}

func TestGLTFCubicSplineKeepsValues(t *testing.T) {
	f := &gltfFixture{}
	times := f.floats(gltfAccessorTypeScalar, 0, 2)
	values := f.floats(gltfAccessorTypeVec3,
		9, 9, 9, 1, 0, 0, 9, 9, 9,
		9, 9, 9, 3, 0, 0, 9, 9, 9,
	)
	doc := map[string]any{
		"nodes": []any{map[string]any{"name": "only"}},
		"skins": []any{map[string]any{"joints": []int{0}}},
		"animations": []any{map[string]any{
			"samplers": []any{map[string]any{"input": times, "output": values, "interpolation": "CUBICSPLINE"}},
			"channels": []any{map[string]any{"sampler": 0, "target": map[string]any{"node": 0, "path": "translation"}}},
		}},
	}

	rig, err := newGLTFImporter().ImportReader(bytes.NewReader(f.json(t, doc, true)))
	require.NoError(t, err)
	assert.Equal(t, "unnamed_rig", rig.Name)
	require.Len(t, rig.Clips, 1)
	assert.Equal(t, "animation_0", rig.Clips[0].Name)
	require.Len(t, rig.Clips[0].SRTKeys, 2)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, rig.Clips[0].SRTKeys[0].Translation)
	assert.Equal(t, mgl32.Vec3{3, 0, 0}, rig.Clips[0].SRTKeys[1].Translation)
}

func TestGLTFRejectsJointCycle(t *testing.T) {
	f := &gltfFixture{}
	doc := map[string]any{
		"nodes": []any{
			map[string]any{"name": "a", "children": []int{1}},
			map[string]any{"name": "b", "children": []int{0}},
		},
		"skins": []any{map[string]any{"joints": []int{0, 1}}},
	}

	_, err := newGLTFImporter().ImportReader(bytes.NewReader(f.json(t, doc, true)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestGLTFRejectsDocumentWithoutSkin(t *testing.T) {
	f := &gltfFixture{}
	doc := map[string]any{"nodes": []any{map[string]any{"name": "a"}}}

	_, err := newGLTFImporter().ImportReader(bytes.NewReader(f.json(t, doc, true)))
	assert.Error(t, err)
}

func TestGLBMatchesGLTF(t *testing.T) {
	f := &gltfFixture{}
	rig, err := newGLTFImporter().ImportReader(bytes.NewReader(f.glb(t, armDocument(f))))
	require.NoError(t, err)

	assert.Equal(t, importArm(t), rig)
}

func TestUniqueClipNames(t *testing.T) {
	clips := []RigClip{{Name: "idle"}, {Name: "idle"}, {Name: "run"}, {Name: "idle"}}
	gltfUniqueClipNames(clips)
	assert.Equal(t, "idle", clips[0].Name)
	assert.Equal(t, "idle_1", clips[1].Name)
	assert.Equal(t, "run", clips[2].Name)
	assert.Equal(t, "idle_2", clips[3].Name)
}
