package loader

import (
	"fmt"
	"slices"
	"sort"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"github.com/go-gl/mathgl/mgl32"
)

// gltfChannel is one decoded sampler feeding a single node property.
// Only the value slice matching the property is populated.
type gltfChannel struct {
	times   []float32
	vectors []mgl32.Vec3
	quats   []mgl32.Quat
	step    bool
}

// gltfBoneChannels groups the channels of one bone within one animation.
type gltfBoneChannels struct {
	translation, rotation, scale *gltfChannel
}

// gltfAnimationExtractorImpl is the implementation of the gltfAnimationExtractor interface.
type gltfAnimationExtractorImpl struct {
	parser gltfParser
}

// gltfAnimationExtractor defines the interface for extracting animation data from a parsed glTF document.
// glTF animates translation, rotation and scale through independent channels with their own timelines;
// the extractor merges them into one SRT key per bone per distinct key time, sampling the channels that
// have no key at that time and falling back to the node's rest transform for channels that are absent.
type gltfAnimationExtractor interface {
	// ExtractAnimation extracts a single animation by index as an SRT clip.
	// Channels targeting nodes outside the skeleton, and morph weight channels, are skipped.
	//
	// Parameters:
	//   - animIndex: the index of the animation in the document
	//   - skel: the extracted skeleton whose node mapping resolves channel targets
	//
	// Returns:
	//   - *RigClip: the extracted clip
	//   - error: error if extraction fails
	ExtractAnimation(animIndex int, skel *gltfSkeleton) (*RigClip, error)

	// ExtractAnimationsForSkeleton extracts every animation with at least one channel targeting a joint of skel.
	ExtractAnimationsForSkeleton(skel *gltfSkeleton) ([]RigClip, error)
}

var _ gltfAnimationExtractor = &gltfAnimationExtractorImpl{}

// newGLTFAnimationExtractor creates a new animation extractor for a parsed document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//
// Returns:
//   - gltfAnimationExtractor: the animation extractor
func newGLTFAnimationExtractor(parser gltfParser) gltfAnimationExtractor {
	return &gltfAnimationExtractorImpl{parser: parser}
}

func (e *gltfAnimationExtractorImpl) ExtractAnimationsForSkeleton(skel *gltfSkeleton) ([]RigClip, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	var clips []RigClip
	for animIdx := range doc.Animations {
		relevant := false
		for _, ch := range doc.Animations[animIdx].Channels {
			if ch.Target.Node == nil {
				continue
			}
			if _, ok := skel.nodeToBone[*ch.Target.Node]; ok {
				relevant = true
				break
			}
		}
		if !relevant {
			continue
		}

		clip, err := e.ExtractAnimation(animIdx, skel)
		if err != nil {
			return nil, fmt.Errorf("animation %d: %w", animIdx, err)
		}
		clips = append(clips, *clip)
	}

	return clips, nil
}

func (e *gltfAnimationExtractorImpl) ExtractAnimation(animIndex int, skel *gltfSkeleton) (*RigClip, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if animIndex < 0 || animIndex >= len(doc.Animations) {
		return nil, fmt.Errorf("animation index %d out of range", animIndex)
	}

	anim := &doc.Animations[animIndex]
	name := common.Coalesce(anim.Name, fmt.Sprintf("animation_%d", animIndex))

	perBone := make(map[int]*gltfBoneChannels)
	boneToNode := make(map[int]int, len(skel.nodeToBone))
	for node, bone := range skel.nodeToBone {
		boneToNode[bone] = node
	}

	start, end := float32(0), float32(0)
	first := true

	for i := range anim.Channels {
		ch := &anim.Channels[i]

		// Skip channels with no target node or targeting a node outside the skeleton
		if ch.Target.Node == nil {
			continue
		}
		boneIndex, ok := skel.nodeToBone[*ch.Target.Node]
		if !ok {
			continue
		}
		switch ch.Target.Path {
		case gltfAnimPathTranslation, gltfAnimPathRotation, gltfAnimPathScale:
		default:
			continue
		}

		if ch.Sampler < 0 || ch.Sampler >= len(anim.Samplers) {
			return nil, fmt.Errorf("animation %q channel %d: invalid sampler index %d", name, i, ch.Sampler)
		}

		decoded, err := e.readChannel(&anim.Samplers[ch.Sampler], ch.Target.Path)
		if err != nil {
			return nil, fmt.Errorf("animation %q channel %d: %w", name, i, err)
		}
		if len(decoded.times) == 0 {
			continue
		}

		if t := decoded.times[0]; first || t < start {
			start = t
		}
		if t := decoded.times[len(decoded.times)-1]; first || t > end {
			end = t
		}
		first = false

		group, exists := perBone[boneIndex]
		if !exists {
			group = &gltfBoneChannels{}
			perBone[boneIndex] = group
		}
		switch ch.Target.Path {
		case gltfAnimPathTranslation:
			group.translation = decoded
		case gltfAnimPathRotation:
			group.rotation = decoded
		case gltfAnimPathScale:
			group.scale = decoded
		}
	}

	boneOrder := make([]int, 0, len(perBone))
	for bone := range perBone {
		boneOrder = append(boneOrder, bone)
	}
	slices.Sort(boneOrder)

	clip := &RigClip{
		Name:  name,
		Start: start,
		End:   end,
		Kind:  animation.ClipKindSRT,
	}
	for _, bone := range boneOrder {
		group := perBone[bone]
		restScale, restRotation, restTranslation := gltfNodeSRT(&doc.Nodes[boneToNode[bone]])

		for _, t := range group.timeline() {
			clip.SRTKeys = append(clip.SRTKeys, animation.SRTKey{
				Bone:        bone,
				Time:        t,
				Scale:       group.scale.sampleVector(t, restScale),
				Rotation:    group.rotation.sampleQuat(t, restRotation),
				Translation: group.translation.sampleVector(t, restTranslation),
			})
		}
	}

	return clip, nil
}

// readChannel decodes a sampler's times and values for the given target path.
func (e *gltfAnimationExtractorImpl) readChannel(sampler *gltfAnimSampler, path string) (*gltfChannel, error) {
	times, err := e.parser.ReadScalarAccessor(sampler.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to read timestamps: %w", err)
	}
	for k := 1; k < len(times); k++ {
		if times[k] <= times[k-1] {
			return nil, fmt.Errorf("timestamps not strictly increasing at key %d", k)
		}
	}

	ch := &gltfChannel{
		times: times,
		step:  sampler.Interpolation == gltfAnimInterpolationStep,
	}

	// Cubic spline samplers store (in-tangent, value, out-tangent) triplets; only the values are kept.
	stride, offset := 1, 0
	if sampler.Interpolation == gltfAnimInterpolationCubicSpline {
		stride, offset = 3, 1
	}

	switch path {
	case gltfAnimPathRotation:
		values, err := e.parser.ReadVec4Accessor(sampler.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to read rotation values: %w", err)
		}
		if len(values) < len(times)*stride {
			return nil, fmt.Errorf("%d rotation values for %d keys", len(values), len(times))
		}
		ch.quats = make([]mgl32.Quat, len(times))
		for k := range ch.quats {
			ch.quats[k] = gltfQuat(values[k*stride+offset])
		}

	default:
		values, err := e.parser.ReadVec3Accessor(sampler.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s values: %w", path, err)
		}
		if len(values) < len(times)*stride {
			return nil, fmt.Errorf("%d %s values for %d keys", len(values), path, len(times))
		}
		ch.vectors = make([]mgl32.Vec3, len(times))
		for k := range ch.vectors {
			ch.vectors[k] = mgl32.Vec3(values[k*stride+offset])
		}
	}

	return ch, nil
}

// timeline returns the sorted union of the key times of all channels in the group.
func (g *gltfBoneChannels) timeline() []float32 {
	var times []float32
	for _, ch := range []*gltfChannel{g.translation, g.rotation, g.scale} {
		if ch != nil {
			times = append(times, ch.times...)
		}
	}
	slices.Sort(times)
	return slices.Compact(times)
}

// locate finds the key k with times[k] <= t < times[k+1] and the blend factor toward k+1.
func (ch *gltfChannel) locate(t float32) (int, float32) {
	n := len(ch.times)
	if n == 1 || t <= ch.times[0] {
		return 0, 0
	}
	if t >= ch.times[n-1] {
		return n - 1, 0
	}
	k := sort.Search(n, func(i int) bool { return ch.times[i] > t }) - 1
	if ch.step || t == ch.times[k] {
		return k, 0
	}
	return k, (t - ch.times[k]) / (ch.times[k+1] - ch.times[k])
}

func (ch *gltfChannel) sampleVector(t float32, rest mgl32.Vec3) mgl32.Vec3 {
	if ch == nil {
		return rest
	}
	k, alpha := ch.locate(t)
	if alpha == 0 {
		return ch.vectors[k]
	}
	return common.LerpVec3(ch.vectors[k], ch.vectors[k+1], alpha)
}

func (ch *gltfChannel) sampleQuat(t float32, rest mgl32.Quat) mgl32.Quat {
	if ch == nil {
		return rest
	}
	k, alpha := ch.locate(t)
	if alpha == 0 {
		return ch.quats[k]
	}
	return common.SlerpShortest(ch.quats[k], ch.quats[k+1], alpha)
}
