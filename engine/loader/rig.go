package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
)

// Rig is the format-independent result of a load: a parents-first bone list and the clips that animate it.
// It is plain data; Skeleton, Register and Build turn it into live engine objects.
type Rig struct {
	// Name identifies the rig, taken from the source document or its path.
	Name string

	// Bones are ordered so every parent precedes its children.
	Bones []skeleton.Bone

	// InverseBindMatrices is either empty, in which case the skeleton derives them from the bind pose,
	// or holds exactly one matrix per bone.
	InverseBindMatrices []mgl32.Mat4

	// Clips are the rig's animations in source order.
	Clips []RigClip
}

// RigClip is one clip of a Rig. Keys is used by matrix clips and SRTKeys by SRT clips.
type RigClip struct {
	Name       string
	Start, End float32
	Kind       animation.ClipKind
	Keys       []animation.Key
	SRTKeys    []animation.SRTKey
}

// Skeleton constructs the rig's skeleton.
//
// Parameters:
//   - options: additional skeleton options, applied after the rig's name and inverse bind matrices
//
// Returns:
//   - skeleton.Skeleton: the constructed skeleton
//   - error: skeleton.ErrConstruction if the bone list is invalid
func (r *Rig) Skeleton(options ...skeleton.SkeletonBuilderOption) (skeleton.Skeleton, error) {
	opts := []skeleton.SkeletonBuilderOption{skeleton.WithName(r.Name)}
	if len(r.InverseBindMatrices) > 0 {
		opts = append(opts, skeleton.WithInverseBindMatrices(r.InverseBindMatrices))
	}
	opts = append(opts, options...)

	skel, err := skeleton.New(r.Bones, opts...)
	if err != nil {
		return nil, fmt.Errorf("rig %q: %w", r.Name, err)
	}
	return skel, nil
}

// Register adds every clip of the rig to anim, stopping at the first failure.
//
// Parameters:
//   - anim: the clip store to fill; its skeleton must have the rig's bone layout
//
// Returns:
//   - error: the first registration error, wrapped with the clip name
func (r *Rig) Register(anim animation.Animation) error {
	for _, c := range r.Clips {
		var err error
		switch c.Kind {
		case animation.ClipKindSRT:
			_, err = anim.AddSRTClip(c.Name, c.Start, c.End, c.SRTKeys)
		default:
			_, err = anim.AddClip(c.Name, c.Start, c.End, c.Keys)
		}
		if err != nil {
			return fmt.Errorf("rig %q clip %q: %w", r.Name, c.Name, err)
		}
	}
	return nil
}

// Build constructs the rig's skeleton and an Animation holding all of its clips.
//
// Parameters:
//   - options: options for the Animation
//
// Returns:
//   - animation.Animation: the populated clip store
//   - error: a skeleton construction or clip registration error
func (r *Rig) Build(options ...animation.AnimationBuilderOption) (animation.Animation, error) {
	skel, err := r.Skeleton()
	if err != nil {
		return nil, err
	}
	anim := animation.NewAnimation(skel, options...)
	if err := r.Register(anim); err != nil {
		return nil, err
	}
	return anim, nil
}
