package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// yamlRigFile is the root of a YAML rig descriptor.
type yamlRigFile struct {
	Name  string     `yaml:"name"`
	Bones []yamlBone `yaml:"bones"`
	Clips []yamlClip `yaml:"clips"`
}

// yamlTransform is a local transform given either as a column-major matrix or as
// translation, rotation (x, y, z, w) and scale. Omitted SRT parts take their identity values.
type yamlTransform struct {
	Matrix      []float32 `yaml:"matrix"`
	Translation []float32 `yaml:"translation"`
	Rotation    []float32 `yaml:"rotation"`
	Scale       []float32 `yaml:"scale"`
}

// yamlBone is one bone entry. Parent names a bone declared earlier in the list.
type yamlBone struct {
	Name          string `yaml:"name"`
	Parent        string `yaml:"parent"`
	yamlTransform `yaml:",inline"`
	InverseBind   []float32 `yaml:"inverse_bind"`
}

// yamlClip is one clip entry. Kind is "matrix" (default) or "srt".
type yamlClip struct {
	Name  string    `yaml:"name"`
	Kind  string    `yaml:"kind"`
	Start float32   `yaml:"start"`
	End   float32   `yaml:"end"`
	Keys  []yamlKey `yaml:"keys"`
}

// yamlKey is one keyframe. Bone names the animated bone.
type yamlKey struct {
	Bone          string  `yaml:"bone"`
	Time          float32 `yaml:"time"`
	yamlTransform `yaml:",inline"`
}

// yamlLoaderBackendImpl is the implementation of yamlLoaderBackend.
type yamlLoaderBackendImpl struct{}

// yamlLoaderBackend is a loaderBackend implementation for hand-authored YAML rig descriptors.
type yamlLoaderBackend interface {
	loaderBackend
}

var _ yamlLoaderBackend = &yamlLoaderBackendImpl{}

// newYAMLLoaderBackend creates a new YAML loader backend.
//
// Returns:
//   - yamlLoaderBackend: the loader backend for YAML rig files
func newYAMLLoaderBackend() yamlLoaderBackend {
	return &yamlLoaderBackendImpl{}
}

func (b *yamlLoaderBackendImpl) Load(path string) (*Rig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	rig, err := b.parse(data)
	if err != nil {
		return nil, err
	}
	if rig.Name == "" {
		base := filepath.Base(path)
		rig.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return rig, nil
}

func (b *yamlLoaderBackendImpl) LoadReader(r io.Reader) (*Rig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}

	rig, err := b.parse(data)
	if err != nil {
		return nil, err
	}
	rig.Name = common.Coalesce(rig.Name, "unnamed_rig")
	return rig, nil
}

// parse decodes a YAML rig descriptor and resolves bone names to indices.
func (b *yamlLoaderBackendImpl) parse(data []byte) (*Rig, error) {
	var file yamlRigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rig yaml: %w", err)
	}
	if len(file.Bones) == 0 {
		return nil, fmt.Errorf("rig declares no bones")
	}

	rig := &Rig{
		Name:  file.Name,
		Bones: make([]skeleton.Bone, len(file.Bones)),
	}

	boneIndex := make(map[string]int, len(file.Bones))
	withInverse := 0
	for i, yb := range file.Bones {
		if yb.Name == "" {
			return nil, fmt.Errorf("bone %d: missing name", i)
		}

		parent := skeleton.NoParent
		if yb.Parent != "" {
			p, ok := boneIndex[yb.Parent]
			if !ok {
				return nil, fmt.Errorf("bone %q: parent %q is not declared before it", yb.Name, yb.Parent)
			}
			parent = int32(p)
		}

		transform, err := yb.matrix()
		if err != nil {
			return nil, fmt.Errorf("bone %q: %w", yb.Name, err)
		}

		rig.Bones[i] = skeleton.Bone{Name: yb.Name, Parent: parent, Transform: transform}
		// A repeated name refers to its latest declaration, as with skeleton.FindBone.
		boneIndex[yb.Name] = i
		if yb.InverseBind != nil {
			withInverse++
		}
	}

	// Inverse bind matrices are all-or-nothing; the skeleton derives them when absent.
	if withInverse > 0 {
		if withInverse != len(file.Bones) {
			return nil, fmt.Errorf("%d of %d bones declare inverse_bind; declare it on all bones or none", withInverse, len(file.Bones))
		}
		rig.InverseBindMatrices = make([]mgl32.Mat4, len(file.Bones))
		for i, yb := range file.Bones {
			m, err := yamlMat4(yb.InverseBind)
			if err != nil {
				return nil, fmt.Errorf("bone %q inverse_bind: %w", yb.Name, err)
			}
			rig.InverseBindMatrices[i] = m
		}
	}

	for _, yc := range file.Clips {
		clip, err := yc.rigClip(boneIndex)
		if err != nil {
			return nil, fmt.Errorf("clip %q: %w", yc.Name, err)
		}
		rig.Clips = append(rig.Clips, clip)
	}

	return rig, nil
}

// rigClip converts the clip, resolving key bone names through boneIndex.
func (yc *yamlClip) rigClip(boneIndex map[string]int) (RigClip, error) {
	clip := RigClip{Name: yc.Name, Start: yc.Start, End: yc.End}
	if yc.Name == "" {
		return clip, fmt.Errorf("missing name")
	}

	switch strings.ToLower(yc.Kind) {
	case "", "matrix":
		clip.Kind = animation.ClipKindMatrix
	case "srt":
		clip.Kind = animation.ClipKindSRT
	default:
		return clip, fmt.Errorf("unknown kind %q", yc.Kind)
	}

	for i, yk := range yc.Keys {
		bone, ok := boneIndex[yk.Bone]
		if !ok {
			return clip, fmt.Errorf("key %d: unknown bone %q", i, yk.Bone)
		}

		if clip.Kind == animation.ClipKindMatrix {
			m, err := yk.matrix()
			if err != nil {
				return clip, fmt.Errorf("key %d: %w", i, err)
			}
			clip.Keys = append(clip.Keys, animation.Key{Bone: bone, Time: yk.Time, Value: m})
			continue
		}

		scale, rotation, translation, err := yk.srt()
		if err != nil {
			return clip, fmt.Errorf("key %d: %w", i, err)
		}
		clip.SRTKeys = append(clip.SRTKeys, animation.SRTKey{
			Bone:        bone,
			Time:        yk.Time,
			Scale:       scale,
			Rotation:    rotation,
			Translation: translation,
		})
	}

	return clip, nil
}

// matrix returns the transform as a matrix, composing it from SRT parts when no matrix is given.
func (t *yamlTransform) matrix() (mgl32.Mat4, error) {
	if t.Matrix != nil {
		if t.Translation != nil || t.Rotation != nil || t.Scale != nil {
			return mgl32.Mat4{}, fmt.Errorf("matrix cannot be combined with translation, rotation or scale")
		}
		return yamlMat4(t.Matrix)
	}
	scale, rotation, translation, err := t.srt()
	if err != nil {
		return mgl32.Mat4{}, err
	}
	return common.ComposeSRT(scale, rotation, translation), nil
}

// srt returns the transform as scale, rotation and translation, decomposing a matrix when one is given.
func (t *yamlTransform) srt() (mgl32.Vec3, mgl32.Quat, mgl32.Vec3, error) {
	if t.Matrix != nil {
		m, err := t.matrix()
		if err != nil {
			return mgl32.Vec3{}, mgl32.Quat{}, mgl32.Vec3{}, err
		}
		scale, rotation, translation := common.DecomposeSRT(m)
		return scale, rotation, translation, nil
	}

	scale := mgl32.Vec3{1, 1, 1}
	rotation := mgl32.QuatIdent()
	var translation mgl32.Vec3

	if t.Translation != nil {
		if len(t.Translation) != 3 {
			return scale, rotation, translation, fmt.Errorf("translation needs 3 values, got %d", len(t.Translation))
		}
		translation = mgl32.Vec3{t.Translation[0], t.Translation[1], t.Translation[2]}
	}
	if t.Rotation != nil {
		if len(t.Rotation) != 4 {
			return scale, rotation, translation, fmt.Errorf("rotation needs 4 values (x, y, z, w), got %d", len(t.Rotation))
		}
		rotation = gltfQuat([4]float32{t.Rotation[0], t.Rotation[1], t.Rotation[2], t.Rotation[3]})
	}
	if t.Scale != nil {
		if len(t.Scale) != 3 {
			return scale, rotation, translation, fmt.Errorf("scale needs 3 values, got %d", len(t.Scale))
		}
		scale = mgl32.Vec3{t.Scale[0], t.Scale[1], t.Scale[2]}
	}
	return scale, rotation, translation, nil
}

// yamlMat4 converts 16 column-major values to a matrix.
func yamlMat4(values []float32) (mgl32.Mat4, error) {
	var m mgl32.Mat4
	if len(values) != len(m) {
		return m, fmt.Errorf("matrix needs %d values, got %d", len(m), len(values))
	}
	copy(m[:], values)
	return m, nil
}
