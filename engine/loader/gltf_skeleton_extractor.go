package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/skeleton"
	"github.com/go-gl/mathgl/mgl32"
)

// gltfSkeleton is a skin converted to engine bone order.
type gltfSkeleton struct {
	bones        []skeleton.Bone
	inverseBinds []mgl32.Mat4

	// nodeToBone maps a glTF node index to its bone index after sorting.
	nodeToBone map[int]int
}

// gltfSkeletonExtractorImpl is the implementation of the gltfSkeletonExtractor interface.
type gltfSkeletonExtractorImpl struct {
	parser gltfParser
}

// gltfSkeletonExtractor defines the interface for extracting skeleton/bone data from a parsed glTF document.
// It converts glTF skin definitions into bone lists sorted parents-first.
type gltfSkeletonExtractor interface {
	// ExtractSkeleton extracts a skeleton from a skin by index.
	// A joint's parent is its nearest ancestor node that is also a joint of the skin; joints without one become roots.
	//
	// Parameters:
	//   - skinIndex: the index of the skin to extract
	//
	// Returns:
	//   - *gltfSkeleton: the sorted bones, their inverse bind matrices and the node mapping
	//   - error: error if extraction fails
	ExtractSkeleton(skinIndex int) (*gltfSkeleton, error)

	// FindSkinForMesh finds which skin is attached to a mesh. Returns -1 if none is found.
	FindSkinForMesh(meshIndex int) int
}

var _ gltfSkeletonExtractor = &gltfSkeletonExtractorImpl{}

// newGLTFSkeletonExtractor creates a new skeleton extractor for a parsed document.
//
// Parameters:
//   - parser: the parser containing a loaded document
//
// Returns:
//   - gltfSkeletonExtractor: the skeleton extractor
func newGLTFSkeletonExtractor(parser gltfParser) gltfSkeletonExtractor {
	return &gltfSkeletonExtractorImpl{parser: parser}
}

func (e *gltfSkeletonExtractorImpl) FindSkinForMesh(meshIndex int) int {
	doc := e.parser.Document()
	if doc == nil {
		return -1
	}

	for _, node := range doc.Nodes {
		if node.Mesh != nil && *node.Mesh == meshIndex && node.Skin != nil {
			return *node.Skin
		}
	}

	return -1
}

func (e *gltfSkeletonExtractorImpl) ExtractSkeleton(skinIndex int) (*gltfSkeleton, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	if skinIndex < 0 || skinIndex >= len(doc.Skins) {
		return nil, fmt.Errorf("skin index %d out of range", skinIndex)
	}

	skin := &doc.Skins[skinIndex]

	// Read inverse bind matrices (optional but usually present)
	var inverseBindMatrices [][16]float32
	if skin.InverseBindMatrices != nil {
		var err error
		inverseBindMatrices, err = e.parser.ReadMat4Accessor(*skin.InverseBindMatrices)
		if err != nil {
			return nil, fmt.Errorf("failed to read inverse bind matrices: %w", err)
		}
		if len(inverseBindMatrices) < len(skin.Joints) {
			return nil, fmt.Errorf("skin has %d joints but %d inverse bind matrices", len(skin.Joints), len(inverseBindMatrices))
		}
	}

	nodeParent := make(map[int]int, len(doc.Nodes))
	for nodeIdx, node := range doc.Nodes {
		for _, child := range node.Children {
			nodeParent[child] = nodeIdx
		}
	}

	jointOf := make(map[int]int, len(skin.Joints))
	for i, jointIndex := range skin.Joints {
		if jointIndex < 0 || jointIndex >= len(doc.Nodes) {
			return nil, fmt.Errorf("joint %d: invalid node index %d", i, jointIndex)
		}
		if _, dup := jointOf[jointIndex]; dup {
			return nil, fmt.Errorf("joint %d: node %d listed twice", i, jointIndex)
		}
		jointOf[jointIndex] = i
	}

	// First pass: bones in skin order
	bones := make([]skeleton.Bone, len(skin.Joints))
	inverseBinds := make([]mgl32.Mat4, len(skin.Joints))
	for i, jointIndex := range skin.Joints {
		node := &doc.Nodes[jointIndex]
		bones[i] = skeleton.Bone{
			Name:      common.Coalesce(node.Name, fmt.Sprintf("bone_%d", i)),
			Parent:    skeleton.NoParent,
			Transform: gltfNodeTransform(node),
		}
		// glTF treats missing inverse bind matrices as identity
		inverseBinds[i] = mgl32.Ident4()
		if inverseBindMatrices != nil {
			inverseBinds[i] = mgl32.Mat4(inverseBindMatrices[i])
		}

		// Walk up to the nearest ancestor that is a joint of this skin
		for n, steps := jointIndex, 0; steps < len(doc.Nodes); steps++ {
			parent, ok := nodeParent[n]
			if !ok {
				break
			}
			if parentBone, ok := jointOf[parent]; ok {
				bones[i].Parent = int32(parentBone)
				break
			}
			n = parent
		}
	}

	// Sort bones in topological order (parents before children)
	order := gltfTopologicalOrder(bones)
	if len(order) < len(bones) {
		return nil, fmt.Errorf("skin %d joint hierarchy contains a cycle", skinIndex)
	}

	oldToNew := make([]int, len(bones))
	for newIdx, oldIdx := range order {
		oldToNew[oldIdx] = newIdx
	}

	sorted := &gltfSkeleton{
		bones:        make([]skeleton.Bone, len(bones)),
		inverseBinds: make([]mgl32.Mat4, len(bones)),
		nodeToBone:   make(map[int]int, len(bones)),
	}
	for newIdx, oldIdx := range order {
		bone := bones[oldIdx]
		if bone.Parent != skeleton.NoParent {
			bone.Parent = int32(oldToNew[bone.Parent])
		}
		sorted.bones[newIdx] = bone
		sorted.inverseBinds[newIdx] = inverseBinds[oldIdx]
		sorted.nodeToBone[skin.Joints[oldIdx]] = newIdx
	}

	return sorted, nil
}

// --- Helper Functions ---

// gltfNodeTransform returns a node's local transform as a matrix.
func gltfNodeTransform(node *gltfNode) mgl32.Mat4 {
	if node.Matrix != nil {
		return mgl32.Mat4(*node.Matrix)
	}
	scale, rotation, translation := gltfNodeSRT(node)
	return common.ComposeSRT(scale, rotation, translation)
}

// gltfNodeSRT returns a node's local transform as scale, rotation and translation.
// Matrix nodes are decomposed, assuming no shear.
func gltfNodeSRT(node *gltfNode) (mgl32.Vec3, mgl32.Quat, mgl32.Vec3) {
	if node.Matrix != nil {
		return common.DecomposeSRT(mgl32.Mat4(*node.Matrix))
	}

	scale := mgl32.Vec3{1, 1, 1}
	rotation := mgl32.QuatIdent()
	var translation mgl32.Vec3

	if node.Translation != nil {
		translation = mgl32.Vec3(*node.Translation)
	}
	if node.Rotation != nil {
		rotation = gltfQuat(*node.Rotation)
	}
	if node.Scale != nil {
		scale = mgl32.Vec3(*node.Scale)
	}
	return scale, rotation, translation
}

// gltfQuat converts a glTF (x, y, z, w) quaternion.
func gltfQuat(q [4]float32) mgl32.Quat {
	return mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}}
}

// gltfTopologicalOrder returns bone indices ordered so that parents come before children,
// breadth first from the roots in index order. Bones unreachable from a root are left out.
func gltfTopologicalOrder(bones []skeleton.Bone) []int {
	children := make(map[int32][]int)
	queue := make([]int, 0, len(bones))
	for i, bone := range bones {
		if bone.Parent == skeleton.NoParent {
			queue = append(queue, i)
		} else {
			children[bone.Parent] = append(children[bone.Parent], i)
		}
	}

	sorted := make([]int, 0, len(bones))
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		sorted = append(sorted, idx)
		queue = append(queue, children[int32(idx)]...)
	}
	return sorted
}
