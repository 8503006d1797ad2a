package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// gltfImporterImpl is the implementation of the gltfImporter interface.
type gltfImporterImpl struct{}

// gltfImporter defines the interface for orchestrating a full glTF/GLB import.
// It combines the parser and the skeleton and animation extractors to produce a Rig.
type gltfImporter interface {
	// Import loads a glTF/GLB file and extracts its skeleton and animations into a Rig.
	//
	// Parameters:
	//   - path: the file path to the glTF or GLB file
	//
	// Returns:
	//   - *Rig: the imported rig
	//   - error: error if import fails
	Import(path string) (*Rig, error)

	// ImportReader loads a glTF document from a reader. GLB streams are detected by their magic number.
	//
	// Parameters:
	//   - r: the reader providing glTF/GLB data
	//
	// Returns:
	//   - *Rig: the imported rig
	//   - error: error if import fails
	ImportReader(r io.Reader) (*Rig, error)
}

var _ gltfImporter = &gltfImporterImpl{}

// newGLTFImporter creates a new glTF importer.
//
// Returns:
//   - gltfImporter: the importer
func newGLTFImporter() gltfImporter {
	return &gltfImporterImpl{}
}

func (imp *gltfImporterImpl) Import(path string) (*Rig, error) {
	parser := newGLTFParser()
	if err := parser.Parse(path); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return imp.importFromParser(parser, path)
}

func (imp *gltfImporterImpl) ImportReader(r io.Reader) (*Rig, error) {
	parser := newGLTFParser()
	if err := parser.ParseReader(r); err != nil {
		return nil, fmt.Errorf("failed to parse from reader: %w", err)
	}

	return imp.importFromParser(parser, "")
}

// importFromParser performs a full import from a parser that has already loaded a document.
//
// Parameters:
//   - parser: the glTF parser that has already loaded a document
//   - fallbackPath: optional file path used as a fallback for rig naming
func (imp *gltfImporterImpl) importFromParser(parser gltfParser, fallbackPath string) (*Rig, error) {
	doc := parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document after parsing")
	}
	if len(doc.Skins) == 0 {
		return nil, fmt.Errorf("document has no skins")
	}

	skeletonExtractor := newGLTFSkeletonExtractor(parser)
	animationExtractor := newGLTFAnimationExtractor(parser)

	// Prefer the skin bound to the first mesh, falling back to the first skin.
	skinIndex := 0
	if si := skeletonExtractor.FindSkinForMesh(0); si >= 0 {
		skinIndex = si
	}

	skel, err := skeletonExtractor.ExtractSkeleton(skinIndex)
	if err != nil {
		return nil, fmt.Errorf("skeleton extraction failed: %w", err)
	}

	clips, err := animationExtractor.ExtractAnimationsForSkeleton(skel)
	if err != nil {
		return nil, fmt.Errorf("animation extraction failed: %w", err)
	}
	gltfUniqueClipNames(clips)

	return &Rig{
		Name:                gltfExtractRigName(doc, fallbackPath),
		Bones:               skel.bones,
		InverseBindMatrices: skel.inverseBinds,
		Clips:               clips,
	}, nil
}

// --- Helper Functions ---

// gltfExtractRigName derives a rig name from the default scene or a file path fallback.
func gltfExtractRigName(doc *gltfDocument, fallbackPath string) string {
	if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
		if name := doc.Scenes[*doc.Scene].Name; name != "" {
			return name
		}
	}

	if fallbackPath != "" {
		base := filepath.Base(fallbackPath)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}

	return "unnamed_rig"
}

// gltfUniqueClipNames suffixes repeated animation names so every clip of a document can be registered.
func gltfUniqueClipNames(clips []RigClip) {
	seen := make(map[string]int, len(clips))
	for i := range clips {
		name := clips[i].Name
		n := seen[name]
		seen[name] = n + 1
		if n > 0 {
			clips[i].Name = fmt.Sprintf("%s_%d", name, n)
		}
	}
}
