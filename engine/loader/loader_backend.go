package loader

import (
	"io"
)

// loaderBackend defines the generic interface for loading rigs from files or streams.
// Concrete implementations (gltfLoaderBackend, yamlLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Load imports a rig from the given file path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - *Rig: the imported rig
	//   - error: error if loading fails
	Load(path string) (*Rig, error)

	// LoadReader imports a rig from a reader stream.
	//
	// Parameters:
	//   - r: the reader providing rig data
	//
	// Returns:
	//   - *Rig: the imported rig
	//   - error: error if loading fails
	LoadReader(r io.Reader) (*Rig, error)
}
