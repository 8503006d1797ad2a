package loader

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
)

// LoaderBackendType identifies the rig file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
	// BackendTypeYAML selects the YAML rig descriptor backend.
	BackendTypeYAML
)

// ErrUnsupportedFormat is returned when no backend handles a file extension.
var ErrUnsupportedFormat = errors.New("unsupported rig format")

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	logger *slog.Logger

	rigCache map[string]*Rig

	// backend serves LoadReader; backends serves Load by extension.
	backend  loaderBackend
	backends map[LoaderBackendType]loaderBackend
}

// Loader defines the public-facing interface for loading and caching rigs.
// It abstracts the file format (glTF, GLB, YAML) behind a generic backend and
// manages a cache of previously loaded rigs.
type Loader interface {
	// Load imports a rig file and caches the result.
	// If the rig is already cached (by file path), the cached version is returned.
	// The backend is selected based on the file extension (.gltf/.glb and .yaml/.yml).
	//
	// Parameters:
	//   - path: the file path to the rig file
	//
	// Returns:
	//   - *Rig: the loaded and cached rig
	//   - error: ErrUnsupportedFormat for unknown extensions, or the wrapped backend error
	Load(path string) (*Rig, error)

	// LoadReader imports a rig from a reader stream with the loader's primary backend
	// and caches it by the given name.
	//
	// Parameters:
	//   - name: the cache key for the loaded rig
	//   - r: the reader providing rig data
	//
	// Returns:
	//   - *Rig: the loaded rig
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader) (*Rig, error)

	// Get retrieves a cached rig by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - *Rig: the cached rig or nil
	Get(name string) *Rig

	// Rigs returns a copy of the rig cache.
	//
	// Returns:
	//   - map[string]*Rig: all cached rigs keyed by name
	Rigs() map[string]*Rig
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified primary backend type and options applied.
// Load always resolves the backend from the file extension; the primary backend only decides how
// LoadReader interprets its stream.
//
// Parameters:
//   - backendType: the backend used by LoadReader (BackendTypeGLTF or BackendTypeYAML)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:       sync.RWMutex{},
		logger:   slog.New(slog.DiscardHandler),
		rigCache: make(map[string]*Rig),
		backends: map[LoaderBackendType]loaderBackend{
			BackendTypeGLTF: newGLTFLoaderBackend(),
			BackendTypeYAML: newYAMLLoaderBackend(),
		},
	}

	switch backendType {
	case BackendTypeYAML:
		l.backend = l.backends[BackendTypeYAML]
	default:
		l.backend = l.backends[BackendTypeGLTF]
	}

	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string) (*Rig, error) {
	l.mu.RLock()
	if cached, ok := l.rigCache[path]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}

	rig, err := backend.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	l.store(path, rig)
	return rig, nil
}

func (l *loader) LoadReader(name string, r io.Reader) (*Rig, error) {
	l.mu.RLock()
	if cached, ok := l.rigCache[name]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	rig, err := l.backend.LoadReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}

	l.store(name, rig)
	return rig, nil
}

func (l *loader) Get(name string) *Rig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rigCache[name]
}

func (l *loader) Rigs() map[string]*Rig {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]*Rig, len(l.rigCache))
	for k, v := range l.rigCache {
		result[k] = v
	}
	return result
}

// store caches a rig under key. A concurrent load of the same key keeps the first result.
func (l *loader) store(key string, rig *Rig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rigCache[key]; ok {
		return
	}
	l.rigCache[key] = rig
	l.logger.Debug("rig loaded", "key", key, "rig", rig.Name, "bones", len(rig.Bones), "clips", len(rig.Clips))
}

// resolveBackend selects an appropriate loader backend based on the file extension.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gltf", ".glb":
		return l.backends[BackendTypeGLTF], nil
	case ".yaml", ".yml":
		return l.backends[BackendTypeYAML], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
