// Package registry resolves versioned registry documents (the violation
// code registry, registry manifests) from pluggable backends.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrRegistryNotFound is returned when a backend has no document for the
// requested name and version.
var ErrRegistryNotFound = errors.New("registry: not found")

// Provider loads the raw JSON of a named registry at a version.
type Provider interface {
	LoadJSON(ctx context.Context, name, version string) ([]byte, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, name, version string) ([]byte, error)

func (f ProviderFunc) LoadJSON(ctx context.Context, name, version string) ([]byte, error) {
	return f(ctx, name, version)
}

// Static serves documents held in memory, keyed by version and name.
type Static struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewStatic() *Static {
	return &Static{docs: make(map[string][]byte)}
}

// Put registers a document.
func (s *Static) Put(name, version string, data []byte) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[version+"/"+name] = append([]byte(nil), data...)
	return s
}

func (s *Static) LoadJSON(_ context.Context, name, version string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[version+"/"+name]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", ErrRegistryNotFound, name, version)
	}
	return append([]byte(nil), d...), nil
}

// objectKey is the layout every backend shares: registries/<version>/<name>.json.
func objectKey(prefix, name, version string) string {
	return prefix + "registries/" + version + "/" + name + ".json"
}
