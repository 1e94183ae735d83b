package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// FSProvider reads <Root>/registries/<version>/<name>.json. A version that
// is not an existing directory is treated as a semver constraint and
// resolved to the newest matching directory.
type FSProvider struct {
	Root string
}

func NewFSProvider(root string) *FSProvider {
	return &FSProvider{Root: root}
}

func (p *FSProvider) LoadJSON(_ context.Context, name, version string) ([]byte, error) {
	dir, err := p.resolveVersion(version)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(p.Root, "registries", dir, name+".json")
	//nolint:gosec // G304: path is built from the configured spec root
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRegistryNotFound, path)
		}
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	return data, nil
}

// Versions lists version directories that parse as semver, newest first.
func (p *FSProvider) Versions() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.Root, "registries"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRegistryNotFound, p.Root)
		}
		return nil, fmt.Errorf("registry: list versions: %w", err)
	}

	type candidate struct {
		dir string
		v   *semver.Version
	}
	var found []candidate
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := semver.NewVersion(e.Name())
		if err != nil {
			continue
		}
		found = append(found, candidate{dir: e.Name(), v: v})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].v.GreaterThan(found[j].v) })

	out := make([]string, len(found))
	for i, c := range found {
		out[i] = c.dir
	}
	return out, nil
}

func (p *FSProvider) resolveVersion(version string) (string, error) {
	if info, err := os.Stat(filepath.Join(p.Root, "registries", version)); err == nil && info.IsDir() {
		return version, nil
	}
	constraint, err := semver.NewConstraint(version)
	if err != nil {
		return "", fmt.Errorf("%w: version %q", ErrRegistryNotFound, version)
	}
	dirs, err := p.Versions()
	if err != nil {
		return "", err
	}
	for _, d := range dirs {
		v, _ := semver.NewVersion(d)
		if constraint.Check(v) {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: no version satisfies %q", ErrRegistryNotFound, version)
}
