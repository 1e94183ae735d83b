package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest pins the registry files of a spec release by digest.
type Manifest struct {
	ManifestVersion   string         `json:"manifest_version"`
	CreatedAt         string         `json:"created_at"`
	SpecVersion       string         `json:"spec_version"`
	RegistriesVersion string         `json:"registries_version"`
	Files             []ManifestFile `json:"files"`
}

type ManifestFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// LoadManifest reads <dir>/manifests/registry-manifest.json.
func LoadManifest(dir string) (*Manifest, error) {
	p := filepath.Join(dir, "manifests", "registry-manifest.json")
	//nolint:gosec // G304: caller-selected registry directory
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("registry: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("registry: decode manifest: %w", err)
	}
	return &m, nil
}

// ValidateManifest recomputes each listed file's digest. It returns one
// message per mismatching or unreadable file; an empty result means the
// directory matches its manifest.
func ValidateManifest(dir string) ([]string, error) {
	m, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	var problems []string
	for _, f := range m.Files {
		//nolint:gosec // G304: paths come from the manifest under dir
		data, err := os.ReadFile(filepath.Join(dir, f.Path))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", f.Path, err))
			continue
		}
		sum := sha256.Sum256(data)
		actual := hex.EncodeToString(sum[:])
		if f.SHA256 == "" || f.SHA256 != actual {
			problems = append(problems, fmt.Sprintf("sha256 mismatch for %s: expected=%s actual=%s", f.Path, f.SHA256, actual))
		}
	}
	return problems, nil
}
