package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
	"github.com/Mindburn-Labs/immuva/pkg/policy"
)

// Profile is a named set of verify options kept in YAML.
//
//	name: strict
//	offline: true
//	min_proof_level: KEY_BOUND
//	require:
//	  time_anchor: true
//	policy_dir: /etc/immuva/policies
//	trusted_key_file: /etc/immuva/policy.pub
type Profile struct {
	Name           string              `yaml:"name" json:"name"`
	Offline        *bool               `yaml:"offline,omitempty" json:"offline,omitempty"`
	MinProofLevel  string              `yaml:"min_proof_level,omitempty" json:"min_proof_level,omitempty"`
	Require        policy.Requirements `yaml:"require" json:"require"`
	PolicyDir      string              `yaml:"policy_dir,omitempty" json:"policy_dir,omitempty"`
	TrustedKeyFile string              `yaml:"trusted_key_file,omitempty" json:"trusted_key_file,omitempty"`
}

// ParseProfile decodes and validates a profile.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parse profile: %w", err)
	}
	if p.MinProofLevel != "" {
		if _, err := policy.ParseProofLevel(p.MinProofLevel); err != nil {
			return nil, fmt.Errorf("config: profile %q: %w", p.Name, err)
		}
	}
	return &p, nil
}

// LoadPolicyProfile reads a profile from path.
func LoadPolicyProfile(path string) (*Profile, error) {
	//nolint:gosec // G304: operator-provided profile path
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read profile %s: %w", path, err)
	}
	return ParseProfile(data)
}

// MinLevel returns the profile's minimum proof level, or "" when unset.
func (p *Profile) MinLevel() contracts.ProofLevel {
	return contracts.ProofLevel(p.MinProofLevel)
}

// OfflineOr returns the profile's offline flag, or def when the profile
// leaves it unset.
func (p *Profile) OfflineOr(def bool) bool {
	if p.Offline == nil {
		return def
	}
	return *p.Offline
}
