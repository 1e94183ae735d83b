package policy

import (
	"github.com/Mindburn-Labs/immuva/pkg/contracts"
)

// Requirements are the individually switchable proof requirements.
type Requirements struct {
	KeyBound        bool `json:"key_bound" yaml:"key_bound"`
	TimeAnchor      bool `json:"time_anchor" yaml:"time_anchor"`
	TransparencyLog bool `json:"transparency_log" yaml:"transparency_log"`
}

// Any reports whether any requirement is switched on.
func (r Requirements) Any() bool {
	return r.KeyBound || r.TimeAnchor || r.TransparencyLog
}

// Or merges two requirement sets.
func (r Requirements) Or(o Requirements) Requirements {
	return Requirements{
		KeyBound:        r.KeyBound || o.KeyBound,
		TimeAnchor:      r.TimeAnchor || o.TimeAnchor,
		TransparencyLog: r.TransparencyLog || o.TransparencyLog,
	}
}

// RawPolicy is one policy document as authored.
type RawPolicy struct {
	PolicyID      string               `json:"policy_id" yaml:"policy_id"`
	Issuer        string               `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	IssuedAt      string               `json:"issued_at,omitempty" yaml:"issued_at,omitempty"`
	MinProofLevel contracts.ProofLevel `json:"min_proof_level,omitempty" yaml:"min_proof_level,omitempty"`
	Require       *Requirements        `json:"require,omitempty" yaml:"require,omitempty"`
}

// EffectivePolicy is the merge of any number of raw policies.
type EffectivePolicy struct {
	MinProofLevel contracts.ProofLevel `json:"min_proof_level,omitempty"`
	Require       Requirements         `json:"require"`
	Sources       []string             `json:"sources"`
}

// Compose folds policies left to right: the strongest min_proof_level wins
// and each requirement flag is OR-reduced. Sources keep input order.
func Compose(policies ...RawPolicy) EffectivePolicy {
	eff := EffectivePolicy{Sources: make([]string, 0, len(policies))}
	for _, p := range policies {
		eff.Sources = append(eff.Sources, p.PolicyID)
		eff.MinProofLevel = Max(eff.MinProofLevel, p.MinProofLevel)
		if p.Require != nil {
			eff.Require = eff.Require.Or(*p.Require)
		}
	}
	return eff
}

// Merge combines two effective policies the same way Compose combines raw
// ones.
func (e EffectivePolicy) Merge(o EffectivePolicy) EffectivePolicy {
	sources := make([]string, 0, len(e.Sources)+len(o.Sources))
	sources = append(sources, e.Sources...)
	sources = append(sources, o.Sources...)
	return EffectivePolicy{
		MinProofLevel: Max(e.MinProofLevel, o.MinProofLevel),
		Require:       e.Require.Or(o.Require),
		Sources:       sources,
	}
}

// IsZero reports whether the policy constrains nothing.
func (e EffectivePolicy) IsZero() bool {
	return e.MinProofLevel == "" && !e.Require.Any()
}
