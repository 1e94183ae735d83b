// Package policy orders proof levels, composes policy documents into one
// effective policy, and ranks policy-stage violations.
package policy

import (
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
)

// ErrUnknownProofLevel is returned when a level name is not in the order.
var ErrUnknownProofLevel = errors.New("policy: unknown proof level")

// Order lists proof levels from weakest to strongest.
var Order = []contracts.ProofLevel{
	contracts.ProofLevelBasic,
	contracts.ProofLevelKeyBound,
	contracts.ProofLevelTimeAnchored,
	contracts.ProofLevelTransparencyLogged,
}

// Rank returns the index of level in Order.
func Rank(level contracts.ProofLevel) (int, bool) {
	for i, l := range Order {
		if l == level {
			return i, true
		}
	}
	return -1, false
}

// ParseProofLevel validates a level name.
func ParseProofLevel(s string) (contracts.ProofLevel, error) {
	level := contracts.ProofLevel(s)
	if _, ok := Rank(level); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProofLevel, s)
	}
	return level, nil
}

// Max returns the stronger of two levels. An empty level is absent and
// loses to any present one; on ties the first argument wins.
func Max(a, b contracts.ProofLevel) contracts.ProofLevel {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	ra, _ := Rank(a)
	rb, _ := Rank(b)
	if ra >= rb {
		return a
	}
	return b
}

// ComputeProofLevel rates a proof by its strongest attachment.
func ComputeProofLevel(p *contracts.Proof) contracts.ProofLevel {
	switch {
	case p == nil:
		return contracts.ProofLevelBasic
	case p.HasTransparencyLog():
		return contracts.ProofLevelTransparencyLogged
	case p.HasTimeAnchor():
		return contracts.ProofLevelTimeAnchored
	case p.KeyBinding != nil:
		return contracts.ProofLevelKeyBound
	default:
		return contracts.ProofLevelBasic
	}
}

// Meets reports whether achieved is at least min. An unknown min level is
// never met.
func Meets(achieved, min contracts.ProofLevel) bool {
	rmin, ok := Rank(min)
	if !ok {
		return false
	}
	ra, ok := Rank(achieved)
	return ok && ra >= rmin
}
