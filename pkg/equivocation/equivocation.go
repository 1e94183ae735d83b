// Package equivocation detects conflicting claims about one canonical event.
package equivocation

import (
	"fmt"

	"github.com/Mindburn-Labs/immuva/pkg/canonicalize"
	"github.com/Mindburn-Labs/immuva/pkg/contracts"
)

// Normalize parses and re-canonicalizes every claimed event. Any parse or
// canonicalization failure fails the whole batch.
func Normalize(events []string) ([]string, error) {
	out := make([]string, 0, len(events))
	for i, raw := range events {
		res, err := canonicalize.CanonicalizeJSON([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("equivocation: event %d: %w", i, err)
		}
		out = append(out, res.Canonical)
	}
	return out, nil
}

// IsNonEquivocating reports whether normalized claims collapse to at most
// one distinct value.
func IsNonEquivocating(normalized []string) bool {
	for i := 1; i < len(normalized); i++ {
		if normalized[i] != normalized[0] {
			return false
		}
	}
	return true
}

// Check returns NON_EQUIVOCATION_VIOLATION when the claims disagree or any
// of them cannot be normalized.
func Check(events []string) []contracts.ViolationCode {
	if len(events) == 0 {
		return nil
	}
	normalized, err := Normalize(events)
	if err != nil || !IsNonEquivocating(normalized) {
		return []contracts.ViolationCode{contracts.ViolationNonEquivocation}
	}
	return nil
}
