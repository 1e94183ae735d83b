package policy

import (
	"sort"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
)

// ViolationOrder is the fixed priority of policy-stage violations.
// Revocation first, then signature and trust, canonical integrity,
// revocation-list errors, and finally proof requirements.
var ViolationOrder = []contracts.ViolationCode{
	contracts.ViolationPolicyRevoked,
	contracts.ViolationPolicySignatureRequired,
	contracts.ViolationPolicySignatureInvalid,
	contracts.ViolationPolicyTrustKeyMismatch,
	contracts.ViolationPolicyCanonicalMismatch,
	contracts.ViolationPolicyCanonicalHashMismatch,
	contracts.ViolationPolicyRevocationListRequired,
	contracts.ViolationPolicyRevocationListInvalid,
	contracts.ViolationMinProofLevelNotMet,
	contracts.ViolationKeyBindingRequired,
	contracts.ViolationTimeAnchorRequired,
	contracts.ViolationTransparencyLogRequired,
}

// unrankedPriority places codes missing from ViolationOrder last.
const unrankedPriority = 999

// Priority returns a code's position in ViolationOrder.
func Priority(code contracts.ViolationCode) int {
	for i, c := range ViolationOrder {
		if c == code {
			return i
		}
	}
	return unrankedPriority
}

// SortViolations deduplicates codes, keeping first occurrences, and sorts
// them stably by priority.
func SortViolations(codes []contracts.ViolationCode) []contracts.ViolationCode {
	seen := make(map[contracts.ViolationCode]bool, len(codes))
	out := make([]contracts.ViolationCode, 0, len(codes))
	for _, c := range codes {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return Priority(out[i]) < Priority(out[j])
	})
	return out
}
