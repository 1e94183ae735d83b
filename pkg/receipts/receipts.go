// Package receipts validates the receipt sequence attached to a proof.
package receipts

import (
	"strconv"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
)

// Receipt kinds with protocol meaning.
const (
	KindR1          = "R1"
	KindR2          = "R2"
	KindEnvAttest   = "ENV_ATTEST"
	KindNonClosable = "NON_CLOSABLE"
)

var allowedKinds = map[string]bool{
	KindR1:          true,
	KindR2:          true,
	KindEnvAttest:   true,
	KindNonClosable: true,
}

// Validator applies the receipt rules. The zero value enforces the fixed
// whitelist; AllowRankedKinds additionally admits any well-formed R<n>.
type Validator struct {
	AllowRankedKinds bool
}

// IsAllowedKind reports whether kind passes the whitelist.
func (v Validator) IsAllowedKind(kind string) bool {
	if allowedKinds[kind] {
		return true
	}
	if v.AllowRankedKinds {
		_, ok := Rank(kind)
		return ok
	}
	return false
}

// CheckKinds returns RECEIPT_KIND_NOT_ALLOWED if any receipt kind is
// outside the whitelist.
func (v Validator) CheckKinds(rs []contracts.Receipt) []contracts.ViolationCode {
	for _, r := range rs {
		if !v.IsAllowedKind(r.Kind) {
			return []contracts.ViolationCode{contracts.ViolationReceiptKindNotAllowed}
		}
	}
	return nil
}

// CheckOrdering returns RECEIPT_LATE_AFTER_NON_CLOSABLE if any receipt
// follows the first NON_CLOSABLE.
func CheckOrdering(rs []contracts.Receipt) []contracts.ViolationCode {
	for i, r := range rs {
		if r.Kind == KindNonClosable {
			if i < len(rs)-1 {
				return []contracts.ViolationCode{contracts.ViolationReceiptLateAfterNonClosable}
			}
			return nil
		}
	}
	return nil
}

// CheckOutcomeBasis rejects ENV_ATTEST as the basis of an outcome.
func CheckOutcomeBasis(o *contracts.Outcome) []contracts.ViolationCode {
	if o != nil && o.Basis == KindEnvAttest {
		return []contracts.ViolationCode{contracts.ViolationOutcomeBasisNotAllowed}
	}
	return nil
}

// Validate runs kind, ordering and outcome-basis checks in that order and
// stops at the first failure.
func (v Validator) Validate(rs []contracts.Receipt, outcome *contracts.Outcome) []contracts.ViolationCode {
	if vs := v.CheckKinds(rs); len(vs) > 0 {
		return vs
	}
	if vs := CheckOrdering(rs); len(vs) > 0 {
		return vs
	}
	return CheckOutcomeBasis(outcome)
}

// Rank parses a receipt rank of the form R<digits>. Leading zeros are
// accepted; values that overflow int are not ranks.
func Rank(kind string) (int, bool) {
	if len(kind) < 2 || kind[0] != 'R' {
		return 0, false
	}
	digits := kind[1:]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// HasNonClosableSignal reports whether any receipt is NON_CLOSABLE.
func HasNonClosableSignal(rs []contracts.Receipt) bool {
	for _, r := range rs {
		if r.Kind == KindNonClosable {
			return true
		}
	}
	return false
}
