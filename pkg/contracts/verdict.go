package contracts

import (
	"bytes"
	"encoding/json"
)

// VerdictStatus is the outcome class of a verification.
type VerdictStatus string

const (
	StatusValid            VerdictStatus = "VALID"
	StatusInvalid          VerdictStatus = "INVALID"
	StatusPending          VerdictStatus = "PENDING"
	StatusAwaitingEvidence VerdictStatus = "AWAITING_EVIDENCE"
	StatusNonClosable      VerdictStatus = "NON_CLOSABLE"
	StatusContested        VerdictStatus = "CONTESTED"
)

// ModeOffline marks verdicts computed without network collaborators.
const ModeOffline = "offline"

// ProofLevel rates the strength of a verdict's supporting evidence.
type ProofLevel string

const (
	ProofLevelBasic              ProofLevel = "BASIC"
	ProofLevelKeyBound           ProofLevel = "KEY_BOUND"
	ProofLevelTimeAnchored       ProofLevel = "TIME_ANCHORED"
	ProofLevelTransparencyLogged ProofLevel = "TRANSPARENCY_LOGGED"
)

// Verdict is the result of verifying a Proof.
//
// JSON output keeps a fixed field order: mode, status, evidence, outcome,
// pointers, proof_level, violations. Violations always serialize as an
// array, never null.
type Verdict struct {
	Mode       string          `json:"mode,omitempty"`
	Status     VerdictStatus   `json:"status"`
	Evidence   *Evidence       `json:"evidence,omitempty"`
	Outcome    *Outcome        `json:"outcome,omitempty"`
	Pointers   *Pointers       `json:"pointers,omitempty"`
	ProofLevel ProofLevel      `json:"proof_level,omitempty"`
	Violations []ViolationCode `json:"violations"`
}

// MarshalJSON encodes the verdict with a non-null violations array.
func (v Verdict) MarshalJSON() ([]byte, error) {
	type plain Verdict
	out := plain(v)
	if out.Violations == nil {
		out.Violations = []ViolationCode{}
	}
	return marshalNoEscape(out)
}

// HasViolation reports whether code is among the verdict's violations.
func (v Verdict) HasViolation(code ViolationCode) bool {
	for _, c := range v.Violations {
		if c == code {
			return true
		}
	}
	return false
}

// Severity grades a violation code.
type Severity string

const (
	SeverityInvalid          Severity = "invalid"
	SeverityPending          Severity = "pending"
	SeverityAwaitingEvidence Severity = "awaiting_evidence"
	SeverityContested        Severity = "contested"
	SeverityNonClosable      Severity = "non_closable"
)

// DetailedViolation pairs a code with its registry severity.
type DetailedViolation struct {
	Code     ViolationCode `json:"code"`
	Severity Severity      `json:"severity"`
}

// DetailedVerdict is a Verdict whose violations carry severities.
type DetailedVerdict struct {
	Mode       string              `json:"mode,omitempty"`
	Status     VerdictStatus       `json:"status"`
	Evidence   *Evidence           `json:"evidence,omitempty"`
	Outcome    *Outcome            `json:"outcome,omitempty"`
	Pointers   *Pointers           `json:"pointers,omitempty"`
	ProofLevel ProofLevel          `json:"proof_level,omitempty"`
	Violations []DetailedViolation `json:"violations"`
}

// MarshalJSON encodes the verdict with a non-null violations array.
func (v DetailedVerdict) MarshalJSON() ([]byte, error) {
	type plain DetailedVerdict
	out := plain(v)
	if out.Violations == nil {
		out.Violations = []DetailedViolation{}
	}
	return marshalNoEscape(out)
}

// Codes returns the bare violation codes in order.
func (v DetailedVerdict) Codes() []ViolationCode {
	codes := make([]ViolationCode, 0, len(v.Violations))
	for _, d := range v.Violations {
		codes = append(codes, d.Code)
	}
	return codes
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
