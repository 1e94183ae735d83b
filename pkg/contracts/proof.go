// Package contracts holds the wire types shared by the proof protocol:
// proofs, receipts, evidence, verdicts and the violation taxonomy.
package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// CryptoSuiteID names a signature suite. The empty value means the legacy
// hash-only suite.
type CryptoSuiteID string

// KeyStatus is the lifecycle status of a signing key.
type KeyStatus string

const (
	KeyStatusActive  KeyStatus = "ACTIVE"
	KeyStatusRotated KeyStatus = "ROTATED"
	KeyStatusRevoked KeyStatus = "REVOKED"
)

// SigningBlock carries the signature over a canonical event.
type SigningBlock struct {
	CryptoSuite CryptoSuiteID `json:"crypto_suite,omitempty"`
	Signature   string        `json:"signature"`
	PublicKey   string        `json:"public_key,omitempty"`
}

// KeyBinding ties the signing key to the event it signed.
type KeyBinding struct {
	PublicKey string    `json:"public_key,omitempty"`
	KeyID     string    `json:"key_id,omitempty"`
	KeyStatus KeyStatus `json:"key_status,omitempty"`
}

// Receipt is a typed signal attached to an action.
type Receipt struct {
	Kind string `json:"kind"`
}

// Evidence is the claimed vs. required resolution rank.
type Evidence struct {
	Effective string `json:"effective"`
	Required  string `json:"required"`
	Qualified bool   `json:"qualified"`
}

// Outcome is the concluded value and the rank it rests on.
type Outcome struct {
	Value string `json:"value"`
	Basis string `json:"basis"`
}

// Pointers locate the action a proof is about.
type Pointers struct {
	ActionID string `json:"action_id"`
}

// Proof is the verifiable unit produced by Prove and consumed by Verify.
// TimeAnchor and TransparencyLog are opaque attachments; only their
// presence matters to proof-level computation.
type Proof struct {
	CanonicalEvent   string          `json:"canonical_event"`
	Signing          *SigningBlock   `json:"signing,omitempty"`
	KeyBinding       *KeyBinding     `json:"key_binding,omitempty"`
	Receipts         []Receipt       `json:"receipts,omitempty"`
	Evidence         *Evidence       `json:"evidence,omitempty"`
	Outcome          *Outcome        `json:"outcome,omitempty"`
	Pointers         *Pointers       `json:"pointers,omitempty"`
	ResultsetPresent bool            `json:"resultset_present,omitempty"`
	TerminalPresent  bool            `json:"terminal_present,omitempty"`
	CanonicalEvents  []string        `json:"canonical_events,omitempty"`
	TimeAnchor       json.RawMessage `json:"time_anchor,omitempty"`
	TransparencyLog  json.RawMessage `json:"transparency_log,omitempty"`
}

// HasTimeAnchor reports whether a time anchor is attached.
func (p *Proof) HasTimeAnchor() bool {
	return Attached(p.TimeAnchor)
}

// HasTransparencyLog reports whether a transparency-log attachment is present.
func (p *Proof) HasTransparencyLog() bool {
	return Attached(p.TransparencyLog)
}

// Attached reports whether an opaque attachment carries a value. Absent
// attachments and the JSON falsy literals (null, false, 0, "") count as
// not attached.
func Attached(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return false
	}
	switch string(v) {
	case "null", "false", `""`:
		return false
	}
	if f, err := strconv.ParseFloat(string(v), 64); err == nil {
		return f != 0
	}
	return true
}

// DecodeProof parses a proof from its JSON form.
func DecodeProof(data []byte) (*Proof, error) {
	var p Proof
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("contracts: decode proof: %w", err)
	}
	return &p, nil
}
