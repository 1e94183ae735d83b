// Package crypto holds the signature suite registry and the Ed25519
// primitives used to sign and verify canonical events.
package crypto

import (
	"errors"
	"sort"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
)

// Normative suite identifiers. Implementations must reject any other.
const (
	SuiteV1SHA256        contracts.CryptoSuiteID = "IMMUVAv1-SHA256"
	SuiteV2Ed25519SHA256 contracts.CryptoSuiteID = "IMMUVAv2-ED25519-SHA256"
)

// SignatureSemantics describes what a suite's signature field contains.
type SignatureSemantics string

const (
	SemanticsHashOnly      SignatureSemantics = "hash-only"
	SemanticsEd25519SHA256 SignatureSemantics = "ed25519-sha256"
)

var (
	ErrUnknownSuite      = errors.New("crypto: unknown crypto suite")
	ErrPublicKeyRequired = errors.New("crypto: suite requires a public key")
	// ErrPublicKeyNotPermitted is returned for a hash-only block that
	// carries a public key.
	ErrPublicKeyNotPermitted = errors.New("crypto: suite does not permit a public key")
)

// Suite is one entry of the fixed suite registry.
type Suite struct {
	ID                contracts.CryptoSuiteID `json:"id"`
	Description       string                  `json:"description"`
	RequiresPublicKey bool                    `json:"requires_public_key"`
	Semantics         SignatureSemantics      `json:"signature_semantics"`
}

var suites = map[contracts.CryptoSuiteID]Suite{
	SuiteV1SHA256: {
		ID:                SuiteV1SHA256,
		Description:       "Legacy compatibility mode. signature == sha256(canonical_event).",
		RequiresPublicKey: false,
		Semantics:         SemanticsHashOnly,
	},
	SuiteV2Ed25519SHA256: {
		ID:                SuiteV2Ed25519SHA256,
		Description:       "Ed25519 signature over sha256(canonical_event).",
		RequiresPublicKey: true,
		Semantics:         SemanticsEd25519SHA256,
	},
}

// LookupSuite resolves a suite id. The empty id resolves to the legacy
// hash-only suite.
func LookupSuite(id contracts.CryptoSuiteID) (Suite, error) {
	if id == "" {
		id = SuiteV1SHA256
	}
	s, ok := suites[id]
	if !ok {
		return Suite{}, ErrUnknownSuite
	}
	return s, nil
}

// ResolveSuite looks up the suite named by a signing block and checks its
// key requirement. Hash-only suites reject a public key outright.
func ResolveSuite(sb *contracts.SigningBlock) (Suite, error) {
	var id contracts.CryptoSuiteID
	if sb != nil {
		id = sb.CryptoSuite
	}
	s, err := LookupSuite(id)
	if err != nil {
		return Suite{}, err
	}
	if s.RequiresPublicKey && (sb == nil || sb.PublicKey == "") {
		return s, ErrPublicKeyRequired
	}
	if !s.RequiresPublicKey && sb != nil && sb.PublicKey != "" {
		return s, ErrPublicKeyNotPermitted
	}
	return s, nil
}

// Suites lists the registry sorted by id.
func Suites() []Suite {
	out := make([]Suite, 0, len(suites))
	for _, s := range suites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
