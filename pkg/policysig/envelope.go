// Package policysig binds policy documents to a trusted Ed25519 signer.
//
// An envelope carries the canonical JSON of the policy, its SHA-256, the
// signer key and an Ed25519 signature over the hash. A policy may only
// constrain verdicts after Verify accepts its envelope.
package policysig

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Mindburn-Labs/immuva/pkg/canonicalize"
	"github.com/Mindburn-Labs/immuva/pkg/contracts"
	"github.com/Mindburn-Labs/immuva/pkg/crypto"
	"github.com/Mindburn-Labs/immuva/pkg/schema"
)

const (
	EnvelopeVersion = "1.0.0"
	Algorithm       = "ED25519_SHA256_CANONICAL_JSON"
)

// ErrInvalidTrustedKey is returned for trusted key material that is neither
// 32 raw bytes nor 64 hex characters.
var ErrInvalidTrustedKey = errors.New("policysig: invalid trusted pubkey format (expected 32 raw bytes or 64 hex chars)")

// Envelope is the signed wrapper around a policy document. Field order is
// the wire order.
type Envelope struct {
	Version            string  `json:"version"`
	Algo               string  `json:"algo"`
	Issuer             string  `json:"issuer"`
	PolicyID           string  `json:"policy_id"`
	IssuedAt           *string `json:"issued_at"`
	CanonicalJSON      string  `json:"canonical_json"`
	CanonicalSHA256Hex string  `json:"canonical_sha256_hex"`
	SignerPublicKeyHex string  `json:"signer_public_key_hex"`
	SignatureHex       string  `json:"signature_hex"`
}

var envelopeSchema = schema.MustCompile("policy-envelope", `{
  "type": "object",
  "required": ["canonical_json", "canonical_sha256_hex", "signer_public_key_hex", "signature_hex"],
  "properties": {
    "version": {"type": "string"},
    "algo": {"type": "string"},
    "issuer": {"type": "string"},
    "policy_id": {"type": "string"},
    "issued_at": {"type": ["string", "null"]},
    "canonical_json": {"type": "string"},
    "canonical_sha256_hex": {"type": "string"},
    "signer_public_key_hex": {"type": "string"},
    "signature_hex": {"type": "string"}
  }
}`)

// ParseEnvelope decodes and shape-checks an envelope document.
func ParseEnvelope(data []byte) (*Envelope, error) {
	if _, err := schema.ValidateJSON(envelopeSchema, data); err != nil {
		return nil, fmt.Errorf("policysig: envelope: %w", err)
	}
	var env Envelope
	if err := unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("policysig: envelope: %w", err)
	}
	return &env, nil
}

// LoadEnvelope reads an envelope file.
func LoadEnvelope(path string) (*Envelope, error) {
	//nolint:gosec // G304: caller-selected envelope path
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policysig: read envelope: %w", err)
	}
	return ParseEnvelope(data)
}

var hex64 = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// ParseTrustedKey accepts 32 raw key bytes or 64 hex characters (surrounding
// whitespace ignored) and returns lowercase hex.
func ParseTrustedKey(raw []byte) (string, error) {
	if len(raw) == 32 {
		return hex.EncodeToString(raw), nil
	}
	s := strings.TrimSpace(string(raw))
	if hex64.MatchString(s) {
		return strings.ToLower(s), nil
	}
	return "", ErrInvalidTrustedKey
}

// LoadTrustedKey reads trusted key material from a file.
func LoadTrustedKey(path string) (string, error) {
	//nolint:gosec // G304: caller-selected key path
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("policysig: read trusted key: %w", err)
	}
	return ParseTrustedKey(raw)
}

// Result is the outcome of envelope verification. Code is empty when OK.
type Result struct {
	OK   bool
	Code contracts.ViolationCode
}

func fail(code contracts.ViolationCode) Result {
	return Result{Code: code}
}

// Verify checks, in order, the trust binding, the canonical form, the
// canonical hash and the signature. Each step fails closed with its own
// code.
func Verify(doc any, env *Envelope, trustedKeyHex string) Result {
	if env == nil {
		return fail(contracts.ViolationPolicySignatureRequired)
	}

	if trustedKeyHex == "" || !strings.EqualFold(env.SignerPublicKeyHex, trustedKeyHex) {
		return fail(contracts.ViolationPolicyTrustKeyMismatch)
	}

	res, err := canonicalize.Canonicalize(doc)
	if err != nil || res.Canonical != env.CanonicalJSON {
		return fail(contracts.ViolationPolicyCanonicalMismatch)
	}

	digest := sha256.Sum256([]byte(res.Canonical))
	if !strings.EqualFold(env.CanonicalSHA256Hex, hex.EncodeToString(digest[:])) {
		return fail(contracts.ViolationPolicyCanonicalHashMismatch)
	}

	if !crypto.VerifyDigest(digest[:], env.SignatureHex, trustedKeyHex) {
		return fail(contracts.ViolationPolicySignatureInvalid)
	}
	return Result{OK: true}
}
