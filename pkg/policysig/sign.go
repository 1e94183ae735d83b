package policysig

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/immuva/pkg/canonicalize"
	"github.com/Mindburn-Labs/immuva/pkg/crypto"
)

// Sign canonicalizes doc and produces its envelope. keyMaterial is a
// 32-byte seed or a 64-byte seed||public key. Issuer, policy_id and
// issued_at are copied from the document's top-level fields when present.
func Sign(doc any, keyMaterial []byte) (*Envelope, error) {
	priv, err := crypto.PrivateKeyFromBytes(keyMaterial)
	if err != nil {
		return nil, fmt.Errorf("policysig: sign: %w", err)
	}

	res, err := canonicalize.Canonicalize(doc)
	if err != nil {
		return nil, fmt.Errorf("policysig: sign: %w", err)
	}
	digest := sha256.Sum256([]byte(res.Canonical))
	sig := ed25519.Sign(priv, digest[:])

	var generic any
	if err := unmarshal([]byte(res.Canonical), &generic); err != nil {
		return nil, fmt.Errorf("policysig: sign: decode canonical: %w", err)
	}
	top, _ := generic.(map[string]any)

	env := &Envelope{
		Version:            EnvelopeVersion,
		Algo:               Algorithm,
		Issuer:             stringOr(top, "issuer", "unknown"),
		PolicyID:           stringOr(top, "policy_id", "unknown"),
		CanonicalJSON:      res.Canonical,
		CanonicalSHA256Hex: hex.EncodeToString(digest[:]),
		SignerPublicKeyHex: hex.EncodeToString(priv.Public().(ed25519.PublicKey)),
		SignatureHex:       hex.EncodeToString(sig),
	}
	if s, ok := top["issued_at"].(string); ok {
		env.IssuedAt = &s
	}
	return env, nil
}

// Marshal renders an envelope as indented JSON with a trailing newline.
func Marshal(env *Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return nil, fmt.Errorf("policysig: marshal: %w", err)
	}
	return buf.Bytes(), nil
}

func stringOr(m map[string]any, key, def string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return def
}

func unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
