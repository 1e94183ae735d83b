package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"

	"github.com/Mindburn-Labs/immuva/pkg/canonicalize"
	"github.com/Mindburn-Labs/immuva/pkg/contracts"
)

// VerifyEventSignature checks a signing block against the canonical event
// under the block's declared or implicit suite. It never panics: malformed
// hex, wrong key sizes and unknown suites all yield false.
func VerifyEventSignature(canonicalEvent string, sb *contracts.SigningBlock) bool {
	if sb == nil {
		return false
	}
	suite, err := ResolveSuite(sb)
	if err != nil {
		return false
	}
	switch suite.Semantics {
	case SemanticsHashOnly:
		return sb.Signature == canonicalize.SHA256Hex(canonicalEvent)
	case SemanticsEd25519SHA256:
		return VerifyEd25519(canonicalEvent, sb.Signature, sb.PublicKey)
	default:
		return false
	}
}

// VerifyEd25519 verifies an Ed25519 signature over sha256(canonicalEvent).
func VerifyEd25519(canonicalEvent, sigHex, pubHex string) bool {
	digest := sha256.Sum256([]byte(canonicalEvent))
	return VerifyDigest(digest[:], sigHex, pubHex)
}

// VerifyDigest verifies an Ed25519 signature over raw message bytes.
func VerifyDigest(msg []byte, sigHex, pubHex string) bool {
	pub, err := hex.DecodeString(pubHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}
