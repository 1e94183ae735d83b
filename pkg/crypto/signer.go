package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
)

// Ed25519Signer signs under the IMMUVAv2-ED25519-SHA256 suite.
type Ed25519Signer struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
}

// NewEd25519Signer wraps a private key.
func NewEd25519Signer(priv ed25519.PrivateKey) *Ed25519Signer {
	return &Ed25519Signer{
		privKey: priv,
		pubKey:  priv.Public().(ed25519.PublicKey),
	}
}

// Sign signs raw bytes and returns the hex signature.
func (s *Ed25519Signer) Sign(data []byte) string {
	return hex.EncodeToString(ed25519.Sign(s.privKey, data))
}

// SignEvent signs sha256(canonicalEvent) and returns a v2 signing block.
func (s *Ed25519Signer) SignEvent(canonicalEvent string) *contracts.SigningBlock {
	digest := sha256.Sum256([]byte(canonicalEvent))
	return &contracts.SigningBlock{
		CryptoSuite: SuiteV2Ed25519SHA256,
		Signature:   s.Sign(digest[:]),
		PublicKey:   s.PublicKey(),
	}
}

func (s *Ed25519Signer) PublicKey() string {
	return hex.EncodeToString(s.pubKey)
}
