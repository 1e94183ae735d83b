package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// ErrInvalidKeyMaterial is returned for private keys that are neither a
// 32-byte seed nor a 64-byte Ed25519 private key.
var ErrInvalidKeyMaterial = errors.New("crypto: invalid key material")

// Keypair is an Ed25519 keypair in the hex form used on the wire. The
// private half is the 32-byte seed.
type Keypair struct {
	PrivateKeyHex string `json:"private_key_hex"`
	PublicKeyHex  string `json:"public_key_hex"`
}

// GenerateKeypair returns a fresh random keypair.
func GenerateKeypair() (Keypair, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return Keypair{}, fmt.Errorf("crypto: read seed: %w", err)
	}
	return KeypairFromSeed(seed)
}

// KeypairFromSeed derives the keypair for a 32-byte seed.
func KeypairFromSeed(seed []byte) (Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return Keypair{}, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidKeyMaterial, ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return Keypair{
		PrivateKeyHex: hex.EncodeToString(seed),
		PublicKeyHex:  hex.EncodeToString(priv.Public().(ed25519.PublicKey)),
	}, nil
}

// PrivateKeyFromHex accepts a hex 32-byte seed or a hex 64-byte
// seed||public private key.
func PrivateKeyFromHex(privHex string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(privHex))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	return PrivateKeyFromBytes(raw)
}

// PrivateKeyFromBytes is PrivateKeyFromHex for raw bytes. A 64-byte key
// must carry the public key matching its seed.
func PrivateKeyFromBytes(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !priv.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(raw[ed25519.SeedSize:])) {
			return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidKeyMaterial)
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeyMaterial, len(raw))
	}
}

// DeriveKeypair derives the keypair for namespace from a root seed with HKDF.
func DeriveKeypair(rootSeed []byte, namespace string) (Keypair, error) {
	if len(rootSeed) < ed25519.SeedSize {
		return Keypair{}, fmt.Errorf("%w: root seed must be at least %d bytes", ErrInvalidKeyMaterial, ed25519.SeedSize)
	}
	hkdfReader := hkdf.New(sha256.New, rootSeed, []byte("immuva-key-kdf"), []byte(namespace))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(hkdfReader, seed); err != nil {
		return Keypair{}, fmt.Errorf("crypto: HKDF derivation failed: %w", err)
	}
	return KeypairFromSeed(seed)
}
