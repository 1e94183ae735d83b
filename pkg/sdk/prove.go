package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Mindburn-Labs/immuva/pkg/canonicalize"
	"github.com/Mindburn-Labs/immuva/pkg/contracts"
	"github.com/Mindburn-Labs/immuva/pkg/crypto"
)

// ErrPublicKeyMismatch is returned when the supplied public key does not
// belong to the private key.
var ErrPublicKeyMismatch = errors.New("sdk: public key does not match private key")

// ProveRequest is the input to Prove. The fields after the keys are copied
// onto the proof unchanged.
type ProveRequest struct {
	Event         any
	PrivateKeyHex string
	// PublicKeyHex is optional; when set it must match PrivateKeyHex.
	PublicKeyHex string

	Receipts         []contracts.Receipt
	Evidence         *contracts.Evidence
	Outcome          *contracts.Outcome
	Pointers         *contracts.Pointers
	ResultsetPresent bool
	TerminalPresent  bool
	CanonicalEvents  []string
	TimeAnchor       json.RawMessage
}

// Prove canonicalizes the event, signs sha256(canonical) under the v2
// suite and binds the key to the event. With a transparency log attached
// the event is appended and its inclusion proof rides on the proof.
func (c *Client) Prove(ctx context.Context, req ProveRequest) (_ *contracts.Proof, err error) {
	ctx, done := c.obs.TrackOperation(ctx, "immuva.prove")
	defer func() { done(err) }()

	res, err := canonicalize.Canonicalize(req.Event)
	if err != nil {
		return nil, fmt.Errorf("sdk: canonicalize event: %w", err)
	}
	priv, err := crypto.PrivateKeyFromHex(req.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("sdk: %w", err)
	}
	signer := crypto.NewEd25519Signer(priv)
	pub := signer.PublicKey()
	if req.PublicKeyHex != "" && !strings.EqualFold(strings.TrimSpace(req.PublicKeyHex), pub) {
		return nil, ErrPublicKeyMismatch
	}

	signing := signer.SignEvent(res.Canonical)

	proof := &contracts.Proof{
		CanonicalEvent: res.Canonical,
		Signing:        signing,
		KeyBinding: &contracts.KeyBinding{
			PublicKey: pub,
			KeyID:     res.SHA256,
			KeyStatus: contracts.KeyStatusActive,
		},
		Receipts:         req.Receipts,
		Evidence:         req.Evidence,
		Outcome:          req.Outcome,
		Pointers:         req.Pointers,
		ResultsetPresent: req.ResultsetPresent,
		TerminalPresent:  req.TerminalPresent,
		CanonicalEvents:  req.CanonicalEvents,
		TimeAnchor:       req.TimeAnchor,
	}

	if c.log != nil {
		if err := c.attachInclusion(ctx, proof); err != nil {
			return nil, err
		}
	}

	c.obs.RecordProof(ctx, string(signing.CryptoSuite))
	c.logger.DebugContext(ctx, "proof generated",
		"proof_id", res.SHA256,
		"transparency_logged", proof.HasTransparencyLog(),
	)
	return proof, nil
}

func (c *Client) attachInclusion(ctx context.Context, proof *contracts.Proof) error {
	leaf, err := c.log.Append(ctx, proof.CanonicalEvent)
	if err != nil {
		return fmt.Errorf("sdk: transparency log append: %w", err)
	}
	incl, err := c.log.Prove(ctx, leaf.LeafIndex)
	if err != nil {
		return fmt.Errorf("sdk: transparency log prove: %w", err)
	}
	raw, err := json.Marshal(incl)
	if err != nil {
		return fmt.Errorf("sdk: encode inclusion proof: %w", err)
	}
	proof.TransparencyLog = raw
	return nil
}

// ProofID is sha256 of the proof's canonical event in hex.
func ProofID(p *contracts.Proof) string {
	if p == nil {
		return canonicalize.SHA256Hex("")
	}
	return canonicalize.SHA256Hex(p.CanonicalEvent)
}

// GenerateKeypair returns a fresh Ed25519 keypair in hex.
func GenerateKeypair() (crypto.Keypair, error) {
	return crypto.GenerateKeypair()
}

func spanAttrs(p *contracts.Proof) []attribute.KeyValue {
	if p == nil {
		return nil
	}
	return []attribute.KeyValue{attribute.String("immuva.proof_id", ProofID(p))}
}
