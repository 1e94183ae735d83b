package verdict

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
	"github.com/Mindburn-Labs/immuva/pkg/merkle"
)

var (
	ErrNoTransparencyLog    = errors.New("verdict: proof has no transparency log attachment")
	ErrLeafNotBoundToEvent  = errors.New("verdict: transparency log leaf does not match canonical event")
	ErrInclusionProofFailed = errors.New("verdict: inclusion proof does not reach root")
)

// VerifyTransparencyAttachment checks a transparency_log attachment that
// carries an inclusion proof: its leaf must be the log leaf of this proof's
// canonical event and its path must reach the claimed root. Proof-level
// computation does not depend on this check.
func VerifyTransparencyAttachment(p *contracts.Proof) error {
	if p == nil || !p.HasTransparencyLog() {
		return ErrNoTransparencyLog
	}
	var ip contracts.TLInclusionProof
	if err := json.Unmarshal(p.TransparencyLog, &ip); err != nil {
		return fmt.Errorf("verdict: decode inclusion proof: %w", err)
	}

	payloadHash := sha256.Sum256([]byte(p.CanonicalEvent))
	want := hex.EncodeToString(merkle.LeafHash(payloadHash[:]))
	if !strings.EqualFold(ip.LeafHash, want) {
		return ErrLeafNotBoundToEvent
	}
	if !merkle.VerifyInclusion(ip) {
		return ErrInclusionProofFailed
	}
	return nil
}
