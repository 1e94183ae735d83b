package contracts

// TimeAnchorType names the mechanism that anchored an event in time.
type TimeAnchorType string

const (
	TimeAnchorRFC3161         TimeAnchorType = "RFC3161"
	TimeAnchorBlockchain      TimeAnchorType = "BLOCKCHAIN"
	TimeAnchorTransparencyLog TimeAnchorType = "TRANSPARENCY_LOG"
)

// TimeAnchor binds sha256(canonical_event) to an external clock.
type TimeAnchor struct {
	Type        TimeAnchorType `json:"type"`
	AnchorID    string         `json:"anchor_id"`
	AnchoredAt  string         `json:"anchored_at"`
	PayloadHash string         `json:"payload_hash"`
	Proof       string         `json:"proof,omitempty"`
}

// TLLeaf is one entry of the transparency log.
type TLLeaf struct {
	LeafIndex   int    `json:"leaf_index"`
	PayloadHash string `json:"payload_hash"`
}

// TLInclusionProof proves a leaf belongs to a tree with the given root.
// TreeSize is needed to place promoted nodes when replaying the path.
type TLInclusionProof struct {
	LeafIndex int      `json:"leaf_index"`
	TreeSize  int      `json:"tree_size"`
	LeafHash  string   `json:"leaf_hash"`
	Proof     []string `json:"proof"`
	Root      string   `json:"root"`
}

// TLRoot is a signed-off snapshot of the log head.
type TLRoot struct {
	Root        string `json:"root"`
	TreeSize    int    `json:"tree_size"`
	GeneratedAt string `json:"generated_at"`
}

// KeyDescriptor tracks a signing key through rotation and revocation.
type KeyDescriptor struct {
	KeyID       string    `json:"key_id"`
	PublicKey   string    `json:"public_key"`
	Status      KeyStatus `json:"status"`
	ActivatedAt string    `json:"activated_at"`
	RotatedAt   string    `json:"rotated_at,omitempty"`
	RevokedAt   string    `json:"revoked_at,omitempty"`
}
