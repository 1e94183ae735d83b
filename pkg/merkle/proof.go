package merkle

import (
	"encoding/hex"
	"strings"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
)

// Sibling sides within a proof step.
const (
	SideLeft  = "L"
	SideRight = "R"
)

type InclusionProof struct {
	LeafIndex  int         `json:"leaf_index"`
	TreeSize   int         `json:"tree_size"`
	LeafHash   string      `json:"leaf_hash"`
	MerkleRoot string      `json:"merkle_root"`
	ProofPath  []ProofStep `json:"proof_path"`
}

type ProofStep struct {
	Side        string `json:"side"` // "L" or "R"
	SiblingHash string `json:"sibling_hash"`
}

// TL converts the proof to its transparency-log wire form, where sides are
// implied by leaf index and tree size.
func (p *InclusionProof) TL() contracts.TLInclusionProof {
	path := make([]string, len(p.ProofPath))
	for i, s := range p.ProofPath {
		path[i] = s.SiblingHash
	}
	return contracts.TLInclusionProof{
		LeafIndex: p.LeafIndex,
		TreeSize:  p.TreeSize,
		LeafHash:  p.LeafHash,
		Proof:     path,
		Root:      p.MerkleRoot,
	}
}

// VerifyInclusionProof replays a proof with explicit sides. A non-empty
// expectedRoot must also match the proof's root.
func VerifyInclusionProof(proof InclusionProof, expectedRoot string) bool {
	if expectedRoot != "" && !strings.EqualFold(proof.MerkleRoot, expectedRoot) {
		return false
	}
	current, err := hex.DecodeString(proof.LeafHash)
	if err != nil {
		return false
	}
	for _, step := range proof.ProofPath {
		sib, err := hex.DecodeString(step.SiblingHash)
		if err != nil {
			return false
		}
		switch step.Side {
		case SideLeft:
			current = NodeHash(sib, current)
		case SideRight:
			current = NodeHash(current, sib)
		default:
			return false
		}
	}
	return strings.EqualFold(hex.EncodeToString(current), proof.MerkleRoot)
}

// VerifyInclusion replays a transparency-log proof. Sides are derived from
// the leaf index and tree size: a promoted node consumes no path element,
// and every element must be consumed.
func VerifyInclusion(p contracts.TLInclusionProof) bool {
	if p.TreeSize <= 0 || p.LeafIndex < 0 || p.LeafIndex >= p.TreeSize {
		return false
	}
	current, err := hex.DecodeString(p.LeafHash)
	if err != nil {
		return false
	}

	idx, size, used := p.LeafIndex, p.TreeSize, 0
	for size > 1 {
		switch {
		case idx%2 == 1:
			sib, ok := pathElem(p.Proof, used)
			if !ok {
				return false
			}
			used++
			current = NodeHash(sib, current)
		case idx+1 < size:
			sib, ok := pathElem(p.Proof, used)
			if !ok {
				return false
			}
			used++
			current = NodeHash(current, sib)
		}
		idx /= 2
		size = (size + 1) / 2
	}
	if used != len(p.Proof) {
		return false
	}
	return strings.EqualFold(hex.EncodeToString(current), p.Root)
}

func pathElem(path []string, i int) ([]byte, bool) {
	if i >= len(path) {
		return nil, false
	}
	b, err := hex.DecodeString(path[i])
	if err != nil {
		return nil, false
	}
	return b, true
}
