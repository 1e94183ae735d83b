// Package merkle implements the transparency-log Merkle tree: SHA-256
// leaves, pairwise SHA-256 interior nodes, and RFC 6962 style promotion of
// an unpaired trailing node.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrLeafIndexOutOfRange is returned when proving a leaf the tree lacks.
var ErrLeafIndexOutOfRange = errors.New("merkle: leaf index out of range")

// LeafHash is sha256(payload).
func LeafHash(payload []byte) []byte {
	h := sha256.Sum256(payload)
	return h[:]
}

// NodeHash is sha256(left || right).
func NodeHash(left, right []byte) []byte {
	buf := make([]byte, 0, len(left)+len(right))
	buf = append(buf, left...)
	buf = append(buf, right...)
	h := sha256.Sum256(buf)
	return h[:]
}

// EmptyRoot is the root of a tree with no leaves: sha256 of empty input.
func EmptyRoot() []byte {
	return LeafHash(nil)
}

// Tree keeps every level so inclusion proofs can be read off directly.
// Levels[0] holds the leaf hashes; the last level holds the root.
type Tree struct {
	Levels [][][]byte
}

// Build hashes each payload into a leaf and builds the tree.
func Build(payloads [][]byte) *Tree {
	leaves := make([][]byte, len(payloads))
	for i, p := range payloads {
		leaves[i] = LeafHash(p)
	}
	return BuildFromLeafHashes(leaves)
}

// BuildFromLeafHashes builds a tree over already-hashed leaves.
func BuildFromLeafHashes(leaves [][]byte) *Tree {
	t := &Tree{}
	if len(leaves) == 0 {
		return t
	}
	level := leaves
	t.Levels = append(t.Levels, level)
	for len(level) > 1 {
		level = buildNextLevel(level)
		t.Levels = append(t.Levels, level)
	}
	return t
}

func buildNextLevel(level [][]byte) [][]byte {
	next := make([][]byte, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		if i+1 < len(level) {
			next = append(next, NodeHash(level[i], level[i+1]))
		} else {
			// Odd node is promoted unchanged, never duplicated.
			next = append(next, level[i])
		}
	}
	return next
}

// Size is the number of leaves.
func (t *Tree) Size() int {
	if len(t.Levels) == 0 {
		return 0
	}
	return len(t.Levels[0])
}

// Root returns the tree root, or EmptyRoot for an empty tree.
func (t *Tree) Root() []byte {
	if len(t.Levels) == 0 {
		return EmptyRoot()
	}
	return t.Levels[len(t.Levels)-1][0]
}

// RootHex is Root in lowercase hex.
func (t *Tree) RootHex() string {
	return hex.EncodeToString(t.Root())
}

// Root computes the root of a payload list without keeping the levels.
func Root(payloads [][]byte) []byte {
	return Build(payloads).Root()
}

// Prove returns the inclusion proof for the leaf at index.
func (t *Tree) Prove(index int) (*InclusionProof, error) {
	size := t.Size()
	if index < 0 || index >= size {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrLeafIndexOutOfRange, index, size)
	}

	proof := &InclusionProof{
		LeafIndex:  index,
		TreeSize:   size,
		LeafHash:   hex.EncodeToString(t.Levels[0][index]),
		MerkleRoot: t.RootHex(),
	}
	idx := index
	for _, level := range t.Levels[:len(t.Levels)-1] {
		switch {
		case idx%2 == 1:
			proof.ProofPath = append(proof.ProofPath, ProofStep{Side: SideLeft, SiblingHash: hex.EncodeToString(level[idx-1])})
		case idx+1 < len(level):
			proof.ProofPath = append(proof.ProofPath, ProofStep{Side: SideRight, SiblingHash: hex.EncodeToString(level[idx+1])})
		}
		idx /= 2
	}
	return proof, nil
}

// Equal compares two hashes.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}
