// Package tlog is an append-only transparency log over canonical events.
// Each leaf stores sha256(canonical_event); the log root and inclusion
// proofs come from pkg/merkle.
package tlog

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mindburn-Labs/immuva/pkg/canonicalize"
	"github.com/Mindburn-Labs/immuva/pkg/contracts"
	"github.com/Mindburn-Labs/immuva/pkg/merkle"
)

type Log struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

func New(store Store) *Log {
	return &Log{
		store:  store,
		now:    time.Now,
		logger: slog.Default().With("component", "tlog"),
	}
}

// Append records sha256(canonicalEvent) as the next leaf.
func (l *Log) Append(ctx context.Context, canonicalEvent string) (contracts.TLLeaf, error) {
	e, err := l.store.Append(ctx, canonicalize.SHA256Hex(canonicalEvent))
	if err != nil {
		return contracts.TLLeaf{}, err
	}
	l.logger.DebugContext(ctx, "tlog append", "leaf_index", e.LeafIndex, "payload_hash", e.PayloadHash)
	return contracts.TLLeaf{LeafIndex: e.LeafIndex, PayloadHash: e.PayloadHash}, nil
}

// Leaves returns every leaf in index order.
func (l *Log) Leaves(ctx context.Context) ([]contracts.TLLeaf, error) {
	entries, err := l.store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]contracts.TLLeaf, len(entries))
	for i, e := range entries {
		out[i] = contracts.TLLeaf{LeafIndex: e.LeafIndex, PayloadHash: e.PayloadHash}
	}
	return out, nil
}

// Root snapshots the current head of the log.
func (l *Log) Root(ctx context.Context) (contracts.TLRoot, error) {
	tree, err := l.tree(ctx)
	if err != nil {
		return contracts.TLRoot{}, err
	}
	return contracts.TLRoot{
		Root:        tree.RootHex(),
		TreeSize:    tree.Size(),
		GeneratedAt: l.now().UTC().Format(time.RFC3339),
	}, nil
}

// Prove issues an inclusion proof for the leaf at index against the
// current head.
func (l *Log) Prove(ctx context.Context, index int) (contracts.TLInclusionProof, error) {
	tree, err := l.tree(ctx)
	if err != nil {
		return contracts.TLInclusionProof{}, err
	}
	p, err := tree.Prove(index)
	if err != nil {
		return contracts.TLInclusionProof{}, fmt.Errorf("tlog: %w", err)
	}
	return p.TL(), nil
}

func (l *Log) tree(ctx context.Context) (*merkle.Tree, error) {
	entries, err := l.store.Entries(ctx)
	if err != nil {
		return nil, err
	}
	payloads := make([][]byte, len(entries))
	for i, e := range entries {
		if e.LeafIndex != i {
			return nil, fmt.Errorf("tlog: gap at leaf %d (found %d)", i, e.LeafIndex)
		}
		b, err := hex.DecodeString(e.PayloadHash)
		if err != nil {
			return nil, fmt.Errorf("tlog: leaf %d: bad payload hash: %w", i, err)
		}
		payloads[i] = b
	}
	return merkle.Build(payloads), nil
}
