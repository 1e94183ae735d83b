package registry

import (
	"context"
	"sync"
)

// Cell lazily loads a violation registry. Concurrent first callers share
// one load; a successful result is kept for the life of the cell and a
// failed load is retried on the next call.
type Cell struct {
	mu   sync.Mutex
	reg  *ViolationRegistry
	load func(ctx context.Context) (*ViolationRegistry, error)
}

func NewCell(p Provider, version string) *Cell {
	return &Cell{load: func(ctx context.Context) (*ViolationRegistry, error) {
		return LoadViolationRegistry(ctx, p, version)
	}}
}

func (c *Cell) Get(ctx context.Context) (*ViolationRegistry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reg != nil {
		return c.reg, nil
	}
	reg, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	c.reg = reg
	return reg, nil
}

var (
	processMu    sync.Mutex
	processCells = map[string]*Cell{}
)

// Process returns the process-wide cell for the file system registry at
// root. The cell is owned by the hosting process and lives until it exits.
func Process(root, version string) *Cell {
	if version == "" {
		version = DefaultVersion
	}
	key := root + "\x00" + version
	processMu.Lock()
	defer processMu.Unlock()
	c, ok := processCells[key]
	if !ok {
		c = NewCell(NewFSProvider(root), version)
		processCells[key] = c
	}
	return c
}
