package memory

import (
	"context"
	"sync"
)

// BinRegistry is an in-memory bin existence checker.
type BinRegistry struct {
	mu   sync.RWMutex
	bins map[int64]struct{}
}

// NewBinRegistry constructs a registry containing the given bin ids.
func NewBinRegistry(binIDs ...int64) *BinRegistry {
	registry := &BinRegistry{bins: make(map[int64]struct{}, len(binIDs))}
	for _, id := range binIDs {
		registry.bins[id] = struct{}{}
	}
	return registry
}

// Register adds a bin id.
func (r *BinRegistry) Register(binID int64) {
	r.mu.Lock()
	r.bins[binID] = struct{}{}
	r.mu.Unlock()
}

// BinExists reports whether the bin id is registered.
func (r *BinRegistry) BinExists(ctx context.Context, binID int64) (bool, error) {
	_ = ctx
	r.mu.RLock()
	_, ok := r.bins[binID]
	r.mu.RUnlock()
	return ok, nil
}
