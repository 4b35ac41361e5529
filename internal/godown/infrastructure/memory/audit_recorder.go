package memory

import (
	"context"
	"sync"

	"godown-ledger/internal/audit"
)

// AuditRecorder is an in-memory append-only audit sink.
type AuditRecorder struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

// NewAuditRecorder constructs an empty recorder.
func NewAuditRecorder() *AuditRecorder {
	return &AuditRecorder{}
}

// Append records one entry.
func (r *AuditRecorder) Append(ctx context.Context, entry audit.Entry) error {
	_ = ctx
	if entry.ID == "" {
		entry.ID = audit.NewID()
	}
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return nil
}

// Entries returns a copy of everything recorded so far.
func (r *AuditRecorder) Entries() []audit.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	copied := make([]audit.Entry, len(r.entries))
	copy(copied, r.entries)
	return copied
}

// ByAction returns recorded entries with the given action.
func (r *AuditRecorder) ByAction(action audit.Action) []audit.Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []audit.Entry
	for _, entry := range r.entries {
		if entry.Action == action {
			matched = append(matched, entry)
		}
	}
	return matched
}

func (r *AuditRecorder) captureState() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	copied := make([]audit.Entry, len(r.entries))
	copy(copied, r.entries)
	return copied
}

func (r *AuditRecorder) restoreState(state any) {
	entries, ok := state.([]audit.Entry)
	if !ok {
		return
	}
	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()
}
