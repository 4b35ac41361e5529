package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	godown "godown-ledger/internal/godown/domain"
)

const dayKeyLayout = "20060102"

// SnapshotStore is an in-memory snapshot repository keyed by (bin, day).
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]godown.OpeningSnapshot
}

// NewSnapshotStore constructs an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{data: make(map[string]godown.OpeningSnapshot)}
}

func snapshotKey(binID int64, date time.Time) string {
	return fmt.Sprintf("%d|%s", binID, godown.Day(date).Format(dayKeyLayout))
}

// FindByBinAndDate loads the snapshot at exactly (bin, date), or (nil, nil).
func (s *SnapshotStore) FindByBinAndDate(ctx context.Context, binID int64, date time.Time) (*godown.OpeningSnapshot, error) {
	_ = ctx
	s.mu.RLock()
	snapshot, ok := s.data[snapshotKey(binID, date)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &snapshot, nil
}

// FindLatestBefore loads the latest snapshot strictly before date, or (nil, nil).
func (s *SnapshotStore) FindLatestBefore(ctx context.Context, binID int64, date time.Time) (*godown.OpeningSnapshot, error) {
	_ = ctx
	day := godown.Day(date)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *godown.OpeningSnapshot
	for _, snapshot := range s.data {
		if snapshot.BinID != binID || !snapshot.Date.Before(day) {
			continue
		}
		if latest == nil || snapshot.Date.After(latest.Date) {
			found := snapshot
			latest = &found
		}
	}
	return latest, nil
}

// Upsert writes the snapshot and reports whether it was newly created.
func (s *SnapshotStore) Upsert(ctx context.Context, snapshot godown.OpeningSnapshot) (bool, error) {
	_ = ctx
	if err := snapshot.Validate(); err != nil {
		return false, err
	}
	snapshot.Date = godown.Day(snapshot.Date)
	key := snapshotKey(snapshot.BinID, snapshot.Date)

	s.mu.Lock()
	_, existed := s.data[key]
	s.data[key] = snapshot
	s.mu.Unlock()
	return !existed, nil
}

// Len returns the number of stored snapshots, for test assertions.
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *SnapshotStore) captureState() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make(map[string]godown.OpeningSnapshot, len(s.data))
	for key, snapshot := range s.data {
		copied[key] = snapshot
	}
	return copied
}

func (s *SnapshotStore) restoreState(state any) {
	data, ok := state.(map[string]godown.OpeningSnapshot)
	if !ok {
		return
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
}
