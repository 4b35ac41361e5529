package memory

import (
	"context"
	"sync"
	"time"

	godown "godown-ledger/internal/godown/domain"
)

// MovementStore is an in-memory movement source for tests and tools.
type MovementStore struct {
	mu        sync.RWMutex
	movements []godown.Movement
}

// NewMovementStore constructs an empty store.
func NewMovementStore() *MovementStore {
	return &MovementStore{}
}

// Add appends movement records.
func (s *MovementStore) Add(movements ...godown.Movement) {
	s.mu.Lock()
	s.movements = append(s.movements, movements...)
	s.mu.Unlock()
}

// ListForBin returns approved movements touching the bin within the inclusive
// day range, in chronological order.
func (s *MovementStore) ListForBin(ctx context.Context, binID int64, from, to *time.Time) ([]godown.Movement, error) {
	_ = ctx
	if binID <= 0 {
		return nil, godown.ErrInvalidBinID
	}

	s.mu.RLock()
	var matched []godown.Movement
	for _, movement := range s.movements {
		if movement.Status != godown.MovementStatusApproved {
			continue
		}
		if !movement.Touches(binID) {
			continue
		}
		day := godown.Day(movement.Date)
		if from != nil && day.Before(godown.Day(*from)) {
			continue
		}
		if to != nil && day.After(godown.Day(*to)) {
			continue
		}
		matched = append(matched, movement)
	}
	s.mu.RUnlock()

	return godown.SortChronological(matched), nil
}
