package application

import (
	"context"
	"time"

	godown "godown-ledger/internal/godown/domain"
)

// MovementSource loads approved movements touching a bin. Both range bounds
// are inclusive calendar days; a nil bound leaves that side open. Results come
// back ordered (date asc, created_at asc), though consumers re-sort anyway.
type MovementSource interface {
	ListForBin(ctx context.Context, binID int64, from, to *time.Time) ([]godown.Movement, error)
}

// SnapshotRepository persists opening-balance snapshots keyed by (bin, date).
// Lookups return (nil, nil) when no snapshot matches.
type SnapshotRepository interface {
	FindByBinAndDate(ctx context.Context, binID int64, date time.Time) (*godown.OpeningSnapshot, error)
	FindLatestBefore(ctx context.Context, binID int64, date time.Time) (*godown.OpeningSnapshot, error)
	Upsert(ctx context.Context, snapshot godown.OpeningSnapshot) (created bool, err error)
}

// BinChecker answers whether a bin exists.
type BinChecker interface {
	BinExists(ctx context.Context, binID int64) (bool, error)
}

// UnitOfWork runs fn inside one atomic transactional scope. When the context
// already carries a transaction (supplied by an outer caller) the work joins
// it; otherwise the unit of work opens its own and commits or rolls back
// around fn.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
