package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"godown-ledger/internal/audit"
	godown "godown-ledger/internal/godown/domain"
)

// OpeningBalanceResolver resolves opening balances for a (bin, date) pair and
// maintains operator-entered snapshots.
type OpeningBalanceResolver struct {
	snapshots SnapshotRepository
	movements MovementSource
	auditLog  audit.Logger
	bins      BinChecker
	uow       UnitOfWork
	clock     Clock
}

// NewOpeningBalanceResolver constructs a resolver. A nil clock defaults to
// the system clock.
func NewOpeningBalanceResolver(
	snapshots SnapshotRepository,
	movements MovementSource,
	auditLog audit.Logger,
	bins BinChecker,
	uow UnitOfWork,
	clock Clock,
) (*OpeningBalanceResolver, error) {
	if snapshots == nil {
		return nil, errors.New("opening balance resolver: nil snapshot repository")
	}
	if movements == nil {
		return nil, errors.New("opening balance resolver: nil movement source")
	}
	if auditLog == nil {
		return nil, errors.New("opening balance resolver: nil audit logger")
	}
	if bins == nil {
		return nil, errors.New("opening balance resolver: nil bin checker")
	}
	if uow == nil {
		return nil, errors.New("opening balance resolver: nil unit of work")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &OpeningBalanceResolver{
		snapshots: snapshots,
		movements: movements,
		auditLog:  auditLog,
		bins:      bins,
		uow:       uow,
		clock:     clock,
	}, nil
}

// Resolve determines the opening balance of a bin at the start of the given
// day. Resolution order: an exact snapshot at the date; else the latest prior
// snapshot rolled forward by the movement delta over [snapshot date, date);
// else the full movement history before the date.
func (r *OpeningBalanceResolver) Resolve(ctx context.Context, binID int64, date time.Time) (godown.ResolvedBalance, error) {
	if binID <= 0 {
		return godown.ResolvedBalance{}, godown.ErrInvalidBinID
	}
	if date.IsZero() {
		return godown.ResolvedBalance{}, godown.ErrInvalidDate
	}
	day := godown.Day(date)

	exact, err := r.snapshots.FindByBinAndDate(ctx, binID, day)
	if err != nil {
		return godown.ResolvedBalance{}, fmt.Errorf("find snapshot: %w", err)
	}
	if exact != nil {
		return godown.ResolvedBalance{
			BinID:    binID,
			Date:     day,
			Quantity: exact.Quantity,
			IsManual: exact.IsManual,
			Source:   godown.SourceExactMatch,
		}, nil
	}

	prior, err := r.snapshots.FindLatestBefore(ctx, binID, day)
	if err != nil {
		return godown.ResolvedBalance{}, fmt.Errorf("find prior snapshot: %w", err)
	}
	if prior != nil {
		delta, err := r.netDelta(ctx, binID, &prior.Date, day)
		if err != nil {
			return godown.ResolvedBalance{}, err
		}
		return godown.ResolvedBalance{
			BinID:    binID,
			Date:     day,
			Quantity: prior.Quantity.Add(delta),
			Source:   godown.SourceCalculatedFromSnapshot,
		}, nil
	}

	delta, err := r.netDelta(ctx, binID, nil, day)
	if err != nil {
		return godown.ResolvedBalance{}, err
	}
	return godown.ResolvedBalance{
		BinID:    binID,
		Date:     day,
		Quantity: delta,
		Source:   godown.SourceCalculatedFromStart,
	}, nil
}

// netDelta sums the signed effects of approved movements over [from, before).
// The movement source works in inclusive calendar days, so the exclusive
// upper bound becomes the preceding day.
func (r *OpeningBalanceResolver) netDelta(ctx context.Context, binID int64, from *time.Time, before time.Time) (godown.Quantity, error) {
	upper := godown.Day(before).AddDate(0, 0, -1)
	movements, err := r.movements.ListForBin(ctx, binID, from, &upper)
	if err != nil {
		return godown.Quantity{}, fmt.Errorf("list movements: %w", err)
	}

	delta := godown.ZeroQuantity()
	for _, movement := range movements {
		delta = delta.Add(movement.EffectOn(binID))
	}
	return delta, nil
}

// SetOpeningBalanceCommand is the operator request to anchor a balance.
type SetOpeningBalanceCommand struct {
	BinID     int64
	Date      time.Time
	Bags      int64
	NetWeight decimal.Decimal
	Actor     string
	Remarks   string
}

// SnapshotResult reports the outcome of a snapshot write.
type SnapshotResult struct {
	Snapshot godown.OpeningSnapshot `json:"snapshot"`
	Created  bool                   `json:"created"`
}

// SetOpeningBalance upserts a manual snapshot for (bin, date) and records one
// opening_balance audit entry capturing the previous and new values. The
// snapshot write and the audit write commit atomically.
func (r *OpeningBalanceResolver) SetOpeningBalance(ctx context.Context, cmd SetOpeningBalanceCommand) (SnapshotResult, error) {
	snapshot := godown.OpeningSnapshot{
		BinID:     cmd.BinID,
		Date:      godown.Day(cmd.Date),
		Quantity:  godown.NewQuantity(cmd.Bags, cmd.NetWeight),
		IsManual:  true,
		Remarks:   cmd.Remarks,
		CreatedBy: cmd.Actor,
	}
	if err := snapshot.Validate(); err != nil {
		return SnapshotResult{}, err
	}

	exists, err := r.bins.BinExists(ctx, cmd.BinID)
	if err != nil {
		return SnapshotResult{}, fmt.Errorf("check bin: %w", err)
	}
	if !exists {
		return SnapshotResult{}, godown.ErrBinNotFound
	}

	now := r.clock.Now().UTC()
	snapshot.CreatedAt = now
	snapshot.UpdatedAt = now

	var result SnapshotResult
	err = r.uow.WithinTx(ctx, func(ctx context.Context) error {
		prior, err := r.snapshots.FindByBinAndDate(ctx, cmd.BinID, snapshot.Date)
		if err != nil {
			return fmt.Errorf("find prior snapshot: %w", err)
		}

		created, err := r.snapshots.Upsert(ctx, snapshot)
		if err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}

		entry := audit.Entry{
			ID:          audit.NewID(),
			BinID:       cmd.BinID,
			Action:      audit.ActionOpeningBalance,
			NewBalance:  toAuditBalance(snapshot.Quantity),
			PerformedBy: cmd.Actor,
			PerformedAt: now,
			Remarks:     cmd.Remarks,
			Metadata: audit.MetadataJSON(map[string]any{
				"date":    snapshot.Date.Format(dateLayout),
				"created": created,
			}),
		}
		if prior != nil {
			previous := toAuditBalance(prior.Quantity)
			entry.PreviousBalance = &previous
		}
		if err := r.auditLog.Append(ctx, entry); err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}

		result = SnapshotResult{Snapshot: snapshot, Created: created}
		return nil
	})
	if err != nil {
		return SnapshotResult{}, err
	}
	return result, nil
}

const dateLayout = "2006-01-02"

func toAuditBalance(q godown.Quantity) audit.Balance {
	return audit.Balance{Bags: q.Bags, NetWeight: q.NetWeight}
}
