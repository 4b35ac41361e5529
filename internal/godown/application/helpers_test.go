package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"godown-ledger/internal/audit"
	"godown-ledger/internal/godown/application"
	godown "godown-ledger/internal/godown/domain"
	"godown-ledger/internal/godown/infrastructure/memory"
)

var baseDate = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return baseDate.AddDate(0, 0, n-1)
}

func binRef(id int64) *int64 { return &id }

func inbound(id int64, dayN int, bags int64, kg float64, binID int64) godown.Movement {
	return godown.Movement{
		ID:               id,
		Date:             day(dayN),
		CreatedAt:        baseDate.Add(time.Duration(id) * time.Minute),
		Quantity:         godown.QuantityFromFloat(bags, kg),
		DestinationBinID: binRef(binID),
		Status:           godown.MovementStatusApproved,
	}
}

func outbound(id int64, dayN int, bags int64, kg float64, binID int64) godown.Movement {
	return godown.Movement{
		ID:          id,
		Date:        day(dayN),
		CreatedAt:   baseDate.Add(time.Duration(id) * time.Minute),
		Quantity:    godown.QuantityFromFloat(bags, kg),
		SourceBinID: binRef(binID),
		Status:      godown.MovementStatusApproved,
	}
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// failingAuditLog writes through to the recorder for the first failAfter
// appends, then fails every later one. failAfter 0 fails immediately.
type failingAuditLog struct {
	recorder  *memory.AuditRecorder
	failAfter int
	appended  int
}

func (f *failingAuditLog) Append(ctx context.Context, entry audit.Entry) error {
	if f.appended >= f.failAfter {
		return errors.New("audit store unavailable")
	}
	f.appended++
	return f.recorder.Append(ctx, entry)
}

type fixture struct {
	movements *memory.MovementStore
	snapshots *memory.SnapshotStore
	recorder  *memory.AuditRecorder
	bins      *memory.BinRegistry
	resolver  *application.OpeningBalanceResolver
	processor *application.LedgerProcessor
	clock     fixedClock
}

// newFixture wires the application services against the in-memory stores.
// A nil auditLog means the plain recorder.
func newFixture(t *testing.T, auditLog audit.Logger) *fixture {
	t.Helper()

	f := &fixture{
		movements: memory.NewMovementStore(),
		snapshots: memory.NewSnapshotStore(),
		recorder:  memory.NewAuditRecorder(),
		bins:      memory.NewBinRegistry(1, 2, 3, 7),
		clock:     fixedClock{now: day(30)},
	}
	if auditLog == nil {
		auditLog = f.recorder
	}
	uow := memory.NewUnitOfWork(f.snapshots, f.recorder)

	resolver, err := application.NewOpeningBalanceResolver(
		f.snapshots, f.movements, auditLog, f.bins, uow, f.clock)
	if err != nil {
		t.Fatalf("wire resolver: %v", err)
	}
	f.resolver = resolver

	processor, err := application.NewLedgerProcessor(
		f.movements, resolver, f.snapshots, auditLog, uow, f.clock)
	if err != nil {
		t.Fatalf("wire processor: %v", err)
	}
	f.processor = processor
	return f
}

func mustUpsertSnapshot(t *testing.T, store *memory.SnapshotStore, snapshot godown.OpeningSnapshot) {
	t.Helper()
	if _, err := store.Upsert(context.Background(), snapshot); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
}

func assertQuantity(t *testing.T, want, got godown.Quantity) {
	t.Helper()
	if want.Bags != got.Bags {
		t.Errorf("bags: want %d, got %d", want.Bags, got.Bags)
	}
	if !want.NetWeight.Equal(got.NetWeight) {
		t.Errorf("net weight: want %s, got %s", want.NetWeight, got.NetWeight)
	}
}
