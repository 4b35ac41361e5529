package application_test

import (
	"context"
	"errors"
	"testing"

	"godown-ledger/internal/audit"
	"godown-ledger/internal/godown/application"
	godown "godown-ledger/internal/godown/domain"
)

func TestProcessChronologically_Summary(t *testing.T) {
	f := newFixture(t, nil)
	const binID = int64(3)
	f.movements.Add(
		inbound(1, 1, 100, 10000, binID),
		outbound(2, 2, 30, 3000, binID),
		inbound(3, 3, 20, 2000, binID),
	)

	from := day(1)
	result, err := f.processor.ProcessChronologically(context.Background(), binID,
		application.ProcessOptions{From: &from})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.MovementCount != 3 {
		t.Errorf("movement count: want 3, got %d", result.MovementCount)
	}
	if len(result.Inward) != 2 || len(result.Outward) != 1 {
		t.Errorf("partition: want 2 inward / 1 outward, got %d / %d",
			len(result.Inward), len(result.Outward))
	}

	summary := result.Summary
	assertQuantity(t, godown.ZeroQuantity(), summary.Opening)
	if summary.Inward.Bags != 120 || summary.Inward.Count != 2 {
		t.Errorf("inward: got %+v", summary.Inward)
	}
	if summary.Outward.Bags != 30 || summary.Outward.Count != 1 {
		t.Errorf("outward: got %+v", summary.Outward)
	}
	assertQuantity(t, godown.QuantityFromFloat(90, 9000), summary.NetMovement)
	assertQuantity(t, godown.QuantityFromFloat(90, 9000), summary.Closing)

	if !result.Validation.IsValid {
		t.Errorf("validation: expected clean run, got %+v", result.Validation.Errors)
	}
	if !result.GeneratedAt.Equal(f.clock.Now().UTC()) {
		t.Errorf("generated at: want %s, got %s", f.clock.Now().UTC(), result.GeneratedAt)
	}
}

func TestProcessChronologically_ReportsNegativeInsteadOfFailing(t *testing.T) {
	f := newFixture(t, nil)
	const binID = int64(3)
	mustUpsertSnapshot(t, f.snapshots, godown.OpeningSnapshot{
		BinID:    binID,
		Date:     day(1),
		Quantity: godown.QuantityFromFloat(5, 500),
		IsManual: true,
	})
	f.movements.Add(outbound(11, 2, 10, 1000, binID))

	from := day(1)
	result, err := f.processor.ProcessChronologically(context.Background(), binID,
		application.ProcessOptions{From: &from})
	if err != nil {
		t.Fatalf("data problems must be reported, not returned: %v", err)
	}

	if result.Opening.Source != godown.SourceExactMatch {
		t.Errorf("opening source: want %s, got %s", godown.SourceExactMatch, result.Opening.Source)
	}
	assertQuantity(t, godown.QuantityFromFloat(-5, -500), result.Summary.Closing)

	if result.Validation.IsValid {
		t.Fatal("validation must flag the negative balance")
	}
	if len(result.Validation.Errors) != 1 {
		t.Fatalf("validation errors: want 1, got %d", len(result.Validation.Errors))
	}
	finding := result.Validation.Errors[0]
	if finding.Code != godown.FindingNegativeBalance {
		t.Errorf("finding code: want %s, got %s", godown.FindingNegativeBalance, finding.Code)
	}
	if len(finding.MovementIDs) != 1 || finding.MovementIDs[0] != 11 {
		t.Errorf("finding movement ids: got %v", finding.MovementIDs)
	}
	if len(result.ReplayWarnings) != 1 {
		t.Errorf("replay warnings: want 1, got %d", len(result.ReplayWarnings))
	}
}

func TestProcessChronologically_AnomalyScanOptIn(t *testing.T) {
	f := newFixture(t, nil)
	const binID = int64(3)
	// 500 kg in a single bag is far outside the plausible density band.
	f.movements.Add(inbound(1, 1, 1, 500, binID))

	result, err := f.processor.ProcessChronologically(context.Background(), binID,
		application.ProcessOptions{})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(result.Anomalies) != 0 {
		t.Fatalf("scan must be opt-in, got %d anomalies", len(result.Anomalies))
	}

	result, err = f.processor.ProcessChronologically(context.Background(), binID,
		application.ProcessOptions{DetectAnomalies: true})
	if err != nil {
		t.Fatalf("process with scan: %v", err)
	}
	if len(result.Anomalies) != 1 {
		t.Fatalf("anomalies: want 1, got %d", len(result.Anomalies))
	}
	anomaly := result.Anomalies[0]
	if anomaly.Kind != godown.AnomalyImplausibleDensity || anomaly.Severity != godown.SeverityMedium {
		t.Errorf("anomaly: got kind %s severity %s", anomaly.Kind, anomaly.Severity)
	}

	// Per-run bounds override the processor defaults.
	relaxed := godown.AnomalyBounds{MinKgPerBag: 1, MaxKgPerBag: 1000, MaxStepKg: 100000}
	result, err = f.processor.ProcessChronologically(context.Background(), binID,
		application.ProcessOptions{DetectAnomalies: true, Bounds: &relaxed})
	if err != nil {
		t.Fatalf("process with relaxed bounds: %v", err)
	}
	if len(result.Anomalies) != 0 {
		t.Errorf("relaxed bounds: want no anomalies, got %d", len(result.Anomalies))
	}
}

func TestProcessChronologically_InvalidBin(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.processor.ProcessChronologically(context.Background(), 0,
		application.ProcessOptions{}); !errors.Is(err, godown.ErrInvalidBinID) {
		t.Errorf("want ErrInvalidBinID, got %v", err)
	}
}

func TestReprocessFromDate_WritesOneRecalculationEntry(t *testing.T) {
	f := newFixture(t, nil)
	const binID = int64(7)
	f.movements.Add(
		inbound(1, 1, 100, 10000, binID),
		outbound(2, 2, 30, 3000, binID),
	)

	result, err := f.processor.ReprocessFromDate(context.Background(), binID, day(1), "auditor",
		application.ProcessOptions{})
	if err != nil {
		t.Fatalf("reprocess: %v", err)
	}

	assertQuantity(t, godown.QuantityFromFloat(70, 7000), result.Processing.Summary.Closing)
	if !result.SnapshotWritten {
		t.Error("a derived opening must be persisted as a snapshot")
	}
	if got := f.snapshots.Len(); got != 1 {
		t.Fatalf("snapshot count: want 1, got %d", got)
	}

	snapshot, err := f.snapshots.FindByBinAndDate(context.Background(), binID, day(1))
	if err != nil || snapshot == nil {
		t.Fatalf("derived snapshot missing: %v", err)
	}
	if snapshot.IsManual {
		t.Error("derived snapshot must not be marked manual")
	}

	entries := f.recorder.ByAction(audit.ActionRecalculation)
	if len(entries) != 1 {
		t.Fatalf("recalculation entries: want exactly 1, got %d", len(entries))
	}
	entry := entries[0]
	if entry.ID != result.AuditEntryID {
		t.Errorf("audit entry id: want %s, got %s", result.AuditEntryID, entry.ID)
	}
	if entry.PreviousBalance == nil || entry.PreviousBalance.Bags != 0 {
		t.Errorf("previous balance: got %+v", entry.PreviousBalance)
	}
	if entry.NewBalance.Bags != 70 {
		t.Errorf("new balance bags: want 70, got %d", entry.NewBalance.Bags)
	}
	if entry.PerformedBy != "auditor" {
		t.Errorf("performed by: got %q", entry.PerformedBy)
	}

	// The derived snapshot now anchors later resolutions.
	resolved, err := f.resolver.Resolve(context.Background(), binID, day(1))
	if err != nil {
		t.Fatalf("resolve after reprocess: %v", err)
	}
	if resolved.Source != godown.SourceExactMatch {
		t.Errorf("post-reprocess source: want %s, got %s", godown.SourceExactMatch, resolved.Source)
	}
}

func TestReprocessFromDate_SkipsSnapshotOnExactMatch(t *testing.T) {
	f := newFixture(t, nil)
	const binID = int64(7)
	mustUpsertSnapshot(t, f.snapshots, godown.OpeningSnapshot{
		BinID:    binID,
		Date:     day(1),
		Quantity: godown.QuantityFromFloat(10, 1000),
		IsManual: true,
	})
	f.movements.Add(inbound(1, 2, 5, 500, binID))

	result, err := f.processor.ReprocessFromDate(context.Background(), binID, day(1), "auditor",
		application.ProcessOptions{})
	if err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	if result.SnapshotWritten {
		t.Error("an exact-match opening needs no derived snapshot")
	}
	if got := f.snapshots.Len(); got != 1 {
		t.Errorf("snapshot count: want the manual one only, got %d", got)
	}
	assertQuantity(t, godown.QuantityFromFloat(15, 1500), result.Processing.Summary.Closing)
}

func TestReprocessFromDate_RollsBackOnAuditFailure(t *testing.T) {
	f := newFixture(t, &failingAuditLog{})
	const binID = int64(7)
	f.movements.Add(inbound(1, 1, 100, 10000, binID))

	_, err := f.processor.ReprocessFromDate(context.Background(), binID, day(1), "auditor",
		application.ProcessOptions{})
	if err == nil {
		t.Fatal("expected the audit failure to surface")
	}
	if got := f.snapshots.Len(); got != 0 {
		t.Errorf("derived snapshot must roll back, found %d", got)
	}
	if got := len(f.recorder.Entries()); got != 0 {
		t.Errorf("audit log must stay empty, found %d entries", got)
	}
}

func TestReprocessFromDate_RequiresActor(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.processor.ReprocessFromDate(context.Background(), 7, day(1), "",
		application.ProcessOptions{}); err == nil {
		t.Fatal("expected an error for the missing actor")
	}
}

func TestBatchProcessTransactions_Defaults(t *testing.T) {
	f := newFixture(t, nil)
	const binID = int64(2)
	movements := []godown.Movement{
		outbound(2, 2, 3, 300, binID),
		inbound(1, 1, 10, 1000, binID),
	}

	result, err := f.processor.BatchProcessTransactions(context.Background(), movements, binID,
		godown.ZeroQuantity(), "importer", application.BatchOptions{})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	if result.Processed != 2 {
		t.Errorf("processed: want 2, got %d", result.Processed)
	}
	if len(result.Errors) != 0 {
		t.Errorf("errors: want none, got %v", result.Errors)
	}
	assertQuantity(t, godown.QuantityFromFloat(7, 700), result.Final)

	// The batch replays in chronological order regardless of input order.
	if result.Entries[0].Movement.ID != 1 || result.Entries[1].Movement.ID != 2 {
		t.Errorf("entry order: got %d, %d", result.Entries[0].Movement.ID, result.Entries[1].Movement.ID)
	}

	entries := f.recorder.ByAction(audit.ActionTransaction)
	if len(entries) != 2 {
		t.Fatalf("transaction audit entries: want 2, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.MovementID == nil {
			t.Error("transaction entries must reference their movement")
		}
	}
}

func TestBatchProcessTransactions_StrictModeAborts(t *testing.T) {
	f := newFixture(t, nil)
	const binID = int64(2)
	movements := []godown.Movement{
		inbound(1, 1, 1, 100, binID),
		outbound(2, 2, 100, 10000, binID),
	}

	_, err := f.processor.BatchProcessTransactions(context.Background(), movements, binID,
		godown.QuantityFromFloat(5, 500), "importer", application.BatchOptions{StrictMode: true})
	if !errors.Is(err, godown.ErrNegativeBalance) {
		t.Fatalf("want ErrNegativeBalance, got %v", err)
	}
	if got := len(f.recorder.Entries()); got != 0 {
		t.Errorf("abort must roll back earlier audit entries, found %d", got)
	}
}

func TestBatchProcessTransactions_CollectsFailuresAndContinues(t *testing.T) {
	auditLog := &failingAuditLog{failAfter: 1}
	f := newFixture(t, auditLog)
	auditLog.recorder = f.recorder
	const binID = int64(2)
	movements := []godown.Movement{
		inbound(1, 1, 10, 1000, binID),
		inbound(2, 2, 5, 500, binID),
	}

	result, err := f.processor.BatchProcessTransactions(context.Background(), movements, binID,
		godown.ZeroQuantity(), "importer", application.BatchOptions{})
	if err != nil {
		t.Fatalf("default policy must not abort: %v", err)
	}

	if result.Processed != 1 {
		t.Errorf("processed: want 1, got %d", result.Processed)
	}
	if len(result.Errors) != 1 || result.Errors[0].MovementID != 2 {
		t.Fatalf("errors: want movement 2 collected, got %v", result.Errors)
	}
	// The failed movement must not advance the running balance.
	assertQuantity(t, godown.QuantityFromFloat(10, 1000), result.Final)
	if got := len(f.recorder.Entries()); got != 1 {
		t.Errorf("audit entries: want 1, got %d", got)
	}
}

func TestBatchProcessTransactions_StopOnErrorRollsBack(t *testing.T) {
	auditLog := &failingAuditLog{failAfter: 1}
	f := newFixture(t, auditLog)
	auditLog.recorder = f.recorder
	const binID = int64(2)
	movements := []godown.Movement{
		inbound(1, 1, 10, 1000, binID),
		inbound(2, 2, 5, 500, binID),
	}

	_, err := f.processor.BatchProcessTransactions(context.Background(), movements, binID,
		godown.ZeroQuantity(), "importer", application.BatchOptions{StopOnError: true})
	if err == nil {
		t.Fatal("expected the append failure to abort the batch")
	}
	if got := len(f.recorder.Entries()); got != 0 {
		t.Errorf("abort must roll back the first audit entry, found %d", got)
	}
}
