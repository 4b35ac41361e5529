package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"godown-ledger/internal/audit"
	godown "godown-ledger/internal/godown/domain"
	"godown-ledger/internal/observability/metrics"
)

// LedgerProcessor orchestrates chronological replay, audited recalculation
// and batch processing for bins.
type LedgerProcessor struct {
	movements MovementSource
	resolver  *OpeningBalanceResolver
	snapshots SnapshotRepository
	auditLog  audit.Logger
	uow       UnitOfWork
	clock     Clock
	bounds    godown.AnomalyBounds

	locksMu  sync.Mutex
	binLocks map[int64]*sync.Mutex
}

// ProcessorOption configures the processor.
type ProcessorOption func(*LedgerProcessor)

// WithAnomalyBounds overrides the default anomaly bounds.
func WithAnomalyBounds(bounds godown.AnomalyBounds) ProcessorOption {
	return func(p *LedgerProcessor) {
		p.bounds = bounds
	}
}

// NewLedgerProcessor constructs a processor. A nil clock defaults to the
// system clock.
func NewLedgerProcessor(
	movements MovementSource,
	resolver *OpeningBalanceResolver,
	snapshots SnapshotRepository,
	auditLog audit.Logger,
	uow UnitOfWork,
	clock Clock,
	opts ...ProcessorOption,
) (*LedgerProcessor, error) {
	if movements == nil {
		return nil, errors.New("ledger processor: nil movement source")
	}
	if resolver == nil {
		return nil, errors.New("ledger processor: nil resolver")
	}
	if snapshots == nil {
		return nil, errors.New("ledger processor: nil snapshot repository")
	}
	if auditLog == nil {
		return nil, errors.New("ledger processor: nil audit logger")
	}
	if uow == nil {
		return nil, errors.New("ledger processor: nil unit of work")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	processor := &LedgerProcessor{
		movements: movements,
		resolver:  resolver,
		snapshots: snapshots,
		auditLog:  auditLog,
		uow:       uow,
		clock:     clock,
		bounds:    godown.DefaultAnomalyBounds(),
		binLocks:  make(map[int64]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(processor)
	}
	return processor, nil
}

// lockBin returns the serialization lock for one bin. Mutations on the same
// bin queue behind each other; different bins proceed independently.
func (p *LedgerProcessor) lockBin(binID int64) *sync.Mutex {
	p.locksMu.Lock()
	defer p.locksMu.Unlock()
	if _, ok := p.binLocks[binID]; !ok {
		p.binLocks[binID] = &sync.Mutex{}
	}
	return p.binLocks[binID]
}

// ProcessOptions tunes one processing run.
type ProcessOptions struct {
	From            *time.Time
	To              *time.Time
	DetectAnomalies bool
	ExpectedFinal   *godown.Quantity
	Bounds          *godown.AnomalyBounds
}

// MovementFlow aggregates one direction of movement.
type MovementFlow struct {
	Bags      int64           `json:"bags"`
	NetWeight decimal.Decimal `json:"net_weight"`
	Count     int             `json:"count"`
}

func (f MovementFlow) quantity() godown.Quantity {
	return godown.Quantity{Bags: f.Bags, NetWeight: f.NetWeight}
}

// LedgerSummary carries the aggregate totals of a processing run.
type LedgerSummary struct {
	Opening     godown.Quantity `json:"opening"`
	Inward      MovementFlow    `json:"inward"`
	Outward     MovementFlow    `json:"outward"`
	NetMovement godown.Quantity `json:"net_movement"`
	Closing     godown.Quantity `json:"closing"`
}

// ProcessingResult is the full outcome of a chronological processing run,
// serialized as-is by outer reporting layers.
type ProcessingResult struct {
	BinID          int64                        `json:"bin_id"`
	Opening        godown.ResolvedBalance       `json:"opening"`
	Entries        []godown.RunningBalanceEntry `json:"entries"`
	Inward         []godown.RunningBalanceEntry `json:"inward"`
	Outward        []godown.RunningBalanceEntry `json:"outward"`
	Summary        LedgerSummary                `json:"summary"`
	Validation     godown.ValidationReport      `json:"validation"`
	Anomalies      []godown.Anomaly             `json:"anomalies,omitempty"`
	ReplayWarnings []string                     `json:"replay_warnings,omitempty"`
	MovementCount  int                          `json:"movement_count"`
	GeneratedAt    time.Time                    `json:"generated_at"`
}

// ProcessChronologically fetches approved movements for a bin, resolves the
// opening balance, replays everything in causal order, partitions inbound and
// outbound flows, and validates the result. Consistency problems are reported
// inside the result, never as a returned error.
func (p *LedgerProcessor) ProcessChronologically(ctx context.Context, binID int64, opts ProcessOptions) (*ProcessingResult, error) {
	start := time.Now()
	outcome := metrics.ResultSuccess
	defer func() {
		metrics.ObserveProcess(outcome, time.Since(start))
	}()

	result, err := p.process(ctx, binID, opts)
	if err != nil {
		outcome = metrics.ResultError
		return nil, err
	}
	return result, nil
}

// process is the un-instrumented core shared by the read and reprocess paths.
func (p *LedgerProcessor) process(ctx context.Context, binID int64, opts ProcessOptions) (*ProcessingResult, error) {
	if binID <= 0 {
		return nil, godown.ErrInvalidBinID
	}

	var from, to *time.Time
	if opts.From != nil {
		day := godown.Day(*opts.From)
		from = &day
	}
	if opts.To != nil {
		day := godown.Day(*opts.To)
		to = &day
	}

	movements, err := p.movements.ListForBin(ctx, binID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}

	openingDate := p.openingDate(from, movements)
	opening, err := p.resolver.Resolve(ctx, binID, openingDate)
	if err != nil {
		return nil, fmt.Errorf("resolve opening balance: %w", err)
	}

	replay := godown.CalculateRunningBalances(movements, opening.Quantity, binID)

	result := &ProcessingResult{
		BinID:          binID,
		Opening:        opening,
		Entries:        replay.Entries,
		Inward:         make([]godown.RunningBalanceEntry, 0, len(replay.Entries)),
		Outward:        make([]godown.RunningBalanceEntry, 0, len(replay.Entries)),
		ReplayWarnings: replay.Warnings,
		MovementCount:  len(movements),
		GeneratedAt:    p.clock.Now().UTC(),
	}

	summary := LedgerSummary{
		Opening: opening.Quantity,
		Inward:  MovementFlow{NetWeight: decimal.Zero},
		Outward: MovementFlow{NetWeight: decimal.Zero},
	}
	for _, entry := range replay.Entries {
		switch {
		case entry.Movement.IsInboundFor(binID):
			result.Inward = append(result.Inward, entry)
			summary.Inward.Bags += entry.Movement.Quantity.Bags
			summary.Inward.NetWeight = summary.Inward.NetWeight.Add(entry.Movement.Quantity.NetWeight)
			summary.Inward.Count++
		case entry.Movement.IsOutboundFor(binID):
			result.Outward = append(result.Outward, entry)
			summary.Outward.Bags += entry.Movement.Quantity.Bags
			summary.Outward.NetWeight = summary.Outward.NetWeight.Add(entry.Movement.Quantity.NetWeight)
			summary.Outward.Count++
		}
	}
	summary.NetMovement = summary.Inward.quantity().Sub(summary.Outward.quantity())
	summary.Closing = replay.FinalBalance(opening.Quantity)
	result.Summary = summary

	result.Validation = godown.ValidateBalanceConsistency(replay.Entries, opts.ExpectedFinal)

	if opts.DetectAnomalies {
		bounds := p.bounds
		if opts.Bounds != nil {
			bounds = *opts.Bounds
		}
		result.Anomalies = godown.DetectBalanceAnomalies(replay.Entries, bounds)
		for _, anomaly := range result.Anomalies {
			metrics.IncAnomaly(string(anomaly.Severity))
		}
	}
	return result, nil
}

// openingDate picks the day the opening balance is resolved at: the requested
// lower bound, else the earliest movement's day, else today.
func (p *LedgerProcessor) openingDate(from *time.Time, movements []godown.Movement) time.Time {
	if from != nil {
		return *from
	}
	if len(movements) > 0 {
		sorted := godown.SortChronological(movements)
		return godown.Day(sorted[0].Date)
	}
	return godown.Day(p.clock.Now())
}

// ReprocessResult is the outcome of an audited recalculation.
type ReprocessResult struct {
	Processing      *ProcessingResult `json:"processing"`
	AuditEntryID    string            `json:"audit_entry_id"`
	SnapshotWritten bool              `json:"snapshot_written"`
}

// ReprocessFromDate re-resolves the opening balance at fromDate, replays every
// movement from that day forward and writes one recalculation audit entry.
// The whole sequence runs in a single atomic unit of work: when any step
// fails, nothing — derived snapshot included — remains committed. Concurrent
// reprocessing of the same bin is serialized.
func (p *LedgerProcessor) ReprocessFromDate(ctx context.Context, binID int64, fromDate time.Time, actor string, opts ProcessOptions) (*ReprocessResult, error) {
	start := time.Now()
	outcome := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReprocess(outcome, time.Since(start))
	}()

	if binID <= 0 {
		outcome = metrics.ResultError
		return nil, godown.ErrInvalidBinID
	}
	if fromDate.IsZero() {
		outcome = metrics.ResultError
		return nil, godown.ErrInvalidDate
	}
	if actor == "" {
		outcome = metrics.ResultError
		return nil, errors.New("ledger processor: actor required")
	}

	lock := p.lockBin(binID)
	lock.Lock()
	defer lock.Unlock()

	from := godown.Day(fromDate)
	opts.From = &from
	opts.To = nil

	var result *ReprocessResult
	err := p.uow.WithinTx(ctx, func(ctx context.Context) error {
		processing, err := p.process(ctx, binID, opts)
		if err != nil {
			return err
		}

		snapshotWritten := false
		if processing.Opening.Source != godown.SourceExactMatch {
			snapshot := godown.OpeningSnapshot{
				BinID:     binID,
				Date:      from,
				Quantity:  processing.Opening.Quantity,
				IsManual:  false,
				Remarks:   "derived during recalculation",
				CreatedBy: actor,
				CreatedAt: p.clock.Now().UTC(),
				UpdatedAt: p.clock.Now().UTC(),
			}
			created, err := p.snapshots.Upsert(ctx, snapshot)
			if err != nil {
				return fmt.Errorf("persist derived snapshot: %w", err)
			}
			metrics.IncSnapshotUpsert(created)
			snapshotWritten = true
		}

		previous := toAuditBalance(processing.Opening.Quantity)
		entry := audit.Entry{
			ID:              audit.NewID(),
			BinID:           binID,
			Action:          audit.ActionRecalculation,
			PreviousBalance: &previous,
			NewBalance:      toAuditBalance(processing.Summary.Closing),
			PerformedBy:     actor,
			PerformedAt:     p.clock.Now().UTC(),
			Remarks:         fmt.Sprintf("recalculated from %s", from.Format(dateLayout)),
			Metadata: audit.MetadataJSON(map[string]any{
				"from":      from.Format(dateLayout),
				"movements": processing.MovementCount,
				"errors":    len(processing.Validation.Errors),
				"warnings":  len(processing.Validation.Warnings),
			}),
		}
		if err := p.auditLog.Append(ctx, entry); err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}

		result = &ReprocessResult{
			Processing:      processing,
			AuditEntryID:    entry.ID,
			SnapshotWritten: snapshotWritten,
		}
		return nil
	})
	if err != nil {
		outcome = metrics.ResultError
		return nil, err
	}
	return result, nil
}

// BatchOptions selects the batch failure policy.
type BatchOptions struct {
	// StrictMode aborts the whole batch the instant a balance goes negative.
	StrictMode bool
	// StopOnError aborts on the first per-movement failure instead of
	// collecting it and continuing.
	StopOnError bool
}

// BatchError records one movement whose processing failed.
type BatchError struct {
	MovementID int64  `json:"movement_id"`
	Reason     string `json:"reason"`
}

// BatchResult is the outcome of a batch processing run.
type BatchResult struct {
	Entries   []godown.RunningBalanceEntry `json:"entries"`
	Errors    []BatchError                 `json:"errors,omitempty"`
	Final     godown.Quantity              `json:"final"`
	Processed int                          `json:"processed"`
}

// BatchProcessTransactions folds movements over a starting balance, writing
// one transaction audit entry per movement. The fold runs inside one atomic
// unit of work per bin; an abort rolls every audit entry back. By default,
// per-movement failures are collected and the batch continues.
func (p *LedgerProcessor) BatchProcessTransactions(ctx context.Context, movements []godown.Movement, binID int64, starting godown.Quantity, actor string, opts BatchOptions) (*BatchResult, error) {
	startedAt := time.Now()
	outcome := metrics.ResultSuccess
	defer func() {
		metrics.ObserveBatch(outcome, time.Since(startedAt))
	}()

	if binID <= 0 {
		outcome = metrics.ResultError
		return nil, godown.ErrInvalidBinID
	}
	if actor == "" {
		outcome = metrics.ResultError
		return nil, errors.New("ledger processor: actor required")
	}

	lock := p.lockBin(binID)
	lock.Lock()
	defer lock.Unlock()

	var result *BatchResult
	err := p.uow.WithinTx(ctx, func(ctx context.Context) error {
		sorted := godown.SortChronological(movements)
		batch := &BatchResult{Entries: make([]godown.RunningBalanceEntry, 0, len(sorted))}
		balance := godown.NewQuantity(starting.Bags, starting.NetWeight)

		for _, movement := range sorted {
			effect := movement.EffectOn(binID)
			next := balance.Add(effect)

			if opts.StrictMode && next.IsNegative() {
				return fmt.Errorf("movement %d: %w", movement.ID, godown.ErrNegativeBalance)
			}

			movementID := movement.ID
			previous := toAuditBalance(balance)
			entry := audit.Entry{
				ID:              audit.NewID(),
				BinID:           binID,
				MovementID:      &movementID,
				Action:          audit.ActionTransaction,
				PreviousBalance: &previous,
				NewBalance:      toAuditBalance(next),
				PerformedBy:     actor,
				PerformedAt:     p.clock.Now().UTC(),
			}
			if err := p.auditLog.Append(ctx, entry); err != nil {
				if opts.StopOnError {
					return fmt.Errorf("movement %d: %w", movement.ID, err)
				}
				batch.Errors = append(batch.Errors, BatchError{
					MovementID: movement.ID,
					Reason:     err.Error(),
				})
				continue
			}

			batch.Entries = append(batch.Entries, godown.RunningBalanceEntry{
				Movement:        movement,
				PreviousBalance: balance,
				Effect:          effect,
				NewBalance:      next,
			})
			balance = next
			batch.Processed++
		}

		batch.Final = balance
		result = batch
		return nil
	})
	if err != nil {
		outcome = metrics.ResultError
		return nil, err
	}
	return result, nil
}
