package godown

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Finding codes reported by ValidateBalanceConsistency.
const (
	FindingNegativeBalance   = "negative_balance"
	FindingSuspiciousJump    = "suspicious_jump"
	FindingFinalMismatch     = "final_balance_mismatch"
	FindingDuplicateMovement = "duplicate_movement"
)

// finalWeightTolerance is the allowed drift when asserting the final weight.
var finalWeightTolerance = decimal.New(1, -2) // 0.01

// Finding is one validator observation, error or warning.
type Finding struct {
	Code        string  `json:"code"`
	Message     string  `json:"message"`
	MovementIDs []int64 `json:"movement_ids,omitempty"`
}

// ConsistencySummary describes the replayed sequence as a whole.
type ConsistencySummary struct {
	EntryCount   int       `json:"entry_count"`
	FirstDate    time.Time `json:"first_date,omitempty"`
	LastDate     time.Time `json:"last_date,omitempty"`
	FinalBalance Quantity  `json:"final_balance"`
}

// ValidationReport is the outcome of a consistency pass over a replay.
type ValidationReport struct {
	IsValid  bool               `json:"is_valid"`
	Errors   []Finding          `json:"errors"`
	Warnings []Finding          `json:"warnings"`
	Summary  ConsistencySummary `json:"summary"`
}

// ValidateBalanceConsistency inspects a replayed sequence for invariant
// violations. Every check runs; findings accumulate rather than short-circuit.
// Data-quality problems are reported, never returned as Go errors, so callers
// decide how fatal they are.
//
// Checks: negative running balances (error), weight jumps between consecutive
// entries larger than twice the movement's own declared effect (warning),
// an optional final-balance assertion with bags integer-exact and weight
// within ±0.01 (error), and duplicate movement ids (error).
func ValidateBalanceConsistency(entries []RunningBalanceEntry, expectedFinal *Quantity) ValidationReport {
	report := ValidationReport{
		IsValid:  true,
		Errors:   []Finding{},
		Warnings: []Finding{},
	}

	report.Summary.EntryCount = len(entries)
	if len(entries) > 0 {
		report.Summary.FirstDate = Day(entries[0].Movement.Date)
		report.Summary.LastDate = Day(entries[len(entries)-1].Movement.Date)
		report.Summary.FinalBalance = entries[len(entries)-1].NewBalance
	}

	var negativeIDs []int64
	for _, entry := range entries {
		if entry.NewBalance.IsNegative() {
			negativeIDs = append(negativeIDs, entry.Movement.ID)
		}
	}
	if len(negativeIDs) > 0 {
		report.Errors = append(report.Errors, Finding{
			Code:        FindingNegativeBalance,
			Message:     fmt.Sprintf("%d movement(s) leave the bin with negative stock", len(negativeIDs)),
			MovementIDs: negativeIDs,
		})
	}

	for i := 1; i < len(entries); i++ {
		jump := entries[i].NewBalance.NetWeight.Sub(entries[i-1].NewBalance.NetWeight).Abs()
		declared := entries[i].Effect.NetWeight.Abs()
		if declared.IsZero() {
			continue
		}
		if jump.Cmp(declared.Mul(decimal.NewFromInt(2))) > 0 {
			report.Warnings = append(report.Warnings, Finding{
				Code: FindingSuspiciousJump,
				Message: fmt.Sprintf("weight moved %s kg across movement %d which declares only %s kg",
					jump.String(), entries[i].Movement.ID, declared.String()),
				MovementIDs: []int64{entries[i].Movement.ID},
			})
		}
	}

	if expectedFinal != nil && len(entries) > 0 {
		final := entries[len(entries)-1].NewBalance
		if !final.Equal(*expectedFinal, finalWeightTolerance) {
			report.Errors = append(report.Errors, Finding{
				Code: FindingFinalMismatch,
				Message: fmt.Sprintf("final balance %s does not match expected %s",
					final, *expectedFinal),
				MovementIDs: []int64{entries[len(entries)-1].Movement.ID},
			})
		}
	}

	seen := make(map[int64]int, len(entries))
	for _, entry := range entries {
		seen[entry.Movement.ID]++
	}
	var duplicates []int64
	for _, entry := range entries {
		if seen[entry.Movement.ID] > 1 {
			duplicates = append(duplicates, entry.Movement.ID)
			seen[entry.Movement.ID] = 0 // report each id once
		}
	}
	if len(duplicates) > 0 {
		report.Errors = append(report.Errors, Finding{
			Code:        FindingDuplicateMovement,
			Message:     fmt.Sprintf("%d movement id(s) appear more than once in the replay", len(duplicates)),
			MovementIDs: duplicates,
		})
	}

	report.IsValid = len(report.Errors) == 0
	return report
}
