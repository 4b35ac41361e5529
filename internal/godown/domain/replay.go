package godown

import "fmt"

// RunningBalanceEntry records one movement's effect during a replay pass.
// Invariant: NewBalance = PreviousBalance + Effect, and each entry's
// PreviousBalance equals the prior entry's NewBalance (the opening balance
// for the first entry).
type RunningBalanceEntry struct {
	Movement        Movement `json:"movement"`
	PreviousBalance Quantity `json:"previous_balance"`
	Effect          Quantity `json:"effect"`
	NewBalance      Quantity `json:"new_balance"`
}

// ReplayResult is the output of one replay pass.
type ReplayResult struct {
	Entries  []RunningBalanceEntry `json:"entries"`
	Warnings []string              `json:"warnings,omitempty"`
}

// FinalBalance returns the closing balance of the replay, or the opening
// balance when no movements were replayed.
func (r ReplayResult) FinalBalance(opening Quantity) Quantity {
	if len(r.Entries) == 0 {
		return opening
	}
	return r.Entries[len(r.Entries)-1].NewBalance
}

// CalculateRunningBalances replays movements against an opening balance and
// returns one entry per movement in causal order. The input is re-sorted by
// (date, createdAt) regardless of how the caller ordered it, and is never
// mutated. A balance component falling below zero produces a warning, not a
// failure; flagging impossible states is the validator's job.
func CalculateRunningBalances(movements []Movement, opening Quantity, binID int64) ReplayResult {
	sorted := SortChronological(movements)

	result := ReplayResult{Entries: make([]RunningBalanceEntry, 0, len(sorted))}
	balance := NewQuantity(opening.Bags, opening.NetWeight)

	for _, movement := range sorted {
		effect := movement.EffectOn(binID)
		entry := RunningBalanceEntry{
			Movement:        movement,
			PreviousBalance: balance,
			Effect:          effect,
		}
		balance = balance.Add(effect)
		entry.NewBalance = balance
		result.Entries = append(result.Entries, entry)

		if balance.IsNegative() {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"movement %d leaves bin %d negative: %s", movement.ID, binID, balance))
		}
	}
	return result
}
