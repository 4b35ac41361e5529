package godown

import (
	"sort"
	"time"
)

// MovementStatus is the lifecycle status of a movement record.
type MovementStatus string

const (
	MovementStatusPending  MovementStatus = "pending"
	MovementStatusApproved MovementStatus = "approved"
	MovementStatusRejected MovementStatus = "rejected"
	MovementStatusDeleted  MovementStatus = "deleted"
)

// Movement is an immutable, dated stock movement between bins. A nil source
// means goods entered the godown from outside; a nil destination means they
// left it. Only approved movements participate in balance computation.
type Movement struct {
	ID               int64          `json:"id"`
	Date             time.Time      `json:"date"`
	CreatedAt        time.Time      `json:"created_at"`
	Quantity         Quantity       `json:"quantity"`
	SourceBinID      *int64         `json:"source_bin_id,omitempty"`
	DestinationBinID *int64         `json:"destination_bin_id,omitempty"`
	Status           MovementStatus `json:"status"`
}

// Touches reports whether the movement affects the given bin on either side.
func (m Movement) Touches(binID int64) bool {
	if m.SourceBinID != nil && *m.SourceBinID == binID {
		return true
	}
	if m.DestinationBinID != nil && *m.DestinationBinID == binID {
		return true
	}
	return false
}

// IsInboundFor reports whether the movement adds stock to the given bin.
func (m Movement) IsInboundFor(binID int64) bool {
	return m.DestinationBinID != nil && *m.DestinationBinID == binID
}

// IsOutboundFor reports whether the movement removes stock from the given bin.
func (m Movement) IsOutboundFor(binID int64) bool {
	return m.SourceBinID != nil && *m.SourceBinID == binID
}

// EffectOn returns the signed balance effect of the movement for one bin:
// positive when the bin is the destination, negative when it is the source,
// zero otherwise. A self-transfer nets out to zero.
func (m Movement) EffectOn(binID int64) Quantity {
	effect := ZeroQuantity()
	if m.IsInboundFor(binID) {
		effect = effect.Add(m.Quantity)
	}
	if m.IsOutboundFor(binID) {
		effect = effect.Sub(m.Quantity)
	}
	return effect
}

// SortChronological returns a copy of the movements in causal order:
// date ascending, then creation time ascending. The sort is stable, so
// records with identical keys keep their input order.
func SortChronological(movements []Movement) []Movement {
	sorted := make([]Movement, len(movements))
	copy(sorted, movements)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := dayOf(sorted[i].Date), dayOf(sorted[j].Date)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}

// dayOf truncates a timestamp to its UTC calendar day. Movement ordering is
// day-granular; time-of-day on the movement date carries no meaning.
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Day exposes the calendar-day normalization for callers building ranges.
func Day(t time.Time) time.Time { return dayOf(t) }
