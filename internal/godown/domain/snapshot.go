package godown

import "time"

// BalanceSource tells how a resolved opening balance was obtained.
type BalanceSource string

const (
	// SourceExactMatch means a snapshot existed at exactly the requested date.
	SourceExactMatch BalanceSource = "exact_match"
	// SourceCalculatedFromSnapshot means a prior snapshot was rolled forward
	// by the net movement delta up to the requested date.
	SourceCalculatedFromSnapshot BalanceSource = "calculated_from_snapshot"
	// SourceCalculatedFromStart means no snapshot existed and the balance was
	// computed from the full movement history.
	SourceCalculatedFromStart BalanceSource = "calculated_from_start"
)

// OpeningSnapshot anchors a bin's balance at a specific calendar day.
// At most one snapshot exists per (bin, date); writes upsert in place.
type OpeningSnapshot struct {
	BinID     int64     `json:"bin_id"`
	Date      time.Time `json:"date"`
	Quantity  Quantity  `json:"quantity"`
	IsManual  bool      `json:"is_manual"`
	Remarks   string    `json:"remarks,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate enforces the snapshot invariants.
func (s OpeningSnapshot) Validate() error {
	if s.BinID <= 0 {
		return ErrInvalidBinID
	}
	if s.Date.IsZero() {
		return ErrInvalidDate
	}
	return s.Quantity.Validate()
}

// ResolvedBalance is the outcome of opening-balance resolution for a
// (bin, date) pair.
type ResolvedBalance struct {
	BinID    int64         `json:"bin_id"`
	Date     time.Time     `json:"date"`
	Quantity Quantity      `json:"quantity"`
	IsManual bool          `json:"is_manual"`
	Source   BalanceSource `json:"source"`
}
