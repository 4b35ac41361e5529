package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Action is the kind of balance-affecting operation an entry records.
type Action string

const (
	ActionOpeningBalance   Action = "opening_balance"
	ActionTransaction      Action = "transaction"
	ActionRecalculation    Action = "recalculation"
	ActionManualAdjustment Action = "manual_adjustment"
)

// Balance is the bag count and net weight captured at audit time. The audit
// trail keeps its own copy so entries stay readable on their own.
type Balance struct {
	Bags      int64           `json:"bags"`
	NetWeight decimal.Decimal `json:"net_weight"`
}

// Entry is one immutable audit record. Entries are appended and never
// updated or deleted; together they are the sole answer to "why is the
// balance what it is".
type Entry struct {
	ID              string          `json:"id"`
	BinID           int64           `json:"bin_id"`
	MovementID      *int64          `json:"movement_id,omitempty"`
	Action          Action          `json:"action"`
	PreviousBalance *Balance        `json:"previous_balance,omitempty"`
	NewBalance      Balance         `json:"new_balance"`
	PerformedBy     string          `json:"performed_by"`
	PerformedAt     time.Time       `json:"performed_at"`
	Remarks         string          `json:"remarks,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// Logger appends audit entries. Implementations must be append-only: no
// update or delete surface exists anywhere in this interface.
type Logger interface {
	Append(ctx context.Context, entry Entry) error
}

// NewID generates a random audit entry id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// MetadataJSON marshals arbitrary metadata for an entry. A marshal failure
// yields a nil payload rather than an error; metadata is advisory.
func MetadataJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
