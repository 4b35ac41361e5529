package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"godown-ledger/internal/audit"
)

const defaultAuditTable = "balance_audit_trail"

// AuditSink appends audit entries to Postgres. The table carries no update
// or delete path; rows are written once and read forever.
type AuditSink struct {
	db    *sql.DB
	table string
}

// AuditSinkOption configures the sink.
type AuditSinkOption func(*AuditSink)

// WithAuditTable overrides the default table.
func WithAuditTable(table string) AuditSinkOption {
	return func(s *AuditSink) {
		if table != "" {
			s.table = table
		}
	}
}

// NewAuditSink constructs a sink.
func NewAuditSink(db *sql.DB, opts ...AuditSinkOption) *AuditSink {
	sink := &AuditSink{db: db, table: defaultAuditTable}
	for _, opt := range opts {
		opt(sink)
	}
	return sink
}

// Append writes one audit entry, joining any transaction in the context.
func (s *AuditSink) Append(ctx context.Context, entry audit.Entry) error {
	if s == nil || s.db == nil {
		return errors.New("audit sink: nil db")
	}
	if entry.ID == "" {
		entry.ID = audit.NewID()
	}
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = time.Now().UTC()
	}

	var movementID sql.NullInt64
	if entry.MovementID != nil {
		movementID = sql.NullInt64{Int64: *entry.MovementID, Valid: true}
	}
	var previousBags sql.NullInt64
	var previousWeight decimal.NullDecimal
	if entry.PreviousBalance != nil {
		previousBags = sql.NullInt64{Int64: entry.PreviousBalance.Bags, Valid: true}
		previousWeight = decimal.NullDecimal{Decimal: entry.PreviousBalance.NetWeight, Valid: true}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, bin_id, movement_id, action, previous_bags, previous_net_weight,
	new_bags, new_net_weight, performed_by, performed_at, remarks, metadata
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
)`, s.table)

	_, err := querier(ctx, s.db).ExecContext(ctx, query,
		entry.ID,
		entry.BinID,
		movementID,
		string(entry.Action),
		previousBags,
		previousWeight,
		entry.NewBalance.Bags,
		entry.NewBalance.NetWeight,
		entry.PerformedBy,
		entry.PerformedAt,
		entry.Remarks,
		[]byte(entry.Metadata),
	)
	return err
}

// ListByBin returns the newest audit entries for a bin, for forensic
// reconstruction of how its balance came to be.
func (s *AuditSink) ListByBin(ctx context.Context, binID int64, limit int) ([]audit.Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("audit sink: nil db")
	}
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
SELECT id, bin_id, movement_id, action, previous_bags, previous_net_weight,
	new_bags, new_net_weight, performed_by, performed_at, remarks, metadata
FROM %s
WHERE bin_id = $1
ORDER BY performed_at DESC, id DESC
LIMIT $2`, s.table)

	rows, err := querier(ctx, s.db).QueryContext(ctx, query, binID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry          audit.Entry
			movementID     sql.NullInt64
			action         string
			previousBags   sql.NullInt64
			previousWeight decimal.NullDecimal
			remarks        sql.NullString
			metadata       []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.BinID,
			&movementID,
			&action,
			&previousBags,
			&previousWeight,
			&entry.NewBalance.Bags,
			&entry.NewBalance.NetWeight,
			&entry.PerformedBy,
			&entry.PerformedAt,
			&remarks,
			&metadata,
		); err != nil {
			return nil, err
		}
		entry.Action = audit.Action(action)
		if movementID.Valid {
			id := movementID.Int64
			entry.MovementID = &id
		}
		if previousBags.Valid {
			entry.PreviousBalance = &audit.Balance{
				Bags:      previousBags.Int64,
				NetWeight: previousWeight.Decimal,
			}
		}
		entry.Remarks = remarks.String
		entry.Metadata = metadata
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
