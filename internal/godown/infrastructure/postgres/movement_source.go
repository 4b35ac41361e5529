package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	godown "godown-ledger/internal/godown/domain"
)

const defaultMovementTable = "movements"

// MovementSource reads approved movement records from Postgres.
type MovementSource struct {
	db    *sql.DB
	table string
}

// MovementSourceOption configures the source.
type MovementSourceOption func(*MovementSource)

// WithMovementTable overrides the default table.
func WithMovementTable(table string) MovementSourceOption {
	return func(s *MovementSource) {
		if table != "" {
			s.table = table
		}
	}
}

// NewMovementSource constructs a movement source.
func NewMovementSource(db *sql.DB, opts ...MovementSourceOption) *MovementSource {
	source := &MovementSource{db: db, table: defaultMovementTable}
	for _, opt := range opts {
		opt(source)
	}
	return source
}

// ListForBin returns approved movements touching the bin within the inclusive
// day range, ordered (date asc, created_at asc, id asc).
func (s *MovementSource) ListForBin(ctx context.Context, binID int64, from, to *time.Time) ([]godown.Movement, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("movement source: nil db")
	}
	if binID <= 0 {
		return nil, godown.ErrInvalidBinID
	}

	query := fmt.Sprintf(`
SELECT id, movement_date, created_at, bags, net_weight, source_bin_id, destination_bin_id, status
FROM %s
WHERE status = $1 AND (source_bin_id = $2 OR destination_bin_id = $2)`, s.table)
	args := []any{string(godown.MovementStatusApproved), binID}

	if from != nil {
		args = append(args, godown.Day(*from))
		query += fmt.Sprintf(" AND movement_date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, godown.Day(*to))
		query += fmt.Sprintf(" AND movement_date <= $%d", len(args))
	}
	query += " ORDER BY movement_date ASC, created_at ASC, id ASC"

	rows, err := querier(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []godown.Movement
	for rows.Next() {
		var (
			movement  godown.Movement
			netWeight decimal.Decimal
			source    sql.NullInt64
			dest      sql.NullInt64
			status    string
		)
		if err := rows.Scan(
			&movement.ID,
			&movement.Date,
			&movement.CreatedAt,
			&movement.Quantity.Bags,
			&netWeight,
			&source,
			&dest,
			&status,
		); err != nil {
			return nil, err
		}
		movement.Quantity.NetWeight = netWeight
		movement.Status = godown.MovementStatus(status)
		if source.Valid {
			id := source.Int64
			movement.SourceBinID = &id
		}
		if dest.Valid {
			id := dest.Int64
			movement.DestinationBinID = &id
		}
		movements = append(movements, movement)
	}
	return movements, rows.Err()
}
