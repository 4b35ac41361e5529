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

const defaultSnapshotTable = "opening_balances"

// SnapshotRepository persists opening-balance snapshots keyed (bin, date).
type SnapshotRepository struct {
	db    *sql.DB
	table string
}

// SnapshotRepositoryOption configures the repository.
type SnapshotRepositoryOption func(*SnapshotRepository)

// WithSnapshotTable overrides the default table.
func WithSnapshotTable(table string) SnapshotRepositoryOption {
	return func(r *SnapshotRepository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewSnapshotRepository constructs a repository.
func NewSnapshotRepository(db *sql.DB, opts ...SnapshotRepositoryOption) *SnapshotRepository {
	repo := &SnapshotRepository{db: db, table: defaultSnapshotTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// FindByBinAndDate loads the snapshot at exactly (bin, date), or (nil, nil).
func (r *SnapshotRepository) FindByBinAndDate(ctx context.Context, binID int64, date time.Time) (*godown.OpeningSnapshot, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("snapshot repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT bin_id, balance_date, bags, net_weight, is_manual, remarks, created_by, created_at, updated_at
FROM %s
WHERE bin_id = $1 AND balance_date = $2
LIMIT 1`, r.table)
	return r.scanOne(querier(ctx, r.db).QueryRowContext(ctx, query, binID, godown.Day(date)))
}

// FindLatestBefore loads the latest snapshot strictly before date, or (nil, nil).
func (r *SnapshotRepository) FindLatestBefore(ctx context.Context, binID int64, date time.Time) (*godown.OpeningSnapshot, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("snapshot repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT bin_id, balance_date, bags, net_weight, is_manual, remarks, created_by, created_at, updated_at
FROM %s
WHERE bin_id = $1 AND balance_date < $2
ORDER BY balance_date DESC
LIMIT 1`, r.table)
	return r.scanOne(querier(ctx, r.db).QueryRowContext(ctx, query, binID, godown.Day(date)))
}

// Upsert writes the snapshot, updating in place when one already exists for
// the (bin, date) key, and reports whether a new row was created.
func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot godown.OpeningSnapshot) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("snapshot repo: nil db")
	}
	if err := snapshot.Validate(); err != nil {
		return false, err
	}

	q := querier(ctx, r.db)
	day := godown.Day(snapshot.Date)

	var exists bool
	existsQuery := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE bin_id = $1 AND balance_date = $2)", r.table)
	if err := q.QueryRowContext(ctx, existsQuery, snapshot.BinID, day).Scan(&exists); err != nil {
		return false, err
	}

	upsert := fmt.Sprintf(`
INSERT INTO %s (
	bin_id, balance_date, bags, net_weight, is_manual, remarks, created_by, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, NOW(), NOW()
)
ON CONFLICT (bin_id, balance_date)
DO UPDATE SET
	bags = EXCLUDED.bags,
	net_weight = EXCLUDED.net_weight,
	is_manual = EXCLUDED.is_manual,
	remarks = EXCLUDED.remarks,
	created_by = EXCLUDED.created_by,
	updated_at = NOW()`, r.table)

	_, err := q.ExecContext(
		ctx,
		upsert,
		snapshot.BinID,
		day,
		snapshot.Quantity.Bags,
		snapshot.Quantity.NetWeight,
		snapshot.IsManual,
		snapshot.Remarks,
		snapshot.CreatedBy,
	)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

func (r *SnapshotRepository) scanOne(row *sql.Row) (*godown.OpeningSnapshot, error) {
	var (
		snapshot  godown.OpeningSnapshot
		netWeight decimal.Decimal
		remarks   sql.NullString
		createdBy sql.NullString
	)
	err := row.Scan(
		&snapshot.BinID,
		&snapshot.Date,
		&snapshot.Quantity.Bags,
		&netWeight,
		&snapshot.IsManual,
		&remarks,
		&createdBy,
		&snapshot.CreatedAt,
		&snapshot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	snapshot.Quantity.NetWeight = netWeight
	snapshot.Remarks = remarks.String
	snapshot.CreatedBy = createdBy.String
	return &snapshot, nil
}
