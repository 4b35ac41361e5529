package postgres

import (
	"context"
	"database/sql"
	"errors"
)

// BinChecker verifies bin existence against the bins table.
type BinChecker struct {
	db *sql.DB
}

// NewBinChecker constructs a checker.
func NewBinChecker(db *sql.DB) *BinChecker {
	if db == nil {
		return nil
	}
	return &BinChecker{db: db}
}

// BinExists reports whether the bin id is on record.
func (c *BinChecker) BinExists(ctx context.Context, binID int64) (bool, error) {
	if c == nil || c.db == nil {
		return false, errors.New("bin checker: nil db")
	}
	var exists bool
	err := querier(ctx, c.db).QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM bins WHERE id = $1)", binID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
