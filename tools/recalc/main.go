// Command recalc replays and recalculates bin balances from a given date,
// writing the usual recalculation audit entries. Run it after bulk data
// corrections to bring snapshots and the audit trail back in line.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"godown-ledger/internal/godown/application"
	godownpg "godown-ledger/internal/godown/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const dateLayout = "2006-01-02"

func main() {
	_ = godotenv.Load()

	var (
		dsn   = flag.String("dsn", os.Getenv("DATABASE_URL"), "postgres dsn (defaults to DATABASE_URL)")
		bin   = flag.Int64("bin", 0, "bin id to recalculate (0 = every bin with movements)")
		from  = flag.String("from", "", "recalculate from this date (YYYY-MM-DD, required)")
		actor = flag.String("actor", "recalc-tool", "actor recorded on audit entries")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("dsn required: pass -dsn or set DATABASE_URL")
	}
	if *from == "" {
		log.Fatal("-from is required")
	}
	fromDate, err := time.Parse(dateLayout, *from)
	if err != nil {
		log.Fatalf("parse -from: %v", err)
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	ctx := context.Background()
	processor, err := buildProcessor(db)
	if err != nil {
		log.Fatalf("wire processor: %v", err)
	}

	binIDs := []int64{*bin}
	if *bin == 0 {
		binIDs, err = listBins(ctx, db, fromDate)
		if err != nil {
			log.Fatalf("list bins: %v", err)
		}
		if len(binIDs) == 0 {
			log.Println("no bins with movements in range")
			return
		}
	}

	failures := 0
	for _, binID := range binIDs {
		result, err := processor.ReprocessFromDate(ctx, binID, fromDate, *actor, application.ProcessOptions{})
		if err != nil {
			failures++
			log.Printf("bin %d: FAILED: %v", binID, err)
			continue
		}
		summary := result.Processing.Summary
		fmt.Printf("bin %d: %d movements, opening %s, closing %s, errors=%d warnings=%d\n",
			binID,
			result.Processing.MovementCount,
			summary.Opening,
			summary.Closing,
			len(result.Processing.Validation.Errors),
			len(result.Processing.Validation.Warnings),
		)
	}
	if failures > 0 {
		log.Fatalf("%d of %d bins failed", failures, len(binIDs))
	}
}

func buildProcessor(db *sql.DB) (*application.LedgerProcessor, error) {
	movementSource := godownpg.NewMovementSource(db)
	snapshotRepo := godownpg.NewSnapshotRepository(db)
	auditSink := godownpg.NewAuditSink(db)
	uow := godownpg.NewUnitOfWork(db)

	resolver, err := application.NewOpeningBalanceResolver(
		snapshotRepo, movementSource, auditSink, godownpg.NewBinChecker(db), uow, nil)
	if err != nil {
		return nil, err
	}
	return application.NewLedgerProcessor(movementSource, resolver, snapshotRepo, auditSink, uow, nil)
}

func listBins(ctx context.Context, db *sql.DB, from time.Time) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `
SELECT DISTINCT bin_id FROM (
	SELECT source_bin_id AS bin_id FROM movements
	WHERE status = 'approved' AND source_bin_id IS NOT NULL AND movement_date >= $1
	UNION
	SELECT destination_bin_id FROM movements
	WHERE status = 'approved' AND destination_bin_id IS NOT NULL AND movement_date >= $1
) bins
ORDER BY bin_id`, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var binIDs []int64
	for rows.Next() {
		var binID int64
		if err := rows.Scan(&binID); err != nil {
			return nil, err
		}
		binIDs = append(binIDs, binID)
	}
	return binIDs, rows.Err()
}
