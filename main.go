package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	apihttp "godown-ledger/internal/api/http"
	"godown-ledger/internal/godown/application"
	godownpg "godown-ledger/internal/godown/infrastructure/postgres"
	"godown-ledger/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type config struct {
	DatabaseURL string
	HTTPAddr    string
}

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	thresholds, err := application.LoadThresholds()
	if err != nil {
		logger.Fatalf("thresholds config error: %v", err)
	}

	movementSource := godownpg.NewMovementSource(db)
	snapshotRepo := godownpg.NewSnapshotRepository(db)
	binChecker := godownpg.NewBinChecker(db)
	auditSink := godownpg.NewAuditSink(db)
	uow := godownpg.NewUnitOfWork(db)

	resolver, err := application.NewOpeningBalanceResolver(
		snapshotRepo, movementSource, auditSink, binChecker, uow, nil)
	if err != nil {
		logger.Fatalf("resolver error: %v", err)
	}

	processor, err := application.NewLedgerProcessor(
		movementSource, resolver, snapshotRepo, auditSink, uow, nil,
		application.WithAnomalyBounds(thresholds.Defaults.Bounds()))
	if err != nil {
		logger.Fatalf("processor error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/ledger", apihttp.NewLedgerHandler(processor))
	mux.Handle("/api/v1/ledger/reprocess", apihttp.NewReprocessHandler(processor))
	mux.Handle("/api/v1/opening-balance", apihttp.NewOpeningBalanceHandler(resolver))
	mux.Handle("/api/v1/audit-trail", apihttp.NewAuditTrailHandler(auditSink))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	logger.Printf("listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil {
		logger.Fatalf("http server error: %v", err)
	}
}

func loadConfig() config {
	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
