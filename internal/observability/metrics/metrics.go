package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "godown_"

	resultSuccess = "success"
	resultError   = "error"
)

// Exported result labels for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)

var (
	registerOnce sync.Once

	processTotal   *prometheus.CounterVec
	processLatency *prometheus.HistogramVec

	reprocessTotal   *prometheus.CounterVec
	reprocessLatency *prometheus.HistogramVec

	batchTotal   *prometheus.CounterVec
	batchLatency *prometheus.HistogramVec

	anomaliesTotal  *prometheus.CounterVec
	snapshotUpserts *prometheus.CounterVec
)

// Init registers ledger metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		processTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "process_total",
				Help: "Total chronological processing runs by result",
			},
			[]string{"result"},
		)
		processLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "process_latency_seconds",
				Help:    "Chronological processing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		reprocessTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reprocess_total",
				Help: "Total audited recalculations by result",
			},
			[]string{"result"},
		)
		reprocessLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reprocess_latency_seconds",
				Help:    "Audited recalculation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		batchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_total",
				Help: "Total batch processing runs by result",
			},
			[]string{"result"},
		)
		batchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "batch_latency_seconds",
				Help:    "Batch processing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		anomaliesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "anomalies_total",
				Help: "Total detected balance anomalies by severity",
			},
			[]string{"severity"},
		)
		snapshotUpserts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "snapshot_upserts_total",
				Help: "Total opening snapshot writes by outcome",
			},
			[]string{"outcome"},
		)

		prometheus.MustRegister(
			processTotal,
			processLatency,
			reprocessTotal,
			reprocessLatency,
			batchTotal,
			batchLatency,
			anomaliesTotal,
			snapshotUpserts,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveProcess records chronological processing duration and result.
func ObserveProcess(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if processTotal != nil {
		processTotal.WithLabelValues(result).Inc()
	}
	if processLatency != nil {
		processLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveReprocess records recalculation duration and result.
func ObserveReprocess(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if reprocessTotal != nil {
		reprocessTotal.WithLabelValues(result).Inc()
	}
	if reprocessLatency != nil {
		reprocessLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveBatch records batch processing duration and result.
func ObserveBatch(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if batchTotal != nil {
		batchTotal.WithLabelValues(result).Inc()
	}
	if batchLatency != nil {
		batchLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncAnomaly increments the anomaly counter for a severity.
func IncAnomaly(severity string) {
	if severity == "" {
		severity = "unknown"
	}
	if anomaliesTotal != nil {
		anomaliesTotal.WithLabelValues(severity).Inc()
	}
}

// IncSnapshotUpsert increments the snapshot write counter.
func IncSnapshotUpsert(created bool) {
	outcome := "updated"
	if created {
		outcome = "created"
	}
	if snapshotUpserts != nil {
		snapshotUpserts.WithLabelValues(outcome).Inc()
	}
}
