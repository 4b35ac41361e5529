package godown

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AnomalySeverity ranks anomaly findings for downstream triage.
type AnomalySeverity string

const (
	SeverityHigh   AnomalySeverity = "HIGH"
	SeverityMedium AnomalySeverity = "MEDIUM"
	SeverityLow    AnomalySeverity = "LOW"
)

// Anomaly kinds reported by DetectBalanceAnomalies.
const (
	AnomalyNegativeBalance    = "negative_balance"
	AnomalyOrphanWeight       = "orphan_weight"
	AnomalyImplausibleDensity = "implausible_weight_per_bag"
	AnomalyLargeStep          = "large_weight_step"
)

// AnomalyBounds are the plausibility limits for the anomaly scan. The
// defaults reflect observed godown practice; commodities with unusual bag
// densities override them via configuration.
type AnomalyBounds struct {
	MinKgPerBag float64
	MaxKgPerBag float64
	MaxStepKg   float64
}

// DefaultAnomalyBounds returns the stock limits: 5-300 kg per bag and a
// 50,000 kg single-step ceiling.
func DefaultAnomalyBounds() AnomalyBounds {
	return AnomalyBounds{MinKgPerBag: 5, MaxKgPerBag: 300, MaxStepKg: 50000}
}

// Anomaly is one classified finding from the per-entry scan.
type Anomaly struct {
	MovementID int64           `json:"movement_id"`
	Severity   AnomalySeverity `json:"severity"`
	Kind       string          `json:"kind"`
	Message    string          `json:"message"`
	Balance    Quantity        `json:"balance"`
}

// DetectBalanceAnomalies runs the stricter per-entry scan over a replayed
// sequence. Findings never fail the scan; severity decides how the caller
// surfaces them (HIGH feeds the error channel, MEDIUM/LOW stay advisory).
func DetectBalanceAnomalies(entries []RunningBalanceEntry, bounds AnomalyBounds) []Anomaly {
	minDensity := decimal.NewFromFloat(bounds.MinKgPerBag)
	maxDensity := decimal.NewFromFloat(bounds.MaxKgPerBag)
	maxStep := decimal.NewFromFloat(bounds.MaxStepKg)

	var anomalies []Anomaly
	for _, entry := range entries {
		balance := entry.NewBalance

		if balance.IsNegative() {
			anomalies = append(anomalies, Anomaly{
				MovementID: entry.Movement.ID,
				Severity:   SeverityHigh,
				Kind:       AnomalyNegativeBalance,
				Message:    fmt.Sprintf("balance is negative after movement %d: %s", entry.Movement.ID, balance),
				Balance:    balance,
			})
		}

		if balance.Bags == 0 && balance.NetWeight.IsPositive() {
			anomalies = append(anomalies, Anomaly{
				MovementID: entry.Movement.ID,
				Severity:   SeverityMedium,
				Kind:       AnomalyOrphanWeight,
				Message:    fmt.Sprintf("%s kg on record with zero bags", balance.NetWeight),
				Balance:    balance,
			})
		}

		if balance.Bags > 0 {
			density := balance.NetWeight.Div(decimal.NewFromInt(balance.Bags))
			if density.Cmp(minDensity) < 0 || density.Cmp(maxDensity) > 0 {
				anomalies = append(anomalies, Anomaly{
					MovementID: entry.Movement.ID,
					Severity:   SeverityMedium,
					Kind:       AnomalyImplausibleDensity,
					Message: fmt.Sprintf("%s kg per bag falls outside [%v, %v]",
						density.Round(weightScale), bounds.MinKgPerBag, bounds.MaxKgPerBag),
					Balance: balance,
				})
			}
		}

		if entry.Effect.NetWeight.Abs().Cmp(maxStep) > 0 {
			anomalies = append(anomalies, Anomaly{
				MovementID: entry.Movement.ID,
				Severity:   SeverityLow,
				Kind:       AnomalyLargeStep,
				Message: fmt.Sprintf("movement %d shifts %s kg in one step (limit %v)",
					entry.Movement.ID, entry.Effect.NetWeight.Abs(), bounds.MaxStepKg),
				Balance: balance,
			})
		}
	}
	return anomalies
}
