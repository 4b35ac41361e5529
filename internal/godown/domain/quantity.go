package godown

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// weightScale is the fixed-point scale for net weights in kilograms.
const weightScale = 2

// negativeWeightTolerance absorbs rounding noise when deciding whether a
// weight has actually gone below zero.
var negativeWeightTolerance = decimal.New(-1, -3) // -0.001

// Quantity is a signed stock amount: a bag count plus a net weight in kg.
type Quantity struct {
	Bags      int64           `json:"bags"`
	NetWeight decimal.Decimal `json:"net_weight"`
}

// NewQuantity builds a quantity with the weight rounded to the ledger scale.
func NewQuantity(bags int64, netWeight decimal.Decimal) Quantity {
	return Quantity{Bags: bags, NetWeight: netWeight.Round(weightScale)}
}

// QuantityFromFloat is a convenience constructor for callers holding float weights.
func QuantityFromFloat(bags int64, netWeightKg float64) Quantity {
	return NewQuantity(bags, decimal.NewFromFloat(netWeightKg))
}

// ZeroQuantity returns the additive identity.
func ZeroQuantity() Quantity {
	return Quantity{Bags: 0, NetWeight: decimal.Zero}
}

// Add returns q + other, re-rounded to the ledger scale after accumulation.
func (q Quantity) Add(other Quantity) Quantity {
	return Quantity{
		Bags:      q.Bags + other.Bags,
		NetWeight: q.NetWeight.Add(other.NetWeight).Round(weightScale),
	}
}

// Sub returns q - other.
func (q Quantity) Sub(other Quantity) Quantity {
	return q.Add(other.Neg())
}

// Neg returns the quantity with both components negated.
func (q Quantity) Neg() Quantity {
	return Quantity{Bags: -q.Bags, NetWeight: q.NetWeight.Neg()}
}

// IsZero reports whether both components are zero.
func (q Quantity) IsZero() bool {
	return q.Bags == 0 && q.NetWeight.IsZero()
}

// IsNegative reports whether either component is below zero, with the weight
// checked beyond the rounding tolerance.
func (q Quantity) IsNegative() bool {
	return q.Bags < 0 || q.NetWeight.Cmp(negativeWeightTolerance) < 0
}

// Equal reports exact equality of bags and weight equality within weightTol.
func (q Quantity) Equal(other Quantity, weightTol decimal.Decimal) bool {
	if q.Bags != other.Bags {
		return false
	}
	return q.NetWeight.Sub(other.NetWeight).Abs().Cmp(weightTol) <= 0
}

// Validate enforces the non-negative invariant and rejects bags without weight.
func (q Quantity) Validate() error {
	if q.Bags < 0 || q.NetWeight.IsNegative() {
		return ErrNegativeQuantity
	}
	if q.Bags > 0 && !q.NetWeight.IsPositive() {
		return ErrWeightlessBags
	}
	return nil
}

func (q Quantity) String() string {
	return fmt.Sprintf("%d bags / %s kg", q.Bags, q.NetWeight.StringFixed(weightScale))
}
