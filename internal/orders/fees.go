// Package orders turns approved rotations into IOPV-banded limit orders
// across the two daily execution windows.
package orders

import "momentum-lens/internal/config"

// aggressiveImpactMultiplier scales impact cost for aggressive executions.
const aggressiveImpactMultiplier = 1.5

// FeeBreakdown is the estimated cost of one order.
type FeeBreakdown struct {
	Commission float64
	ImpactCost float64
	TotalCost  float64
	CostRate   float64
}

// FeeModel estimates commission and market-impact cost for an order
// notional. Pure computation, no state.
type FeeModel struct {
	commissionRate float64
	minCommission  float64
	impactBp       float64
}

// NewFeeModel creates a fee model from configuration.
func NewFeeModel(cfg config.FeeConfig) *FeeModel {
	return &FeeModel{
		commissionRate: cfg.CommissionRate,
		minCommission:  cfg.MinCommission,
		impactBp:       cfg.ImpactBp,
	}
}

// Estimate returns the fee breakdown for an order value. Aggressive orders
// carry a 1.5x impact cost.
func (f *FeeModel) Estimate(orderValue float64, aggressive bool) FeeBreakdown {
	commission := orderValue * f.commissionRate
	if commission < f.minCommission {
		commission = f.minCommission
	}

	impact := orderValue * f.impactBp / 10000
	if aggressive {
		impact *= aggressiveImpactMultiplier
	}

	total := commission + impact

	breakdown := FeeBreakdown{
		Commission: commission,
		ImpactCost: impact,
		TotalCost:  total,
	}
	if orderValue > 0 {
		breakdown.CostRate = total / orderValue
	}
	return breakdown
}
