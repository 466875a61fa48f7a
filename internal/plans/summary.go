package plans

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rank0/digimenu-backend/pkg/db/models"
)

var taxRate = decimal.RequireFromString("0.09")

const day = 24 * time.Hour

// CartSummary is the checkout breakdown for the latest unpaid plan.
type CartSummary struct {
	PlanOrderID *string `json:"plan_order_id,omitempty"`
	PlanName    string  `json:"plan_name,omitempty"`
	PlanCost    int64   `json:"plan_cost"`
	StandsCost  int64   `json:"stands_cost"`
	TaxCost     int64   `json:"tax_cost"`
	TotalCost   int64   `json:"total_cost"`
}

// Summarize computes tax as floor((plan + stands) * 9%).
func Summarize(planCost, standsCost int64) CartSummary {
	subtotal := decimal.NewFromInt(planCost + standsCost)
	tax := subtotal.Mul(taxRate).Floor().IntPart()
	return CartSummary{
		PlanCost:   planCost,
		StandsCost: standsCost,
		TaxCost:    tax,
		TotalCost:  planCost + standsCost + tax,
	}
}

// DaysRemaining is the whole days left on a purchase, never negative.
func DaysRemaining(order *models.PlanOrder, now time.Time) int {
	if order == nil || order.ExpiryDate.IsZero() {
		return 0
	}
	remaining := order.ExpiryDate.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining / day)
}

func IsExpired(order *models.PlanOrder, now time.Time) bool {
	return DaysRemaining(order, now) == 0
}

// IsActive reports a paid purchase that has not run out.
func IsActive(order *models.PlanOrder, now time.Time) bool {
	return order != nil && order.IsPaid && !IsExpired(order, now)
}
