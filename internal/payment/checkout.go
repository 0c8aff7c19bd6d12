package payment

import (
	"math"
	"time"

	"github.com/JakeConal/smart-restaurant/internal/order"
)

const (
	// Aggregate base totals strictly above this threshold earn the volume
	// discount. The decision is made once per checkout, over the whole
	// aggregate, never per constituent order.
	discountThreshold = 100.0
	discountPercent   = 10.0
)

// Checkout is the ephemeral aggregate of unpaid orders selected for one
// gateway transaction. It is recomputed from current orders every time
// checkout is opened and persisted only under its reconciliation key for the
// duration of the gateway round-trip.
type Checkout struct {
	Key             string     `json:"key,omitempty"`
	OrderIDs        []string   `json:"order_ids"`
	BaseTotal       float64    `json:"base_total"`
	DiscountPercent float64    `json:"discount_percent"`
	DiscountAmount  float64    `json:"discount_amount"`
	FinalTotal      float64    `json:"final_total"`
	CreatedAt       time.Time  `json:"created_at"`
	ReconciledAt    *time.Time `json:"reconciled_at,omitempty"`
	Result          *Result    `json:"result,omitempty"`
}

// Result is what verifyReturn produces. Duplicate callbacks for the same
// reconciliation key replay the identical stored result.
type Result struct {
	Success       bool     `json:"success"`
	OrderIDs      []string `json:"order_ids"`
	Message       string   `json:"message"`
	TransactionNo string   `json:"transaction_no,omitempty"`
}

// ComputeCheckout aggregates the given unpaid orders into one checkout.
// Deterministic for the same input set; already-paid orders are skipped and
// each order id counts once no matter how often the caller lists it.
func ComputeCheckout(orders []*order.Order) Checkout {
	c := Checkout{}
	seen := make(map[string]bool, len(orders))
	for _, o := range orders {
		if o.IsPaid || seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		c.OrderIDs = append(c.OrderIDs, o.ID)
		c.BaseTotal += o.Total
	}
	c.BaseTotal = round2(c.BaseTotal)
	if c.BaseTotal > discountThreshold {
		c.DiscountPercent = discountPercent
		c.DiscountAmount = round2(c.BaseTotal * discountPercent / 100)
	}
	c.FinalTotal = round2(c.BaseTotal - c.DiscountAmount)
	if c.FinalTotal < 0 {
		c.FinalTotal = 0
	}
	return c
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
