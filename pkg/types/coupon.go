package types

import "time"

// Coupon is an invisible promotion folded into a concession. The code is
// persisted for reconciliation but never serialised toward buyers.
type Coupon struct {
	ID          string    `json:"id"`
	Code        string    `json:"-"`
	Category    string    `json:"category,omitempty"` // empty matches any category
	MinPrice    float64   `json:"min_price"`
	MinRound    int       `json:"min_round"`
	DiscountPct float64   `json:"discount_pct"`
	MaxDiscount float64   `json:"max_discount"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// DiscountFor computes the rupee discount this coupon grants on price,
// honouring the per-coupon cap.
func (c *Coupon) DiscountFor(price float64) float64 {
	d := price * c.DiscountPct
	if c.MaxDiscount > 0 && d > c.MaxDiscount {
		d = c.MaxDiscount
	}

	return d
}

// Matches reports whether the coupon predicates hold for the given
// category, candidate price and round.
func (c *Coupon) Matches(category string, price float64, round int) bool {
	if !c.Active {
		return false
	}

	if c.Category != "" && c.Category != category {
		return false
	}

	if price < c.MinPrice {
		return false
	}

	return round >= c.MinRound
}
