package types

import (
	"fmt"
	"regexp"
	"time"
)

// ProductIDPattern is the accepted shape for product identifiers.
var ProductIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// SessionIDPattern is the accepted shape for session identifiers.
var SessionIDPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

// Product is a negotiable catalog item. The floor derived from cost and
// minimum margin is never serialised to buyers.
type Product struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Category     string            `json:"category"`
	AnchorPrice  float64           `json:"anchor_price"`
	CostPrice    float64           `json:"cost_price"`
	MinMargin    float64           `json:"min_margin"`
	TargetMargin float64           `json:"target_margin"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Active       bool              `json:"active"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Validate checks identifier shape, price positivity and margin ordering.
func (p *Product) Validate() error {
	if !ProductIDPattern.MatchString(p.ID) {
		return E(KindBadInput, "invalid product id %q", p.ID)
	}

	if p.Name == "" {
		return E(KindBadInput, "product name is required")
	}

	if p.AnchorPrice <= 0 || p.CostPrice <= 0 {
		return E(KindBadInput, "prices must be positive")
	}

	if p.CostPrice >= p.AnchorPrice {
		return E(KindBadInput, "cost price %.2f must be below anchor price %.2f", p.CostPrice, p.AnchorPrice)
	}

	if p.MinMargin < 0 || p.MinMargin >= 1 {
		return E(KindBadInput, "min margin must be in [0,1)")
	}

	if p.TargetMargin < p.MinMargin || p.TargetMargin >= 1 {
		return E(KindBadInput, "target margin must be in [min_margin,1)")
	}

	if target := p.CostPrice * (1 + p.TargetMargin); target > p.AnchorPrice {
		return E(KindBadInput, "target price %.2f exceeds anchor price %.2f", target, p.AnchorPrice)
	}

	return nil
}

func (p *Product) String() string {
	return fmt.Sprintf("%s (%s, anchor %.0f)", p.ID, p.Category, p.AnchorPrice)
}
