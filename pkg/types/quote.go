package types

import "time"

// Quote is the signed, TTL-bound artifact issued when a session reaches
// agreed state. Downstream order placement validates the signature and
// expiry; an expired quote requires a fresh negotiation.
type Quote struct {
	QuoteID   string    `json:"quote_id"`
	SessionID string    `json:"session_id"`
	ProductID string    `json:"product_id"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Signature string    `json:"signature,omitempty"`
}

// Expired reports whether the quote is past its validity window.
func (q *Quote) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}
