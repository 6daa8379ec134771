// Package pricing implements the deterministic side of a negotiation: the
// time-dependent concession curve, tit-for-tat reciprocity over the buyer's
// offer history, and the hard-floor validator that every outgoing price
// passes through. Everything here is pure; callers own all I/O.
package pricing

import "math"

// FloorPrice is the minimum acceptable seller price in whole rupees.
// It rounds up so the minimum margin is never undercut by a paisa. The
// product is snapped to micro-rupee precision first: 7000 * 1.10 lands on
// 7700.000000000001 in binary floats and must not ceil to 7701.
func FloorPrice(costPrice, minMargin float64) float64 {
	raw := costPrice * (1 + minMargin)
	return math.Ceil(math.Round(raw*1e6) / 1e6)
}

// Curve is the seller's reservation-price schedule over a bounded session.
//
// P(t) = anchor + (floor - anchor) * (t/T)^beta
//
// beta > 1 holds firm and concedes near the deadline (Boulware), beta = 1 is
// linear, beta < 1 concedes early. P is monotonically non-increasing in t.
type Curve struct {
	Anchor    float64
	Floor     float64
	Beta      float64
	MaxRounds int
}

// Price returns the reservation price for the given round in whole rupees,
// clamped to [floor, anchor]. Round 0 is the anchor; rounds at or past the
// deadline sit on the floor.
func (c Curve) Price(round int) float64 {
	if round <= 0 {
		return math.Round(c.Anchor)
	}

	t := float64(round)
	if t > float64(c.MaxRounds) {
		t = float64(c.MaxRounds)
	}

	frac := math.Pow(t/float64(c.MaxRounds), c.Beta)
	p := c.Anchor + (c.Floor-c.Anchor)*frac

	if p < c.Floor {
		p = c.Floor
	}
	if p > c.Anchor {
		p = c.Anchor
	}

	return math.Round(p)
}

// Epsilon is the ZOPA tolerance in rupees for a given anchor and tolerance
// share (default 1% of anchor).
func Epsilon(anchor, epsilonPct float64) float64 {
	return anchor * epsilonPct
}

// InZOPA reports whether a buyer price is acceptable: at or above the floor
// and within epsilon of the candidate counter, or at the deadline's doorstep
// with anything at or above the floor.
func InZOPA(buyerPrice, candidate, floor, epsilon float64, round, maxRounds int) bool {
	if buyerPrice < floor {
		return false
	}

	if round >= maxRounds-1 {
		return true
	}

	return buyerPrice >= candidate-epsilon
}

// CounterCandidate combines the two concession pressures. The curve price is
// the time-based reservation; current minus the reciprocity concession is the
// tit-for-tat mirror. The seller takes the higher of the two, never moves
// upward, and never crosses the floor. Whole rupees.
func CounterCandidate(curvePrice, current, concession, floor float64) float64 {
	cand := current - concession
	if curvePrice > cand {
		cand = curvePrice
	}

	if cand > current {
		cand = current
	}
	if cand < floor {
		cand = floor
	}

	return math.Round(cand)
}
