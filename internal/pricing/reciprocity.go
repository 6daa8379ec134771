package pricing

import (
	"math"

	"github.com/molbhav/molbhav/pkg/types"
)

const (
	// reciprocityWindow bounds how many recent buyer moves feed the average.
	reciprocityWindow = 3

	// maxConcessionShare caps a single reciprocity concession at a share of
	// the anchor-to-floor range so one large buyer jump cannot drain the
	// seller's room in a single round.
	maxConcessionShare = 0.10

	// stallDeltaShare is the buyer-move size (as a share of anchor) below
	// which a move counts as stalling.
	stallDeltaShare = 0.005

	// trendSlope is the rupee-per-move slope separating rising from falling.
	trendSlope = 5.0
)

// Trend classifies the buyer's recent movement.
type Trend string

const (
	TrendRising   Trend = "rising"
	TrendStalling Trend = "stalling"
	TrendFalling  Trend = "falling"
)

// Tracker derives reciprocity signals from a session's buyer offers. It is a
// value recomputed per round from the offer log, not a long-lived actor.
type Tracker struct {
	alpha         float64
	maxConcession float64
	anchor        float64
	deltas        []float64
}

// NewTracker builds a tracker over the buyer offers of a session. alpha is
// the damping factor applied to the buyer's average concession.
func NewTracker(alpha, anchor, floor float64, buyerOffers []types.Offer) *Tracker {
	t := &Tracker{
		alpha:         alpha,
		anchor:        anchor,
		maxConcession: maxConcessionShare * (anchor - floor),
	}

	for i := 1; i < len(buyerOffers); i++ {
		t.deltas = append(t.deltas, buyerOffers[i].Price-buyerOffers[i-1].Price)
	}

	return t
}

// LastDelta returns the buyer's most recent move, or 0 with one offer or none.
func (t *Tracker) LastDelta() float64 {
	if len(t.deltas) == 0 {
		return 0
	}

	return t.deltas[len(t.deltas)-1]
}

// AverageConcession is the mean of the recent buyer moves within the window.
// Negative means the buyer is walking their bid back down.
func (t *Tracker) AverageConcession() float64 {
	if len(t.deltas) == 0 {
		return 0
	}

	window := t.deltas
	if len(window) > reciprocityWindow {
		window = window[len(window)-reciprocityWindow:]
	}

	var sum float64
	for _, d := range window {
		sum += d
	}

	return sum / float64(len(window))
}

// AdaptiveAlpha strengthens reciprocity as the deadline approaches:
// alpha_eff = clamp(alpha * (1 + 0.5*t/T), 0, 1).
func (t *Tracker) AdaptiveAlpha(round, maxRounds int) float64 {
	if maxRounds <= 0 {
		return t.alpha
	}

	eff := t.alpha * (1 + 0.5*float64(round)/float64(maxRounds))
	if eff > 1 {
		eff = 1
	}
	if eff < 0 {
		eff = 0
	}

	return eff
}

// Concession is the seller's tit-for-tat give for this round: the damped
// average of recent buyer concessions, capped, and zero when the buyer is
// not moving up.
func (t *Tracker) Concession(round, maxRounds int) float64 {
	avg := t.AverageConcession()
	if avg <= 0 {
		return 0
	}

	give := t.AdaptiveAlpha(round, maxRounds) * avg
	if give > t.maxConcession {
		give = t.maxConcession
	}

	return give
}

// Stalling reports whether the buyer's last three moves were all tiny
// (|delta| <= 0.5% of anchor). Three such moves in a row mark a buyer who
// has stopped negotiating in good faith on price.
func (t *Tracker) Stalling() bool {
	if len(t.deltas) < 3 {
		return false
	}

	limit := stallDeltaShare * t.anchor
	for _, d := range t.deltas[len(t.deltas)-3:] {
		if math.Abs(d) > limit {
			return false
		}
	}

	return true
}

// Trend summarises the recent window: rising when the average move is above
// the slope threshold, falling when below its negative, stalling otherwise.
func (t *Tracker) Trend() Trend {
	avg := t.AverageConcession()

	switch {
	case avg > trendSlope:
		return TrendRising
	case avg < -trendSlope:
		return TrendFalling
	default:
		return TrendStalling
	}
}
