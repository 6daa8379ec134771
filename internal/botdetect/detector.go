// Package botdetect scores buyer behaviour for automation. The score is a
// composite of inter-offer timing features and offer-pattern features over a
// rolling window of the session's buyer offers. State lives in the session
// snapshot; the detector itself is stateless.
package botdetect

import (
	"math"
	"time"

	"github.com/molbhav/molbhav/pkg/types"
)

const (
	// ScoreBlock breaks the session with tactic bot_block.
	ScoreBlock = 0.8

	// ScoreSuspicious hardens the concession curve for the round.
	ScoreSuspicious = 0.5

	// BetaPenalty multiplies beta when the score is suspicious.
	BetaPenalty = 1.5

	// window bounds how many recent buyer offers are examined.
	window = 8

	// minOffers is the minimum evidence before any score is produced.
	minOffers = 3

	// maxStdDev is the interval spread (seconds) above which cadence is
	// considered human.
	maxStdDev = 0.5

	// tinyDecrementShare marks greedy-bot price walks: every move smaller
	// than this share of anchor, strictly downward.
	tinyDecrementShare = 0.001

	// defaultReferenceDelay is used when no cooldown is configured.
	defaultReferenceDelay = 2 * time.Second
)

// Result carries the composite score and its components for audit logs.
type Result struct {
	Score   float64
	Timing  float64
	Pattern float64
}

// Block reports whether the session should break.
func (r Result) Block() bool { return r.Score >= ScoreBlock }

// Suspicious reports whether the curve should harden this round.
func (r Result) Suspicious() bool { return r.Score >= ScoreSuspicious }

// Detector scores buyer offer streams against a reference cadence.
type Detector struct {
	referenceDelay time.Duration
}

// New builds a detector. minDelay is the per-session cooldown; offers arriving
// around or under it are machine-fast. A non-positive value falls back to the
// default reference cadence so scoring stays meaningful with cooldown disabled.
func New(minDelay time.Duration) *Detector {
	if minDelay <= 0 {
		minDelay = defaultReferenceDelay
	}

	return &Detector{referenceDelay: minDelay}
}

// Score computes the composite bot score from the session's buyer offers.
// Fewer than three buyer offers yield zero: no evidence, no accusation.
func (d *Detector) Score(buyerOffers []types.Offer, anchor float64) Result {
	if len(buyerOffers) > window {
		buyerOffers = buyerOffers[len(buyerOffers)-window:]
	}

	if len(buyerOffers) < minOffers {
		return Result{}
	}

	res := Result{
		Timing:  d.timingScore(buyerOffers),
		Pattern: patternScore(buyerOffers, anchor),
	}
	res.Score = 0.5*res.Timing + 0.5*res.Pattern

	scoreObserved.Observe(res.Score)
	if res.Block() {
		flagsTotal.WithLabelValues("block").Inc()
	} else if res.Suspicious() {
		flagsTotal.WithLabelValues("suspicious").Inc()
	}

	return res
}

// timingScore blends how far under the reference cadence the mean interval
// sits with how machine-regular the intervals are.
func (d *Detector) timingScore(offers []types.Offer) float64 {
	intervals := make([]float64, 0, len(offers)-1)
	for i := 1; i < len(offers); i++ {
		intervals = append(intervals, offers[i].Timestamp.Sub(offers[i-1].Timestamp).Seconds())
	}

	mean := meanOf(intervals)
	speed := 1 - mean/(d.referenceDelay.Seconds()*3)
	speed = clamp01(speed)

	regularity := 1 - stdDevOf(intervals, mean)/maxStdDev
	regularity = clamp01(regularity)

	return math.Min(1, (speed+regularity)/2)
}

// patternScore looks for machine-shaped price sequences.
func patternScore(offers []types.Offer, anchor float64) float64 {
	deltas := make([]float64, 0, len(offers)-1)
	for i := 1; i < len(offers); i++ {
		deltas = append(deltas, offers[i].Price-offers[i-1].Price)
	}

	if len(deltas) < 2 {
		return 0
	}

	identical := true
	for _, d := range deltas[1:] {
		if d != deltas[0] {
			identical = false
			break
		}
	}
	if identical {
		// Covers repeated identical prices (all-zero deltas) and exact
		// arithmetic sequences alike.
		return 1.0
	}

	score := 0.0

	mean := meanOf(deltas)
	if mean != 0 {
		cv := stdDevOf(deltas, mean) / math.Abs(mean)
		switch {
		case cv < 0.05:
			score = 0.9
		case cv < 0.15:
			score = 0.5
		}
	}

	if tinyDecrements(deltas, anchor) && score < 0.7 {
		score = 0.7
	}

	return score
}

func tinyDecrements(deltas []float64, anchor float64) bool {
	limit := tinyDecrementShare * anchor
	for _, d := range deltas {
		if d >= 0 || math.Abs(d) > limit {
			return false
		}
	}

	return true
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}

	var sum float64
	for _, x := range xs {
		sum += x
	}

	return sum / float64(len(xs))
}

func stdDevOf(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}

	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}

	return math.Sqrt(ss / float64(len(xs)))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}

	return x
}
