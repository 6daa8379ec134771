// Package negotiation drives haggling sessions: the stacked-alternating-offers
// machine that picks a tactic per buyer offer, and the service that wraps it
// with locking, persistence, dialogue and quotes.
package negotiation

import (
	"math"

	"github.com/molbhav/molbhav/internal/botdetect"
	"github.com/molbhav/molbhav/internal/pricing"
	"github.com/molbhav/molbhav/pkg/types"
)

const (
	// flounceCut is the one-shot walk-away-save concession applied to the
	// seller's current price.
	flounceCut = 0.05

	// bundleQuantity and bundleUnitDiscount describe the quantity-pivot
	// counter: same price pressure, more units.
	bundleQuantity     = 2
	bundleUnitDiscount = 100.0
)

// Decision is the machine's verdict on one buyer offer. It never mutates the
// session; the service applies it under the session lock.
type Decision struct {
	State        types.SessionState
	Tactic       types.Tactic
	CounterPrice float64
	AgreedPrice  *float64
	SetFlounce   bool
	Bundle       *types.BundleOffer
	Validation   pricing.ValidatorResult
	Bot          botdetect.Result
	CurvePrice   float64
	Reciprocity  float64
	BetaUsed     float64
}

// Machine evaluates SAO transitions. It is stateless; all per-session state
// arrives in the snapshot.
type Machine struct {
	epsilonPct float64
	detector   *botdetect.Detector
}

// NewMachine builds a machine with the given ZOPA tolerance (share of anchor)
// and bot detector.
func NewMachine(epsilonPct float64, detector *botdetect.Detector) *Machine {
	return &Machine{epsilonPct: epsilonPct, detector: detector}
}

// Step decides the seller's answer to the buyer offer already appended to the
// session (s.Round names the round being played, s.LastBuyerPrice the bid).
// Transition rules are evaluated strictly in order; the first match wins.
func (m *Machine) Step(s *types.NegotiationSession, sentiment string) (Decision, error) {
	if s.State.IsTerminal() {
		return Decision{}, types.E(types.KindSessionClosed, "session %s is %s", s.SessionID, s.State)
	}

	buyerOffers := s.BuyerOffers()
	bot := m.detector.Score(buyerOffers, s.AnchorPrice)

	beta := s.Beta
	if bot.Suspicious() && !bot.Block() {
		beta *= botdetect.BetaPenalty
	}

	curve := pricing.Curve{
		Anchor:    s.AnchorPrice,
		Floor:     s.FloorPrice,
		Beta:      beta,
		MaxRounds: s.MaxRounds,
	}
	curvePrice := curve.Price(s.Round)

	tracker := pricing.NewTracker(s.Alpha, s.AnchorPrice, s.FloorPrice, buyerOffers)
	reciprocity := tracker.Concession(s.Round, s.MaxRounds)
	candidate := pricing.CounterCandidate(curvePrice, s.CurrentPrice, reciprocity, s.FloorPrice)

	d := Decision{
		State:        types.StateResponding,
		Bot:          bot,
		CurvePrice:   curvePrice,
		Reciprocity:  reciprocity,
		BetaUsed:     beta,
		CounterPrice: s.CurrentPrice,
	}

	b := s.LastBuyerPrice
	epsilon := pricing.Epsilon(s.AnchorPrice, m.epsilonPct)

	// Rule 1: buyer inside the zone of possible agreement.
	if pricing.InZOPA(b, candidate, s.FloorPrice, epsilon, s.Round, s.MaxRounds) {
		agreed := math.Min(b, s.AnchorPrice)
		d.State = types.StateAgreed
		d.Tactic = types.TacticAccept
		d.AgreedPrice = &agreed
		d.CounterPrice = agreed

		return d, nil
	}

	// Rule 2: scripted buyer, break off.
	if bot.Block() {
		d.State = types.StateBroken
		d.Tactic = types.TacticBotBlock

		return d, nil
	}

	// Rule 3: round budget exhausted without agreement.
	if s.Round >= s.MaxRounds {
		d.State = types.StateBroken
		d.Tactic = types.TacticDeadline

		return d, nil
	}

	// Rule 4: buyer signalling exit, spend the one-shot save. A cut that
	// would cross the floor lands on the floor instead.
	if sentiment == types.SentimentExit && !s.FlounceUsed {
		res, err := pricing.Clamp(pricing.ValidatorInput{
			Candidate: s.CurrentPrice * (1 - flounceCut),
			Floor:     s.FloorPrice,
			Anchor:    s.AnchorPrice,
			Previous:  s.CurrentPrice,
		})
		if err != nil {
			return Decision{}, err
		}

		d.Tactic = types.TacticWalkAwaySave
		d.CounterPrice = res.Price
		d.Validation = res
		d.SetFlounce = true

		return d, nil
	}

	// Rule 5: lowball under the floor, hold the line.
	if b < s.FloorPrice && s.Round < s.MaxRounds-1 {
		d.Tactic = types.TacticAnchorDefense
		d.CounterPrice = s.CurrentPrice

		return d, nil
	}

	// Rule 6: buyer stalling in tiny steps, pivot to quantity.
	if tracker.Stalling() {
		unit := math.Max(s.FloorPrice, s.CurrentPrice-bundleUnitDiscount)
		d.Tactic = types.TacticQuantityPivot
		d.CounterPrice = s.CurrentPrice
		d.Bundle = &types.BundleOffer{
			Quantity:   bundleQuantity,
			UnitPrice:  unit,
			TotalPrice: float64(bundleQuantity) * unit,
		}

		return d, nil
	}

	// Rule 7: default concession along curve and reciprocity.
	res, err := pricing.Clamp(pricing.ValidatorInput{
		Candidate: candidate,
		Floor:     s.FloorPrice,
		Anchor:    s.AnchorPrice,
		Previous:  s.CurrentPrice,
		LastGood:  curvePrice,
	})
	if err != nil {
		return Decision{}, err
	}

	d.Tactic = types.TacticConcession
	d.CounterPrice = res.Price
	d.Validation = res

	return d, nil
}

// Timeout is the TTL-expiry transition applied when an expired session is
// touched or swept.
func (m *Machine) Timeout(s *types.NegotiationSession) Decision {
	return Decision{
		State:        types.StateTimedOut,
		Tactic:       types.TacticTimeout,
		CounterPrice: s.CurrentPrice,
	}
}
