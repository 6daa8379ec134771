package pricing

import (
	"math"

	"github.com/molbhav/molbhav/pkg/types"
)

// Clamp reasons recorded on validator results.
const (
	ReasonBelowFloor   = "below_floor"
	ReasonAboveAnchor  = "above_anchor"
	ReasonMonotonicity = "monotonicity"
)

// buyerPriceCeiling rejects absurd inputs before they reach float math.
const buyerPriceCeiling = 1e9

// ValidatorInput is a candidate seller price plus the bounds it must respect.
type ValidatorInput struct {
	Candidate float64
	Floor     float64
	Anchor    float64
	Previous  float64 // previous seller price, 0 when none yet
	LastGood  float64 // last known-good candidate, used when Candidate dips below floor
}

// ValidatorResult is the clamped price with an audit trail.
type ValidatorResult struct {
	Price      float64
	Overridden bool
	Reasons    []string
}

// Clamp is the hallucination guardrail: the final gate every outgoing price
// passes through. It rejects non-finite or non-positive candidates and clamps
// the rest into [floor, min(anchor, previous)]. Clamping an already-clamped
// price is a no-op.
func Clamp(in ValidatorInput) (ValidatorResult, error) {
	if math.IsNaN(in.Candidate) || math.IsInf(in.Candidate, 0) {
		return ValidatorResult{}, types.E(types.KindValidationFailed, "candidate price is not finite")
	}

	if in.Candidate <= 0 {
		return ValidatorResult{}, types.E(types.KindValidationFailed, "candidate price %.2f is not positive", in.Candidate)
	}

	res := ValidatorResult{Price: in.Candidate}

	if res.Price > in.Anchor {
		res.Price = in.Anchor
		res.Reasons = append(res.Reasons, ReasonAboveAnchor)
	}

	if in.Previous > 0 && res.Price > in.Previous {
		res.Price = in.Previous
		res.Reasons = append(res.Reasons, ReasonMonotonicity)
	}

	if res.Price < in.Floor {
		fallback := in.LastGood
		if fallback < in.Floor {
			fallback = in.Floor
		}
		if in.Previous > 0 && fallback > in.Previous {
			fallback = in.Previous
		}

		res.Price = fallback
		res.Overridden = true
		res.Reasons = append(res.Reasons, ReasonBelowFloor)
	}

	res.Price = math.Round(res.Price)

	return res, nil
}

// ValidateBuyerPrice rejects malformed buyer input before it touches session
// state.
func ValidateBuyerPrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return types.E(types.KindBadInput, "price must be a finite number")
	}

	if price <= 0 {
		return types.E(types.KindBadInput, "price must be positive")
	}

	if price > buyerPriceCeiling {
		return types.E(types.KindBadInput, "price exceeds the supported range")
	}

	return nil
}
