package types

import "time"

// SessionState is the SAO machine state of a negotiation session.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateProposing  SessionState = "proposing"
	StateResponding SessionState = "responding"
	StateAgreed     SessionState = "agreed"
	StateBroken     SessionState = "broken"
	StateTimedOut   SessionState = "timed_out"
)

// IsTerminal reports whether the state absorbs all further input.
func (s SessionState) IsTerminal() bool {
	return s == StateAgreed || s == StateBroken || s == StateTimedOut
}

// Tactic labels the seller move chosen for a round.
type Tactic string

const (
	TacticOpeningAnchor Tactic = "opening_anchor"
	TacticAccept        Tactic = "accept"
	TacticBotBlock      Tactic = "bot_block"
	TacticDeadline      Tactic = "deadline"
	TacticWalkAwaySave  Tactic = "walk_away_save"
	TacticAnchorDefense Tactic = "anchor_defense"
	TacticQuantityPivot Tactic = "quantity_pivot"
	TacticConcession    Tactic = "concession"
	TacticTimeout       Tactic = "timeout"
)

// Buyer sentiment labels derived from the free-text message.
const (
	SentimentNeutral = "neutral"
	SentimentExit    = "exit"
	SentimentAngry   = "angry"
)

// Offer actors.
const (
	ActorBuyer  = "buyer"
	ActorSeller = "seller"
)

// Supported response languages.
var SupportedLanguages = map[string]bool{
	"en": true, "hi": true, "ta": true, "te": true, "mr": true,
}

// BundleOffer is the quantity-pivot proposal attached to a seller offer.
type BundleOffer struct {
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
}

// Offer is one immutable entry in a session's offer log.
type Offer struct {
	Actor             string             `json:"actor"`
	Price             float64            `json:"price"`
	Message           string             `json:"message,omitempty"`
	Tactic            Tactic             `json:"tactic,omitempty"`
	Round             int                `json:"round"`
	Timestamp         time.Time          `json:"timestamp"`
	Features          map[string]float64 `json:"features,omitempty"`
	ValidatorOverride bool               `json:"validator_override,omitempty"`
	CouponApplied     bool               `json:"coupon_applied,omitempty"`
	CouponID          string             `json:"coupon_id,omitempty"`
	Bundle            *BundleOffer       `json:"bundle,omitempty"`
}

// NegotiationSession is the full per-session snapshot stored in the hot tier.
// It is a value: copies are safe to mutate until persisted under the session lock.
type NegotiationSession struct {
	SessionID       string       `json:"session_id"`
	SessionToken    string       `json:"session_token"`
	ProductID       string       `json:"product_id"`
	BuyerRef        string       `json:"buyer_ref"`
	Language        string       `json:"language"`
	AnchorPrice     float64      `json:"anchor_price"`
	FloorPrice      float64      `json:"floor_price"`
	CurrentPrice    float64      `json:"current_price"`
	LastBuyerPrice  float64      `json:"last_buyer_price"`
	Round           int          `json:"round"`
	MaxRounds       int          `json:"max_rounds"`
	State           SessionState `json:"state"`
	Tactic          Tactic       `json:"tactic"`
	Sentiment       string       `json:"sentiment"`
	Beta            float64      `json:"beta"`
	Alpha           float64      `json:"alpha"`
	Offers          []Offer      `json:"offers"`
	BotScore        float64      `json:"bot_score"`
	FlounceUsed     bool         `json:"flounce_used"`
	CouponsApplied  []string     `json:"coupons_applied,omitempty"`
	Degraded        bool         `json:"degraded,omitempty"`
	AgreedPrice     *float64     `json:"agreed_price,omitempty"`
	QuoteTTLSeconds int          `json:"quote_ttl_seconds"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	ExpiresAt       time.Time    `json:"expires_at"`
}

// BuyerOffers returns the buyer-side entries of the offer log in order.
func (s *NegotiationSession) BuyerOffers() []Offer {
	out := make([]Offer, 0, len(s.Offers)/2+1)
	for _, o := range s.Offers {
		if o.Actor == ActorBuyer {
			out = append(out, o)
		}
	}

	return out
}

// LastOffer returns the most recent offer by the given actor, or nil.
func (s *NegotiationSession) LastOffer(actor string) *Offer {
	for i := len(s.Offers) - 1; i >= 0; i-- {
		if s.Offers[i].Actor == actor {
			o := s.Offers[i]
			return &o
		}
	}

	return nil
}

// Expired reports whether the session TTL has lapsed at the given instant.
func (s *NegotiationSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Clone deep-copies the session so a transition can be rolled back if
// persistence fails.
func (s *NegotiationSession) Clone() *NegotiationSession {
	c := *s
	c.Offers = make([]Offer, len(s.Offers))
	copy(c.Offers, s.Offers)

	if len(s.CouponsApplied) > 0 {
		c.CouponsApplied = append([]string(nil), s.CouponsApplied...)
	}

	if s.AgreedPrice != nil {
		v := *s.AgreedPrice
		c.AgreedPrice = &v
	}

	return &c
}

// SessionSummary is the one-shot durable record written on terminal state.
type SessionSummary struct {
	SessionID   string       `json:"session_id"`
	ProductID   string       `json:"product_id"`
	BuyerRef    string       `json:"buyer_ref"`
	TokenHash   string       `json:"-"` // SHA-256 of the session token, never serialised
	State       SessionState `json:"state"`
	Tactic      Tactic       `json:"tactic"`
	Rounds      int          `json:"rounds"`
	AnchorPrice float64      `json:"anchor_price"`
	FinalPrice  float64      `json:"final_price"`
	AgreedPrice *float64     `json:"agreed_price,omitempty"`
	BotScore    float64      `json:"bot_score"`
	Degraded    bool         `json:"degraded"`
	CreatedAt   time.Time    `json:"created_at"`
	ClosedAt    time.Time    `json:"closed_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
}
