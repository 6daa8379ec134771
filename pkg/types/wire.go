package types

import "time"

// StartRequest is the body of POST /negotiate/start.
type StartRequest struct {
	ProductID string `json:"product_id"`
	BuyerName string `json:"buyer_name,omitempty"`
	Language  string `json:"language,omitempty"`
}

// OfferRequest is the body of POST /negotiate/{session_id}/offer. Round is
// optional; when set it must name the round the client expects to play, so
// blind retries surface as out_of_order instead of double-spending a round.
type OfferRequest struct {
	Price    float64 `json:"price"`
	Message  string  `json:"message,omitempty"`
	Language string  `json:"language,omitempty"`
	Round    *int    `json:"round,omitempty"`
}

// Metadata keys attached to session responses.
const (
	MetaValidatorOverride = "validator_override"
	MetaDialogueFallback  = "dialogue_fallback"
	MetaMessageRedacted   = "buyer_message_redacted"
	MetaCouponApplied     = "coupon_applied"
	MetaReasoning         = "reasoning"
	MetaQuote             = "quote"
	MetaBundle            = "bundle"
	MetaDegraded          = "degraded"
)

// SessionResponse is the wire shape returned by start, offer and status.
// SessionToken is populated only by start.
type SessionResponse struct {
	SessionID       string         `json:"session_id"`
	SessionToken    string         `json:"session_token,omitempty"`
	Message         string         `json:"message"`
	CurrentPrice    float64        `json:"current_price"`
	AnchorPrice     float64        `json:"anchor_price"`
	State           SessionState   `json:"state"`
	Tactic          Tactic         `json:"tactic"`
	Sentiment       string         `json:"sentiment"`
	Round           int            `json:"round"`
	MaxRounds       int            `json:"max_rounds"`
	QuoteTTLSeconds int            `json:"quote_ttl_seconds"`
	AgreedPrice     *float64       `json:"agreed_price"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Kind      ErrorKind `json:"kind"`
	Error     string    `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

// OfferEvent is the admin feed record published after each processed offer.
// It intentionally carries no prices: the feed is for liveness monitoring,
// not for replaying negotiations.
type OfferEvent struct {
	SessionID string       `json:"session_id"`
	ProductID string       `json:"product_id"`
	Round     int          `json:"round"`
	Actor     string       `json:"actor"`
	State     SessionState `json:"state"`
	Tactic    Tactic       `json:"tactic"`
	Timestamp time.Time    `json:"timestamp"`
}
