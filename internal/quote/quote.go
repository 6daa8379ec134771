// Package quote issues the signed, TTL-bound artifact a session earns when
// it reaches agreed state. Downstream order placement verifies the signature
// and expiry; an expired quote forces a fresh negotiation.
package quote

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/molbhav/molbhav/pkg/types"
)

// VerifyResult explains why a quote did or did not verify.
type VerifyResult struct {
	Valid  bool
	Reason string
}

// Builder signs quotes with a server-side HMAC key.
type Builder struct {
	signingKey []byte
	ttl        time.Duration
	nowFunc    func() time.Time
}

// Config holds quote builder configuration.
type Config struct {
	SigningKey string
	TTL        time.Duration
}

// New creates a quote builder.
func New(cfg *Config) (*Builder, error) {
	if cfg.SigningKey == "" {
		return nil, fmt.Errorf("signing key cannot be empty")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("ttl must be positive")
	}

	return &Builder{
		signingKey: []byte(cfg.SigningKey),
		ttl:        cfg.TTL,
		nowFunc:    time.Now,
	}, nil
}

// SetNow overrides the clock for tests.
func (b *Builder) SetNow(now func() time.Time) {
	b.nowFunc = now
}

// Build issues a signed quote for an agreed session.
func (b *Builder) Build(session *types.NegotiationSession) (*types.Quote, error) {
	if session.State != types.StateAgreed || session.AgreedPrice == nil {
		return nil, fmt.Errorf("session %s is not agreed", session.SessionID)
	}

	issued := b.nowFunc().UTC().Truncate(time.Second)

	q := &types.Quote{
		QuoteID:   uuid.NewString(),
		SessionID: session.SessionID,
		ProductID: session.ProductID,
		Price:     *session.AgreedPrice,
		Currency:  "INR",
		IssuedAt:  issued,
		ExpiresAt: issued.Add(b.ttl),
	}

	sig, err := b.sign(q)
	if err != nil {
		return nil, fmt.Errorf("sign quote: %w", err)
	}

	q.Signature = sig

	return q, nil
}

// Verify recomputes the signature and checks expiry against the current
// clock. The comparison is constant-time.
func (b *Builder) Verify(q *types.Quote) VerifyResult {
	expected, err := b.sign(q)
	if err != nil {
		return VerifyResult{Reason: "canonicalisation failed"}
	}

	if !hmac.Equal([]byte(expected), []byte(q.Signature)) {
		return VerifyResult{Reason: "signature mismatch"}
	}

	if q.Expired(b.nowFunc()) {
		return VerifyResult{Reason: "quote expired"}
	}

	return VerifyResult{Valid: true}
}

// canonicalQuote fixes the signed field set and key order; the signature
// itself is excluded.
type canonicalQuote struct {
	Currency  string  `json:"currency"`
	ExpiresAt string  `json:"expires_at"`
	IssuedAt  string  `json:"issued_at"`
	Price     float64 `json:"price"`
	ProductID string  `json:"product_id"`
	QuoteID   string  `json:"quote_id"`
	SessionID string  `json:"session_id"`
}

func (b *Builder) sign(q *types.Quote) (string, error) {
	canonical, err := json.Marshal(canonicalQuote{
		Currency:  q.Currency,
		ExpiresAt: q.ExpiresAt.UTC().Format(time.RFC3339),
		IssuedAt:  q.IssuedAt.UTC().Format(time.RFC3339),
		Price:     q.Price,
		ProductID: q.ProductID,
		QuoteID:   q.QuoteID,
		SessionID: q.SessionID,
	})
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, b.signingKey)
	mac.Write(canonical)

	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}
