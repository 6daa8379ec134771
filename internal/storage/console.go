package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/molbhav/molbhav/pkg/types"
	"go.uber.org/zap"
)

// ConsoleStorage implements Storage in process memory and logs audit writes.
// It backs development and tests; nothing survives a restart.
type ConsoleStorage struct {
	mu        sync.RWMutex
	offers    map[string][]types.Offer        // session_id -> offers
	offerKeys map[string]bool                 // session_id/round/actor dedupe
	summaries map[string]types.SessionSummary // session_id -> summary
	products  map[string]types.Product
	coupons   []types.Coupon
	logger    *zap.Logger
}

// NewConsoleStorage creates a new in-memory console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")

	return &ConsoleStorage{
		offers:    make(map[string][]types.Offer),
		offerKeys: make(map[string]bool),
		summaries: make(map[string]types.SessionSummary),
		products:  make(map[string]types.Product),
		logger:    logger,
	}
}

func offerKey(sessionID string, round int, actor string) string {
	return fmt.Sprintf("%s/%d/%s", sessionID, round, actor)
}

// AppendOfferEvent records one offer; replays of the same (session, round,
// actor) are dropped.
func (c *ConsoleStorage) AppendOfferEvent(_ context.Context, sessionID, buyerRef string, offer *types.Offer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := offerKey(sessionID, offer.Round, offer.Actor)
	if c.offerKeys[key] {
		return nil
	}
	c.offerKeys[key] = true

	c.offers[sessionID] = append(c.offers[sessionID], *offer)

	c.logger.Info("offer-event",
		zap.String("session-id", sessionID),
		zap.String("buyer-ref", buyerRef),
		zap.Int("round", offer.Round),
		zap.String("actor", offer.Actor),
		zap.Float64("price", offer.Price),
		zap.String("tactic", string(offer.Tactic)))

	return nil
}

// OfferEvents returns the session's offers in append order.
func (c *ConsoleStorage) OfferEvents(_ context.Context, sessionID string) ([]types.Offer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	offers := c.offers[sessionID]
	out := make([]types.Offer, len(offers))
	copy(out, offers)

	return out, nil
}

// UpsertSummary writes the session summary without downgrading a terminal
// state.
func (c *ConsoleStorage) UpsertSummary(_ context.Context, summary *types.SessionSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.summaries[summary.SessionID]
	if ok && existing.State.IsTerminal() && !summary.State.IsTerminal() {
		return nil
	}

	c.summaries[summary.SessionID] = *summary

	if summary.State.IsTerminal() {
		c.logger.Info("session-summary",
			zap.String("session-id", summary.SessionID),
			zap.String("state", string(summary.State)),
			zap.Int("rounds", summary.Rounds),
			zap.Float64("final-price", summary.FinalPrice))
	}

	return nil
}

// Summary returns the session summary, or ErrNotFound.
func (c *ConsoleStorage) Summary(_ context.Context, sessionID string) (*types.SessionSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.summaries[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	return &s, nil
}

// ExpiredActiveSessions lists non-terminal sessions whose expiry passed.
func (c *ConsoleStorage) ExpiredActiveSessions(_ context.Context, before time.Time, limit int) ([]types.SessionSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []types.SessionSummary
	for _, s := range c.summaries {
		if !s.State.IsTerminal() && s.ExpiresAt.Before(before) {
			out = append(out, s)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// CreateProduct inserts a catalog product.
func (c *ConsoleStorage) CreateProduct(_ context.Context, p *types.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products[p.ID] = *p
	c.logger.Info("product-created", zap.String("product-id", p.ID))

	return nil
}

// UpdateProduct rewrites a catalog product.
func (c *ConsoleStorage) UpdateProduct(_ context.Context, p *types.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.products[p.ID]; !ok {
		return ErrNotFound
	}

	c.products[p.ID] = *p

	return nil
}

// GetProduct returns a product by id, or ErrNotFound.
func (c *ConsoleStorage) GetProduct(_ context.Context, id string) (*types.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return nil, ErrNotFound
	}

	return &p, nil
}

// ListProducts returns catalog products sorted by id.
func (c *ConsoleStorage) ListProducts(_ context.Context, activeOnly bool) ([]types.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []types.Product
	for _, p := range c.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

// DeactivateProduct marks a product inactive.
func (c *ConsoleStorage) DeactivateProduct(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[id]
	if !ok {
		return ErrNotFound
	}

	p.Active = false
	p.UpdatedAt = time.Now()
	c.products[id] = p

	return nil
}

// CreateCoupon appends a promotion to the catalog.
func (c *ConsoleStorage) CreateCoupon(_ context.Context, coupon *types.Coupon) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.coupons = append(c.coupons, *coupon)
	c.logger.Info("coupon-created", zap.String("coupon-id", coupon.ID))

	return nil
}

// ListCoupons returns the coupon catalog in creation order.
func (c *ConsoleStorage) ListCoupons(_ context.Context, activeOnly bool) ([]types.Coupon, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []types.Coupon
	for _, coupon := range c.coupons {
		if activeOnly && !coupon.Active {
			continue
		}
		out = append(out, coupon)
	}

	return out, nil
}

// Ping always succeeds for the in-memory store.
func (c *ConsoleStorage) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
