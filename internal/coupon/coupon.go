// Package coupon applies invisible promotions: a discount folded into a
// concession and framed as a personal favour. Coupon codes never leave the
// backend.
package coupon

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/molbhav/molbhav/internal/storage"
	"github.com/molbhav/molbhav/pkg/cache"
	"github.com/molbhav/molbhav/pkg/types"
	"go.uber.org/zap"
)

// catalogCacheTTL keeps the promotion list off the hot path without letting
// deactivated promos linger.
const catalogCacheTTL = 60 * time.Second

const catalogCacheKey = "coupons:active"

// Applied describes the discount folded into a seller counter.
type Applied struct {
	CouponID string
	Discount float64
	NewPrice float64
}

// Service selects and prices applicable promotions.
type Service struct {
	store  storage.Storage
	cache  cache.Cache
	logger *zap.Logger
}

// Config holds coupon service configuration.
type Config struct {
	Store  storage.Storage
	Cache  cache.Cache // nil disables caching
	Logger *zap.Logger
}

// New creates a coupon service.
func New(cfg *Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Service{
		store:  cfg.Store,
		cache:  cfg.Cache,
		logger: cfg.Logger,
	}, nil
}

// Find returns the first catalog coupon whose predicates hold for the given
// category, candidate counter price and round, with the discounted price
// computed. Returns nil when none applies or the discount would cross the
// floor. The catalog is ordered, so the first match wins.
func (s *Service) Find(ctx context.Context, category string, counterPrice, floor float64, round int) (*Applied, error) {
	coupons, err := s.activeCoupons(ctx)
	if err != nil {
		return nil, err
	}

	for i := range coupons {
		c := &coupons[i]
		if !c.Matches(category, counterPrice, round) {
			continue
		}

		discount := c.DiscountFor(counterPrice)
		newPrice := math.Round(counterPrice - discount)

		// Invisible or not, the floor holds.
		if newPrice < floor {
			continue
		}

		s.logger.Info("invisible-coupon-applied",
			zap.String("coupon-id", c.ID),
			zap.Float64("discount", discount))

		return &Applied{
			CouponID: c.ID,
			Discount: discount,
			NewPrice: newPrice,
		}, nil
	}

	return nil, nil
}

func (s *Service) activeCoupons(ctx context.Context) ([]types.Coupon, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(catalogCacheKey); ok {
			if coupons, ok := cached.([]types.Coupon); ok {
				return coupons, nil
			}
		}
	}

	coupons, err := s.store.ListCoupons(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(catalogCacheKey, coupons, catalogCacheTTL)
	}

	return coupons, nil
}
