// Package catalog serves the product catalog: read-through cached lookups
// for the negotiation path and CRUD for the admin surface. Writes invalidate
// the cache entry so admins read their own writes.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/molbhav/molbhav/internal/storage"
	"github.com/molbhav/molbhav/pkg/cache"
	"github.com/molbhav/molbhav/pkg/types"
	"go.uber.org/zap"
)

// productCacheTTL bounds how stale a cached product can get when an admin
// write bypasses this process.
const productCacheTTL = 5 * time.Minute

// Service wraps durable product storage with a cache.
type Service struct {
	store  storage.Storage
	cache  cache.Cache
	logger *zap.Logger
}

// Config holds catalog service configuration.
type Config struct {
	Store  storage.Storage
	Cache  cache.Cache // nil disables caching
	Logger *zap.Logger
}

// New creates a catalog service.
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

func cacheKey(id string) string {
	return "product:" + id
}

// Get returns a product by id, serving from cache when possible. Missing
// products surface storage.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*types.Product, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKey(id)); ok {
			if p, ok := cached.(*types.Product); ok {
				return p, nil
			}
		}
	}

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}

	if s.cache != nil {
		s.cache.Set(cacheKey(id), p, productCacheTTL)
	}

	return p, nil
}

// List returns catalog products.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]types.Product, error) {
	products, err := s.store.ListProducts(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return products, nil
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, p *types.Product) error {
	err := p.Validate()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Active = true

	err = s.store.CreateProduct(ctx, p)
	if err != nil {
		return fmt.Errorf("create product %s: %w", p.ID, err)
	}

	s.logger.Info("product-created",
		zap.String("product-id", p.ID),
		zap.Float64("anchor-price", p.AnchorPrice))

	return nil
}

// Update validates and rewrites a product, invalidating its cache entry.
func (s *Service) Update(ctx context.Context, p *types.Product) error {
	err := p.Validate()
	if err != nil {
		return err
	}

	p.UpdatedAt = time.Now().UTC()

	err = s.store.UpdateProduct(ctx, p)
	if err != nil {
		return fmt.Errorf("update product %s: %w", p.ID, err)
	}

	if s.cache != nil {
		s.cache.Delete(cacheKey(p.ID))
	}

	s.logger.Info("product-updated", zap.String("product-id", p.ID))

	return nil
}

// Deactivate retires a product from new negotiations.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	err := s.store.DeactivateProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("deactivate product %s: %w", id, err)
	}

	if s.cache != nil {
		s.cache.Delete(cacheKey(id))
	}

	s.logger.Info("product-deactivated", zap.String("product-id", id))

	return nil
}
