package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/molbhav/molbhav/internal/storage"
)

func TestSeedProductsAreValid(t *testing.T) {
	for _, p := range seedProducts {
		assert.NoError(t, p.Validate(), "product %s", p.ID)
	}
}

func TestSeedCouponPredicates(t *testing.T) {
	audio := seedCoupons[1]

	assert.True(t, audio.Matches("audio", 1100, 4), "audio coupon should match audio category from round 4")
	assert.False(t, audio.Matches("shoes", 1100, 4), "audio coupon must not match other categories")
	assert.False(t, audio.Matches("audio", 1100, 3), "audio coupon must not fire before round 4")

	festive := seedCoupons[0]
	assert.Equal(t, 500.0, festive.DiscountFor(60000), "festive discount should cap at 500")
}

func TestSeedIntoConsoleStorage(t *testing.T) {
	store := storage.NewConsoleStorage(zap.NewNop())
	ctx := context.Background()

	for i := range seedProducts {
		assert.NoError(t, store.CreateProduct(ctx, &seedProducts[i]))
	}
	for i := range seedCoupons {
		assert.NoError(t, store.CreateCoupon(ctx, &seedCoupons[i]))
	}

	products, err := store.ListProducts(ctx, false)
	assert.NoError(t, err)
	assert.Len(t, products, len(seedProducts))

	coupons, err := store.ListCoupons(ctx, true)
	assert.NoError(t, err)
	assert.Len(t, coupons, len(seedCoupons))
}
