package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/molbhav/molbhav/internal/storage"
	"github.com/molbhav/molbhav/pkg/types"
	"go.uber.org/zap"
)

func testService(t *testing.T, coupons ...types.Coupon) *Service {
	t.Helper()

	store := storage.NewConsoleStorage(zap.NewNop())
	for i := range coupons {
		coupons[i].Active = true
		coupons[i].CreatedAt = time.Date(2025, 6, 1, 0, 0, i, 0, time.UTC)
		err := store.CreateCoupon(context.Background(), &coupons[i])
		if err != nil {
			t.Fatalf("CreateCoupon() error: %v", err)
		}
	}

	svc, err := New(&Config{Store: store, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return svc
}

func TestFindFirstMatchWins(t *testing.T) {
	svc := testService(t,
		types.Coupon{ID: "festive5", Code: "FESTIVE5", MinPrice: 5000, MinRound: 6, DiscountPct: 0.05, MaxDiscount: 500},
		types.Coupon{ID: "audio10", Code: "AUDIO10", Category: "audio", MinRound: 4, DiscountPct: 0.10, MaxDiscount: 150},
	)

	applied, err := svc.Find(context.Background(), "footwear", 11000, 9450, 7)
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}

	if applied == nil || applied.CouponID != "festive5" {
		t.Fatalf("Find() = %+v, want festive5", applied)
	}

	// 5% of 11000 is 550, capped at 500.
	if applied.Discount != 500 {
		t.Errorf("Discount = %v, want 500", applied.Discount)
	}
	if applied.NewPrice != 10500 {
		t.Errorf("NewPrice = %v, want 10500", applied.NewPrice)
	}
}

func TestFindRespectsPredicates(t *testing.T) {
	svc := testService(t,
		types.Coupon{ID: "festive5", MinPrice: 5000, MinRound: 6, DiscountPct: 0.05, MaxDiscount: 500},
	)

	tests := []struct {
		name  string
		price float64
		round int
	}{
		{"round-too-early", 11000, 3},
		{"price-below-minimum", 4000, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied, err := svc.Find(context.Background(), "", tt.price, 1000, tt.round)
			if err != nil {
				t.Fatalf("Find() error: %v", err)
			}
			if applied != nil {
				t.Errorf("Find() = %+v, want nil", applied)
			}
		})
	}
}

func TestFindNeverCrossesFloor(t *testing.T) {
	svc := testService(t,
		types.Coupon{ID: "big", DiscountPct: 0.20},
	)

	// 20% off 9600 would land at 7680, under floor 9450: skip the coupon.
	applied, err := svc.Find(context.Background(), "", 9600, 9450, 5)
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}

	if applied != nil {
		t.Errorf("Find() = %+v, want nil when the discount crosses the floor", applied)
	}
}

func TestFindCategoryScoped(t *testing.T) {
	svc := testService(t,
		types.Coupon{ID: "audio10", Category: "audio", DiscountPct: 0.10, MaxDiscount: 150},
	)

	applied, _ := svc.Find(context.Background(), "footwear", 1200, 500, 5)
	if applied != nil {
		t.Errorf("Find() matched wrong category: %+v", applied)
	}

	applied, _ = svc.Find(context.Background(), "audio", 1200, 500, 5)
	if applied == nil || applied.CouponID != "audio10" {
		t.Errorf("Find() = %+v, want audio10", applied)
	}
}
