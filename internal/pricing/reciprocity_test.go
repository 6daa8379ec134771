package pricing

import (
	"math"
	"testing"

	"github.com/molbhav/molbhav/pkg/types"
)

func buyerOffers(prices ...float64) []types.Offer {
	offers := make([]types.Offer, len(prices))
	for i, p := range prices {
		offers[i] = types.Offer{Actor: types.ActorBuyer, Price: p, Round: i + 1}
	}

	return offers
}

func TestTrackerAverageConcession(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{"no-offers", nil, 0},
		{"single-offer", []float64{9000}, 0},
		{"steady-rise", []float64{9000, 9200, 9400}, 200},
		{"window-drops-old-jump", []float64{8000, 9000, 9100, 9200, 9300}, 100},
		{"buyer-retreating", []float64{9400, 9300, 9200}, -100},
		{"mixed-washes-out", []float64{9000, 9300, 8800, 8850}, -50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(0.6, 12999, 9450, buyerOffers(tt.prices...))
			if got := tr.AverageConcession(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AverageConcession() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrackerAdaptiveAlpha(t *testing.T) {
	tr := NewTracker(0.6, 12999, 9450, nil)

	if got := tr.AdaptiveAlpha(0, 15); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("AdaptiveAlpha(0) = %v, want 0.6", got)
	}
	if got := tr.AdaptiveAlpha(10, 15); math.Abs(got-0.8) > 1e-9 {
		t.Errorf("AdaptiveAlpha(10) = %v, want 0.8", got)
	}
	if got := tr.AdaptiveAlpha(15, 15); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("AdaptiveAlpha(15) = %v, want 0.9", got)
	}

	strong := NewTracker(0.9, 12999, 9450, nil)
	if got := strong.AdaptiveAlpha(15, 15); got != 1.0 {
		t.Errorf("AdaptiveAlpha must clamp at 1.0, got %v", got)
	}
}

func TestTrackerConcession(t *testing.T) {
	t.Run("mirrors-damped-average", func(t *testing.T) {
		tr := NewTracker(0.6, 12999, 9450, buyerOffers(9000, 9200, 9400))
		// alpha_eff at round 3 of 15 = 0.6 * 1.1 = 0.66; 0.66 * 200 = 132.
		if got := tr.Concession(3, 15); math.Abs(got-132) > 1e-9 {
			t.Errorf("Concession(3, 15) = %v, want 132", got)
		}
	})

	t.Run("caps-at-range-share", func(t *testing.T) {
		tr := NewTracker(0.6, 12999, 9450, buyerOffers(5000, 7000, 9000))
		// Average move 2000; cap is 10% of (12999-9450) = 354.9.
		if got := tr.Concession(1, 15); math.Abs(got-354.9) > 1e-9 {
			t.Errorf("Concession must cap at 354.9, got %v", got)
		}
	})

	t.Run("zero-when-buyer-retreats", func(t *testing.T) {
		tr := NewTracker(0.6, 12999, 9450, buyerOffers(9400, 9300, 9200))
		if got := tr.Concession(5, 15); got != 0 {
			t.Errorf("Concession for retreating buyer = %v, want 0", got)
		}
	})

	t.Run("zero-without-history", func(t *testing.T) {
		tr := NewTracker(0.6, 12999, 9450, buyerOffers(9000))
		if got := tr.Concession(1, 15); got != 0 {
			t.Errorf("Concession with single offer = %v, want 0", got)
		}
	})
}

func TestTrackerStalling(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   bool
	}{
		{"three-tiny-moves", []float64{9000, 9050, 9110, 9150}, true},
		{"needs-three-deltas", []float64{9000, 9050, 9110}, false},
		{"one-real-move-resets", []float64{9000, 9050, 9250, 9300}, false},
		{"tiny-retreats-count", []float64{9000, 8990, 8980, 8985}, true},
		{"boundary-move-still-stall", []float64{9000, 9064, 9128, 9190}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(0.6, 12999, 9450, buyerOffers(tt.prices...))
			if got := tr.Stalling(); got != tt.want {
				t.Errorf("Stalling() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrackerTrend(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   Trend
	}{
		{"rising", []float64{9000, 9200, 9400}, TrendRising},
		{"falling", []float64{9400, 9200, 9000}, TrendFalling},
		{"stalling", []float64{9000, 9002, 9004}, TrendStalling},
		{"empty", nil, TrendStalling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(0.6, 12999, 9450, buyerOffers(tt.prices...))
			if got := tr.Trend(); got != tt.want {
				t.Errorf("Trend() = %v, want %v", got, tt.want)
			}
		})
	}
}
