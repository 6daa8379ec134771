package pricing

import (
	"math"
	"testing"
)

// The reference product used across engine tests: anchor 12999, cost 9000,
// min margin 0.05 (floor 9450), 15 rounds.
func refCurve() Curve {
	return Curve{Anchor: 12999, Floor: 9450, Beta: 5.0, MaxRounds: 15}
}

func TestFloorPrice(t *testing.T) {
	tests := []struct {
		name      string
		cost      float64
		minMargin float64
		want      float64
	}{
		{"exact-product", 9000, 0.05, 9450},
		{"binary-float-artifact", 7000, 0.10, 7700},
		{"fractional-rounds-up", 450, 0.15, 518},
		{"another-artifact", 2200, 0.12, 2464},
		{"zero-margin", 500, 0, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FloorPrice(tt.cost, tt.minMargin); got != tt.want {
				t.Errorf("FloorPrice(%v, %v) = %v, want %v", tt.cost, tt.minMargin, got, tt.want)
			}
		})
	}
}

func TestCurvePrice(t *testing.T) {
	c := refCurve()

	tests := []struct {
		name  string
		round int
		want  float64
	}{
		{"round-zero-is-anchor", 0, 12999},
		{"round-one-holds-anchor", 1, 12999},
		{"round-five", 5, 12984},
		{"round-ten", 10, 12532},
		{"round-fourteen", 14, 10485},
		{"deadline-is-floor", 15, 9450},
		{"past-deadline-clamps", 20, 9450},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Price(tt.round); got != tt.want {
				t.Errorf("Price(%d) = %v, want %v", tt.round, got, tt.want)
			}
		})
	}
}

func TestCurveShapeByBeta(t *testing.T) {
	base := refCurve()

	linear := base
	linear.Beta = 1.0
	if got := linear.Price(5); got != 11816 {
		t.Errorf("linear Price(5) = %v, want 11816", got)
	}

	conceder := base
	conceder.Beta = 0.5
	if got := conceder.Price(5); got != 10950 {
		t.Errorf("conceder Price(5) = %v, want 10950", got)
	}

	harsh := base
	harsh.Beta = 7.5
	if got := harsh.Price(5); got != 12998 {
		t.Errorf("harsh Price(5) = %v, want 12998", got)
	}

	// Boulware holds more value mid-session than linear, which holds more
	// than an early conceder.
	if !(harsh.Price(7) >= linear.Price(7) && linear.Price(7) >= conceder.Price(7)) {
		t.Errorf("beta ordering violated at round 7: %v %v %v",
			harsh.Price(7), linear.Price(7), conceder.Price(7))
	}
}

func TestCurveMonotonicallyNonIncreasing(t *testing.T) {
	for _, beta := range []float64{0.3, 1.0, 2.0, 5.0, 10.0} {
		c := refCurve()
		c.Beta = beta

		prev := c.Price(0)
		for round := 1; round <= c.MaxRounds; round++ {
			p := c.Price(round)
			if p > prev {
				t.Fatalf("beta %v: Price(%d)=%v above Price(%d)=%v", beta, round, p, round-1, prev)
			}
			if p < c.Floor || p > c.Anchor {
				t.Fatalf("beta %v: Price(%d)=%v out of [floor, anchor]", beta, round, p)
			}
			prev = p
		}
	}
}

func TestInZOPA(t *testing.T) {
	eps := Epsilon(12999, 0.01)

	tests := []struct {
		name      string
		buyer     float64
		candidate float64
		round     int
		want      bool
	}{
		{"below-floor-never", 9000, 9450, 14, false},
		{"deadline-accepts-floor", 9500, 12000, 14, true},
		{"within-epsilon", 12900, 12999, 3, true},
		{"outside-epsilon", 12800, 12999, 3, false},
		{"at-candidate", 12999, 12999, 1, true},
		{"floor-exact-mid-session", 9450, 12000, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InZOPA(tt.buyer, tt.candidate, 9450, eps, tt.round, 15)
			if got != tt.want {
				t.Errorf("InZOPA(buyer=%v, cand=%v, round=%d) = %v, want %v",
					tt.buyer, tt.candidate, tt.round, got, tt.want)
			}
		})
	}
}

func TestCounterCandidate(t *testing.T) {
	tests := []struct {
		name       string
		curvePrice float64
		current    float64
		concession float64
		want       float64
	}{
		{"no-concession-holds-current", 12984, 12999, 0, 12999},
		{"curve-beats-deep-mirror", 12532, 12600, 132, 12532},
		{"mirror-beats-curve", 12532, 12600, 30, 12570},
		{"never-above-current", 12532, 12400, 100, 12400},
		{"never-below-floor", 9450, 9460, 100, 9450},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CounterCandidate(tt.curvePrice, tt.current, tt.concession, 9450)
			if got != tt.want {
				t.Errorf("CounterCandidate(%v, %v, %v) = %v, want %v",
					tt.curvePrice, tt.current, tt.concession, got, tt.want)
			}
		})
	}
}

func TestEpsilon(t *testing.T) {
	if got := Epsilon(12999, 0.01); math.Abs(got-129.99) > 1e-9 {
		t.Errorf("Epsilon(12999, 0.01) = %v, want 129.99", got)
	}
	if got := Epsilon(12999, 0); got != 0 {
		t.Errorf("Epsilon with zero pct = %v, want 0", got)
	}
}
