package botdetect

import (
	"math"
	"testing"
	"time"

	"github.com/molbhav/molbhav/pkg/types"
)

func offersAt(gap time.Duration, prices ...float64) []types.Offer {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	offers := make([]types.Offer, len(prices))
	for i, p := range prices {
		offers[i] = types.Offer{
			Actor:     types.ActorBuyer,
			Price:     p,
			Round:     i + 1,
			Timestamp: base.Add(time.Duration(i) * gap),
		}
	}

	return offers
}

func TestScoreNeedsEvidence(t *testing.T) {
	d := New(2 * time.Second)

	if got := d.Score(offersAt(time.Second, 3000, 3000), 12999); got.Score != 0 {
		t.Errorf("two offers scored %v, want 0", got.Score)
	}
	if got := d.Score(nil, 12999); got.Score != 0 {
		t.Errorf("no offers scored %v, want 0", got.Score)
	}
}

func TestScoreMachineRegularIdenticalOffers(t *testing.T) {
	// Six identical offers 150ms apart: the classic scripted client.
	d := New(2 * time.Second)
	res := d.Score(offersAt(150*time.Millisecond, 3000, 3000, 3000, 3000, 3000, 3000), 12999)

	if !res.Block() {
		t.Fatalf("machine-regular identical offers scored %v, want >= %v", res.Score, ScoreBlock)
	}
	if res.Pattern != 1.0 {
		t.Errorf("identical prices pattern = %v, want 1.0", res.Pattern)
	}
	if res.Timing < 0.9 {
		t.Errorf("150ms cadence timing = %v, want >= 0.9", res.Timing)
	}
}

func TestScoreHumanNegotiation(t *testing.T) {
	d := New(2 * time.Second)
	res := d.Score(offersAt(25*time.Second, 9000, 9300, 9650), 12999)

	if res.Timing != 0 {
		t.Errorf("25s cadence timing = %v, want 0", res.Timing)
	}
	if res.Suspicious() {
		t.Errorf("human negotiation scored %v, want below %v", res.Score, ScoreSuspicious)
	}
}

func TestPatternArithmeticSequence(t *testing.T) {
	d := New(2 * time.Second)

	t.Run("exact-steps", func(t *testing.T) {
		res := d.Score(offersAt(30*time.Second, 9000, 9100, 9200, 9300), 12999)
		if res.Pattern != 1.0 {
			t.Errorf("exact arithmetic sequence pattern = %v, want 1.0", res.Pattern)
		}
	})

	t.Run("near-exact-steps", func(t *testing.T) {
		res := d.Score(offersAt(30*time.Second, 9000, 9100, 9202, 9301, 9402), 12999)
		if res.Pattern != 0.9 {
			t.Errorf("near-arithmetic sequence pattern = %v, want 0.9", res.Pattern)
		}
	})

	t.Run("loose-steps", func(t *testing.T) {
		// Deltas 300, 350: cv ~= 0.077, inside the loose band.
		res := d.Score(offersAt(30*time.Second, 9000, 9300, 9650), 12999)
		if res.Pattern != 0.5 {
			t.Errorf("loose sequence pattern = %v, want 0.5", res.Pattern)
		}
	})
}

func TestPatternTinyDecrements(t *testing.T) {
	d := New(2 * time.Second)

	// Greedy bot walking its own bid down by a few rupees per move, spread
	// irregularly enough to dodge the arithmetic-sequence bands.
	res := d.Score(offersAt(30*time.Second, 11000, 10998, 10986, 10981), 12999)
	if res.Pattern != 0.7 {
		t.Errorf("tiny decrement pattern = %v, want 0.7", res.Pattern)
	}

	// A single real move disqualifies the walk.
	res = d.Score(offersAt(30*time.Second, 11000, 10998, 10900, 10895), 12999)
	if res.Pattern == 0.7 {
		t.Errorf("large decrement still scored as tiny walk: %v", res.Pattern)
	}
}

func TestScoreWindowDropsAncientOffers(t *testing.T) {
	d := New(2 * time.Second)

	// Nine offers: the first is an outlier; the last eight are identical.
	// Only the window should count, so the pattern reads as identical.
	res := d.Score(offersAt(10*time.Second, 5000, 3000, 3000, 3000, 3000, 3000, 3000, 3000, 3000), 12999)
	if res.Pattern != 1.0 {
		t.Errorf("windowed pattern = %v, want 1.0", res.Pattern)
	}
}

func TestZeroMinDelayFallsBackToDefault(t *testing.T) {
	d := New(0)
	res := d.Score(offersAt(150*time.Millisecond, 3000, 3000, 3000, 3000, 3000, 3000), 12999)

	if !res.Block() {
		t.Errorf("disabled cooldown must still score cadence; got %v", res.Score)
	}
}

func TestResultThresholds(t *testing.T) {
	if (Result{Score: 0.79}).Block() {
		t.Error("0.79 must not block")
	}
	if !(Result{Score: 0.8}).Block() {
		t.Error("0.8 must block")
	}
	if (Result{Score: 0.49}).Suspicious() {
		t.Error("0.49 must not be suspicious")
	}
	if !(Result{Score: 0.5}).Suspicious() {
		t.Error("0.5 must be suspicious")
	}
}

func TestTimingScoreComponents(t *testing.T) {
	d := New(2 * time.Second)
	res := d.Score(offersAt(150*time.Millisecond, 3000, 2999, 2500), 12999)

	// speed = 1 - 0.15/6 = 0.975, regularity = 1 (zero spread).
	want := math.Min(1, (0.975+1)/2)
	if math.Abs(res.Timing-want) > 1e-9 {
		t.Errorf("timing = %v, want %v", res.Timing, want)
	}
}
