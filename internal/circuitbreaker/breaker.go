// Package circuitbreaker guards the LLM boundary with a failure-rate
// breaker. When the model endpoint degrades, dialogue rendering falls back
// to deterministic templates instead of queueing behind slow calls.
package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker's position.
type State string

const (
	// StateClosed passes calls through and samples outcomes.
	StateClosed State = "closed"
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen State = "open"
	// StateHalfOpen lets a probe window through to test recovery.
	StateHalfOpen State = "half_open"
)

// FailureRateBreaker tracks recent call outcomes in a rolling window and
// trips open when the failure rate crosses the threshold. Hysteresis is
// asymmetric: opening needs failureThreshold failures, closing again needs
// recoveryThreshold successes across a fresh probe window, so a flapping
// endpoint stays open.
type FailureRateBreaker struct {
	windowSize        int
	minSamples        int
	failureThreshold  float64 // open at >= this failure rate
	recoveryThreshold float64 // close at >= this success rate in half-open
	cooldown          time.Duration
	probeWindow       int
	logger            *zap.Logger

	now func() time.Time

	mu       sync.Mutex
	state    State
	outcomes []bool // true = success; rolling, capped at windowSize
	openedAt time.Time
	probes   []bool // half-open outcomes
}

// Config holds breaker configuration. Zero values select defaults.
type Config struct {
	WindowSize        int           // rolling window size (default 20)
	MinSamples        int           // samples before the rate is trusted (default 5)
	FailureThreshold  float64       // default 0.5
	RecoveryThreshold float64       // default 0.8
	Cooldown          time.Duration // open -> half-open delay (default 30s)
	ProbeWindow       int           // half-open sample size (default 5)
	Logger            *zap.Logger
}

// Status is a snapshot for the admin status endpoint.
type Status struct {
	State       State     `json:"state"`
	FailureRate float64   `json:"failure_rate"`
	SampleCount int       `json:"sample_count"`
	OpenedAt    time.Time `json:"opened_at,omitempty"`
}

// New creates a failure-rate breaker in the closed state.
func New(cfg *Config) (*FailureRateBreaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.FailureThreshold < 0 || cfg.FailureThreshold > 1 {
		return nil, fmt.Errorf("failure threshold must be in [0, 1]")
	}
	if cfg.RecoveryThreshold < 0 || cfg.RecoveryThreshold > 1 {
		return nil, fmt.Errorf("recovery threshold must be in [0, 1]")
	}

	b := &FailureRateBreaker{
		windowSize:        cfg.WindowSize,
		minSamples:        cfg.MinSamples,
		failureThreshold:  cfg.FailureThreshold,
		recoveryThreshold: cfg.RecoveryThreshold,
		cooldown:          cfg.Cooldown,
		probeWindow:       cfg.ProbeWindow,
		logger:            cfg.Logger,
		now:               time.Now,
		state:             StateClosed,
	}

	if b.windowSize <= 0 {
		b.windowSize = 20
	}
	if b.minSamples <= 0 {
		b.minSamples = 5
	}
	if b.failureThreshold == 0 {
		b.failureThreshold = 0.5
	}
	if b.recoveryThreshold == 0 {
		b.recoveryThreshold = 0.8
	}
	if b.cooldown <= 0 {
		b.cooldown = 30 * time.Second
	}
	if b.probeWindow <= 0 {
		b.probeWindow = 5
	}

	b.outcomes = make([]bool, 0, b.windowSize)

	breakerState.Set(0)

	return b, nil
}

// SetNow overrides the clock for tests.
func (b *FailureRateBreaker) SetNow(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Allow reports whether a call may proceed. An open breaker whose cooldown
// has elapsed transitions to half-open and admits probes.
func (b *FailureRateBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		return len(b.probes) < b.probeWindow
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			rejectionsTotal.Inc()
			return false
		}

		b.transition(StateHalfOpen)
		b.probes = b.probes[:0]

		return true
	}

	return false
}

// Record feeds one call outcome into the window. A nil error is a success.
func (b *FailureRateBreaker) Record(err error) {
	success := err == nil

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.probes = append(b.probes, success)
		if !success {
			// A half-open failure re-opens immediately.
			b.transition(StateOpen)
			b.openedAt = b.now()

			return
		}

		if len(b.probes) >= b.probeWindow {
			if b.successRate(b.probes) >= b.recoveryThreshold {
				b.transition(StateClosed)
				b.outcomes = b.outcomes[:0]
			} else {
				b.transition(StateOpen)
				b.openedAt = b.now()
			}
		}
	default:
		b.outcomes = append(b.outcomes, success)
		if len(b.outcomes) > b.windowSize {
			b.outcomes = b.outcomes[1:]
		}

		if b.state == StateClosed &&
			len(b.outcomes) >= b.minSamples &&
			1-b.successRate(b.outcomes) >= b.failureThreshold {
			b.transition(StateOpen)
			b.openedAt = b.now()
		}
	}
}

// GetStatus returns a snapshot for the admin status endpoint.
func (b *FailureRateBreaker) GetStatus() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	samples := b.outcomes
	if b.state == StateHalfOpen {
		samples = b.probes
	}

	st := Status{
		State:       b.state,
		SampleCount: len(samples),
	}
	if len(samples) > 0 {
		st.FailureRate = 1 - b.successRate(samples)
	}
	if b.state != StateClosed {
		st.OpenedAt = b.openedAt
	}

	return st
}

// transition must be called with the mutex held.
func (b *FailureRateBreaker) transition(to State) {
	if b.state == to {
		return
	}

	from := b.state
	b.state = to
	stateChangesTotal.Inc()

	switch to {
	case StateOpen:
		breakerState.Set(1)
		b.logger.Warn("breaker-opened",
			zap.String("from", string(from)),
			zap.Float64("failure_rate", 1-b.successRate(b.outcomes)),
			zap.Duration("cooldown", b.cooldown))
	case StateHalfOpen:
		breakerState.Set(2)
		b.logger.Info("breaker-half-open",
			zap.Int("probe_window", b.probeWindow))
	case StateClosed:
		breakerState.Set(0)
		b.logger.Info("breaker-closed",
			zap.String("from", string(from)))
	}
}

func (b *FailureRateBreaker) successRate(samples []bool) float64 {
	if len(samples) == 0 {
		return 1
	}

	ok := 0
	for _, s := range samples {
		if s {
			ok++
		}
	}

	return float64(ok) / float64(len(samples))
}
