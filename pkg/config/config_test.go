package config

import (
	"os"
	"testing"
	"time"
)

func TestConfig_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.HTTPPort != "8086" {
		t.Errorf("expected default HTTPPort 8086, got %s", cfg.HTTPPort)
	}
	if cfg.DefaultBeta != 5.0 {
		t.Errorf("expected default beta 5.0, got %f", cfg.DefaultBeta)
	}
	if cfg.DefaultAlpha != 0.6 {
		t.Errorf("expected default alpha 0.6, got %f", cfg.DefaultAlpha)
	}
	if cfg.DefaultMaxRounds != 15 {
		t.Errorf("expected default max rounds 15, got %d", cfg.DefaultMaxRounds)
	}
	if cfg.SessionTTL != 300*time.Second {
		t.Errorf("expected default session TTL 300s, got %v", cfg.SessionTTL)
	}
	if cfg.MinResponseDelay != 2*time.Second {
		t.Errorf("expected default cooldown 2s, got %v", cfg.MinResponseDelay)
	}
	if cfg.ZOPAEpsilonPct != 0.01 {
		t.Errorf("expected default epsilon 0.01, got %f", cfg.ZOPAEpsilonPct)
	}
	if cfg.StartRatePerMin != 30 {
		t.Errorf("expected default start rate 30/min, got %d", cfg.StartRatePerMin)
	}
	if cfg.QuoteTTL != 60*time.Second {
		t.Errorf("expected default quote TTL 60s, got %v", cfg.QuoteTTL)
	}
	if cfg.StorageMode != "console" {
		t.Errorf("expected default storage mode console, got %s", cfg.StorageMode)
	}
	if cfg.HotStoreTimeout != 150*time.Millisecond {
		t.Errorf("expected default hot store timeout 150ms, got %v", cfg.HotStoreTimeout)
	}
	if cfg.DurableTimeout != 500*time.Millisecond {
		t.Errorf("expected default durable timeout 500ms, got %v", cfg.DurableTimeout)
	}
	if cfg.LLMTimeout != 8*time.Second {
		t.Errorf("expected default LLM timeout 8s, got %v", cfg.LLMTimeout)
	}
	if cfg.LockLease != 5*time.Second {
		t.Errorf("expected default lock lease 5s, got %v", cfg.LockLease)
	}
}

func TestConfig_SecondsAndMillisOverrides(t *testing.T) {
	t.Run("session_ttl_from_seconds", func(t *testing.T) {
		os.Setenv("DEFAULT_SESSION_TTL_SECONDS", "120")
		t.Cleanup(func() { os.Unsetenv("DEFAULT_SESSION_TTL_SECONDS") })

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if cfg.SessionTTL != 120*time.Second {
			t.Errorf("expected SessionTTL 120s, got %v", cfg.SessionTTL)
		}
	})

	t.Run("cooldown_from_millis", func(t *testing.T) {
		os.Setenv("MIN_RESPONSE_DELAY_MS", "0")
		t.Cleanup(func() { os.Unsetenv("MIN_RESPONSE_DELAY_MS") })

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if cfg.MinResponseDelay != 0 {
			t.Errorf("expected zero cooldown, got %v", cfg.MinResponseDelay)
		}
	})

	t.Run("garbage_seconds_falls_back", func(t *testing.T) {
		os.Setenv("QUOTE_TTL_SECONDS", "not-a-number")
		t.Cleanup(func() { os.Unsetenv("QUOTE_TTL_SECONDS") })

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if cfg.QuoteTTL != 60*time.Second {
			t.Errorf("expected fallback quote TTL 60s, got %v", cfg.QuoteTTL)
		}
	})
}

func TestConfig_Validation(t *testing.T) {
	base := func() *Config {
		return &Config{
			HTTPPort:         "8086",
			Env:              "development",
			DefaultBeta:      5.0,
			DefaultAlpha:     0.6,
			DefaultMaxRounds: 15,
			SessionTTL:       300 * time.Second,
			ZOPAEpsilonPct:   0.01,
			StorageMode:      "console",
			QuoteSigningKey:  "dev-quote-signing-key",
		}
	}

	t.Run("negative_beta_rejected", func(t *testing.T) {
		cfg := base()
		cfg.DefaultBeta = -1

		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for negative beta, got nil")
		}
	})

	t.Run("alpha_above_one_rejected", func(t *testing.T) {
		cfg := base()
		cfg.DefaultAlpha = 1.5

		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for alpha > 1, got nil")
		}
	})

	t.Run("zero_rounds_rejected", func(t *testing.T) {
		cfg := base()
		cfg.DefaultMaxRounds = 0

		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for zero max rounds, got nil")
		}
	})

	t.Run("bad_env_rejected", func(t *testing.T) {
		cfg := base()
		cfg.Env = "staging"

		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for unknown env, got nil")
		}
	})

	t.Run("bad_storage_mode_rejected", func(t *testing.T) {
		cfg := base()
		cfg.StorageMode = "mongo"

		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for unknown storage mode, got nil")
		}
	})

	t.Run("epsilon_out_of_range_rejected", func(t *testing.T) {
		cfg := base()
		cfg.ZOPAEpsilonPct = 1.0

		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for epsilon >= 1, got nil")
		}
	})

	t.Run("production_requires_admin_key", func(t *testing.T) {
		cfg := base()
		cfg.Env = "production"
		cfg.QuoteSigningKey = "real-signing-key"

		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for missing admin key in production, got nil")
		}
	})

	t.Run("production_rejects_dev_signing_key", func(t *testing.T) {
		cfg := base()
		cfg.Env = "production"
		cfg.APIAdminKey = "admin-key"

		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for dev signing key in production, got nil")
		}
	})

	t.Run("production_with_keys_allowed", func(t *testing.T) {
		cfg := base()
		cfg.Env = "production"
		cfg.APIAdminKey = "admin-key"
		cfg.QuoteSigningKey = "real-signing-key"

		if err := cfg.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func BenchmarkConfig_Validate(b *testing.B) {
	cfg := &Config{
		HTTPPort:         "8086",
		Env:              "development",
		DefaultBeta:      5.0,
		DefaultAlpha:     0.6,
		DefaultMaxRounds: 15,
		SessionTTL:       300 * time.Second,
		ZOPAEpsilonPct:   0.01,
		StorageMode:      "console",
		QuoteSigningKey:  "dev-quote-signing-key",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}
