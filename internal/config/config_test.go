package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when DATABASE_URL is not set")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("expected error to mention DATABASE_URL, got: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/regula")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("expected default env development, got %s", cfg.Env)
	}
	if cfg.DBMaxConns != 20 {
		t.Errorf("expected default max conns 20, got %d", cfg.DBMaxConns)
	}
	if cfg.DBMinConns != 5 {
		t.Errorf("expected default min conns 5, got %d", cfg.DBMinConns)
	}
	if cfg.TickInterval != time.Minute {
		t.Errorf("expected default tick interval 1m, got %s", cfg.TickInterval)
	}
	if cfg.AgePolicy != "extremes" {
		t.Errorf("expected default age policy extremes, got %s", cfg.AgePolicy)
	}
	if cfg.AgeChildLimit != 12 {
		t.Errorf("expected default child limit 12, got %d", cfg.AgeChildLimit)
	}
	if cfg.AgeElderlyLimit != 60 {
		t.Errorf("expected default elderly limit 60, got %d", cfg.AgeElderlyLimit)
	}
	if cfg.FallbackMinRisk != "red" {
		t.Errorf("expected default fallback min risk red, got %s", cfg.FallbackMinRisk)
	}
	if cfg.RateLimitRPS != 100 {
		t.Errorf("expected default rate limit rps 100, got %f", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != 200 {
		t.Errorf("expected default rate limit burst 200, got %d", cfg.RateLimitBurst)
	}
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/regula")
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SIGNING_KEY", "secret")
	t.Setenv("TICK_INTERVAL", "30s")
	t.Setenv("AGE_POLICY", "oldest")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Error("expected IsProduction() to be true")
	}
	if cfg.TickInterval != 30*time.Second {
		t.Errorf("expected tick interval 30s, got %s", cfg.TickInterval)
	}
	if cfg.AgePolicy != "oldest" {
		t.Errorf("expected age policy oldest, got %s", cfg.AgePolicy)
	}
}

func TestIsDev(t *testing.T) {
	cfg := &Config{Env: "development"}
	if !cfg.IsDev() {
		t.Error("expected IsDev() true for development")
	}

	cfg.Env = "production"
	if cfg.IsDev() {
		t.Error("expected IsDev() false for production")
	}
}

func TestResolvedAuthMode(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		authMode string
		want     string
	}{
		{"dev defaults to development", "development", "", "development"},
		{"production defaults to jwt", "production", "", "jwt"},
		{"explicit mode wins", "development", "jwt", "jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Env: tt.env, AuthMode: tt.authMode}
			if got := cfg.ResolvedAuthMode(); got != tt.want {
				t.Errorf("ResolvedAuthMode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		Env:             "development",
		TickInterval:    time.Minute,
		AgePolicy:       "extremes",
		AgeChildLimit:   12,
		AgeElderlyLimit: 60,
	}

	t.Run("dev mode needs no auth config", func(t *testing.T) {
		cfg := base
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("jwt mode requires a trust anchor", func(t *testing.T) {
		cfg := base
		cfg.Env = "production"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for jwt mode without signing key or JWKS")
		}

		cfg.JWTSigningKey = "secret"
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error with signing key: %v", err)
		}
	})

	t.Run("jwks url satisfies jwt mode", func(t *testing.T) {
		cfg := base
		cfg.Env = "production"
		cfg.AuthJWKSURL = "https://idp.example.com/jwks"
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error with JWKS URL: %v", err)
		}
	})

	t.Run("unknown auth mode rejected", func(t *testing.T) {
		cfg := base
		cfg.AuthMode = "basic"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for unknown auth mode")
		}
	})

	t.Run("negative tick interval rejected", func(t *testing.T) {
		cfg := base
		cfg.TickInterval = -time.Second
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for negative tick interval")
		}
	})

	t.Run("child limit above elderly limit rejected", func(t *testing.T) {
		cfg := base
		cfg.AgeChildLimit = 70
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for child limit above elderly limit")
		}
	})

	t.Run("unknown age policy rejected", func(t *testing.T) {
		cfg := base
		cfg.AgePolicy = "median"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for unknown age policy")
		}
	})
}
