package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadFallsBackOnBadNumericValues(t *testing.T) {
	t.Setenv("TOTALS_CACHE_TTL_SECONDS", "not-a-number")
	t.Setenv("TREND_DEFAULT_MONTHS", "-3")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "0")

	cfg := Load()
	if cfg.TotalsCacheTTLSeconds != 15 {
		t.Fatalf("expected cache TTL fallback 15, got %d", cfg.TotalsCacheTTLSeconds)
	}
	if cfg.TrendDefaultMonths != 6 {
		t.Fatalf("expected trend months fallback 6, got %d", cfg.TrendDefaultMonths)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected token TTL fallback 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}
