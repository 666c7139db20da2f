package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORE_BACKEND", "ANALYZER_PROVIDER", "DEFAULT_TOLERANCE_DAYS", "CONTENT_ANALYSIS_TIMEOUT_SECONDS", "REDIS_URL", "API_BACKPRESSURE_WAIT_MS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.StoreBackend != "postgres" {
		t.Fatalf("expected postgres store by default, got %q", cfg.StoreBackend)
	}
	if cfg.AnalyzerProvider != "rules" {
		t.Fatalf("expected rules analyzer by default, got %q", cfg.AnalyzerProvider)
	}
	if cfg.DefaultToleranceDay != 30 {
		t.Fatalf("expected 30 tolerance days, got %d", cfg.DefaultToleranceDay)
	}
	if cfg.ContentTimeout != 20*time.Second {
		t.Fatalf("expected 20s content timeout, got %v", cfg.ContentTimeout)
	}
	if cfg.RedisURL != "" {
		t.Fatalf("expected cache disabled by default, got %q", cfg.RedisURL)
	}
	if cfg.APIBackpressureWait != 250*time.Millisecond {
		t.Fatalf("expected 250ms backpressure wait, got %v", cfg.APIBackpressureWait)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("CONTENT_CACHE_TTL_SECONDS", "60")
	t.Setenv("MAX_CANDIDATES", "100")

	cfg := Load()
	if cfg.StoreBackend != "memory" || !cfg.S3UseSSL {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.ContentCacheTTL != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", cfg.ContentCacheTTL)
	}
	if cfg.MaxCandidates != 100 {
		t.Fatalf("expected 100 candidates, got %d", cfg.MaxCandidates)
	}
}

func TestLoadFallsBackOnMalformedNumbers(t *testing.T) {
	t.Setenv("BATCH_CONCURRENCY", "many")
	t.Setenv("S3_USE_SSL", "maybe")
	t.Setenv("OTEL_SAMPLE_RATIO", "x")

	cfg := Load()
	if cfg.BatchConcurrency != 4 || cfg.S3UseSSL || cfg.OTELSampleRatio != 1 {
		t.Fatalf("expected fallbacks, got %+v", cfg)
	}
}
