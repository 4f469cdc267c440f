package config

import (
	"testing"
	"time"
)

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	for _, key := range []string{"MAX_GROUP_SIZE", "MAX_RECURSION_DEPTH", "EMBED_BATCH_SIZE", "NORMALIZE_WORKERS", "CLUSTER_PRESET", "CACHE_BACKEND", "GUIDE_MIN_SIMILARITY"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.MaxGroupSize != 25 {
		t.Fatalf("expected default max group size 25, got %d", cfg.MaxGroupSize)
	}
	if cfg.MaxRecursionDepth != 2 {
		t.Fatalf("expected default recursion depth 2, got %d", cfg.MaxRecursionDepth)
	}
	if cfg.EmbedBatchSize != 48 {
		t.Fatalf("expected default embed batch 48, got %d", cfg.EmbedBatchSize)
	}
	if cfg.NormalizeWorkers != 6 {
		t.Fatalf("expected default normalize workers 6, got %d", cfg.NormalizeWorkers)
	}
	if cfg.ClusterPreset != "default" {
		t.Fatalf("expected default preset, got %q", cfg.ClusterPreset)
	}
	if cfg.CacheBackend != "jsonfile" {
		t.Fatalf("expected jsonfile cache backend, got %q", cfg.CacheBackend)
	}
	if cfg.GuideMinSimilarity != 0 {
		t.Fatalf("expected zero guide similarity, got %v", cfg.GuideMinSimilarity)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("MAX_GROUP_SIZE", "10")
	t.Setenv("GUIDE_MIN_SIMILARITY", "0.35")
	t.Setenv("BREAKER_ENABLED", "false")
	t.Setenv("RETRY_INITIAL_BACKOFF", "1s")
	t.Setenv("LLM_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("MAX_UPLOAD_MB", "1")

	cfg := Load()
	if cfg.MaxGroupSize != 10 {
		t.Fatalf("expected max group size 10, got %d", cfg.MaxGroupSize)
	}
	if cfg.GuideMinSimilarity != 0.35 {
		t.Fatalf("expected guide similarity 0.35, got %v", cfg.GuideMinSimilarity)
	}
	if cfg.MaxUploadBytes != 1<<20 {
		t.Fatalf("expected 1MiB upload limit, got %d", cfg.MaxUploadBytes)
	}

	policy := cfg.Resilience()
	if policy.BreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
	if policy.RetryInitialBackoff != time.Second {
		t.Fatalf("expected 1s initial backoff, got %v", policy.RetryInitialBackoff)
	}
	if policy.RequestsPerSecond != 2.5 {
		t.Fatalf("expected 2.5 rps, got %v", policy.RequestsPerSecond)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("NORMALIZE_WORKERS", "many")
	t.Setenv("RUN_TIMEOUT", "soon")

	cfg := Load()
	if cfg.NormalizeWorkers != 6 {
		t.Fatalf("expected fallback workers 6, got %d", cfg.NormalizeWorkers)
	}
	if cfg.RunTimeout != 30*time.Minute {
		t.Fatalf("expected fallback run timeout, got %v", cfg.RunTimeout)
	}
}
