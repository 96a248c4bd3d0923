package ratelimit

import (
	"errors"
	"testing"
)

func TestAIRateLimiter_ProviderLimit(t *testing.T) {
	rl := NewAIRateLimiter(map[string]int{"gemini": 2}, 0)

	for i := 0; i < 2; i++ {
		if err := rl.Use("gemini"); err != nil {
			t.Fatalf("use %d: %v", i, err)
		}
	}
	if err := rl.Use("gemini"); !errors.Is(err, ErrLimitExceeded) {
		t.Errorf("expected ErrLimitExceeded, got %v", err)
	}
	if err := rl.Use("openai"); err != nil {
		t.Errorf("unlimited provider should still be usable: %v", err)
	}
}

func TestAIRateLimiter_TotalLimit(t *testing.T) {
	rl := NewAIRateLimiter(nil, 1)
	if err := rl.Use("openai"); err != nil {
		t.Fatal(err)
	}
	if err := rl.Use("gemini"); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected total limit, got %v", err)
	}
}

func TestAIRateLimiter_Stats(t *testing.T) {
	rl := NewAIRateLimiter(map[string]int{"gemini": 1}, 0)
	_ = rl.Use("gemini")
	_ = rl.Use("gemini")
	rl.RecordCacheHit()

	st := rl.Stats()
	if st.Used["gemini"] != 1 || st.Total != 1 {
		t.Errorf("used = %v total = %d, want 1/1", st.Used, st.Total)
	}
	if st.CacheHits != 1 || st.CacheMisses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", st.CacheHits, st.CacheMisses)
	}
	if got := st.HitRate(); got != 50 {
		t.Errorf("hit rate = %v, want 50", got)
	}

	st.Used["gemini"] = 99
	if rl.Stats().Used["gemini"] != 1 {
		t.Error("snapshot must not alias limiter state")
	}
}
