package ratelimit

import (
	"errors"
	"fmt"
	"sync"

	"github.com/deusflow/rundown/internal/logger"
)

// ErrLimitExceeded is returned once a provider or the overall budget is spent.
var ErrLimitExceeded = errors.New("AI request limit exceeded")

// AIRateLimiter caps the number of AI requests per run, per provider and in
// total. A limit of 0 means unlimited.
type AIRateLimiter struct {
	mu       sync.Mutex
	limits   map[string]int
	used     map[string]int
	maxTotal int
	total    int

	cacheHits   int
	cacheMisses int
}

// NewAIRateLimiter creates a limiter with per-provider limits and a total cap.
func NewAIRateLimiter(limits map[string]int, maxTotal int) *AIRateLimiter {
	l := make(map[string]int, len(limits))
	for k, v := range limits {
		l[k] = v
	}
	return &AIRateLimiter{
		limits:   l,
		used:     make(map[string]int),
		maxTotal: maxTotal,
	}
}

// Use books one request for provider.
func (rl *AIRateLimiter) Use(provider string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if err := rl.check(provider); err != nil {
		return err
	}

	rl.used[provider]++
	rl.total++
	rl.cacheMisses++

	logger.Debug("AI usage", "provider", provider, "used", rl.used[provider],
		"limit", rl.limits[provider], "total", rl.total, "total_limit", rl.maxTotal)
	return nil
}

func (rl *AIRateLimiter) check(provider string) error {
	if max := rl.limits[provider]; max > 0 && rl.used[provider] >= max {
		return fmt.Errorf("%s: %w (%d/%d)", provider, ErrLimitExceeded, rl.used[provider], max)
	}
	if rl.maxTotal > 0 && rl.total >= rl.maxTotal {
		return fmt.Errorf("total: %w (%d/%d)", ErrLimitExceeded, rl.total, rl.maxTotal)
	}
	return nil
}

// RecordCacheHit records a summary served without an AI request.
func (rl *AIRateLimiter) RecordCacheHit() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cacheHits++
}

// Stats is a snapshot of the budget spent in a run.
type Stats struct {
	Used        map[string]int
	Total       int
	CacheHits   int
	CacheMisses int
}

// HitRate returns the share of summaries served from cache, in percent.
func (s Stats) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total) * 100
}

// Stats returns the current counters.
func (rl *AIRateLimiter) Stats() Stats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	used := make(map[string]int, len(rl.used))
	for provider, n := range rl.used {
		used[provider] = n
	}
	return Stats{
		Used:        used,
		Total:       rl.total,
		CacheHits:   rl.cacheHits,
		CacheMisses: rl.cacheMisses,
	}
}
