package summarizer

import (
	"context"
	"time"

	"github.com/deusflow/rundown/internal/cache"
	"github.com/deusflow/rundown/internal/news"
	"github.com/deusflow/rundown/internal/ratelimit"
)

// Cached remembers summaries by article text for ttl. The cache outlives a
// single run when the caller shares it across runs, as the scheduler does.
// Empty summaries are not cached.
type Cached struct {
	next    news.Summarizer
	cache   *cache.Cache
	ttl     time.Duration
	limiter *ratelimit.AIRateLimiter
}

func NewCached(next news.Summarizer, c *cache.Cache, ttl time.Duration, limiter *ratelimit.AIRateLimiter) *Cached {
	return &Cached{next: next, cache: c, ttl: ttl, limiter: limiter}
}

func (c *Cached) Summarize(ctx context.Context, text string) (string, error) {
	key := cache.Key("summary", text)
	if v, ok := c.cache.Get(key); ok {
		if c.limiter != nil {
			c.limiter.RecordCacheHit()
		}
		return v.(string), nil
	}

	summary, err := c.next.Summarize(ctx, text)
	if err != nil {
		return "", err
	}
	if summary != "" {
		c.cache.Set(key, summary, c.ttl)
	}
	return summary, nil
}

// Limited spends one unit of provider budget per upstream request.
type Limited struct {
	next     news.Summarizer
	limiter  *ratelimit.AIRateLimiter
	provider string
}

func NewLimited(next news.Summarizer, limiter *ratelimit.AIRateLimiter, provider string) *Limited {
	return &Limited{next: next, limiter: limiter, provider: provider}
}

// Summarize returns an error wrapping ratelimit.ErrLimitExceeded once the
// budget is spent.
func (l *Limited) Summarize(ctx context.Context, text string) (string, error) {
	if err := l.limiter.Use(l.provider); err != nil {
		return "", err
	}
	return l.next.Summarize(ctx, text)
}
