package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deusflow/rundown/internal/logger"
	"github.com/deusflow/rundown/internal/metrics"
	"github.com/deusflow/rundown/internal/ratelimit"
	"github.com/deusflow/rundown/internal/retry"
)

const (
	DefaultArticleCount    = 3
	DefaultRequestInterval = 10 * time.Second
)

// Options tunes a NewsSummarizer. A zero ArticleCount means DefaultArticleCount
// and a negative RequestInterval means DefaultRequestInterval.
type Options struct {
	ArticleCount    int
	RequestInterval time.Duration
	// RequireImage rejects candidates without an image (strict acceptance).
	RequireImage bool

	// Pause replaces the throttle sleep, mainly for tests.
	Pause   func(ctx context.Context, d time.Duration) error
	Metrics *metrics.Metrics
}

// NewsSummarizer drives fetch → extract → summarize → dedup → persist for
// every category, one candidate at a time.
type NewsSummarizer struct {
	categories []string
	source     HeadlineSource
	extractor  ContentExtractor
	summarizer Summarizer
	store      Store

	quota        int
	interval     time.Duration
	requireImage bool
	pause        func(ctx context.Context, d time.Duration) error
	metrics      *metrics.Metrics
}

func NewNewsSummarizer(categories []string, source HeadlineSource, extractor ContentExtractor,
	summarizer Summarizer, store Store, opts Options) *NewsSummarizer {
	s := &NewsSummarizer{
		categories:   categories,
		source:       source,
		extractor:    extractor,
		summarizer:   summarizer,
		store:        store,
		quota:        opts.ArticleCount,
		interval:     opts.RequestInterval,
		requireImage: opts.RequireImage,
		pause:        opts.Pause,
		metrics:      opts.Metrics,
	}
	if s.quota <= 0 {
		s.quota = DefaultArticleCount
	}
	if s.interval < 0 {
		s.interval = DefaultRequestInterval
	}
	if s.pause == nil {
		s.pause = retry.SleepContext
	}
	if s.metrics == nil {
		s.metrics = metrics.Global
	}
	return s
}

// GetSummarizedNews runs the pipeline over all categories. Every configured
// category has an entry in the result, possibly empty. Only persistence
// failures and context cancellation abort the run.
func (s *NewsSummarizer) GetSummarizedNews(ctx context.Context) (Digest, error) {
	startTime := time.Now()
	defer func() {
		s.metrics.RecordProcessingTime(time.Since(startTime))
	}()

	digest := make(Digest, len(s.categories))
	for _, category := range s.categories {
		articles, err := s.collectCategory(ctx, category)
		digest[category] = articles
		if err != nil {
			s.metrics.SetError(err.Error())
			return digest, fmt.Errorf("category %s: %w", category, err)
		}
		logger.Info("category collected", "category", category, "articles", len(articles))
	}

	s.metrics.SetLastRun()
	logger.Info("news summarized", "categories", len(s.categories), "articles", digest.Count(),
		"duration", time.Since(startTime).Round(time.Millisecond))
	return digest, nil
}

func (s *NewsSummarizer) collectCategory(ctx context.Context, category string) ([]Article, error) {
	articles := make([]Article, 0, s.quota)

	// Titles are read before the purge so a just-purged window still guards
	// this run against repeats.
	seen, err := s.store.PreviousTitles(ctx, category)
	if err != nil {
		return articles, fmt.Errorf("load previous titles: %w", err)
	}
	if seen == nil {
		seen = make(map[string]struct{})
	}
	purged, err := s.store.PurgeIfOverThreshold(ctx, category)
	if err != nil {
		return articles, fmt.Errorf("purge: %w", err)
	}
	if purged {
		s.metrics.IncrementPurges(category)
		logger.Info("dedup window reset", "category", category)
	}

	candidates, err := s.source.Candidates(ctx, category)
	if err != nil {
		s.metrics.IncrementHeadlineFailures(category)
		logger.Error("headline fetch failed", err, "category", category)
		candidates = nil
	}
	logger.Debug("candidates fetched", "category", category, "count", len(candidates))

	for i, c := range candidates {
		if len(articles) >= s.quota {
			break
		}
		if err := ctx.Err(); err != nil {
			return articles, err
		}
		s.metrics.IncrementCandidates(category)

		if reason := s.precheck(c, seen); reason != "" {
			if reason == "duplicate" {
				s.metrics.IncrementDuplicatesFiltered(category)
			}
			logger.Debug("candidate skipped", "category", category, "reason", reason, "title", c.Title)
			continue
		}

		article, ok, stop := s.process(ctx, category, c)
		if ok {
			if err := s.store.Record(ctx, article); err != nil {
				return articles, fmt.Errorf("record %q: %w", article.Title, err)
			}
			articles = append(articles, article)
			seen[NormalizeTitle(article.Title)] = struct{}{}
			s.metrics.IncrementAccepted(category)
			logger.Info("article accepted", "category", category, "title", article.Title,
				"n", len(articles), "quota", s.quota)
		}
		if stop {
			break
		}

		if len(articles) < s.quota && i < len(candidates)-1 {
			if err := s.pause(ctx, s.interval); err != nil {
				return articles, err
			}
		}
	}

	return articles, nil
}

// precheck applies the cheap acceptance rules before any upstream call.
func (s *NewsSummarizer) precheck(c Candidate, seen map[string]struct{}) string {
	if strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.URL) == "" {
		return "missing title or url"
	}
	if s.requireImage && strings.TrimSpace(c.Image) == "" {
		return "missing image"
	}
	if _, dup := seen[NormalizeTitle(c.Title)]; dup {
		return "duplicate"
	}
	return ""
}

// process extracts and summarizes one candidate. stop is set when the
// summarizer budget is spent and the category loop should end.
func (s *NewsSummarizer) process(ctx context.Context, category string, c Candidate) (article Article, ok bool, stop bool) {
	text, found := s.extractor.Extract(ctx, c.URL)
	if !found {
		s.metrics.IncrementExtractionsRejected(category)
		logger.Info("no usable content", "category", category, "url", c.URL)
		return Article{}, false, false
	}

	summary, err := s.summarizer.Summarize(ctx, text)
	if err != nil {
		s.metrics.IncrementSummariesFailed(category)
		if errors.Is(err, ratelimit.ErrLimitExceeded) {
			logger.Warn("summary budget exhausted", "category", category)
			return Article{}, false, true
		}
		logger.Error("summarize failed", err, "category", category, "url", c.URL)
		return Article{}, false, false
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		s.metrics.IncrementSummariesFailed(category)
		logger.Info("empty summary", "category", category, "url", c.URL)
		return Article{}, false, false
	}

	return Article{
		Category: category,
		Title:    strings.TrimSpace(c.Title),
		URL:      strings.TrimSpace(c.URL),
		Image:    strings.TrimSpace(c.Image),
		Content:  summary,
	}, true, false
}
