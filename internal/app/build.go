package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deusflow/rundown/internal/cache"
	"github.com/deusflow/rundown/internal/config"
	"github.com/deusflow/rundown/internal/digest"
	"github.com/deusflow/rundown/internal/headlines"
	"github.com/deusflow/rundown/internal/logger"
	"github.com/deusflow/rundown/internal/mailer"
	"github.com/deusflow/rundown/internal/metrics"
	"github.com/deusflow/rundown/internal/news"
	"github.com/deusflow/rundown/internal/ratelimit"
	"github.com/deusflow/rundown/internal/retry"
	"github.com/deusflow/rundown/internal/rss"
	"github.com/deusflow/rundown/internal/scraper"
	"github.com/deusflow/rundown/internal/storage"
	"github.com/deusflow/rundown/internal/subscriber"
	"github.com/deusflow/rundown/internal/summarizer"
	"github.com/deusflow/rundown/internal/telegram"
)

// Build wires every collaborator from cfg. withDelivery also prepares the
// subscriber store and mail sender. summaries is the summary cache to use;
// when nil, the App owns a cache that lives until Close.
func Build(ctx context.Context, cfg *config.Config, withDelivery bool, summaries *cache.Cache) (*App, error) {
	a := &App{
		Metrics:          metrics.Global,
		PruneUnvalidated: cfg.PruneUnvalidated,
	}

	backend, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open article store: %w", err)
	}
	a.closers = append(a.closers, backend.Close)

	sum, err := buildSummarizer(ctx, cfg, a, summaries)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	policy := retry.Fixed(cfg.RetryAttempts, cfg.RetryDelay)
	client := &http.Client{Timeout: cfg.RequestTimeout}

	a.Pipeline = news.NewNewsSummarizer(
		cfg.Catalog.Categories,
		buildSources(cfg, client, policy),
		buildExtractor(cfg, policy),
		sum,
		storage.NewWindow(backend, cfg.PurgeThreshold),
		news.Options{
			ArticleCount:    cfg.ArticleCount,
			RequestInterval: cfg.RequestInterval,
			RequireImage:    cfg.RequireImage,
			Metrics:         a.Metrics,
		},
	)

	if cfg.TelegramEnabled() {
		a.Notifier = telegram.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID)
	}

	if !withDelivery {
		return a, nil
	}

	if err := cfg.ValidateDelivery(); err != nil {
		_ = a.Close()
		return nil, err
	}

	subs, err := buildSubscribers(ctx, cfg, backend)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Subscribers = subs
	a.Renderer = digest.NewRenderer(cfg.PreferencesBaseURL, cfg.UnsubscribeBaseURL, cfg.Catalog.Labels)

	if cfg.DryRun {
		logger.Info("dry run enabled, emails will only be logged")
		a.Sender = &mailer.LogSender{}
	} else {
		a.Sender = mailer.NewSendGrid(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName)
	}
	return a, nil
}

func buildSources(cfg *config.Config, client *http.Client, policy retry.Policy) news.HeadlineSource {
	top := headlines.NewTopStories(cfg.TopStoriesURL, cfg.NYTAPIKey)
	top.Client = client
	top.Policy = policy

	routes := make(map[string]news.HeadlineSource, len(cfg.Catalog.Feeds))
	for category, feedURL := range cfg.Catalog.Feeds {
		feed := rss.NewFeedSource(feedURL)
		feed.Client = client
		routes[category] = feed
	}
	return &headlines.Router{Default: top, Routes: routes}
}

func buildExtractor(cfg *config.Config, policy retry.Policy) *scraper.Extractor {
	ex := scraper.New(cfg.ExtractorProxyEndpoint, cfg.ExtractorProxyKey)
	ex.Policy = policy
	ex.MinTextLength = cfg.MinTextLength
	ex.BlockedTitles = append(ex.BlockedTitles, cfg.Catalog.BlockedTitles...)
	ex.BlockedPhrase = append(ex.BlockedPhrase, cfg.Catalog.BlockedPhrases...)
	return ex
}

// buildSummarizer layers cache over budget over the provider, so cache hits
// do not spend budget.
func buildSummarizer(ctx context.Context, cfg *config.Config, a *App, c *cache.Cache) (news.Summarizer, error) {
	var base news.Summarizer
	switch cfg.AIProvider {
	case config.ProviderOpenAI:
		base = summarizer.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		g, err := summarizer.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		base = g
	}

	limiter := ratelimit.NewAIRateLimiter(map[string]int{cfg.AIProvider: cfg.MaxSummaryRequests}, 0)
	a.Usage = limiter
	if c == nil {
		c = cache.New(time.Hour)
		a.closers = append(a.closers, func() error { c.Stop(); return nil })
	}

	limited := summarizer.NewLimited(base, limiter, cfg.AIProvider)
	return summarizer.NewCached(limited, c, cfg.SummaryCacheTTL, limiter), nil
}

func buildSubscribers(ctx context.Context, cfg *config.Config, backend storage.Backend) (subscriber.Repository, error) {
	if pg, ok := backend.(*storage.PostgresStore); ok {
		repo := subscriber.NewPostgresRepository(pg.DB())
		if err := repo.InitSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	}
	return subscriber.NewFileRepository(cfg.SubscribersFile), nil
}
