package app

import (
	"context"
	"fmt"
	"time"

	"github.com/deusflow/rundown/internal/digest"
	"github.com/deusflow/rundown/internal/logger"
	"github.com/deusflow/rundown/internal/mailer"
	"github.com/deusflow/rundown/internal/metrics"
	"github.com/deusflow/rundown/internal/news"
	"github.com/deusflow/rundown/internal/ratelimit"
	"github.com/deusflow/rundown/internal/subscriber"
	"github.com/deusflow/rundown/internal/telegram"
)

// Pipeline produces the day's digest.
type Pipeline interface {
	GetSummarizedNews(ctx context.Context) (news.Digest, error)
}

// Pruner is implemented by subscriber stores that can drop unconfirmed
// records.
type Pruner interface {
	PruneUnvalidated(ctx context.Context) (int, error)
}

// App runs the daily delivery: collect, render per subscriber, send.
type App struct {
	Pipeline         Pipeline
	Subscribers      subscriber.Repository
	Renderer         *digest.Renderer
	Sender           mailer.Sender
	Notifier         *telegram.Notifier
	Metrics          *metrics.Metrics
	Usage            *ratelimit.AIRateLimiter
	PruneUnvalidated bool
	Now              func() time.Time

	closers []func() error
}

// Result describes one delivery run.
type Result struct {
	Digest       news.Digest
	EmailsSent   int
	EmailsFailed int
	Duration     time.Duration
	AI           ratelimit.Stats
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) metrics() *metrics.Metrics {
	if a.Metrics != nil {
		return a.Metrics
	}
	return metrics.Global
}

// Fetch runs the pipeline only.
func (a *App) Fetch(ctx context.Context) (news.Digest, error) {
	return a.Pipeline.GetSummarizedNews(ctx)
}

// Run collects the digest and emails every validated subscriber. A failed
// send is logged and counted; it never stops the run.
func (a *App) Run(ctx context.Context) (Result, error) {
	start := a.now()
	res, err := a.run(ctx)
	res.Duration = a.now().Sub(start)
	if a.Usage != nil {
		res.AI = a.Usage.Stats()
	}

	m := a.metrics()
	if err != nil {
		m.SetError(err.Error())
		logger.Error("delivery run failed", err)
	} else {
		m.SetLastRun()
		logger.Info("delivery run finished",
			"articles", res.Digest.Count(),
			"emails_sent", res.EmailsSent,
			"emails_failed", res.EmailsFailed,
			"ai_requests", res.AI.Total,
			"summary_cache_hits", res.AI.CacheHits,
			"duration", res.Duration.String())
	}

	a.report(ctx, start, res, err)
	return res, err
}

func (a *App) run(ctx context.Context) (Result, error) {
	var res Result

	d, err := a.Pipeline.GetSummarizedNews(ctx)
	if err != nil {
		return res, fmt.Errorf("collect news: %w", err)
	}
	res.Digest = d

	if a.PruneUnvalidated {
		if p, ok := a.Subscribers.(Pruner); ok {
			n, err := p.PruneUnvalidated(ctx)
			if err != nil {
				logger.Error("failed to prune unvalidated subscribers", err)
			} else if n > 0 {
				logger.Info("pruned unvalidated subscribers", "count", n)
			}
		}
	}

	subs, err := a.Subscribers.Validated(ctx)
	if err != nil {
		return res, fmt.Errorf("load subscribers: %w", err)
	}

	subject := digest.Subject(a.now())
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		body, err := a.Renderer.Render(sub, d)
		if err != nil {
			logger.Error("failed to render email", err, "subscriber", sub.ID)
			res.EmailsFailed++
			a.metrics().IncrementEmailsFailed()
			continue
		}

		msg := mailer.Message{
			To:      sub.Email,
			ToName:  sub.FirstName + " " + sub.LastName,
			Subject: subject,
			HTML:    body,
		}
		if err := a.Sender.Send(ctx, msg); err != nil {
			logger.Error("failed to send email", err, "subscriber", sub.ID)
			res.EmailsFailed++
			a.metrics().IncrementEmailsFailed()
			continue
		}
		res.EmailsSent++
		a.metrics().IncrementEmailsSent()
	}
	return res, nil
}

func (a *App) report(ctx context.Context, start time.Time, res Result, runErr error) {
	if !a.Notifier.Enabled() {
		return
	}
	articles := make(map[string]int, len(res.Digest))
	for c, list := range res.Digest {
		articles[c] = len(list)
	}
	msg := telegram.FormatReport(telegram.Report{
		Date:         start,
		Articles:     articles,
		EmailsSent:   res.EmailsSent,
		EmailsFailed: res.EmailsFailed,
		AIRequests:   res.AI.Total,
		CacheHits:    res.AI.CacheHits,
		Duration:     res.Duration,
		Err:          runErr,
	})
	if err := a.Notifier.SendMessage(ctx, msg); err != nil {
		logger.Error("failed to send run report", err)
	}
}

// Close releases everything Build opened, in reverse order.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
