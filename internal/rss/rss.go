package rss

import (
	"context"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/deusflow/rundown/internal/logger"
	"github.com/deusflow/rundown/internal/news"
)

// FeedSource lists candidates from a single RSS/Atom feed.
type FeedSource struct {
	URL    string
	Client *http.Client
}

var _ news.HeadlineSource = (*FeedSource)(nil)

func NewFeedSource(feedURL string) *FeedSource {
	return &FeedSource{
		URL:    feedURL,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Candidates downloads and parses the feed once. A feed that cannot be
// loaded yields an empty list; the category is not retried.
func (f *FeedSource) Candidates(ctx context.Context, category string) ([]news.Candidate, error) {
	parser := gofeed.NewParser()
	parser.Client = f.Client

	feed, err := parser.ParseURLWithContext(f.URL, ctx)
	if err != nil {
		logger.Error("error parsing feed", err, "category", category, "url", f.URL)
		return nil, nil
	}

	candidates := make([]news.Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		candidates = append(candidates, news.Candidate{
			Title: item.Title,
			URL:   item.Link,
			Image: itemImage(item),
		})
	}
	logger.Info("loaded feed", "category", category, "items", len(candidates), "url", f.URL)
	return candidates, nil
}

// itemImage prefers the first enclosure and falls back to the item image.
func itemImage(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			return enc.URL
		}
	}
	if item.Image != nil {
		return item.Image.URL
	}
	return ""
}
