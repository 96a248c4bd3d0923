package storage

import (
	"context"
	"fmt"

	"github.com/deusflow/rundown/internal/news"
)

// DefaultPurgeThreshold is the per-category size at which the log is reset.
const DefaultPurgeThreshold = 6

// Backend is the document-style persistence collaborator.
type Backend interface {
	Find(ctx context.Context, category string) ([]news.Article, error)
	Insert(ctx context.Context, article news.Article) error
	DeleteMany(ctx context.Context, category string) (int64, error)
	Close() error
}

// Window is the rolling dedup log built on a Backend. It is meant for a
// single sequential writer.
type Window struct {
	backend   Backend
	threshold int
}

var _ news.Store = (*Window)(nil)

func NewWindow(backend Backend, threshold int) *Window {
	if threshold <= 0 {
		threshold = DefaultPurgeThreshold
	}
	return &Window{backend: backend, threshold: threshold}
}

// PreviousTitles returns the lower-cased titles persisted for category.
func (w *Window) PreviousTitles(ctx context.Context, category string) (map[string]struct{}, error) {
	articles, err := w.backend.Find(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", category, err)
	}
	titles := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		titles[news.NormalizeTitle(a.Title)] = struct{}{}
	}
	return titles, nil
}

// PurgeIfOverThreshold deletes every entry of category once the log holds
// threshold or more articles. It is all-or-nothing, not an eviction.
func (w *Window) PurgeIfOverThreshold(ctx context.Context, category string) (bool, error) {
	articles, err := w.backend.Find(ctx, category)
	if err != nil {
		return false, fmt.Errorf("find %s: %w", category, err)
	}
	if len(articles) < w.threshold {
		return false, nil
	}
	if _, err := w.backend.DeleteMany(ctx, category); err != nil {
		return false, fmt.Errorf("delete %s: %w", category, err)
	}
	return true, nil
}

// Record appends article to its category log. Calling it twice stores two
// entries.
func (w *Window) Record(ctx context.Context, article news.Article) error {
	if err := w.backend.Insert(ctx, article); err != nil {
		return fmt.Errorf("insert %q: %w", article.Title, err)
	}
	return nil
}
