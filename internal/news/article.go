package news

import (
	"context"
	"strings"
)

// Article is a summarized story accepted into a digest.
type Article struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Image    string `json:"image,omitempty"`
	Content  string `json:"content"`
}

// Candidate is headline metadata before extraction and summarization.
type Candidate struct {
	Title string
	URL   string
	Image string
}

// Digest maps a category to the articles accepted for it in one run.
type Digest map[string][]Article

// Count returns the total number of articles across categories.
func (d Digest) Count() int {
	n := 0
	for _, articles := range d {
		n += len(articles)
	}
	return n
}

// NormalizeTitle is the dedup key for a title.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// HeadlineSource lists candidate stories for a category.
type HeadlineSource interface {
	Candidates(ctx context.Context, category string) ([]Candidate, error)
}

// ContentExtractor returns the readable body of an article, or ok=false when
// nothing usable could be extracted.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) (text string, ok bool)
}

// Summarizer condenses article text into one paragraph. An empty result
// with a nil error means the upstream produced nothing.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Store is the rolling per-category log of sent articles.
type Store interface {
	PreviousTitles(ctx context.Context, category string) (map[string]struct{}, error)
	PurgeIfOverThreshold(ctx context.Context, category string) (bool, error)
	Record(ctx context.Context, article Article) error
}
