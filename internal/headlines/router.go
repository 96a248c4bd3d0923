package headlines

import (
	"context"

	"github.com/deusflow/rundown/internal/news"
)

// Router sends each category to its dedicated source, or to Default.
type Router struct {
	Default news.HeadlineSource
	Routes  map[string]news.HeadlineSource
}

var _ news.HeadlineSource = (*Router)(nil)

func (r *Router) Candidates(ctx context.Context, category string) ([]news.Candidate, error) {
	if src, ok := r.Routes[category]; ok {
		return src.Candidates(ctx, category)
	}
	return r.Default.Candidates(ctx, category)
}
