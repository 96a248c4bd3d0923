package headlines

import (
	"context"
	"testing"

	"github.com/deusflow/rundown/internal/news"
)

type namedSource string

func (n namedSource) Candidates(context.Context, string) ([]news.Candidate, error) {
	return []news.Candidate{{Title: string(n)}}, nil
}

func TestRouter(t *testing.T) {
	r := &Router{
		Default: namedSource("api"),
		Routes:  map[string]news.HeadlineSource{"sports": namedSource("feed")},
	}

	for category, want := range map[string]string{"sports": "feed", "health": "api"} {
		got, err := r.Candidates(context.Background(), category)
		if err != nil {
			t.Fatal(err)
		}
		if got[0].Title != want {
			t.Errorf("%s routed to %s, want %s", category, got[0].Title, want)
		}
	}
}
