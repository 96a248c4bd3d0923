package headlines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/rundown/internal/logger"
	"github.com/deusflow/rundown/internal/news"
	"github.com/deusflow/rundown/internal/retry"
)

const (
	DefaultTopStoriesURL = "https://api.nytimes.com/svc/topstories/v2"
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 5 * time.Second
)

// StatusError is a non-2xx answer from the topic API.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("topic api returned HTTP %d", e.Code)
}

// Transient reports whether the status is worth another attempt.
func (e *StatusError) Transient() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

type topStoriesResponse struct {
	Results []struct {
		Title      string `json:"title"`
		URL        string `json:"url"`
		Multimedia []struct {
			URL string `json:"url"`
		} `json:"multimedia"`
	} `json:"results"`
}

// TopStories lists candidates from a per-topic "top stories" API.
type TopStories struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Policy  retry.Policy
}

var _ news.HeadlineSource = (*TopStories)(nil)

func NewTopStories(baseURL, apiKey string) *TopStories {
	if baseURL == "" {
		baseURL = DefaultTopStoriesURL
	}
	return &TopStories{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Policy:  retry.Fixed(DefaultRetryAttempts, DefaultRetryDelay),
	}
}

// Candidates returns the category's results in API order. Transient HTTP
// failures are retried; anything else yields an empty list.
func (t *TopStories) Candidates(ctx context.Context, category string) ([]news.Candidate, error) {
	endpoint := fmt.Sprintf("%s/%s.json?api-key=%s", t.BaseURL, url.PathEscape(category), url.QueryEscape(t.APIKey))

	policy := t.Policy
	policy.Retryable = func(err error) bool {
		var se *StatusError
		if errors.As(err, &se) {
			return se.Transient()
		}
		return true
	}
	policy.OnError = func(attempt int, err error) {
		logger.Warn("topic api attempt failed", "category", category, "attempt", attempt, "error", err.Error())
	}

	var body topStoriesResponse
	err := retry.Do(ctx, policy, func(int) error {
		var err error
		body, err = t.fetch(ctx, endpoint)
		return err
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			logger.Error("topic api gave up", err, "category", category, "status", se.Code)
		} else {
			logger.Error("topic api gave up", err, "category", category)
		}
		return nil, nil
	}

	candidates := make([]news.Candidate, 0, len(body.Results))
	for _, r := range body.Results {
		c := news.Candidate{Title: r.Title, URL: r.URL}
		if len(r.Multimedia) > 0 {
			c.Image = r.Multimedia[0].URL
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (t *TopStories) fetch(ctx context.Context, endpoint string) (topStoriesResponse, error) {
	var out topStoriesResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return out, retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return out, &StatusError{Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, retry.Permanent(fmt.Errorf("decode top stories: %w", err))
	}
	return out, nil
}
