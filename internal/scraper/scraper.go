package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/deusflow/rundown/internal/logger"
	"github.com/deusflow/rundown/internal/news"
	"github.com/deusflow/rundown/internal/retry"
)

const (
	DefaultProxyEndpoint = "https://api.scraperapi.com/"
	DefaultMinTextLength = 200
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 5 * time.Second
)

// DefaultBlockedTitles are page titles served by bot walls and error pages.
var DefaultBlockedTitles = []string{
	"Access Denied",
	"Just a moment...",
	"Attention Required! | Cloudflare",
	"Are you a robot?",
	"403 Forbidden",
	"404 Not Found",
	"Page Not Found",
	"Subscribe to continue reading",
	"Security Check",
}

// DefaultBlockedPhrases mark paywalls and syndication boilerplate.
var DefaultBlockedPhrases = []string{
	"Please enable JS and disable any ad blocker",
	"This article is available to subscribers only",
	"subscribers only",
	"Subscribe to continue reading",
	"You have reached your limit of free articles",
	"Create a free account to continue reading",
	"This copy is for your personal, non-commercial use only",
	"The Associated Press is an independent global news organization",
	"All rights reserved. This material may not be published, broadcast, rewritten",
}

// Extractor fetches article pages and returns their main text.
type Extractor struct {
	Client        *http.Client
	ProxyEndpoint string
	ProxyKey      string
	MinTextLength int
	BlockedTitles []string
	BlockedPhrase []string
	Policy        retry.Policy
}

var _ news.ContentExtractor = (*Extractor)(nil)

// New returns an extractor that goes through the scraping proxy when
// proxyKey is set and fetches pages directly otherwise.
func New(proxyEndpoint, proxyKey string) *Extractor {
	if proxyEndpoint == "" {
		proxyEndpoint = DefaultProxyEndpoint
	}
	return &Extractor{
		Client:        &http.Client{Timeout: 60 * time.Second},
		ProxyEndpoint: proxyEndpoint,
		ProxyKey:      proxyKey,
		MinTextLength: DefaultMinTextLength,
		BlockedTitles: append([]string(nil), DefaultBlockedTitles...),
		BlockedPhrase: append([]string(nil), DefaultBlockedPhrases...),
		Policy:        retry.Fixed(DefaultRetryAttempts, DefaultRetryDelay),
	}
}

// Extract never returns an error: every failure becomes ok == false.
func (e *Extractor) Extract(ctx context.Context, articleURL string) (string, bool) {
	pageURL, err := url.Parse(articleURL)
	if err != nil || pageURL.Host == "" {
		logger.Warn("invalid article url", "url", articleURL)
		return "", false
	}

	policy := e.Policy
	policy.OnError = func(attempt int, err error) {
		logger.Warn("article fetch failed", "url", articleURL, "attempt", attempt, "error", err.Error())
	}

	var page []byte
	err = retry.Do(ctx, policy, func(int) error {
		var err error
		page, err = e.fetch(ctx, articleURL)
		return err
	})
	if err != nil {
		logger.Error("can't get article page", err, "url", articleURL)
		return "", false
	}

	title, text := e.parse(page, pageURL)

	if e.blockedTitle(title) {
		logger.Info("rejected block page", "url", articleURL, "title", title)
		return "", false
	}
	if len(text) < e.minLength() {
		logger.Info("content too short", "url", articleURL, "chars", len(text))
		return "", false
	}
	if phrase, ok := e.blockedText(text); ok {
		logger.Info("rejected boilerplate", "url", articleURL, "phrase", phrase)
		return "", false
	}

	logger.Debug("got content", "url", articleURL, "chars", len(text))
	return text, true
}

func (e *Extractor) requestURL(articleURL string) string {
	if e.ProxyKey == "" {
		return articleURL
	}
	q := url.Values{}
	q.Set("api_key", e.ProxyKey)
	q.Set("url", articleURL)
	sep := "?"
	if strings.Contains(e.ProxyEndpoint, "?") {
		sep = "&"
	}
	return e.ProxyEndpoint + sep + q.Encode()
}

func (e *Extractor) fetch(ctx context.Context, articleURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.requestURL(articleURL), nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; rundown/1.0)")

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("HTTP error: %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	return io.ReadAll(resp.Body)
}

// parse runs readability first and falls back to paragraph selectors when
// it finds no text.
func (e *Extractor) parse(page []byte, pageURL *url.URL) (string, string) {
	var title, text string

	article, err := readability.FromReader(bytes.NewReader(page), pageURL)
	if err == nil {
		title = strings.TrimSpace(article.Title)
		text = normalizeSpace(article.TextContent)
	}

	if text == "" || title == "" {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
		if err != nil {
			return title, text
		}
		if title == "" {
			title = extractTitle(doc)
		}
		if text == "" {
			text = extractGenericContent(doc)
		}
	}
	return title, text
}

func (e *Extractor) minLength() int {
	if e.MinTextLength <= 0 {
		return DefaultMinTextLength
	}
	return e.MinTextLength
}

func (e *Extractor) blockedTitle(title string) bool {
	lower := strings.ToLower(strings.TrimSpace(title))
	if lower == "" {
		return false
	}
	for _, t := range e.BlockedTitles {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func (e *Extractor) blockedText(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, p := range e.BlockedPhrase {
		if strings.Contains(lower, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}

// extractGenericContent is the selector-based fallback for any site. It
// keeps the first selector yielding 3 paragraphs, otherwise the one that
// yielded the most.
func extractGenericContent(doc *goquery.Document) string {
	selectors := []string{
		"article p",
		".article-body p",
		".article p",
		".content p",
		".post-content p",
		".entry-content p",
		"main p",
		"#content p",
		"p",
	}

	var best []string
	for _, selector := range selectors {
		var paragraphs []string
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > len(best) {
			best = paragraphs
		}
		if len(best) >= 3 {
			break
		}
	}

	return normalizeSpace(strings.Join(best, "\n\n"))
}

func extractTitle(doc *goquery.Document) string {
	selectors := []string{
		"title",
		"h1",
		".article-title",
		".headline",
	}

	for _, selector := range selectors {
		title := strings.TrimSpace(doc.Find(selector).First().Text())
		if title != "" {
			return title
		}
	}
	return ""
}

// normalizeSpace collapses runs of spaces and blank lines.
func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
