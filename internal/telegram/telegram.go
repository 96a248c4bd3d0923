package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/deusflow/rundown/internal/logger"
	"github.com/deusflow/rundown/internal/retry"
)

const DefaultBaseURL = "https://api.telegram.org"

// Notifier posts operator reports to a Telegram chat.
type Notifier struct {
	BaseURL string
	Token   string
	ChatID  string
	Client  *http.Client
	Policy  retry.Policy
}

func NewNotifier(token, chatID string) *Notifier {
	return &Notifier{
		BaseURL: DefaultBaseURL,
		Token:   token,
		ChatID:  chatID,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Policy:  retry.Policy{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true},
	}
}

// Enabled reports whether both token and chat id are configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.Token != "" && n.ChatID != ""
}

// SendMessage sends an HTML message with retry.
func (n *Notifier) SendMessage(ctx context.Context, text string) error {
	policy := n.Policy
	policy.OnError = func(attempt int, err error) {
		logger.Warn("error send to Telegram", "attempt", attempt, "error", err.Error())
	}
	return retry.Do(ctx, policy, func(int) error {
		return n.sendMessageOnce(ctx, text)
	})
}

func (n *Notifier) sendMessageOnce(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(n.BaseURL, "/"), n.Token)

	payload := map[string]any{
		"chat_id":                  n.ChatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("error make JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("telegram API error: status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return retry.Permanent(err)
		}
		return err
	}
	return nil
}

// Report summarizes one delivery run.
type Report struct {
	Date         time.Time
	Articles     map[string]int
	EmailsSent   int
	EmailsFailed int
	AIRequests   int
	CacheHits    int
	Duration     time.Duration
	Err          error
}

// FormatReport renders r as Telegram HTML.
func FormatReport(r Report) string {
	var b strings.Builder

	status := "✅"
	if r.Err != nil || r.EmailsFailed > 0 {
		status = "⚠️"
	}
	fmt.Fprintf(&b, "%s <b>Daily Rundown</b> %s\n\n", status, r.Date.Format("2006-01-02"))

	categories := make([]string, 0, len(r.Articles))
	total := 0
	for c, n := range r.Articles {
		categories = append(categories, c)
		total += n
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(&b, "• %s: %d\n", html.EscapeString(c), r.Articles[c])
	}

	fmt.Fprintf(&b, "\nArticles: %d\nEmails sent: %d\nEmails failed: %d\nAI requests: %d (cache hits: %d)\nDuration: %s\n",
		total, r.EmailsSent, r.EmailsFailed, r.AIRequests, r.CacheHits, r.Duration.Round(time.Second))
	if r.Err != nil {
		fmt.Fprintf(&b, "\n<b>Error:</b> %s\n", html.EscapeString(r.Err.Error()))
	}
	return b.String()
}
