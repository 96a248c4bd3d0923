package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deusflow/rundown/internal/retry"
)

func testNotifier(srv *httptest.Server) *Notifier {
	n := NewNotifier("tok", "42")
	n.BaseURL = srv.URL
	n.Client = srv.Client()
	n.Policy = retry.Policy{MaxAttempts: 3, Sleep: func(context.Context, time.Duration) error { return nil }}
	return n
}

func TestSendMessage(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottok/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	if err := testNotifier(srv).SendMessage(context.Background(), "<b>hi</b>"); err != nil {
		t.Fatal(err)
	}
	if payload["chat_id"] != "42" || payload["text"] != "<b>hi</b>" || payload["parse_mode"] != "HTML" {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestSendMessage_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	if err := testNotifier(srv).SendMessage(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if hits != 3 {
		t.Errorf("expected 3 attempts, got %d", hits)
	}
}

func TestSendMessage_BadRequestNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if err := testNotifier(srv).SendMessage(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if hits != 1 {
		t.Errorf("expected 1 attempt, got %d", hits)
	}
}

func TestEnabled(t *testing.T) {
	if NewNotifier("", "1").Enabled() || NewNotifier("t", "").Enabled() {
		t.Error("notifier without token or chat must be disabled")
	}
	var n *Notifier
	if n.Enabled() {
		t.Error("nil notifier must be disabled")
	}
}

func TestFormatReport(t *testing.T) {
	out := FormatReport(Report{
		Date:         time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Articles:     map[string]int{"world": 3, "arts": 1},
		EmailsSent:   10,
		EmailsFailed: 1,
		AIRequests:   7,
		CacheHits:    2,
		Duration:     90 * time.Second,
		Err:          errors.New("a <b> c"),
	})

	for _, want := range []string{"2024-05-01", "• arts: 1\n• world: 3", "Articles: 4", "Emails failed: 1", "AI requests: 7 (cache hits: 2)", "1m30s", "a &lt;b&gt; c"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
