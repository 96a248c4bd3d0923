package monitor

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deusflow/rundown/internal/metrics"
)

func TestHealth(t *testing.T) {
	m := metrics.New()
	srv := httptest.NewServer(Router(m))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	m.SetError("store unreachable")
	resp2, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp2.StatusCode)
	}
	var body map[string]any
	_ = json.NewDecoder(resp2.Body).Decode(&body)
	if body["last_error"] != "store unreachable" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestStatsAndMetrics(t *testing.T) {
	m := metrics.New()
	m.IncrementAccepted("science")
	m.IncrementEmailsSent()
	srv := httptest.NewServer(Router(m))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	var stats map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&stats)
	resp.Body.Close()
	if stats["articles_accepted"] != float64(1) || stats["emails_sent"] != float64(1) {
		t.Errorf("unexpected stats %v", stats)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(data), `rundown_pipeline_events_total{category="science",event="accepted"} 1`) {
		t.Errorf("prometheus output missing accepted counter:\n%s", data)
	}
}
