package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	CandidatesSeen       int64
	ArticlesAccepted     int64
	DuplicatesFiltered   int64
	ExtractionsRejected  int64
	SummariesFailed      int64
	CategoriesPurged     int64
	EmailsSent           int64
	EmailsFailed         int64
	HeadlineFetchFailure int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool

	registry *prometheus.Registry
	events   *prometheus.CounterVec
	runTime  prometheus.Histogram
}

// Global is the process-wide collector used by the pipeline and delivery run.
var Global = New()

// New returns a healthy collector with its own Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		IsHealthy: true,
		registry:  prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rundown",
			Name:      "pipeline_events_total",
			Help:      "Pipeline events by kind and category.",
		}, []string{"event", "category"}),
		runTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rundown",
			Name:      "run_duration_seconds",
			Help:      "Duration of a full pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 8),
		}),
	}
	m.registry.MustRegister(m.events, m.runTime)
	return m
}

func (m *Metrics) inc(counter *int64, event, category string) {
	m.mu.Lock()
	*counter++
	m.mu.Unlock()
	m.events.WithLabelValues(event, category).Inc()
}

func (m *Metrics) IncrementCandidates(category string) {
	m.inc(&m.CandidatesSeen, "candidate", category)
}

func (m *Metrics) IncrementAccepted(category string) {
	m.inc(&m.ArticlesAccepted, "accepted", category)
}

func (m *Metrics) IncrementDuplicatesFiltered(category string) {
	m.inc(&m.DuplicatesFiltered, "duplicate", category)
}

func (m *Metrics) IncrementExtractionsRejected(category string) {
	m.inc(&m.ExtractionsRejected, "extraction_rejected", category)
}

func (m *Metrics) IncrementSummariesFailed(category string) {
	m.inc(&m.SummariesFailed, "summary_failed", category)
}

func (m *Metrics) IncrementPurges(category string) {
	m.inc(&m.CategoriesPurged, "purged", category)
}

func (m *Metrics) IncrementHeadlineFailures(category string) {
	m.inc(&m.HeadlineFetchFailure, "headline_failed", category)
}

func (m *Metrics) IncrementEmailsSent() {
	m.inc(&m.EmailsSent, "email_sent", "")
}

func (m *Metrics) IncrementEmailsFailed() {
	m.inc(&m.EmailsFailed, "email_failed", "")
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++

	if m.ProcessingCount > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	}
	m.runTime.Observe(duration.Seconds())
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

// Healthy reports whether the last run finished without a fatal error.
func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"candidates_seen":            m.CandidatesSeen,
		"articles_accepted":          m.ArticlesAccepted,
		"duplicates_filtered":        m.DuplicatesFiltered,
		"extractions_rejected":       m.ExtractionsRejected,
		"summaries_failed":           m.SummariesFailed,
		"categories_purged":          m.CategoriesPurged,
		"headline_fetch_failures":    m.HeadlineFetchFailure,
		"emails_sent":                m.EmailsSent,
		"emails_failed":              m.EmailsFailed,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}

// Handler exposes the collector in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
