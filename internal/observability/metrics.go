package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational counters for scraping and the API.
type Metrics struct {
	// Fetch metrics
	ListingFetches      atomic.Int64
	ListingFetchErrors  atomic.Int64
	ArticleFetches      atomic.Int64
	ArticleFetchErrors  atomic.Int64
	BytesDownloaded     atomic.Int64
	ContentParseFailure atomic.Int64

	// Classification metrics
	AnchorsSeen       atomic.Int64
	RejectedEmpty     atomic.Int64
	RejectedInvalid   atomic.Int64
	RejectedPattern   atomic.Int64
	RejectedDomain    atomic.Int64
	RejectedDuplicate atomic.Int64

	// Aggregation metrics
	AggregationRuns  atomic.Int64
	HeadlinesEmitted atomic.Int64
	HeadlinesDropped atomic.Int64
	ArticlesStored   atomic.Int64

	// AI and quota metrics
	SummariesServed  atomic.Int64
	ChatsServed      atomic.Int64
	AIErrors         atomic.Int64
	QuotaRejections  atomic.Int64
	PaymentsVerified atomic.Int64
	PaymentsRejected atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// RecordRejection increments the counter for a classifier rejection reason.
func (m *Metrics) RecordRejection(reason string) {
	switch reason {
	case "empty":
		m.RejectedEmpty.Add(1)
	case "invalid":
		m.RejectedInvalid.Add(1)
	case "pattern":
		m.RejectedPattern.Add(1)
	case "domain":
		m.RejectedDomain.Add(1)
	case "duplicate":
		m.RejectedDuplicate.Add(1)
	}
}

type metricLine struct {
	name  string
	help  string
	value int64
}

func (m *Metrics) lines() []metricLine {
	return []metricLine{
		{"newsbrief_listing_fetches_total", "Listing pages fetched", m.ListingFetches.Load()},
		{"newsbrief_listing_fetch_errors_total", "Listing page fetch failures", m.ListingFetchErrors.Load()},
		{"newsbrief_article_fetches_total", "Article pages fetched", m.ArticleFetches.Load()},
		{"newsbrief_article_fetch_errors_total", "Article page fetch failures", m.ArticleFetchErrors.Load()},
		{"newsbrief_bytes_downloaded_total", "Total bytes downloaded", m.BytesDownloaded.Load()},
		{"newsbrief_content_parse_failures_total", "Articles with no extractable content", m.ContentParseFailure.Load()},
		{"newsbrief_anchors_seen_total", "Anchors examined on listing pages", m.AnchorsSeen.Load()},
		{"newsbrief_anchors_rejected_empty_total", "Anchors rejected for empty href or text", m.RejectedEmpty.Load()},
		{"newsbrief_anchors_rejected_invalid_total", "Anchors rejected for unparseable href", m.RejectedInvalid.Load()},
		{"newsbrief_anchors_rejected_pattern_total", "Anchors rejected by URL patterns", m.RejectedPattern.Load()},
		{"newsbrief_anchors_rejected_domain_total", "Anchors rejected as off-site", m.RejectedDomain.Load()},
		{"newsbrief_anchors_rejected_duplicate_total", "Anchors rejected as duplicates", m.RejectedDuplicate.Load()},
		{"newsbrief_aggregation_runs_total", "Headline aggregation runs", m.AggregationRuns.Load()},
		{"newsbrief_headlines_emitted_total", "Headlines returned", m.HeadlinesEmitted.Load()},
		{"newsbrief_headlines_dropped_total", "Headlines dropped by the pipeline", m.HeadlinesDropped.Load()},
		{"newsbrief_articles_stored_total", "Article records created", m.ArticlesStored.Load()},
		{"newsbrief_summaries_total", "Summaries served", m.SummariesServed.Load()},
		{"newsbrief_chats_total", "Chat answers served", m.ChatsServed.Load()},
		{"newsbrief_ai_errors_total", "Language model call failures", m.AIErrors.Load()},
		{"newsbrief_quota_rejections_total", "Requests refused by the free tier quota", m.QuotaRejections.Load()},
		{"newsbrief_payments_verified_total", "Payments verified", m.PaymentsVerified.Load()},
		{"newsbrief_payments_rejected_total", "Payments with invalid signatures", m.PaymentsRejected.Load()},
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	for _, metric := range m.lines() {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// Snapshot returns all metrics keyed by their exposition name.
func (m *Metrics) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	for _, metric := range m.lines() {
		out[metric.name] = metric.value
	}
	return out
}

// LogSummary writes the headline counters at info level.
func (m *Metrics) LogSummary() {
	m.logger.Info("scrape summary",
		"listing_fetches", m.ListingFetches.Load(),
		"listing_errors", m.ListingFetchErrors.Load(),
		"headlines", m.HeadlinesEmitted.Load(),
		"rejected_pattern", m.RejectedPattern.Load(),
		"rejected_domain", m.RejectedDomain.Load(),
		"rejected_duplicate", m.RejectedDuplicate.Load(),
	)
}
