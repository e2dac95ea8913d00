package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReviewsScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviews_scanned_total",
		Help: "Total number of review items fetched from external platforms.",
	})

	ReviewsNew = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviews_new_total",
		Help: "Total number of new reviews ingested.",
	})

	ReviewsUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reviews_updated_total",
		Help: "Total number of reviews updated on re-sync.",
	})

	ResponsesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "responses_scheduled_total",
		Help: "Total number of AI responses scheduled.",
	})

	ResponsesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "responses_published_total",
		Help: "Total number of responses published to platforms.",
	})

	ReconcileErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_errors_total",
		Help: "Total number of per-item failures during reconciliation runs.",
	})

	SentimentFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentiment_rule_fallbacks_total",
		Help: "Total number of classifications served by the rule-based fallback.",
	})

	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Total number of best-effort customer notification failures.",
	})
)
