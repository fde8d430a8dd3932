package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// SubmissionsTotal counts report submissions by result.
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reportcases",
		Subsystem: "intake",
		Name:      "submissions_total",
		Help:      "Total number of report submissions, labeled by result.",
	}, []string{"result"})

	// ResolutionsTotal counts resolve attempts by ledger outcome.
	ResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reportcases",
		Subsystem: "resolution",
		Name:      "resolutions_total",
		Help:      "Total number of case resolve attempts, labeled by outcome.",
	}, []string{"outcome"})

	// PendingReplies is the number of reviewers whose reply is awaited.
	PendingReplies = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reportcases",
		Subsystem: "resolution",
		Name:      "pending_replies",
		Help:      "Current number of acknowledged cases waiting for a reviewer reply.",
	})

	ReplyWaitsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reportcases",
		Subsystem: "resolution",
		Name:      "reply_waits_expired_total",
		Help:      "Total number of reviewer reply waits that timed out.",
	})

	RelayFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reportcases",
		Subsystem: "resolution",
		Name:      "relay_failures_total",
		Help:      "Total number of reviewer replies that could not be delivered to the reporter.",
	})

	EventPublishErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reportcases",
		Subsystem: "events",
		Name:      "publish_errors_total",
		Help:      "Total number of case events that failed to publish to RabbitMQ.",
	})
)

// Register registers the service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			SubmissionsTotal,
			ResolutionsTotal,
			PendingReplies,
			ReplyWaitsExpiredTotal,
			RelayFailuresTotal,
			EventPublishErrorsTotal,
		)
	})
}
