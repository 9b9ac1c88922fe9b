package notification

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/insights/internal/push"
)

var (
	alertsSentCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insights_service",
		Subsystem: "notification",
		Name:      "sedentary_alerts_total",
		Help:      "Sedentary alerts recorded, labeled by push delivery result.",
	}, []string{"delivered"})

	progressSentCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insights_service",
		Subsystem: "notification",
		Name:      "progress_notifications_total",
		Help:      "Progress notifications recorded, labeled by push delivery result.",
	}, []string{"delivered"})

	suppressedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insights_service",
		Subsystem: "notification",
		Name:      "suppressed_total",
		Help:      "Dispatch attempts suppressed before sending, labeled by reason.",
	}, []string{"reason"})

	pushOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insights_service",
		Subsystem: "notification",
		Name:      "push_attempts_total",
		Help:      "Push delivery attempts grouped by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(alertsSentCounter, progressSentCounter, suppressedCounter, pushOutcomeCounter)
}

func recordAlertSent(delivered bool) {
	alertsSentCounter.WithLabelValues(boolLabel(delivered)).Inc()
}

func recordProgressSent(delivered bool) {
	progressSentCounter.WithLabelValues(boolLabel(delivered)).Inc()
}

func recordSuppressed(reason SuppressReason) {
	suppressedCounter.WithLabelValues(string(reason)).Inc()
}

func recordPushOutcome(outcome string) {
	pushOutcomeCounter.WithLabelValues(outcome).Inc()
}

func pushOutcomeLabel(err error) string {
	switch {
	case errors.Is(err, push.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, push.ErrUnavailable):
		return "transient_error"
	default:
		return "error"
	}
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
